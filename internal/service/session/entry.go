package session

import (
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
)

// View is the outcome of a navigation check
type View string

const (
	ViewRedirectToLogin      View = "redirect_to_login"
	ViewRedirectToBlocked    View = "redirect_to_blocked"
	ViewRedirectToRoleHome   View = "redirect_to_role_home"
	ViewRedirectToActiveRide View = "redirect_to_active_ride"
	ViewAllow                View = "allow"
)

// Client routes the guard knows about
const (
	PathLogin      = "/login"
	PathBlocked    = "/blocked"
	PathActiveRide = "/ride/active"
)

var roleHomes = map[ride.Role]string{
	ride.RoleRider:  "/rider",
	ride.RoleDriver: "/driver",
	ride.RoleAdmin:  "/admin",
}

// EntryRequest is everything a navigation decision depends on
type EntryRequest struct {
	Role          ride.Role
	Authenticated bool
	Blocked       bool
	// ActiveRideID is uuid.Nil when the actor is free.
	ActiveRideID uuid.UUID
	Destination  string
}

// EntryDecision tells the client where to go
type EntryDecision struct {
	View         View       `json:"view"`
	Location     string     `json:"location"`
	ActiveRideID *uuid.UUID `json:"active_ride_id,omitempty"`
}

// ResolveEntryView decides the view for one protected route entry. First match wins:
// unauthenticated, blocked, wrong role for the destination, pinned to another view, allow.
func ResolveEntryView(req EntryRequest) EntryDecision {
	if !req.Authenticated {
		return EntryDecision{View: ViewRedirectToLogin, Location: PathLogin}
	}
	if req.Blocked {
		return EntryDecision{View: ViewRedirectToBlocked, Location: PathBlocked}
	}

	dest := normalizePath(req.Destination)
	if required, ok := requiredRole(dest); ok && required != req.Role {
		return EntryDecision{View: ViewRedirectToRoleHome, Location: RoleHome(req.Role)}
	}

	if req.ActiveRideID != uuid.Nil {
		id := req.ActiveRideID
		if !isActiveRideView(dest) {
			return EntryDecision{View: ViewRedirectToActiveRide, Location: PathActiveRide, ActiveRideID: &id}
		}
		return EntryDecision{View: ViewAllow, Location: dest, ActiveRideID: &id}
	}
	return EntryDecision{View: ViewAllow, Location: dest}
}

// RoleHome returns the landing route for role
func RoleHome(role ride.Role) string {
	if home, ok := roleHomes[role]; ok {
		return home
	}
	return "/"
}

// requiredRole reports which role a destination is restricted to
func requiredRole(dest string) (ride.Role, bool) {
	for role, home := range roleHomes {
		if dest == home || strings.HasPrefix(dest, home+"/") {
			return role, true
		}
	}
	return "", false
}

func isActiveRideView(dest string) bool {
	return dest == PathActiveRide || strings.HasPrefix(dest, PathActiveRide+"/")
}

func normalizePath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
