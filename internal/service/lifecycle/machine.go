package lifecycle

import (
	"fmt"
	"time"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
)

// ApplyTransition validates action against the current snapshot and returns the next
// snapshot together with the event describing it. r is never modified.
//
// Checks run in a fixed order: terminal ride, actor permission, graph edge, driver slot.
// The cross-ride single-active-ride check for accept belongs to the store.
func ApplyTransition(r *ride.Ride, actor ride.Actor, action ride.Action, now time.Time) (*ride.Ride, ride.Event, error) {
	if r.Status.IsTerminal() {
		return nil, ride.Event{}, fmt.Errorf("%w: ride %s is already %s", ride.ErrInvalidTransition, r.ID, r.Status)
	}

	if err := authorize(r, actor, action); err != nil {
		return nil, ride.Event{}, err
	}

	to, ok := ride.Next(r.Status, action)
	if !ok {
		return nil, ride.Event{}, fmt.Errorf("%w: %s not allowed from %s", ride.ErrInvalidTransition, action, r.Status)
	}

	if action == ride.ActionAccept && r.HasDriver() {
		return nil, ride.Event{}, fmt.Errorf("%w: ride %s already has a driver", ride.ErrDriverUnavailable, r.ID)
	}

	next := r.Clone()
	next.Status = to
	if action == ride.ActionAccept {
		driverID := actor.ID
		next.DriverID = &driverID
	}
	next.Timeline.Record(to, now)
	next.Version = r.Version + 1
	next.UpdatedAt = now

	ev := ride.Event{
		RideID:     next.ID,
		From:       r.Status,
		To:         to,
		Action:     action,
		ActorRole:  actor.Role,
		ActorID:    actor.ID,
		RiderID:    next.RiderID,
		DriverID:   next.DriverID,
		OccurredAt: now,
	}
	return next, ev, nil
}

// authorize decides whether actor may attempt action on r at all.
// Admins may cancel on behalf of either party but never move a ride forward.
func authorize(r *ride.Ride, actor ride.Actor, action ride.Action) error {
	isDriver := r.DriverID != nil && *r.DriverID == actor.ID

	var allowed bool
	switch action {
	case ride.ActionAccept:
		allowed = actor.Role == ride.RoleDriver
	case ride.ActionAdvance:
		allowed = actor.Role == ride.RoleDriver && isDriver
	case ride.ActionCancelRider:
		allowed = actor.Role == ride.RoleAdmin ||
			(actor.Role == ride.RoleRider && r.RiderID == actor.ID)
	case ride.ActionCancelDriver:
		allowed = actor.Role == ride.RoleAdmin ||
			(actor.Role == ride.RoleDriver && isDriver)
	default:
		return fmt.Errorf("%w: unknown action %q", ride.ErrInvalidTransition, action)
	}

	if !allowed {
		return fmt.Errorf("%w: %s %s cannot %s ride %s", ride.ErrUnauthorized, actor.Role, actor.ID, action, r.ID)
	}
	return nil
}

// CancelAction maps a cancel request to the action matching the caller.
// Admins must say which party they cancel for; an empty onBehalfOf means the rider.
func CancelAction(role ride.Role, onBehalfOf ride.Role) (ride.Action, error) {
	switch role {
	case ride.RoleRider:
		return ride.ActionCancelRider, nil
	case ride.RoleDriver:
		return ride.ActionCancelDriver, nil
	case ride.RoleAdmin:
		switch onBehalfOf {
		case "", ride.RoleRider:
			return ride.ActionCancelRider, nil
		case ride.RoleDriver:
			return ride.ActionCancelDriver, nil
		}
		return "", fmt.Errorf("%w: cannot cancel on behalf of %q", ride.ErrInvalidRide, onBehalfOf)
	}
	return "", fmt.Errorf("%w: unknown role %q", ride.ErrUnauthorized, role)
}
