package ride

import (
	"time"

	"github.com/google/uuid"
)

// Status represents ride status
type Status string

const (
	StatusRequested         Status = "requested"
	StatusAccepted          Status = "accepted"
	StatusPickedUp          Status = "picked_up"
	StatusInTransit         Status = "in_transit"
	StatusCompleted         Status = "completed"
	StatusCancelledByRider  Status = "cancelled_by_rider"
	StatusCancelledByDriver Status = "cancelled_by_driver"
)

// ActiveStatuses lists every non-terminal status.
var ActiveStatuses = []Status{StatusRequested, StatusAccepted, StatusPickedUp, StatusInTransit}

// IsValid validates the status
func (s Status) IsValid() bool {
	switch s {
	case StatusRequested, StatusAccepted, StatusPickedUp, StatusInTransit,
		StatusCompleted, StatusCancelledByRider, StatusCancelledByDriver:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelledByRider, StatusCancelledByDriver:
		return true
	}
	return false
}

// Role identifies who is acting on a ride
type Role string

const (
	RoleRider  Role = "rider"
	RoleDriver Role = "driver"
	RoleAdmin  Role = "admin"
)

// IsValid validates the role
func (r Role) IsValid() bool {
	switch r {
	case RoleRider, RoleDriver, RoleAdmin:
		return true
	}
	return false
}

// Action is a requested state change
type Action string

const (
	ActionAccept       Action = "accept"
	ActionAdvance      Action = "advance"
	ActionCancelRider  Action = "cancel_rider"
	ActionCancelDriver Action = "cancel_driver"

	// ActionRequest is only recorded on the creation event; it is not a transition.
	ActionRequest Action = "request"
)

// VehicleType selects the fare table used for the quote
type VehicleType string

const (
	VehicleEconomy VehicleType = "economy"
	VehiclePremium VehicleType = "premium"
	VehicleLuxury  VehicleType = "luxury"
)

// IsValid validates the vehicle type
func (v VehicleType) IsValid() bool {
	switch v {
	case VehicleEconomy, VehiclePremium, VehicleLuxury:
		return true
	}
	return false
}

// Location is an address with its coordinates
type Location struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IsValid checks the coordinate ranges
func (l Location) IsValid() bool {
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}

// Timeline holds one write-once timestamp per status reached
type Timeline struct {
	RequestedAt *time.Time `json:"requested_at,omitempty"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	PickedUpAt  *time.Time `json:"picked_up_at,omitempty"`
	InTransitAt *time.Time `json:"in_transit_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// Record stamps the field for status unless it is already set.
func (t *Timeline) Record(status Status, at time.Time) {
	var slot **time.Time
	switch status {
	case StatusRequested:
		slot = &t.RequestedAt
	case StatusAccepted:
		slot = &t.AcceptedAt
	case StatusPickedUp:
		slot = &t.PickedUpAt
	case StatusInTransit:
		slot = &t.InTransitAt
	case StatusCompleted:
		slot = &t.CompletedAt
	case StatusCancelledByRider, StatusCancelledByDriver:
		slot = &t.CancelledAt
	default:
		return
	}
	if *slot == nil {
		ts := at
		*slot = &ts
	}
}

// History holds post-completion ratings. Zero means unset.
type History struct {
	// RiderRating is the score submitted by the ride's rider.
	RiderRating int `json:"rider_rating"`
	// DriverRating is the score submitted by the ride's driver.
	DriverRating int `json:"driver_rating"`
}

// Ride represents a ride request and its lifecycle
type Ride struct {
	ID                 uuid.UUID   `json:"id"`
	Status             Status      `json:"status"`
	RiderID            uuid.UUID   `json:"rider_id"`
	DriverID           *uuid.UUID  `json:"driver_id,omitempty"`
	VehicleType        VehicleType `json:"vehicle_type"`
	Pickup             Location    `json:"pickup_location"`
	Destination        Location    `json:"destination_location"`
	Fare               float64     `json:"fare"`
	Passengers         int         `json:"passengers"`
	Timeline           Timeline    `json:"timeline"`
	History            History     `json:"history"`
	CancellationReason string      `json:"cancellation_reason,omitempty"`
	Version            int         `json:"version"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// Clone returns a deep copy so callers can never mutate a stored snapshot.
func (r *Ride) Clone() *Ride {
	c := *r
	if r.DriverID != nil {
		d := *r.DriverID
		c.DriverID = &d
	}
	c.Timeline = Timeline{
		RequestedAt: cloneTime(r.Timeline.RequestedAt),
		AcceptedAt:  cloneTime(r.Timeline.AcceptedAt),
		PickedUpAt:  cloneTime(r.Timeline.PickedUpAt),
		InTransitAt: cloneTime(r.Timeline.InTransitAt),
		CompletedAt: cloneTime(r.Timeline.CompletedAt),
		CancelledAt: cloneTime(r.Timeline.CancelledAt),
	}
	return &c
}

// IsActive reports whether the ride is in a non-terminal status
func (r *Ride) IsActive() bool {
	return !r.Status.IsTerminal()
}

// HasDriver reports whether a driver is assigned
func (r *Ride) HasDriver() bool {
	return r.DriverID != nil
}

// IsParty reports whether actorID is the rider or the assigned driver
func (r *Ride) IsParty(actorID uuid.UUID) bool {
	if r.RiderID == actorID {
		return true
	}
	return r.DriverID != nil && *r.DriverID == actorID
}

// Parties returns the rider and, when assigned, the driver
func (r *Ride) Parties() []uuid.UUID {
	if r.DriverID == nil {
		return []uuid.UUID{r.RiderID}
	}
	return []uuid.UUID{r.RiderID, *r.DriverID}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
