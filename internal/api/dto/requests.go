package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
)

// LocationRequest is a pickup or destination point
type LocationRequest struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude" binding:"min=-90,max=90"`
	Longitude float64 `json:"longitude" binding:"min=-180,max=180"`
}

// ToDomain converts the request to a ride location
func (l LocationRequest) ToDomain() ride.Location {
	return ride.Location{Address: l.Address, Latitude: l.Latitude, Longitude: l.Longitude}
}

// CreateRideRequest represents a request to create a new ride
type CreateRideRequest struct {
	Pickup      LocationRequest `json:"pickup_location"`
	Destination LocationRequest `json:"destination_location"`
	Passengers  int             `json:"passengers" binding:"required,min=1"`
	VehicleType string          `json:"vehicle_type" binding:"required,oneof=economy premium luxury"`
}

// CancelRideRequest cancels a ride. OnBehalfOf is only read for admins.
type CancelRideRequest struct {
	OnBehalfOf string `json:"on_behalf_of" binding:"omitempty,oneof=rider driver"`
	Reason     string `json:"reason" binding:"max=500"`
}

// RateRideRequest submits one rating for a completed ride
type RateRideRequest struct {
	Rating *int `json:"rating" binding:"required"`
}

// PageQuery holds list paging parameters
type PageQuery struct {
	Limit  int `form:"limit" binding:"min=0,max=100"`
	Offset int `form:"offset" binding:"min=0"`
}

// ToDomain converts the query to a ride page
func (p PageQuery) ToDomain() ride.Page {
	return ride.Page{Limit: p.Limit, Offset: p.Offset}
}

// RideResponse is a ride together with the actions its status still allows
type RideResponse struct {
	ID                 uuid.UUID     `json:"id"`
	Status             ride.Status   `json:"status"`
	RiderID            uuid.UUID     `json:"rider_id"`
	DriverID           *uuid.UUID    `json:"driver_id,omitempty"`
	VehicleType        string        `json:"vehicle_type"`
	Pickup             ride.Location `json:"pickup_location"`
	Destination        ride.Location `json:"destination_location"`
	Fare               float64       `json:"fare"`
	Passengers         int           `json:"passengers"`
	Timeline           ride.Timeline `json:"timeline"`
	History            ride.History  `json:"history"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`
	AvailableActions   []ride.Action `json:"available_actions"`
	Version            int           `json:"version"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// NewRideResponse maps a ride snapshot to its response body
func NewRideResponse(r *ride.Ride) RideResponse {
	actions := ride.ActionsFrom(r.Status)
	if actions == nil {
		actions = []ride.Action{}
	}
	return RideResponse{
		ID:                 r.ID,
		Status:             r.Status,
		RiderID:            r.RiderID,
		DriverID:           r.DriverID,
		VehicleType:        string(r.VehicleType),
		Pickup:             r.Pickup,
		Destination:        r.Destination,
		Fare:               r.Fare,
		Passengers:         r.Passengers,
		Timeline:           r.Timeline,
		History:            r.History,
		CancellationReason: r.CancellationReason,
		AvailableActions:   actions,
		Version:            r.Version,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

// RideListResponse is one page of rides
type RideListResponse struct {
	Rides  []RideResponse `json:"rides"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// NewRideListResponse maps a page of rides
func NewRideListResponse(rides []*ride.Ride, page ride.Page) RideListResponse {
	out := make([]RideResponse, 0, len(rides))
	for _, r := range rides {
		out = append(out, NewRideResponse(r))
	}
	return RideListResponse{Rides: out, Limit: page.Limit, Offset: page.Offset}
}

// EntryResponse tells the client where a navigation attempt should land
type EntryResponse struct {
	View         string     `json:"view"`
	Location     string     `json:"location,omitempty"`
	ActiveRideID *uuid.UUID `json:"active_ride_id,omitempty"`
}
