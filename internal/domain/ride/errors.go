package ride

import "errors"

var (
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrUnauthorized       = errors.New("actor is not permitted to perform this action")
	ErrDriverUnavailable  = errors.New("driver is not available")
	ErrInvalidRating      = errors.New("rating must be an integer between 1 and 5")
	ErrAlreadyRated       = errors.New("ride already rated")
	ErrRideNotFound       = errors.New("ride not found")
	ErrRideNotCompleted   = errors.New("ride is not completed")
	ErrRiderHasActiveRide = errors.New("rider already has an active ride")
	ErrInvalidRide        = errors.New("invalid ride data")

	// Repository-level conflicts, translated by the lifecycle service.
	ErrVersionConflict = errors.New("ride was modified concurrently")
	ErrActorBusy       = errors.New("actor already has an active ride")
)
