package rating

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	"github.com/gocomet/ride-lifecycle/pkg/logger"
)

const (
	MinRating = 1
	MaxRating = 5
)

// CanRate checks whether actor may submit value on r and returns the field it would set.
// Each party owns exactly one field; the counterpart's field is never consulted.
func CanRate(r *ride.Ride, actor ride.Actor, value int) (ride.RatingField, error) {
	var (
		field   ride.RatingField
		current int
	)
	switch {
	case actor.Role == ride.RoleRider && r.RiderID == actor.ID:
		field, current = ride.RatingFieldRider, r.History.RiderRating
	case actor.Role == ride.RoleDriver && r.DriverID != nil && *r.DriverID == actor.ID:
		field, current = ride.RatingFieldDriver, r.History.DriverRating
	default:
		return "", fmt.Errorf("%w: %s %s did not take part in ride %s", ride.ErrUnauthorized, actor.Role, actor.ID, r.ID)
	}

	if r.Status != ride.StatusCompleted {
		return "", fmt.Errorf("%w: ride %s is %s", ride.ErrRideNotCompleted, r.ID, r.Status)
	}
	if value < MinRating || value > MaxRating {
		return "", ride.ErrInvalidRating
	}
	if current != 0 {
		return "", ride.ErrAlreadyRated
	}
	return field, nil
}

// Service applies rating submissions
type Service struct {
	repo   ride.Repository
	logger *logger.Logger
}

// NewService creates a rating service
func NewService(repo ride.Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, logger: log}
}

// Submit records the caller's rating for a completed ride and returns the updated ride.
// The write is conditional, so of two concurrent submissions only one succeeds.
func (s *Service) Submit(ctx context.Context, rideID uuid.UUID, actor ride.Actor, value int) (*ride.Ride, error) {
	r, err := s.repo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	field, err := CanRate(r, actor, value)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetRating(ctx, rideID, field, value); err != nil {
		return nil, err
	}

	s.logger.Info("Ride rated",
		logger.UUID("ride_id", rideID),
		logger.String("field", string(field)),
		logger.Int("rating", value),
	)

	return s.repo.GetByID(ctx, rideID)
}
