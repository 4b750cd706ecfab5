package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	"github.com/gocomet/ride-lifecycle/internal/service/pricing"
	"github.com/gocomet/ride-lifecycle/pkg/logger"
)

// Publisher receives every committed ride event
type Publisher interface {
	Publish(ctx context.Context, ev ride.Event)
}

// Service is the only entry point that mutates ride status
type Service struct {
	repo      ride.Repository
	pricing   *pricing.Service
	publisher Publisher
	metrics   *Metrics
	logger    *logger.Logger
	now       func() time.Time
}

// Option customizes a Service
type Option func(*Service)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics attaches transition counters
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a new lifecycle service
func NewService(repo ride.Repository, pricingSvc *pricing.Service, publisher Publisher, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		pricing:   pricingSvc,
		publisher: publisher,
		logger:    log,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCommand requests a new ride
type CreateCommand struct {
	Rider       ride.Actor
	Pickup      ride.Location
	Destination ride.Location
	Passengers  int
	VehicleType ride.VehicleType
}

// TransitionCommand requests one state change on an existing ride
type TransitionCommand struct {
	RideID uuid.UUID
	Actor  ride.Actor
	Action ride.Action
	Reason string
}

// Create opens a ride in requested status for the calling rider
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*ride.Ride, error) {
	if cmd.Rider.Role != ride.RoleRider {
		return nil, fmt.Errorf("%w: only riders can request rides", ride.ErrUnauthorized)
	}
	if err := validateCreate(cmd); err != nil {
		s.metrics.rejected(ride.ActionRequest, err)
		return nil, err
	}

	if _, err := s.repo.GetActiveRideByActor(ctx, cmd.Rider.ID); err == nil {
		s.metrics.rejected(ride.ActionRequest, ride.ErrRiderHasActiveRide)
		return nil, ride.ErrRiderHasActiveRide
	} else if !errors.Is(err, ride.ErrRideNotFound) {
		return nil, fmt.Errorf("check active ride: %w", err)
	}

	quote, err := s.pricing.QuoteFare(cmd.VehicleType, cmd.Pickup, cmd.Destination)
	if err != nil {
		return nil, err
	}

	now := s.now()
	r := &ride.Ride{
		ID:          uuid.New(),
		Status:      ride.StatusRequested,
		RiderID:     cmd.Rider.ID,
		VehicleType: cmd.VehicleType,
		Pickup:      cmd.Pickup,
		Destination: cmd.Destination,
		Fare:        quote.Total,
		Passengers:  cmd.Passengers,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.Timeline.Record(ride.StatusRequested, now)

	ev := ride.Event{
		RideID:     r.ID,
		To:         ride.StatusRequested,
		Action:     ride.ActionRequest,
		ActorRole:  ride.RoleRider,
		ActorID:    cmd.Rider.ID,
		RiderID:    cmd.Rider.ID,
		OccurredAt: now,
	}

	if err := s.repo.Create(ctx, r, ev); err != nil {
		if errors.Is(err, ride.ErrActorBusy) {
			s.metrics.rejected(ride.ActionRequest, ride.ErrRiderHasActiveRide)
			return nil, ride.ErrRiderHasActiveRide
		}
		return nil, fmt.Errorf("create ride: %w", err)
	}

	s.logger.Info("Ride requested",
		logger.UUID("ride_id", r.ID),
		logger.UUID("rider_id", r.RiderID),
		logger.Float64("fare", r.Fare),
		logger.Int("passengers", r.Passengers),
	)

	s.metrics.applied(ev)
	s.publisher.Publish(ctx, ev)
	return r.Clone(), nil
}

// Accept assigns the calling driver to a requested ride
func (s *Service) Accept(ctx context.Context, rideID uuid.UUID, actor ride.Actor) (*ride.Ride, error) {
	return s.Apply(ctx, TransitionCommand{RideID: rideID, Actor: actor, Action: ride.ActionAccept})
}

// Advance moves the ride to its strict successor status
func (s *Service) Advance(ctx context.Context, rideID uuid.UUID, actor ride.Actor) (*ride.Ride, error) {
	return s.Apply(ctx, TransitionCommand{RideID: rideID, Actor: actor, Action: ride.ActionAdvance})
}

// Cancel cancels the ride for the caller's party. Admins pass onBehalfOf.
func (s *Service) Cancel(ctx context.Context, rideID uuid.UUID, actor ride.Actor, onBehalfOf ride.Role, reason string) (*ride.Ride, error) {
	action, err := CancelAction(actor.Role, onBehalfOf)
	if err != nil {
		return nil, err
	}
	return s.Apply(ctx, TransitionCommand{RideID: rideID, Actor: actor, Action: action, Reason: reason})
}

// Apply loads the ride, validates the transition and persists it with compare-and-swap.
// A lost race surfaces as ErrInvalidTransition; the caller must re-read, never resubmit.
func (s *Service) Apply(ctx context.Context, cmd TransitionCommand) (*ride.Ride, error) {
	next, ev, err := s.apply(ctx, cmd)
	if err != nil {
		s.metrics.rejected(cmd.Action, err)
		s.logger.Info("Ride transition rejected",
			logger.UUID("ride_id", cmd.RideID),
			logger.String("action", string(cmd.Action)),
			logger.String("actor_role", string(cmd.Actor.Role)),
			logger.UUID("actor_id", cmd.Actor.ID),
			logger.Err(err),
		)
		return nil, err
	}

	s.logger.Info("Ride transition applied",
		logger.UUID("ride_id", ev.RideID),
		logger.String("action", string(ev.Action)),
		logger.String("from_status", string(ev.From)),
		logger.String("to_status", string(ev.To)),
		logger.UUID("actor_id", ev.ActorID),
		logger.Bool("closed", ev.Closed()),
	)

	s.metrics.applied(ev)
	s.publisher.Publish(ctx, ev)
	return next.Clone(), nil
}

func (s *Service) apply(ctx context.Context, cmd TransitionCommand) (*ride.Ride, ride.Event, error) {
	current, err := s.repo.GetByID(ctx, cmd.RideID)
	if err != nil {
		return nil, ride.Event{}, err
	}

	next, ev, err := ApplyTransition(current, cmd.Actor, cmd.Action, s.now())
	if err != nil {
		return nil, ride.Event{}, err
	}

	if cmd.Action == ride.ActionAccept {
		if err := s.ensureDriverFree(ctx, cmd.Actor.ID); err != nil {
			return nil, ride.Event{}, err
		}
	}
	if next.Status.IsTerminal() && cmd.Reason != "" && next.Status != ride.StatusCompleted {
		next.CancellationReason = cmd.Reason
	}

	// A cancelled context must abort before anything is written.
	if err := ctx.Err(); err != nil {
		return nil, ride.Event{}, err
	}

	err = s.repo.CompareAndSwap(ctx, next, current.Version, ev)
	switch {
	case err == nil:
		return next, ev, nil
	case errors.Is(err, ride.ErrVersionConflict):
		return nil, ride.Event{}, fmt.Errorf("%w: ride %s was already handled", ride.ErrInvalidTransition, cmd.RideID)
	case errors.Is(err, ride.ErrActorBusy):
		return nil, ride.Event{}, fmt.Errorf("%w: driver %s is on another ride", ride.ErrDriverUnavailable, cmd.Actor.ID)
	default:
		return nil, ride.Event{}, fmt.Errorf("persist transition: %w", err)
	}
}

func (s *Service) ensureDriverFree(ctx context.Context, driverID uuid.UUID) error {
	active, err := s.repo.GetActiveRideByActor(ctx, driverID)
	if errors.Is(err, ride.ErrRideNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check driver availability: %w", err)
	}
	return fmt.Errorf("%w: driver %s is on ride %s", ride.ErrDriverUnavailable, driverID, active.ID)
}

// Get returns a ride snapshot visible to actor. Drivers may read unassigned requests.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actor ride.Actor) (*ride.Ride, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(r, actor) {
		return nil, fmt.Errorf("%w: ride %s", ride.ErrUnauthorized, id)
	}
	return r, nil
}

// History lists rides the actor took part in; admins see every ride
func (s *Service) History(ctx context.Context, actor ride.Actor, page ride.Page) ([]*ride.Ride, error) {
	page = NormalizePage(page)
	if actor.Role == ride.RoleAdmin {
		return s.repo.ListAll(ctx, page)
	}
	return s.repo.ListByActor(ctx, actor.ID, page)
}

// OpenRequests lists requested rides for drivers looking for work
func (s *Service) OpenRequests(ctx context.Context, actor ride.Actor, page ride.Page) ([]*ride.Ride, error) {
	if actor.Role != ride.RoleDriver && actor.Role != ride.RoleAdmin {
		return nil, fmt.Errorf("%w: only drivers can browse open requests", ride.ErrUnauthorized)
	}
	return s.repo.ListByStatus(ctx, ride.StatusRequested, NormalizePage(page))
}

// ActiveRide returns the actor's non-terminal ride or ErrRideNotFound
func (s *Service) ActiveRide(ctx context.Context, actorID uuid.UUID) (*ride.Ride, error) {
	return s.repo.GetActiveRideByActor(ctx, actorID)
}

func canView(r *ride.Ride, actor ride.Actor) bool {
	switch actor.Role {
	case ride.RoleAdmin:
		return true
	case ride.RoleDriver:
		return r.IsParty(actor.ID) || r.Status == ride.StatusRequested
	default:
		return r.RiderID == actor.ID
	}
}

func validateCreate(cmd CreateCommand) error {
	if cmd.Rider.ID == uuid.Nil {
		return fmt.Errorf("%w: missing rider", ride.ErrInvalidRide)
	}
	if cmd.Passengers < 1 {
		return fmt.Errorf("%w: passengers must be at least 1", ride.ErrInvalidRide)
	}
	if !cmd.Pickup.IsValid() || !cmd.Destination.IsValid() {
		return fmt.Errorf("%w: coordinates out of range", ride.ErrInvalidRide)
	}
	if !cmd.VehicleType.IsValid() {
		return fmt.Errorf("%w: unknown vehicle type %q", ride.ErrInvalidRide, cmd.VehicleType)
	}
	return nil
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// NormalizePage applies the default and maximum page size
func NormalizePage(p ride.Page) ride.Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
