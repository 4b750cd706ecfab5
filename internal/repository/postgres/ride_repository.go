package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

const rideColumns = `
	id, status, rider_id, driver_id, vehicle_type,
	pickup_address, pickup_latitude, pickup_longitude,
	destination_address, destination_latitude, destination_longitude,
	fare, passengers,
	requested_at, accepted_at, picked_up_at, in_transit_at, completed_at, cancelled_at,
	rider_rating, driver_rating, cancellation_reason, version, created_at, updated_at`

const activeStatuses = `('requested', 'accepted', 'picked_up', 'in_transit')`

// RideRepository persists rides in PostgreSQL
type RideRepository struct {
	db *sql.DB
}

// NewRideRepository creates a repository on an open pool
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{db: db}
}

// EnsureSchema creates the tables and indexes if they are missing
func (r *RideRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Create inserts a requested ride and its creation event in one transaction
func (r *RideRepository) Create(ctx context.Context, rd *ride.Ride, ev ride.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rides (`+rideColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`,
		rd.ID, string(rd.Status), rd.RiderID, nullUUID(rd.DriverID), string(rd.VehicleType),
		rd.Pickup.Address, rd.Pickup.Latitude, rd.Pickup.Longitude,
		rd.Destination.Address, rd.Destination.Latitude, rd.Destination.Longitude,
		rd.Fare, rd.Passengers,
		rd.Timeline.RequestedAt, rd.Timeline.AcceptedAt, rd.Timeline.PickedUpAt,
		rd.Timeline.InTransitAt, rd.Timeline.CompletedAt, rd.Timeline.CancelledAt,
		rd.History.RiderRating, rd.History.DriverRating, rd.CancellationReason,
		rd.Version, rd.CreatedAt, rd.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ride.ErrActorBusy
		}
		return fmt.Errorf("insert ride: %w", err)
	}

	if err := insertEvent(ctx, tx, ev); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByID loads one ride
func (r *RideRepository) GetByID(ctx context.Context, id uuid.UUID) (*ride.Ride, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, id)
	rd, err := scanRide(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ride.ErrRideNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ride: %w", err)
	}
	return rd, nil
}

// CompareAndSwap writes next only if the stored version equals expectedVersion.
// Timeline columns are write-once: an already stamped column keeps its value.
func (r *RideRepository) CompareAndSwap(ctx context.Context, next *ride.Ride, expectedVersion int, ev ride.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE rides
		SET status = $1,
		    driver_id = $2,
		    accepted_at = COALESCE(accepted_at, $3),
		    picked_up_at = COALESCE(picked_up_at, $4),
		    in_transit_at = COALESCE(in_transit_at, $5),
		    completed_at = COALESCE(completed_at, $6),
		    cancelled_at = COALESCE(cancelled_at, $7),
		    cancellation_reason = $8,
		    version = $9,
		    updated_at = $10
		WHERE id = $11 AND version = $12`,
		string(next.Status), nullUUID(next.DriverID),
		next.Timeline.AcceptedAt, next.Timeline.PickedUpAt, next.Timeline.InTransitAt,
		next.Timeline.CompletedAt, next.Timeline.CancelledAt,
		next.CancellationReason, next.Version, next.UpdatedAt,
		next.ID, expectedVersion,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ride.ErrActorBusy
		}
		return fmt.Errorf("update ride: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update ride: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM rides WHERE id = $1)`, next.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check ride: %w", err)
		}
		if !exists {
			return ride.ErrRideNotFound
		}
		return ride.ErrVersionConflict
	}

	if err := insertEvent(ctx, tx, ev); err != nil {
		return err
	}
	return tx.Commit()
}

// SetRating writes one rating column if still unset on a completed ride
func (r *RideRepository) SetRating(ctx context.Context, id uuid.UUID, field ride.RatingField, value int) error {
	var column string
	switch field {
	case ride.RatingFieldRider:
		column = "rider_rating"
	case ride.RatingFieldDriver:
		column = "driver_rating"
	default:
		return ride.ErrInvalidRating
	}

	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE rides
		SET %[1]s = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'completed' AND %[1]s = 0`, column),
		value, id,
	)
	if err != nil {
		return fmt.Errorf("set rating: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set rating: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var status string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM rides WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ride.ErrRideNotFound
	}
	if err != nil {
		return fmt.Errorf("check rating: %w", err)
	}
	if ride.Status(status) != ride.StatusCompleted {
		return ride.ErrRideNotCompleted
	}
	return ride.ErrAlreadyRated
}

// GetActiveRideByActor finds the non-terminal ride the actor is rider or driver of
func (r *RideRepository) GetActiveRideByActor(ctx context.Context, actorID uuid.UUID) (*ride.Ride, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		WHERE (rider_id = $1 OR driver_id = $1) AND status IN `+activeStatuses+`
		ORDER BY created_at DESC
		LIMIT 1`, actorID)
	rd, err := scanRide(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ride.ErrRideNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active ride: %w", err)
	}
	return rd, nil
}

// ListByActor lists rides the actor took part in, newest first
func (r *RideRepository) ListByActor(ctx context.Context, actorID uuid.UUID, page ride.Page) ([]*ride.Ride, error) {
	return r.list(ctx, `WHERE rider_id = $1 OR driver_id = $1`, page, actorID)
}

// ListAll lists every ride, newest first
func (r *RideRepository) ListAll(ctx context.Context, page ride.Page) ([]*ride.Ride, error) {
	return r.list(ctx, ``, page)
}

// ListByStatus lists rides in one status, newest first
func (r *RideRepository) ListByStatus(ctx context.Context, status ride.Status, page ride.Page) ([]*ride.Ride, error) {
	return r.list(ctx, `WHERE status = $1`, page, string(status))
}

func (r *RideRepository) list(ctx context.Context, where string, page ride.Page, args ...interface{}) ([]*ride.Ride, error) {
	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM rides %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		rideColumns, where, n+1, n+2)
	args = append(args, page.Limit, page.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rides: %w", err)
	}
	defer rows.Close()

	out := make([]*ride.Ride, 0)
	for rows.Next() {
		rd, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ride: %w", err)
		}
		out = append(out, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rides: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRide(s scanner) (*ride.Ride, error) {
	var (
		rd                   ride.Ride
		status, vehicle      string
		driverID             uuid.NullUUID
		requested, accepted  sql.NullTime
		pickedUp, inTransit  sql.NullTime
		completed, cancelled sql.NullTime
	)

	err := s.Scan(
		&rd.ID, &status, &rd.RiderID, &driverID, &vehicle,
		&rd.Pickup.Address, &rd.Pickup.Latitude, &rd.Pickup.Longitude,
		&rd.Destination.Address, &rd.Destination.Latitude, &rd.Destination.Longitude,
		&rd.Fare, &rd.Passengers,
		&requested, &accepted, &pickedUp, &inTransit, &completed, &cancelled,
		&rd.History.RiderRating, &rd.History.DriverRating, &rd.CancellationReason,
		&rd.Version, &rd.CreatedAt, &rd.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rd.Status = ride.Status(status)
	rd.VehicleType = ride.VehicleType(vehicle)
	if driverID.Valid {
		id := driverID.UUID
		rd.DriverID = &id
	}
	rd.Timeline = ride.Timeline{
		RequestedAt: toTimePtr(requested),
		AcceptedAt:  toTimePtr(accepted),
		PickedUpAt:  toTimePtr(pickedUp),
		InTransitAt: toTimePtr(inTransit),
		CompletedAt: toTimePtr(completed),
		CancelledAt: toTimePtr(cancelled),
	}
	return &rd, nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, ev ride.Event) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ride_events (ride_id, from_status, to_status, action, actor_role, actor_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.RideID, string(ev.From), string(ev.To), string(ev.Action),
		string(ev.ActorRole), ev.ActorID, ev.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert ride event: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
