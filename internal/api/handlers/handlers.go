package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"

	"github.com/gocomet/ride-lifecycle/internal/api/middleware"
	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	"github.com/gocomet/ride-lifecycle/internal/service/lifecycle"
	"github.com/gocomet/ride-lifecycle/internal/service/rating"
	"github.com/gocomet/ride-lifecycle/internal/service/session"
	apperrors "github.com/gocomet/ride-lifecycle/pkg/errors"
	"github.com/gocomet/ride-lifecycle/pkg/logger"
	"github.com/gocomet/ride-lifecycle/pkg/websocket"
)

// RatingRecorder reports accepted ratings to APM
type RatingRecorder interface {
	RecordRideRated(field string, rating int)
}

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// Handlers holds all handler dependencies
type Handlers struct {
	Rides    *lifecycle.Service
	Ratings  *rating.Service
	Guard    *session.Guard
	Hub      *websocket.Hub
	Upgrader gorilla.Upgrader
	Recorder RatingRecorder
	Checks   map[string]HealthCheck
	Logger   *logger.Logger
}

// Health handles GET /health
func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.Checks))
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			h.Logger.Warn("Health check failed", logger.String("dependency", name), logger.Err(err))
			deps[name] = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "healthy"
	}

	body := gin.H{"status": "healthy", "dependencies": deps}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if h.Hub != nil {
		body["websocket_connections"] = h.Hub.GetActiveConnections()
	}
	c.JSON(status, body)
}

// respondError maps a service error to its HTTP response
func (h *Handlers) respondError(c *gin.Context, err error) {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.Logger.Error("Request failed",
			logger.String("route", c.FullPath()),
			logger.String("request_id", middleware.GetRequestID(c)),
			logger.Err(err),
		)
		_ = c.Error(err)
		if txn := nrgin.Transaction(c); txn != nil {
			txn.NoticeError(err)
		}
	}
	c.AbortWithStatusJSON(appErr.Status, appErr)
}

func toAppError(err error) *apperrors.AppError {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		return appErr
	}

	switch {
	case errors.Is(err, ride.ErrInvalidTransition):
		return apperrors.NewAppError("INVALID_TRANSITION", "This ride is no longer available or was already handled", http.StatusConflict, err)
	case errors.Is(err, ride.ErrDriverUnavailable):
		return apperrors.NewAppError("DRIVER_UNAVAILABLE", "This ride is no longer available", http.StatusConflict, err)
	case errors.Is(err, ride.ErrRiderHasActiveRide):
		return apperrors.NewAppError("RIDER_HAS_ACTIVE_RIDE", "You already have a ride in progress", http.StatusConflict, err)
	case errors.Is(err, ride.ErrRideNotCompleted):
		return apperrors.NewAppError("RIDE_NOT_COMPLETED", "Only completed rides can be rated", http.StatusConflict, err)
	case errors.Is(err, ride.ErrAlreadyRated):
		return apperrors.NewAppError("ALREADY_RATED", "You have already rated this ride", http.StatusConflict, err)
	case errors.Is(err, ride.ErrInvalidRating):
		return apperrors.NewAppError("INVALID_RATING", "Rating must be a whole number from 1 to 5", http.StatusBadRequest, err)
	case errors.Is(err, ride.ErrInvalidRide):
		return apperrors.NewAppError("INVALID_RIDE", "Ride details are invalid", http.StatusBadRequest, err)
	case errors.Is(err, ride.ErrUnauthorized):
		return apperrors.Forbidden("You are not allowed to perform this action", err)
	case errors.Is(err, ride.ErrRideNotFound):
		return apperrors.NotFound("Ride not found", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperrors.ServiceUnavailable("Request was cancelled before it completed", err)
	default:
		return apperrors.Internal("Something went wrong", err)
	}
}

func (h *Handlers) actor(c *gin.Context) (ride.Actor, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, apperrors.Unauthorized("Missing authorization token", nil))
	}
	return actor, ok
}

func (h *Handlers) rideID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid ride id", err)
		return uuid.Nil, false
	}
	return id, true
}

func badRequest(c *gin.Context, message string, err error) {
	appErr := apperrors.BadRequest(message, err)
	if err != nil {
		appErr = appErr.WithDetails(err.Error())
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, appErr)
}
