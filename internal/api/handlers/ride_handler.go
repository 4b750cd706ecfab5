package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gocomet/ride-lifecycle/internal/api/dto"
	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	"github.com/gocomet/ride-lifecycle/internal/service/lifecycle"
	"github.com/gocomet/ride-lifecycle/pkg/logger"
)

// CreateRide handles POST /v1/rides
func (h *Handlers) CreateRide(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req dto.CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload", err)
		return
	}

	created, err := h.Rides.Create(c.Request.Context(), lifecycle.CreateCommand{
		Rider:       actor,
		Pickup:      req.Pickup.ToDomain(),
		Destination: req.Destination.ToDomain(),
		Passengers:  req.Passengers,
		VehicleType: ride.VehicleType(req.VehicleType),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewRideResponse(created))
}

// AcceptRide handles POST /v1/rides/:id/accept
func (h *Handlers) AcceptRide(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.rideID(c)
	if !ok {
		return
	}

	accepted, err := h.Rides.Accept(c.Request.Context(), id, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewRideResponse(accepted))
}

// AdvanceRide handles POST /v1/rides/:id/advance
func (h *Handlers) AdvanceRide(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.rideID(c)
	if !ok {
		return
	}

	advanced, err := h.Rides.Advance(c.Request.Context(), id, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewRideResponse(advanced))
}

// CancelRide handles POST /v1/rides/:id/cancel. The body is optional.
func (h *Handlers) CancelRide(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.rideID(c)
	if !ok {
		return
	}

	var req dto.CancelRideRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "Invalid request payload", err)
		return
	}

	cancelled, err := h.Rides.Cancel(c.Request.Context(), id, actor, ride.Role(req.OnBehalfOf), req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.Logger.Info("Ride cancelled",
		logger.UUID("ride_id", cancelled.ID),
		logger.String("status", string(cancelled.Status)),
		logger.String("cancelled_by", string(actor.Role)),
	)
	c.JSON(http.StatusOK, dto.NewRideResponse(cancelled))
}

// GetRide handles GET /v1/rides/:id
func (h *Handlers) GetRide(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.rideID(c)
	if !ok {
		return
	}

	r, err := h.Rides.Get(c.Request.Context(), id, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewRideResponse(r))
}

// GetActiveRide handles GET /v1/rides/active
func (h *Handlers) GetActiveRide(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	r, err := h.Rides.ActiveRide(c.Request.Context(), actor.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewRideResponse(r))
}

// ListHistory handles GET /v1/rides/history
func (h *Handlers) ListHistory(c *gin.Context) {
	h.listRides(c, h.Rides.History)
}

// ListOpenRequests handles GET /v1/rides/open
func (h *Handlers) ListOpenRequests(c *gin.Context) {
	h.listRides(c, h.Rides.OpenRequests)
}

type listFunc func(ctx context.Context, actor ride.Actor, page ride.Page) ([]*ride.Ride, error)

func (h *Handlers) listRides(c *gin.Context, list listFunc) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var q dto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "Invalid paging parameters", err)
		return
	}
	page := lifecycle.NormalizePage(q.ToDomain())

	rides, err := list(c.Request.Context(), actor, page)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewRideListResponse(rides, page))
}
