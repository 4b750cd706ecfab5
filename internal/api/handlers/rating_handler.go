package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gocomet/ride-lifecycle/internal/api/dto"
	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
)

// RateRide handles PATCH /v1/history/:id
func (h *Handlers) RateRide(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.rideID(c)
	if !ok {
		return
	}

	var req dto.RateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Rating == nil {
		h.respondError(c, ride.ErrInvalidRating)
		return
	}

	rated, err := h.Ratings.Submit(c.Request.Context(), id, actor, *req.Rating)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if h.Recorder != nil {
		field := ride.RatingFieldRider
		if actor.Role == ride.RoleDriver {
			field = ride.RatingFieldDriver
		}
		h.Recorder.RecordRideRated(string(field), *req.Rating)
	}
	c.JSON(http.StatusOK, dto.NewRideResponse(rated))
}
