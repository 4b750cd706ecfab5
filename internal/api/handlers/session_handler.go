package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gocomet/ride-lifecycle/internal/api/dto"
	"github.com/gocomet/ride-lifecycle/internal/api/middleware"
	"github.com/gocomet/ride-lifecycle/internal/service/session"
)

// ResolveEntry handles GET /v1/session/entry?path=
// Anonymous callers get a decision too, always redirect_to_login.
func (h *Handlers) ResolveEntry(c *gin.Context) {
	ec := session.EntryContext{Destination: c.Query("path")}
	if actor, ok := middleware.ActorFromContext(c); ok {
		ec.ActorID = actor.ID
		ec.Role = actor.Role
		ec.Authenticated = true
		ec.Blocked = middleware.IsBlocked(c)
	}

	decision, err := h.Guard.Resolve(c.Request.Context(), ec)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.EntryResponse{
		View:         string(decision.View),
		Location:     decision.Location,
		ActiveRideID: decision.ActiveRideID,
	})
}
