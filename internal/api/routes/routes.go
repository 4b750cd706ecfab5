package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gocomet/ride-lifecycle/internal/api/handlers"
	"github.com/gocomet/ride-lifecycle/internal/api/middleware"
	"github.com/gocomet/ride-lifecycle/pkg/logger"
)

// Options carries the cross-cutting pieces the router needs
type Options struct {
	Tokens   middleware.TokenValidator
	Registry *prometheus.Registry
	NewRelic *newrelic.Application
	Logger   *logger.Logger
}

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, opts Options) {
	// Add New Relic middleware if enabled
	if opts.NewRelic != nil {
		r.Use(nrgin.Middleware(opts.NewRelic))
	}
	r.Use(middleware.RequestID(), middleware.RequestLogger(opts.Logger))
	if opts.Registry != nil {
		r.Use(middleware.NewHTTPMetrics(opts.Registry).Handler())
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))
	}

	r.GET("/health", h.Health)

	v1 := r.Group("/v1")
	{
		// Session entry answers anonymous callers as well
		v1.GET("/session/entry", middleware.OptionalAuth(opts.Tokens), h.ResolveEntry)

		authed := v1.Group("", middleware.RequireAuth(opts.Tokens))
		authed.GET("/ws", h.HandleWebSocket)

		rides := authed.Group("/rides")
		{
			rides.GET("/history", h.ListHistory)
			rides.GET("/active", h.GetActiveRide)
			rides.GET("/open", h.ListOpenRequests)
			rides.GET("/:id", h.GetRide)

			mutate := rides.Group("", middleware.RejectBlocked())
			mutate.POST("", h.CreateRide)
			mutate.POST("/:id/accept", h.AcceptRide)
			mutate.POST("/:id/advance", h.AdvanceRide)
			mutate.POST("/:id/cancel", h.CancelRide)
		}

		history := authed.Group("/history", middleware.RejectBlocked())
		{
			history.PATCH("/:id", h.RateRide)
		}
	}
}
