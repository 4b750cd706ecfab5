package lifecycle

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
)

// Metrics counts applied and rejected transitions
type Metrics struct {
	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
}

// NewMetrics registers lifecycle counters on reg. A nil reg yields unregistered counters.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ride_lifecycle",
				Name:      "transitions_total",
				Help:      "Ride status transitions applied",
			},
			[]string{"action", "to_status"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ride_lifecycle",
				Name:      "transition_rejections_total",
				Help:      "Ride transitions rejected by the state machine or the store",
			},
			[]string{"action", "reason"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.transitions, m.rejections)
	}
	return m
}

func (m *Metrics) applied(ev ride.Event) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(ev.Action), string(ev.To)).Inc()
}

func (m *Metrics) rejected(action ride.Action, err error) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(string(action), rejectionReason(err)).Inc()
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ride.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ride.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ride.ErrDriverUnavailable):
		return "driver_unavailable"
	case errors.Is(err, ride.ErrRideNotFound):
		return "not_found"
	case errors.Is(err, ride.ErrRiderHasActiveRide):
		return "rider_busy"
	case errors.Is(err, ride.ErrInvalidRide):
		return "invalid_ride"
	}
	return "internal"
}
