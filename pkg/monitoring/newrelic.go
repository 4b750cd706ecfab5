package monitoring

import (
	"fmt"
	"os"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// Config holds New Relic configuration
type Config struct {
	LicenseKey string
	AppName    string
	Enabled    bool
	// LogLevel is "debug" or "info"; anything else keeps the agent quiet.
	LogLevel string
}

// NewRelicApp wraps the New Relic application. The zero value is a disabled app.
type NewRelicApp struct {
	*newrelic.Application
}

// New creates a New Relic application, or a disabled one when no license is configured
func New(cfg Config) (*NewRelicApp, error) {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		return &NewRelicApp{}, nil
	}

	opts := []newrelic.ConfigOption{
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigAppLogForwardingEnabled(true),
		newrelic.ConfigDistributedTracerEnabled(true),
	}
	switch cfg.LogLevel {
	case "debug":
		opts = append(opts, newrelic.ConfigDebugLogger(os.Stdout))
	case "info":
		opts = append(opts, newrelic.ConfigInfoLogger(os.Stdout))
	}

	app, err := newrelic.NewApplication(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create New Relic application: %w", err)
	}
	return &NewRelicApp{app}, nil
}

// IsEnabled returns whether New Relic is enabled
func (nr *NewRelicApp) IsEnabled() bool {
	return nr != nil && nr.Application != nil
}

// RecordCustomEvent records a custom event
func (nr *NewRelicApp) RecordCustomEvent(eventType string, params map[string]interface{}) {
	if nr.IsEnabled() {
		nr.Application.RecordCustomEvent(eventType, params)
	}
}

// RecordCustomMetric records a custom metric
func (nr *NewRelicApp) RecordCustomMetric(name string, value float64) {
	if nr.IsEnabled() {
		nr.Application.RecordCustomMetric(name, value)
	}
}

// Shutdown flushes pending data
func (nr *NewRelicApp) Shutdown(timeout time.Duration) {
	if nr.IsEnabled() {
		nr.Application.Shutdown(timeout)
	}
}

// RecordRideTransition records one applied lifecycle transition
func (nr *NewRelicApp) RecordRideTransition(rideID, action, from, to, actorRole string) {
	nr.RecordCustomEvent("RideTransition", map[string]interface{}{
		"ride_id":    rideID,
		"action":     action,
		"from":       from,
		"to":         to,
		"actor_role": actorRole,
		"timestamp":  time.Now().Unix(),
	})
}

// RecordRideClosed counts a ride reaching a terminal status
func (nr *NewRelicApp) RecordRideClosed(status string) {
	nr.RecordCustomMetric("custom/ride/closed/"+status, 1)
}

// RecordRideRated records the submitted score per rating field
func (nr *NewRelicApp) RecordRideRated(field string, rating int) {
	nr.RecordCustomMetric("custom/ride/rating/"+field, float64(rating))
}

// RecordPoolStats records every numeric entry of stats as custom/<pool>/<key>
func (nr *NewRelicApp) RecordPoolStats(pool string, stats map[string]interface{}) {
	if !nr.IsEnabled() {
		return
	}
	for key, raw := range stats {
		if v, ok := toFloat(raw); ok {
			nr.Application.RecordCustomMetric(fmt.Sprintf("custom/%s/%s", pool, key), v)
		}
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
