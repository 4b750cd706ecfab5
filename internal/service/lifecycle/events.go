package lifecycle

import (
	"context"
	"sync"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	"github.com/gocomet/ride-lifecycle/pkg/logger"
)

// Subscriber reacts to committed ride events. Errors are logged, never propagated:
// the transition has already been persisted when subscribers run.
type Subscriber interface {
	HandleRideEvent(ctx context.Context, ev ride.Event) error
}

// SubscriberFunc adapts a function to Subscriber
type SubscriberFunc func(ctx context.Context, ev ride.Event) error

// HandleRideEvent calls f
func (f SubscriberFunc) HandleRideEvent(ctx context.Context, ev ride.Event) error {
	return f(ctx, ev)
}

// Bus delivers events synchronously, in subscription order
type Bus struct {
	mu          sync.RWMutex
	subscribers []namedSubscriber
	logger      *logger.Logger
}

type namedSubscriber struct {
	name string
	sub  Subscriber
}

// NewBus creates an empty event bus
func NewBus(log *logger.Logger) *Bus {
	return &Bus{logger: log}
}

// Subscribe registers sub under name
func (b *Bus) Subscribe(name string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, namedSubscriber{name: name, sub: sub})
}

// Publish hands ev to every subscriber
func (b *Bus) Publish(ctx context.Context, ev ride.Event) {
	b.mu.RLock()
	subs := make([]namedSubscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, s := range subs {
		if err := s.sub.HandleRideEvent(ctx, ev); err != nil {
			b.logger.Warn("Ride event subscriber failed",
				logger.String("subscriber", s.name),
				logger.UUID("ride_id", ev.RideID),
				logger.String("to_status", string(ev.To)),
				logger.Err(err),
			)
		}
	}
}
