package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	"github.com/gocomet/ride-lifecycle/pkg/logger"
	"github.com/gocomet/ride-lifecycle/pkg/websocket"
)

// Hub is the push side of the WebSocket hub
type Hub interface {
	SendToUser(userID string, message websocket.Message) int
	BroadcastToType(userType string, message websocket.Message) int
	BroadcastToRide(rideID string, message websocket.Message) int
}

// Recorder receives APM events
type Recorder interface {
	RecordRideTransition(rideID, action, from, to, actorRole string)
	RecordRideClosed(status string)
}

// RideStatus is the payload of a ride_status message
type RideStatus struct {
	RideID     uuid.UUID   `json:"ride_id"`
	Status     ride.Status `json:"status"`
	From       ride.Status `json:"from_status,omitempty"`
	Action     ride.Action `json:"action"`
	DriverID   *uuid.UUID  `json:"driver_id,omitempty"`
	Closed     bool        `json:"closed"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Notifier fans committed ride events out to connected clients and APM
type Notifier struct {
	hub      Hub
	recorder Recorder
	logger   *logger.Logger
}

// NewNotifier creates a notifier. recorder may be nil.
func NewNotifier(hub Hub, recorder Recorder, log *logger.Logger) *Notifier {
	return &Notifier{hub: hub, recorder: recorder, logger: log}
}

// HandleRideEvent pushes ev to both parties and to admins watching the ride.
// New requests are also announced to every connected driver.
func (n *Notifier) HandleRideEvent(ctx context.Context, ev ride.Event) error {
	msg := websocket.Message{
		Type: websocket.MessageRideStatus,
		Data: RideStatus{
			RideID:     ev.RideID,
			Status:     ev.To,
			From:       ev.From,
			Action:     ev.Action,
			DriverID:   ev.DriverID,
			Closed:     ev.Closed(),
			OccurredAt: ev.OccurredAt,
		},
	}

	delivered := 0
	for _, userID := range ev.Parties() {
		delivered += n.hub.SendToUser(userID.String(), msg)
	}
	delivered += n.hub.BroadcastToRide(ev.RideID.String(), msg)

	if ev.To == ride.StatusRequested {
		delivered += n.hub.BroadcastToType(string(ride.RoleDriver), websocket.Message{
			Type: websocket.MessageRideRequested,
			Data: msg.Data,
		})
	}

	if n.recorder != nil {
		n.recorder.RecordRideTransition(ev.RideID.String(), string(ev.Action), string(ev.From), string(ev.To), string(ev.ActorRole))
		if ev.Closed() {
			n.recorder.RecordRideClosed(string(ev.To))
		}
	}

	n.logger.Debug("Ride event pushed",
		logger.UUID("ride_id", ev.RideID),
		logger.String("to_status", string(ev.To)),
		logger.Int("deliveries", delivered),
	)
	return nil
}
