package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocomet/ride-lifecycle/pkg/logger"
)

func registered(t *testing.T, hub *Hub, userID, userType string) *Client {
	t.Helper()
	c := NewClient(hub, nil, userID, userType, logger.NewNop())
	before := hub.GetActiveConnections()
	hub.Register(c)
	require.Eventually(t, func() bool { return hub.GetActiveConnections() == before+1 }, time.Second, 5*time.Millisecond)
	return c
}

func TestHub_RoutesByUserAndType(t *testing.T) {
	hub := NewHub(logger.NewNop())
	go hub.Run()
	defer hub.Stop()

	riderA := registered(t, hub, "rider-a", "rider")
	riderA2 := registered(t, hub, "rider-a", "rider")
	driver := registered(t, hub, "driver-b", "driver")

	assert.Equal(t, 3, hub.GetActiveConnections())
	assert.Equal(t, 2, hub.GetClientsByUserType("rider"))

	assert.Equal(t, 2, hub.SendToUser("rider-a", Message{Type: MessageRideStatus, Data: "accepted"}))
	assert.Len(t, riderA.Send, 1)
	assert.Len(t, riderA2.Send, 1)
	assert.Len(t, driver.Send, 0)

	assert.Equal(t, 1, hub.BroadcastToType("driver", Message{Type: MessageRideRequested}))
	var msg Message
	require.NoError(t, json.Unmarshal(<-driver.Send, &msg))
	assert.Equal(t, MessageRideRequested, msg.Type)

	assert.Zero(t, hub.SendToUser("nobody", Message{Type: MessageRideStatus}))
}

func TestHub_RideSubscriptions(t *testing.T) {
	hub := NewHub(logger.NewNop())
	go hub.Run()
	defer hub.Stop()

	admin := registered(t, hub, "admin-1", "admin")
	rider := registered(t, hub, "rider-1", "rider")

	rideID := "8f14e45f-ceea-467f-a0e6-8b5c3b1f3b1a"
	subscribe := []byte(`{"type":"subscribe","entity_id":"` + rideID + `"}`)

	assert.Nil(t, admin.handleMessage(subscribe))
	assert.True(t, admin.Watching(rideID))

	reply := rider.handleMessage(subscribe)
	require.NotNil(t, reply)
	assert.Equal(t, MessageError, reply.Type)
	assert.False(t, rider.Watching(rideID))

	reply = admin.handleMessage([]byte(`{"type":"subscribe","entity_id":"not-a-ride"}`))
	require.NotNil(t, reply)
	assert.Equal(t, MessageError, reply.Type)

	assert.Equal(t, 1, hub.BroadcastToRide(rideID, Message{Type: MessageRideStatus}))
	assert.Len(t, admin.Send, 1)
	assert.Len(t, rider.Send, 0)
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := NewHub(logger.NewNop())
	go hub.Run()
	defer hub.Stop()

	c := registered(t, hub, "rider-1", "rider")
	hub.Unregister(c)

	require.Eventually(t, func() bool { return hub.GetActiveConnections() == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-c.Send
	assert.False(t, open)
}

func TestClient_PingAndUnwatch(t *testing.T) {
	hub := NewHub(logger.NewNop())
	go hub.Run()
	defer hub.Stop()

	admin := registered(t, hub, "admin-1", "admin")

	reply := admin.handleMessage([]byte(`{"type":"ping"}`))
	require.NotNil(t, reply)
	assert.Equal(t, MessagePong, reply.Type)
	assert.True(t, hub.sendToClient(admin, *reply))
	assert.Len(t, admin.Send, 1)

	admin.Watch("r1")
	assert.Nil(t, admin.handleMessage([]byte(`{"type":"unsubscribe","entity_id":"r1"}`)))
	assert.False(t, admin.Watching("r1"))

	reply = admin.handleMessage([]byte(`{not json`))
	require.NotNil(t, reply)
	assert.Equal(t, MessageError, reply.Type)
}

func TestHub_NoReplyAfterUnregister(t *testing.T) {
	hub := NewHub(logger.NewNop())
	go hub.Run()
	defer hub.Stop()

	c := registered(t, hub, "rider-1", "rider")
	hub.Unregister(c)
	require.Eventually(t, func() bool { return hub.GetActiveConnections() == 0 }, time.Second, 5*time.Millisecond)

	assert.NotPanics(t, func() {
		assert.False(t, hub.sendToClient(c, Message{Type: MessagePong}))
	})
}
