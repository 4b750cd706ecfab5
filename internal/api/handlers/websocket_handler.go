package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"

	"github.com/gocomet/ride-lifecycle/pkg/logger"
	"github.com/gocomet/ride-lifecycle/pkg/websocket"
)

// NewUpgrader builds the websocket upgrader. An empty allow list accepts any origin.
func NewUpgrader(readBuffer, writeBuffer int, allowedOrigins []string) gorilla.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return gorilla.Upgrader{
		ReadBufferSize:  readBuffer,
		WriteBufferSize: writeBuffer,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			_, ok := allowed[r.Header.Get("Origin")]
			return ok
		},
	}
}

// HandleWebSocket handles GET /v1/ws. The caller is the token subject; user ids in the query are ignored.
func (h *Handlers) HandleWebSocket(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	conn, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn("Failed to upgrade to WebSocket", logger.Err(err))
		return
	}

	client := websocket.NewClient(h.Hub, conn, actor.ID.String(), string(actor.Role), h.Logger)
	h.Hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
