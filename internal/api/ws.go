package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"metering-service/internal/models"
)

// Hub pushes freshly created alerts to connected dashboard clients. It
// implements alerts.Publisher.
type Hub struct {
	upgrader    websocket.Upgrader
	connections map[*websocket.Conn]bool
	mutex       sync.Mutex
	logger      *logrus.Logger
}

// NewHub constructs a Hub.
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		connections: make(map[*websocket.Conn]bool),
		logger:      logger,
	}
}

// Serve upgrades the request and keeps the connection registered until the
// client goes away.
func (h *Hub) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	h.mutex.Lock()
	h.connections[conn] = true
	h.mutex.Unlock()
	h.logger.Infof("Alert feed client connected (%d total)", h.count())

	// Drain reads to notice the close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()
}

// Publish sends the alert to every connected client, dropping the ones
// that fail.
func (h *Hub) Publish(alert models.LeakAlert) {
	payload, err := json.Marshal(alert)
	if err != nil {
		h.logger.Errorf("Failed to encode alert %s for the feed: %v", alert.ID, err)
		return
	}

	h.mutex.Lock()
	conns := make([]*websocket.Conn, 0, len(h.connections))
	for conn := range h.connections {
		conns = append(conns, conn)
	}
	h.mutex.Unlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Warnf("Alert feed write failed, dropping client: %v", err)
			h.drop(conn)
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mutex.Lock()
	delete(h.connections, conn)
	h.mutex.Unlock()
	conn.Close()
}

func (h *Hub) count() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.connections)
}
