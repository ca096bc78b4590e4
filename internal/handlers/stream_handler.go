package handlers

import (
	"log"
	"net/http"
	"time"

	"commitfi/internal/auth"
	"commitfi/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// StreamHandler pushes entity updates to websocket subscribers
type StreamHandler struct {
	bus      *events.Bus
	upgrader websocket.Upgrader
}

func NewStreamHandler(bus *events.Bus) *StreamHandler {
	return &StreamHandler{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// CORS is enforced at the router level
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// StreamChallenge subscribes to all updates for one challenge
// GET /api/challenges/:id/stream
func (h *StreamHandler) StreamChallenge(c *gin.Context) {
	challengeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid challenge id"})
		return
	}

	h.stream(c, events.ChallengeTopic(challengeID))
}

// StreamMe subscribes to updates affecting the authenticated user
// GET /api/stream
func (h *StreamHandler) StreamMe(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	h.stream(c, events.UserTopic(userID))
}

func (h *StreamHandler) stream(c *gin.Context, topic string) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[Stream] Upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sub := h.bus.Subscribe(topic)
	defer sub.Close()

	// Reader goroutine drains control frames and signals disconnect
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case update, ok := <-sub.Updates():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(update); err != nil {
				log.Printf("[Stream] Write failed on %s: %v", topic, err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
