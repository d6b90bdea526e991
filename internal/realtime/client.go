package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/reservas-events/backend/internal/events"
	"github.com/reservas-events/backend/internal/middleware"
)

const writeWait = 10 * time.Second

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is one read-only WebSocket subscriber of an event room.
type Client struct {
	ID      string
	EventID uuid.UUID
	UserID  uuid.UUID
	hub     *Hub
	conn    *websocket.Conn
	send    chan WSMessage
}

// NewClient creates a client bound to an event room. conn may be nil in tests that only use the hub.
func NewClient(hub *Hub, eventID, userID uuid.UUID, conn *websocket.Conn) *Client {
	return &Client{
		ID:      uuid.New().String(),
		EventID: eventID,
		UserID:  userID,
		hub:     hub,
		conn:    conn,
		send:    make(chan WSMessage, 256),
	}
}

// ServeWs upgrades the connection and streams check-in updates for the event resolved by
// events.RequireAccess. Must run behind a JWT middleware. Browser origins outside
// allowedOrigins (same format as the CORS setting) are refused with 403.
func ServeWs(hub *Hub, allowedOrigins string, logger *zap.Logger) gin.HandlerFunc {
	allowed := middleware.OriginAllowed(allowedOrigins)
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return allowed(r.Header.Get("Origin"))
		},
	}
	return func(c *gin.Context) {
		e := events.FromContext(c)
		p := middleware.MustUser(c)

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		client := NewClient(hub, e.ID, p.UserID, conn)
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

// readPump only services control frames; clients never send room messages.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
