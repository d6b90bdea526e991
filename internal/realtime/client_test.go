package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/reservas-events/backend/internal/authz"
	"github.com/reservas-events/backend/internal/events"
	"github.com/reservas-events/backend/internal/middleware"
	"github.com/reservas-events/backend/internal/models"
)

func dial(t *testing.T, url, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	d := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	return d.Dial(url, header)
}

func TestServeWs_OriginCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(nil, nil, nil)
	eventID := uuid.New()
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		middleware.SetPrincipal(c, authz.Principal{UserID: uuid.New(), Role: models.RoleViewer})
		c.Set(events.ContextEvent, &models.Event{ID: eventID})
		c.Next()
	}, ServeWs(hub, "https://app.example.com", zap.NewNop()))
	srv := httptest.NewServer(r)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := dial(t, url, "https://evil.example.net")
	if err == nil {
		t.Fatal("foreign origin upgraded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign origin: got %v", resp)
	}

	conn, _, err := dial(t, url, "https://app.example.com")
	if err != nil {
		t.Fatalf("allowed origin: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ViewerCount(eventID) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never joined the event room")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
