package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gradus/internal/interfaces"
	"github.com/ternarybob/gradus/internal/services/events"
)

func newSocketConn(t *testing.T, handler *WebSocketHandler) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketReceivesJobEvents(t *testing.T) {
	logger := arbor.NewLogger()
	eventService := events.NewService(logger)
	handler := NewWebSocketHandler(eventService, logger)

	conn := newSocketConn(t, handler)

	// Registration happens in the upgrade handler before Dial returns
	eventService.Publish(context.Background(), interfaces.Event{
		Type:  interfaces.EventJobProgress,
		JobID: "job-1",
		Payload: map[string]interface{}{
			"progress": 50,
		},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var event interfaces.Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("failed to read broadcast event: %v", err)
	}
	if event.Type != interfaces.EventJobProgress || event.JobID != "job-1" {
		t.Errorf("unexpected event %+v", event)
	}
}

func TestWebSocketClientRemovedOnDisconnect(t *testing.T) {
	logger := arbor.NewLogger()
	eventService := events.NewService(logger)
	handler := NewWebSocketHandler(eventService, logger)

	conn := newSocketConn(t, handler)

	deadline := time.Now().Add(2 * time.Second)
	for handler.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if handler.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", handler.ClientCount())
	}

	conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for handler.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if handler.ClientCount() != 0 {
		t.Errorf("disconnected client not removed, count = %d", handler.ClientCount())
	}
}
