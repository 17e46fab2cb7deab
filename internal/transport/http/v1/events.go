package v1

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SessionEvents streams a session's live progress events over WebSocket.
// Subscribing to a terminal or unknown session is allowed; the client just
// never receives events.
// GET /v1/sessions/:session_id/events
func (h *Handler) SessionEvents(c echo.Context) error {
	sessionID := c.Param("session_id")

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("WARN: failed to upgrade websocket for session %s: %v", sessionID, err)
		return err
	}

	events, cancel := h.eventHub.Subscribe(sessionID)
	defer cancel()
	defer ws.Close()

	// Reader goroutine: we never expect client messages, but reading is
	// the only way to notice the peer closing the connection.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-events:
			if !ok {
				ws.SetWriteDeadline(time.Now().Add(writeTimeout))
				ws.WriteMessage(websocket.CloseMessage, []byte{})
				return nil
			}
			ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return nil
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-closed:
			return nil
		}
	}
}
