package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/placemap/internal/pkg/metrics"
)

// wsMessage is sent from client to switch the session it follows.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Session string `json:"session"` // session id
}

// WebSocketHandler returns a handler that relays session events (scene
// mutations, notices, permission requests) to a map client.
// The session can be given as ?session=<id> or with
// {"action":"subscribe","session":"<id>"}. One session per connection.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remoteAddr)

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		if deps.Events == nil {
			_ = writeJSON(map[string]string{"error": "event relay not configured"})
			return
		}

		var current string
		var unsubscribe func()
		stop := func() {
			if unsubscribe != nil {
				unsubscribe()
				unsubscribe = nil
			}
			current = ""
		}
		defer stop()

		subscribe := func(sessionID string) {
			if sessionID == current {
				_ = writeJSON(map[string]string{"status": "already subscribed", "session": sessionID})
				return
			}
			if deps.Sessions != nil {
				if _, err := deps.Sessions.Get(context.Background(), sessionID); err != nil {
					_ = writeJSON(map[string]string{"error": "unknown session: " + sessionID})
					return
				}
			}
			stop()
			unsub, err := deps.Events.SubscribeSession(sessionID, func(data []byte) {
				_ = writeJSON(json.RawMessage(data))
			})
			if err != nil {
				_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
				return
			}
			current, unsubscribe = sessionID, unsub
			_ = writeJSON(map[string]string{"status": "subscribed", "session": sessionID})
		}

		if id := c.Query("session"); id != "" {
			subscribe(id)
		}

		// Keep-alive ping
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			switch m.Action {
			case "subscribe":
				if m.Session == "" {
					_ = writeJSON(map[string]string{"error": "session is required"})
					continue
				}
				subscribe(m.Session)
			case "unsubscribe":
				if current == "" {
					_ = writeJSON(map[string]string{"error": "not subscribed"})
					continue
				}
				id := current
				stop()
				_ = writeJSON(map[string]string{"status": "unsubscribed", "session": id})
			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		slog.Info("ws client disconnected", "remote", remoteAddr)
	}
}
