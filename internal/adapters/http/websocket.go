package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/taxiportal/internal/adapters/nats"
	"github.com/samirrijal/taxiportal/internal/core/ports"
	"github.com/samirrijal/taxiportal/internal/pkg/metrics"
)

const wsPingInterval = 30 * time.Second

// WebSocketHandler relays the authenticated user's reservation events
// (created, cancelled) from NATS. The connection is read only to detect
// the client going away.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		s, _ := c.Locals(sessionLocal).(ports.Session)
		log := slog.Default().With("remote", c.RemoteAddr().String(), "user_id", s.UserID)
		if s.UserID == "" || nc == nil {
			_ = c.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unavailable"))
			return
		}

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()
		log.Info("ws client connected")

		var mu sync.Mutex
		write := func(messageType int, data []byte) error {
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(messageType, data)
		}

		sub, err := nc.Subscribe(natsadapter.UserReservationsWildcard(s.UserID), func(msg *nats.Msg) {
			if !json.Valid(msg.Data) {
				return
			}
			_ = write(websocket.TextMessage, msg.Data)
		})
		if err != nil {
			log.Error("ws subscribe failed", "error", err)
			return
		}
		defer func() { _ = sub.Unsubscribe() }()

		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(wsPingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := write(websocket.PingMessage, nil); err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		log.Info("ws client disconnected")
	}
}
