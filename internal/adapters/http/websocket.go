package http

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/campusaid/aidmap/internal/adapters/nats"
	"github.com/campusaid/aidmap/internal/core/domain"
	"github.com/campusaid/aidmap/internal/pkg/metrics"
)

// wsMessage is sent from client to subscribe/unsubscribe to feeds.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Channel string `json:"channel"` // "requests" | "broadcast" (default: requests)
	Kind    string `json:"kind"`    // event kind filter for "requests" (optional, "" = all)
}

// wsSubject maps a client message onto the NATS subject it follows.
func wsSubject(m wsMessage) (string, bool) {
	switch m.Channel {
	case "", "requests":
		switch domain.RequestEventKind(m.Kind) {
		case "":
			return natsadapter.SubjectRequests, true
		case domain.EventCreated, domain.EventUpdated, domain.EventCancelled, domain.EventExpired:
			return "aid.requests." + m.Kind + ".*", true
		}
		return "", false
	case "broadcast":
		return natsadapter.SubjectBroadcast, true
	}
	return "", false
}

// wsOverlaps lists the active subjects that deliver the same request events
// as subject. The all-requests subject and a per-kind subject overlap, so
// narrowing to a kind replaces the catch-all and widening drops the kinds.
func wsOverlaps(active map[string]*nats.Subscription, subject string) []string {
	isRequests := func(s string) bool {
		return s == natsadapter.SubjectRequests || strings.HasPrefix(s, "aid.requests.")
	}
	if !isRequests(subject) {
		return nil
	}
	var out []string
	for s := range active {
		if s == subject || !isRequests(s) {
			continue
		}
		if subject == natsadapter.SubjectRequests || s == natsadapter.SubjectRequests {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// WebSocketHandler returns a handler that relays request changes from NATS
// to connected clients so their maps can re-cluster.
// Clients send JSON: {"action":"subscribe","channel":"requests","kind":"created"}.
// Every connection starts subscribed to all request changes; subscribing to
// a single kind replaces that catch-all so no event arrives twice.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		logger := slog.Default().With("remote", remoteAddr)

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

		if nc == nil {
			_ = writeJSON(map[string]string{"error": "live updates unavailable"})
			return
		}

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()
		logger.Info("ws client connected")

		subs := make(map[string]*nats.Subscription)
		relay := func(msg *nats.Msg) {
			_ = writeJSON(json.RawMessage(msg.Data))
		}

		sub, err := nc.Subscribe(natsadapter.SubjectRequests, relay)
		if err != nil {
			logger.Error("ws default subscribe failed", "error", err)
			return
		}
		subs[natsadapter.SubjectRequests] = sub

		done := make(chan struct{})
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
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			subject, ok := wsSubject(m)
			if !ok {
				_ = writeJSON(map[string]string{"error": "unknown channel or kind"})
				continue
			}

			switch m.Action {
			case "subscribe":
				if _, exists := subs[subject]; exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				s, err := nc.Subscribe(subject, relay)
				if err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				replaced := wsOverlaps(subs, subject)
				for _, old := range replaced {
					_ = subs[old].Unsubscribe()
					delete(subs, old)
				}
				subs[subject] = s
				_ = writeJSON(map[string]any{"status": "subscribed", "subject": subject, "replaced": replaced})

			case "unsubscribe":
				if s, exists := subs[subject]; exists {
					_ = s.Unsubscribe()
					delete(subs, subject)
					_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		logger.Info("ws client disconnected")
	}
}
