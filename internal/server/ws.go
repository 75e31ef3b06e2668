package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tabsplit/tabsplit/internal/metrics"
	"github.com/tabsplit/tabsplit/internal/notifier"
)

const wsWriteTimeout = 10 * time.Second

// wsObserver adapts one WebSocket connection to the notifier's Observer
// interface. The mutex serializes writes: broadcasts arrive from the
// notifier's timer goroutine while pongs go out from the read loop.
type wsObserver struct {
	conn    *websocket.Conn
	metrics *metrics.Metrics

	mu sync.Mutex
}

func (o *wsObserver) Send(ev notifier.Event) error {
	if err := o.writeJSON(ev); err != nil {
		o.metrics.SendFailures.Inc()
		return err
	}
	o.metrics.MessagesSent.WithLabelValues(ev.Type).Inc()
	return nil
}

func (o *wsObserver) writeJSON(v any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return o.conn.WriteJSON(v)
}

// clientMessage is what connected clients may send; only pings are defined.
type clientMessage struct {
	Type string `json:"type"`
}

// handleWebSocket upgrades the connection and subscribes it to the group's
// change broadcasts until the client disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	if _, err := s.groups.Get(r.Context(), groupID); err != nil {
		writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error to the client.
		slog.Warn("websocket upgrade failed", "group_id", groupID, "error", err)
		return
	}
	defer conn.Close()

	s.metrics.WSConnections.Inc()
	defer s.metrics.WSConnections.Dec()

	obs := &wsObserver{conn: conn, metrics: s.metrics}
	if err := obs.writeJSON(map[string]string{"type": "connected", "group_id": groupID}); err != nil {
		slog.Warn("websocket hello failed", "group_id", groupID, "error", err)
		return
	}

	s.notifier.Register(groupID, obs)
	defer s.notifier.Unregister(groupID, obs)
	slog.Info("websocket connected", "group_id", groupID, "remote_addr", r.RemoteAddr)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("websocket read failed", "group_id", groupID, "error", err)
			}
			break
		}

		var reply map[string]string
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			reply = map[string]string{"type": "error", "message": "invalid message"}
		} else if msg.Type == "ping" {
			reply = map[string]string{"type": "pong"}
		} else {
			reply = map[string]string{"type": "error", "message": "unknown message type"}
		}
		if err := obs.writeJSON(reply); err != nil {
			break
		}
	}
	slog.Info("websocket disconnected", "group_id", groupID)
}
