package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/burka/podpulse/internal/quota"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10

	// defaultLiveLimitsInterval replaces a non-positive poll interval.
	defaultLiveLimitsInterval = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The token is verified by AuthMiddleware before the upgrade.
		return true
	},
}

// wsWriter wraps a WebSocket connection to ensure thread-safe writes.
// gorilla/websocket only supports one concurrent writer at a time.
type wsWriter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// WriteJSON safely writes a JSON message to the WebSocket connection.
func (w *wsWriter) WriteJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.conn.WriteJSON(v)
}

// WriteControl safely writes a control frame.
func (w *wsWriter) WriteControl(messageType int, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteControl(messageType, data, time.Now().Add(wsWriteWait))
}

// LiveLimits handles the WebSocket endpoint GET /v1/account/limits/live.
//
// Protocol:
//   - Authentication: Bearer token or access_token query parameter
//   - Server → Client: a LimitsResponse JSON frame on connect and whenever
//     the limits change, checked every interval
//   - Server → Client: {"error": "..."} when usage cannot be read
//   - Client → Server: nothing; reads only serve close and pong handling
func LiveLimits(guard *quota.Guard, interval time.Duration) http.HandlerFunc {
	if interval <= 0 {
		interval = defaultLiveLimitsInterval
	}
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r.Context())
		if !ok {
			WriteError(w, ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized)
			return
		}

		// Fail before upgrading so the client sees a proper status code.
		snap, err := guard.Limits(r.Context(), userID)
		if err != nil {
			writeQuotaError(w, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// upgrader.Upgrade writes the error response
			return
		}
		defer conn.Close()

		writer := &wsWriter{conn: conn}
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go readPump(conn, cancel)

		streamLimits(ctx, writer, guard, userID, snap, interval)
	}
}

// readPump discards client messages and cancels when the peer goes away.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// streamLimits sends the first snapshot, then polls and pushes changes until
// ctx is done or a write fails.
func streamLimits(ctx context.Context, writer *wsWriter, guard *quota.Guard, userID uuid.UUID, snap quota.Snapshot, interval time.Duration) {
	if err := writer.WriteJSON(newLimitsResponse(snap)); err != nil {
		return
	}
	last := snap

	poll := time.NewTicker(interval)
	defer poll.Stop()
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = writer.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ping.C:
			if err := writer.WriteControl(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-poll.C:
			current, err := guard.Limits(ctx, userID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("live limits refresh failed", "user_id", userID, "error", err)
				if err := writer.WriteJSON(ErrorResponse{Error: "usage temporarily unavailable", Code: CodeStoreUnavailable}); err != nil {
					return
				}
				continue
			}
			if current == last {
				continue
			}
			last = current
			if err := writer.WriteJSON(newLimitsResponse(current)); err != nil {
				return
			}
		}
	}
}
