// Package ws exposes a broker over a websocket: prompt and closure
// notifications flow out, answers flow back in on the same connection. One
// goroutine owns all writes; the read loop handles answers, cancellations and
// pong-based liveness.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/casualjim/switchboard"
	"github.com/casualjim/switchboard/events"
	"github.com/casualjim/switchboard/pkg/slogx"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// Handler upgrades HTTP requests to websocket observers of one broker.
type Handler struct {
	board *switchboard.Broker
}

// New creates a websocket transport for the given broker.
func New(board *switchboard.Broker) *Handler {
	return &Handler{board: board}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		slog.WarnContext(ctx, "failed to set read deadline", slogx.Error(err))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	writeCh := make(chan []byte, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(pingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case frame := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	hook := &connHook{frames: writeCh}
	sub, err := h.board.Subscribe(ctx, hook)
	if err != nil {
		slog.ErrorContext(ctx, "failed to subscribe websocket observer", slogx.Error(err))
		cancel()
		<-writerDone
		return
	}
	defer sub.Unsubscribe()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			cancel()
			<-writerDone
			return
		}
		h.handleInbound(ctx, message)
	}
}

// handleInbound dispatches one client frame. Malformed frames are logged and
// dropped; a broken client must not take the broker down with it.
func (h *Handler) handleInbound(ctx context.Context, message []byte) {
	if !gjson.ValidBytes(message) {
		slog.WarnContext(ctx, "dropping malformed websocket frame")
		return
	}

	switch tpe := gjson.GetBytes(message, "type").String(); tpe {
	case "respond":
		id, ok := parseID(ctx, message)
		if !ok {
			return
		}
		response := gjson.GetBytes(message, "response").String()
		if err := switchboard.IgnoreUnknown(h.board.Resolve(id, response)); err != nil {
			slog.WarnContext(ctx, "failed to resolve request", slogx.Error(err), slogx.Stringer("id", id))
		}
	case "cancel":
		id, ok := parseID(ctx, message)
		if !ok {
			return
		}
		reason := gjson.GetBytes(message, "reason").String()
		if err := switchboard.IgnoreUnknown(h.board.Cancel(id, reason)); err != nil {
			slog.WarnContext(ctx, "failed to cancel request", slogx.Error(err), slogx.Stringer("id", id))
		}
	default:
		slog.WarnContext(ctx, "unknown websocket frame type", slog.String("type", tpe))
	}
}

func parseID(ctx context.Context, message []byte) (uuid.UUID, bool) {
	raw := gjson.GetBytes(message, "id").String()
	id, err := uuid.Parse(raw)
	if err != nil {
		slog.WarnContext(ctx, "invalid request id in websocket frame", slog.String("id", raw))
		return uuid.Nil, false
	}
	return id, true
}

type connHook struct {
	frames chan []byte
}

func (c *connHook) push(event events.Event) {
	frame, err := events.ToJSON(event)
	if err != nil {
		slog.Error("failed to encode event", slogx.Error(err))
		return
	}
	select {
	case c.frames <- frame:
	default:
		slog.Warn("dropping frame for slow websocket client")
	}
}

func (c *connHook) OnPrompt(_ context.Context, prompt events.Prompt) {
	c.push(prompt)
}

func (c *connHook) OnClosed(_ context.Context, closed events.Closed) {
	c.push(closed)
}

func (c *connHook) OnError(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "notification error", slogx.Error(err))
}
