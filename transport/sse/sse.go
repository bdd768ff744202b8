// Package sse exposes a broker over HTTP using server-sent events: pending
// questions stream to the browser on /events, answers come back through
// /respond, and /requests offers a poll-based alternative for clients that
// cannot hold a connection open.
package sse

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fogfish/opts"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/casualjim/switchboard"
	"github.com/casualjim/switchboard/events"
	"github.com/casualjim/switchboard/pkg/slogx"
)

const defaultHeartbeat = time.Second

// maxRespondBody bounds /respond payloads; a human answer is a short string.
const maxRespondBody = 1 << 20

// Heartbeat configures how often an empty keep-alive frame is written to idle
// event streams.
var Heartbeat = opts.ForName[Handler, time.Duration]("heartbeat")

// Handler serves the three HTTP endpoints for one broker.
type Handler struct {
	board     *switchboard.Broker
	heartbeat time.Duration
}

// New creates an SSE transport for the given broker.
func New(board *switchboard.Broker, options ...opts.Option[Handler]) *Handler {
	h := &Handler{
		board:     board,
		heartbeat: defaultHeartbeat,
	}
	if err := opts.Apply(h, options); err != nil {
		panic(err)
	}
	return h
}

// Handler returns a mux with the three endpoints mounted at their
// conventional paths.
func (h *Handler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /events", h.Events)
	mux.HandleFunc("POST /respond", h.Respond)
	mux.HandleFunc("GET /requests", h.Requests)
	return mux
}

// Events streams prompt and closure notifications to the client until it
// disconnects. Each frame is one JSON event as produced by events.ToJSON.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	// Disable proxy buffering so frames reach the browser immediately.
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	hook := &streamHook{frames: make(chan []byte, 50)}
	sub, err := h.board.Subscribe(ctx, hook)
	if err != nil {
		slog.ErrorContext(ctx, "failed to subscribe event stream", slogx.Error(err))
		return
	}
	defer sub.Unsubscribe()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-hook.frames:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := io.WriteString(w, "data: {}\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// Respond accepts a human's answer: {"request_id": "...", "response": "..."}.
// Racing a request that was already settled is reported in the body, not as
// an HTTP error; the answering client did nothing wrong.
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRespondBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}
	if !gjson.ValidBytes(body) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	rawID := gjson.GetBytes(body, "request_id")
	response := gjson.GetBytes(body, "response")
	if !rawID.Exists() || !response.Exists() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request_id and response are required"})
		return
	}
	id, err := uuid.Parse(rawID.String())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid request_id: %v", err)})
		return
	}

	if err := h.board.Resolve(id, response.String()); err != nil {
		slog.DebugContext(r.Context(), "respond hit a closed request", slogx.Stringer("id", id))
		writeJSON(w, http.StatusOK, map[string]string{"status": "unknown_request"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

// Requests returns open prompts as a JSON array. With ?observer=<name> the
// poll is tracked per observer and each prompt is returned at most once to
// that name; without it the full open set is returned every time.
func (h *Handler) Requests(w http.ResponseWriter, r *http.Request) {
	var prompts []events.Prompt
	if observer := r.URL.Query().Get("observer"); observer != "" {
		prompts = h.board.Poll(observer)
	} else {
		prompts = h.board.Open()
	}
	if prompts == nil {
		prompts = []events.Prompt{}
	}
	writeJSON(w, http.StatusOK, prompts)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to write response", slogx.Error(err))
	}
}

type streamHook struct {
	frames chan []byte
}

func (s *streamHook) push(event events.Event) {
	frame, err := events.ToJSON(event)
	if err != nil {
		slog.Error("failed to encode event", slogx.Error(err))
		return
	}
	select {
	case s.frames <- frame:
	default:
		// Client is not draining; drop rather than stall the broker.
		slog.Warn("dropping frame for slow event-stream client")
	}
}

func (s *streamHook) OnPrompt(_ context.Context, prompt events.Prompt) {
	s.push(prompt)
}

func (s *streamHook) OnClosed(_ context.Context, closed events.Closed) {
	s.push(closed)
}

func (s *streamHook) OnError(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "notification error", slogx.Error(err))
}
