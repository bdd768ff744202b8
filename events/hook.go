package events

import (
	"context"
	"log/slog"

	"github.com/casualjim/switchboard/pkg/slogx"
)

// Hook defines the interface observers implement to receive notifications.
// There is deliberately no provided no-op implementation: a transport that
// ignores closures or errors should make that an explicit, visible decision.
type Hook interface {
	// OnPrompt is called once per observer for every request created after
	// the observer attached, plus once for each request that was still open
	// and undelivered when it attached.
	OnPrompt(context.Context, Prompt)

	// OnClosed is called when a request leaves the open table.
	OnClosed(context.Context, Closed)

	// OnError is called for faults on the notification path itself.
	OnError(context.Context, error)
}

// LogHook returns a Hook that logs every notification through slog. Useful as
// a diagnostic observer and in examples.
func LogHook() Hook {
	return loggingHook{}
}

type loggingHook struct{}

func (loggingHook) OnPrompt(ctx context.Context, prompt Prompt) {
	slog.InfoContext(ctx, "prompt created",
		slogx.Stringer("id", prompt.ID),
		slog.String("question", prompt.Question),
	)
}

func (loggingHook) OnClosed(ctx context.Context, closed Closed) {
	slog.InfoContext(ctx, "prompt closed",
		slogx.Stringer("id", closed.ID),
		slog.String("reason", closed.Reason),
	)
}

func (loggingHook) OnError(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "notification error", slogx.Error(err))
}
