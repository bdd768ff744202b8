package switchboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/casualjim/switchboard/pkg/slogx"
)

// Handle is what an asker holds while its question is in flight. Its only
// operation is Await; everything else about the request lives in the broker's
// table.
type Handle struct {
	id     uuid.UUID
	broker *Broker
	fut    *future
}

// ID returns the request identifier, useful for correlating log lines with
// what observers see.
func (h *Handle) ID() uuid.UUID {
	return h.id
}

// Await parks the calling goroutine until the request is resolved or
// cancelled and returns the answer text or the cancellation outcome. The
// resolver wakes this goroutine through a one-shot channel, never by running
// asker code inline on its own stack.
//
// When ctx expires first, the request is cancelled with ReasonAbandoned so
// observers stop seeing a question nobody is waiting for, and ctx's error is
// returned. Await may be called again after it returned; later calls observe
// the recorded outcome.
func (h *Handle) Await(ctx context.Context) (string, error) {
	answer, err := h.fut.wait(ctx)
	if err == nil {
		return answer, nil
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		if cerr := h.broker.Cancel(h.id, ReasonAbandoned); cerr != nil && !errors.Is(cerr, ErrUnknownRequest) {
			slog.WarnContext(ctx, "failed to cancel abandoned request", slogx.Error(cerr), slogx.Stringer("id", h.id))
		}
	}
	return "", err
}

type answerState struct {
	answer string
	err    error
}

type answerResult struct {
	answer string
	err    error
	done   bool
}

// future is the per-request suspension primitive: a one-shot buffered channel
// with a memoized result. complete and fail are safe from any goroutine and
// only the first transition has effect.
type future struct {
	ch     chan answerState
	result atomic.Value // holds *answerResult
	once   sync.Once
	mu     sync.Mutex
}

func newFuture() *future {
	f := &future{
		ch: make(chan answerState, 1),
	}
	f.result.Store(&answerResult{})
	return f
}

func (f *future) wait(ctx context.Context) (string, error) {
	res := f.result.Load().(*answerResult)
	if res.done {
		return res.answer, res.err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Double-check after acquiring the lock
	res = f.result.Load().(*answerResult)
	if res.done {
		return res.answer, res.err
	}

	select {
	case r := <-f.ch:
		newResult := answerResult{answer: r.answer, err: r.err, done: true}
		f.result.Store(&newResult)
		return newResult.answer, newResult.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *future) complete(answer string) {
	f.once.Do(func() {
		f.ch <- answerState{answer: answer}
	})
}

func (f *future) fail(err error) {
	f.once.Do(func() {
		f.ch <- answerState{err: err}
	})
}
