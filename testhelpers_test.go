package switchboard

import (
	"context"
	"sync"

	"github.com/casualjim/switchboard/events"
	"github.com/casualjim/switchboard/pubsub"
)

// recordingHook captures every notification it receives.
type recordingHook struct {
	mu      sync.Mutex
	prompts []events.Prompt
	closed  []events.Closed
	errs    []error
}

func newRecordingHook() *recordingHook {
	return &recordingHook{}
}

func (r *recordingHook) OnPrompt(_ context.Context, prompt events.Prompt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = append(r.prompts, prompt)
}

func (r *recordingHook) OnClosed(_ context.Context, closed events.Closed) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, closed)
}

func (r *recordingHook) OnError(_ context.Context, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recordingHook) promptCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.prompts)
}

func (r *recordingHook) Prompts() []events.Prompt {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Prompt, len(r.prompts))
	copy(out, r.prompts)
	return out
}

func (r *recordingHook) Closed() []events.Closed {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Closed, len(r.closed))
	copy(out, r.closed)
	return out
}

// stallBus parks every closure publish until released, standing in for a bus
// backed up behind a misbehaving observer. Prompts pass through untouched.
type stallBus struct {
	release chan struct{}
}

func (s *stallBus) Topic(context.Context, string) pubsub.Topic { return s }

func (s *stallBus) Publish(ctx context.Context, event events.Event) error {
	if _, ok := event.(events.Closed); ok {
		select {
		case <-s.release:
		case <-ctx.Done():
		}
	}
	return nil
}

func (s *stallBus) Subscribe(context.Context, events.Hook) (pubsub.Subscription, error) {
	return noopSubscription{}, nil
}

type noopSubscription struct{}

func (noopSubscription) ID() string   { return "noop" }
func (noopSubscription) Unsubscribe() {}
