package pubsub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alphadose/haxmap"

	"github.com/casualjim/switchboard/events"
	"github.com/casualjim/switchboard/pkg/uuidx"
)

const defaultSlowSubscriberTimeout = 100 * time.Millisecond

type localBus struct {
	topics                *haxmap.Map[string, *localTopic]
	slowSubscriberTimeout time.Duration
}

// Local creates an in-process Bus. Subscribers run behind buffered channels; a
// subscriber that cannot keep up within the slow-subscriber timeout is
// unsubscribed rather than allowed to stall publishers.
func Local() Bus {
	return &localBus{
		topics:                haxmap.New[string, *localTopic](),
		slowSubscriberTimeout: defaultSlowSubscriberTimeout,
	}
}

// WithSlowSubscriberTimeout configures the timeout for detecting slow subscribers
func (b *localBus) WithSlowSubscriberTimeout(timeout time.Duration) *localBus {
	b.slowSubscriberTimeout = timeout
	return b
}

func (b *localBus) Topic(ctx context.Context, id string) Topic {
	top, _ := b.topics.GetOrCompute(id, func() *localTopic {
		return &localTopic{
			id:                    id,
			subscriptions:         haxmap.New[string, *localSubscription](),
			slowSubscriberTimeout: b.slowSubscriberTimeout,
		}
	})
	return top
}

type localTopic struct {
	id                    string
	subscriptions         *haxmap.Map[string, *localSubscription]
	slowSubscriberTimeout time.Duration
}

func (t *localTopic) Publish(ctx context.Context, event events.Event) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}
	t.subscriptions.ForEach(func(id string, sub *localSubscription) bool {
		if sub == nil {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-sub.done:
			return true
		case <-sub.ctx.Done():
			sub.Unsubscribe()
			return true
		default:
		}

		select {
		case <-ctx.Done():
			return false
		case <-sub.done:
		case <-sub.ctx.Done():
			sub.Unsubscribe()
		case sub.channel <- event:
		case <-time.After(t.slowSubscriberTimeout):
			// Channel stayed full for the whole grace period, drop the subscriber.
			sub.Unsubscribe()
		}
		return true
	})
	return nil
}

func (t *localTopic) Subscribe(ctx context.Context, hook events.Hook) (Subscription, error) {
	if hook == nil {
		return nil, fmt.Errorf("hook is required")
	}

	id := uuidx.NewString()
	sub := &localSubscription{
		id:      id,
		ctx:     ctx,
		channel: make(chan events.Event, 50),
		done:    make(chan struct{}),
		onClose: func() { t.subscriptions.Del(id) },
		hook:    hook,
	}
	t.subscriptions.Set(id, sub)
	go sub.forwardToHook()
	return sub, nil
}

type localSubscription struct {
	id        string
	ctx       context.Context
	channel   chan events.Event
	done      chan struct{}
	closeOnce sync.Once
	onClose   func()
	hook      events.Hook
}

func (s *localSubscription) ID() string {
	return s.id
}

// Unsubscribe detaches the subscription from its topic and stops the
// forwarding goroutine. The send channel is never closed: publishers race
// transport disconnects, so teardown is signalled through done and the
// channel is left for the collector.
func (s *localSubscription) Unsubscribe() {
	s.closeOnce.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
		close(s.done)
	})
}

func (s *localSubscription) forwardToHook() {
	for {
		select {
		case <-s.done:
			return
		case <-s.ctx.Done():
			return
		case event := <-s.channel:
			dispatchEvent(s.ctx, s.hook, event)
		}
	}
}

func forwardToHook(ctx context.Context, ch <-chan events.Event, hook events.Hook) {
	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return
			}
			dispatchEvent(ctx, hook, event)
		case <-ctx.Done():
			return
		}
	}
}

func dispatchEvent(ctx context.Context, hook events.Hook, event events.Event) {
	switch event := event.(type) {
	case events.Prompt:
		hook.OnPrompt(ctx, event)
	case events.Closed:
		hook.OnClosed(ctx, event)
	case events.Error:
		hook.OnError(ctx, event.Err)
	default:
		hook.OnError(ctx, fmt.Errorf("unknown event type: %T", event))
	}
}
