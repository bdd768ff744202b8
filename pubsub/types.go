package pubsub

import (
	"context"

	"github.com/casualjim/switchboard/events"
)

// Bus hands out named topics. The switchboard broker owns exactly one topic
// per instance, but transports are free to create side channels of their own.
type Bus interface {
	Topic(context.Context, string) Topic
}

// Topic is a fan-out channel for notification events. Every subscriber
// receives every event published after it subscribed, at most once.
type Topic interface {
	Publish(context.Context, events.Event) error
	Subscribe(context.Context, events.Hook) (Subscription, error)
}

// Subscription is the handle for one attached observer.
type Subscription interface {
	ID() string
	Unsubscribe()
}
