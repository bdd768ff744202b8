// Package pubsub implements the fan-out half of the switchboard: distributing
// newly created prompts (and their closures) to any number of observers
// without coupling the broker to a specific transport.
//
// Design decisions:
//   - Context-first: all operations accept context.Context for cancellation
//   - Topic-based: events flow through named topics for logical separation
//   - Hook integration: subscribers implement events.Hook, the forwarding
//     goroutine dispatches each event type to the matching hook method
//   - Paired implementations: Local for a single process, NATS for observers
//     living elsewhere, both behind the same three interfaces
//   - Slow subscriber policy: a local subscriber whose buffer stays full past
//     a grace period is unsubscribed instead of stalling publishers
//
// Interface hierarchy:
//   - Bus: entry point handing out topics
//     └── Topic: publish/subscribe for one event stream
//     └── Subscription: lifecycle handle with a unique ID
//
// Example usage:
//
//	bus := pubsub.Local()
//	topic := bus.Topic(ctx, "prompts")
//
//	sub, err := topic.Subscribe(ctx, myHook)
//	if err != nil {
//	    return err
//	}
//	defer sub.Unsubscribe()
//
//	_ = topic.Publish(ctx, events.Prompt{ID: uuidx.New(), Question: "size?"})
package pubsub
