// Package events defines the notification surface of the switchboard: the
// read-only projections observers receive, the Hook interface they implement,
// and a JSON codec for transports that need a wire form.
//
// Design decisions:
//   - Projections only: observers see id, question and metadata. Answers never
//     travel through the notification channel; they flow back to the asker
//     through the broker alone.
//   - Opaque metadata: the Metadata map is carried through untouched so
//     callers can smuggle transport hints (agent name, tool being approved)
//     without the core growing an opinion about them.
//   - Type markers: events marshal with a "type" discriminator so FromJSON can
//     dispatch without an envelope struct.
//
// Event hierarchy:
//   - Event: union of notification payloads
//     ├── Prompt: a newly created request awaiting a human answer
//     ├── Closed: a request left the open table (resolved or cancelled)
//     └── Error: a fault on the notification path
//
// Example usage:
//
//	sub, err := broker.Subscribe(ctx, myHook)
//	if err != nil {
//	    return err
//	}
//	defer sub.Unsubscribe()
//
//	// myHook.OnPrompt fires for the undelivered backlog first, then for
//	// every prompt created while the subscription is live.
package events
