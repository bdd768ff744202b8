/*
Package switchboard coordinates human input for autonomous reasoning loops: an
agent can suspend mid-run, surface a question to whoever is watching, and
resume once somebody answers, without blocking the process that hosts it and
without mixing up answers when several questions are in flight.

The package implements this through a few small pieces:

  - Broker: owns the table of pending requests and is the single source of
    truth for whether a request is still open
  - Handle: what an asker waits on; resolves with the answer or a cancellation
  - events: the read-only projections and Hook interface observers consume
  - pubsub: fan-out of newly created prompts to observers (in-process or NATS)
  - transports: console, server-sent events, and websocket adapters that turn
    prompts into something a human can see and answer

# Basic Usage

A reasoning loop asks; any transport answers:

	board := switchboard.New()

	// somewhere in an agent tool
	answer, err := board.Ask(ctx, "What size pizza?", map[string]any{"agent": "pizzeria"})
	if err != nil {
		var cancelled *switchboard.CancelledError
		if errors.As(err, &cancelled) {
			// the question was withdrawn, branch accordingly
		}
		return err
	}

	// somewhere in a transport, after a human typed a reply
	if err := board.Resolve(id, reply); errors.Is(err, switchboard.ErrUnknownRequest) {
		// somebody else answered first; nothing to do
	}

Observers learn about questions either by polling (Broker.Poll, delivery-once
per observer name) or by subscribing (Broker.Subscribe, which replays the open
backlog before live delivery). On shutdown, Drain cancels everything still
open so no asker hangs forever.

# Concurrency

Ask suspends only the calling goroutine. Resolve and Cancel are fast,
non-suspending, and safe from any goroutine, including network callbacks; a
request transitions exactly once no matter how many resolvers race, and the
losers observe ErrUnknownRequest.
*/
package switchboard
