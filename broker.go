package switchboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/casualjim/switchboard/events"
	"github.com/casualjim/switchboard/pkg/slogx"
	"github.com/casualjim/switchboard/pkg/uuidx"
	"github.com/casualjim/switchboard/pubsub"
)

// DefaultTopic is the notification topic a broker publishes prompts on unless
// configured otherwise.
const DefaultTopic = "switchboard.prompts"

var (
	// Bus configures the notification bus. Defaults to pubsub.Local(); pass
	// pubsub.NATS(conn) to fan prompts out across processes.
	Bus = opts.ForName[Broker, pubsub.Bus]("bus")

	// Topic configures the notification topic name.
	Topic = opts.ForName[Broker, string]("topic")
)

// AskSettings carries the per-ask options; its fields are set through Timeout
// and friends.
type AskSettings struct {
	timeout time.Duration
}

// Timeout bounds the suspension of a single ask. On expiry the request is
// cancelled with ReasonTimeout; if an answer arrives concurrently the first
// transition wins and the loser observes ErrUnknownRequest.
var Timeout = opts.ForName[AskSettings, time.Duration]("timeout")

// Broker owns the authoritative table of pending requests and is the single
// source of truth for whether a request is still open. Every read-modify-write
// on the table is serialized through one mutex; resolve and cancel are fast,
// non-suspending and safe to call from any goroutine, including transport
// callbacks.
type Broker struct {
	bus   pubsub.Bus
	topic string

	mu    sync.Mutex
	table *orderedmap.OrderedMap[uuid.UUID, *pendingRequest]

	// pubMu orders prompt publishes against backlog replay so a new subscriber
	// sees every prompt exactly once. It is never nested inside mu; a stalled
	// bus can therefore delay notifications but not table operations.
	pubMu sync.Mutex
}

// New creates a broker. Lifecycle is owned by the composing component: create
// it, hand it to the reasoning loop and the transports, and Drain it on
// shutdown. There is deliberately no package-level instance.
func New(options ...opts.Option[Broker]) *Broker {
	b := &Broker{
		bus:   pubsub.Local(),
		topic: DefaultTopic,
		table: orderedmap.New[uuid.UUID, *pendingRequest](),
	}
	if err := opts.Apply(b, options); err != nil {
		panic(err)
	}
	return b
}

// Submit registers a new question and returns the handle its asker will wait
// on. It publishes the prompt to the notification topic and never blocks on
// the answer itself; the suspension happens in Handle.Await.
func (b *Broker) Submit(ctx context.Context, question string, metadata map[string]any, options ...opts.Option[AskSettings]) (*Handle, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	var settings AskSettings
	if err := opts.Apply(&settings, options); err != nil {
		return nil, err
	}

	req := &pendingRequest{
		id:        uuidx.New(),
		question:  question,
		metadata:  maps.Clone(metadata),
		createdAt: strfmt.DateTime(time.Now()),
		fut:       newFuture(),
		notified:  make(map[string]struct{}),
	}

	// Holding pubMu across insert and publish keeps topic order aligned with
	// table order, and closures for this request queue up behind the prompt.
	b.pubMu.Lock()
	b.mu.Lock()
	b.table.Set(req.id, req)
	if settings.timeout > 0 {
		req.timer = time.AfterFunc(settings.timeout, func() {
			_ = b.Cancel(req.id, ReasonTimeout)
		})
	}
	b.mu.Unlock()
	if err := b.bus.Topic(ctx, b.topic).Publish(ctx, req.prompt()); err != nil {
		// The request stays open and remains visible to pollers and the next
		// subscriber; a broken notification path must not corrupt the table.
		slog.WarnContext(ctx, "failed to publish prompt", slogx.Error(err), slogx.Stringer("id", req.id))
	}
	b.pubMu.Unlock()

	return &Handle{id: req.id, broker: b, fut: req.fut}, nil
}

// Ask is the suspending entry point used by reasoning loops: Submit followed
// by Handle.Await. It returns the answer text, or a *CancelledError when the
// request was cancelled before an answer arrived.
func (b *Broker) Ask(ctx context.Context, question string, metadata map[string]any, options ...opts.Option[AskSettings]) (string, error) {
	handle, err := b.Submit(ctx, question, metadata, options...)
	if err != nil {
		return "", err
	}
	return handle.Await(ctx)
}

// Resolve delivers an answer for the given request and wakes its asker.
// Unknown or already closed identifiers return ErrUnknownRequest and change
// nothing.
func (b *Broker) Resolve(id uuid.UUID, answer string) error {
	b.mu.Lock()
	req, ok := b.table.Get(id)
	if !ok || req.state != stateOpen {
		b.mu.Unlock()
		return ErrUnknownRequest
	}
	req.state = stateResolved
	req.answer = answer
	if req.timer != nil {
		req.timer.Stop()
	}
	b.table.Delete(id)
	b.mu.Unlock()

	// Wake the asker before touching the bus; a slow observer must not delay
	// the answer.
	req.fut.complete(answer)
	b.publishClosed(id, events.ReasonResolved)
	return nil
}

// Cancel abandons the given request and wakes its asker with a
// *CancelledError carrying the reason. Same lookup semantics as Resolve.
func (b *Broker) Cancel(id uuid.UUID, reason string) error {
	if reason == "" {
		reason = "cancelled"
	}

	b.mu.Lock()
	req, ok := b.table.Get(id)
	if !ok || req.state != stateOpen {
		b.mu.Unlock()
		return ErrUnknownRequest
	}
	req.state = stateCancelled
	if req.timer != nil {
		req.timer.Stop()
	}
	b.table.Delete(id)
	b.mu.Unlock()

	req.fut.fail(&CancelledError{Reason: reason})
	b.publishClosed(id, reason)
	return nil
}

// Open returns a projection of every currently open request in creation
// order, regardless of what has already been delivered to whom.
func (b *Broker) Open() []events.Prompt {
	b.mu.Lock()
	defer b.mu.Unlock()

	open := make([]events.Prompt, 0, b.table.Len())
	for pair := b.table.Oldest(); pair != nil; pair = pair.Next() {
		open = append(open, pair.Value.prompt())
	}
	return open
}

// Poll returns the open requests that have not yet been delivered to the
// named observer and marks them delivered for it. Each observer name sees a
// given request at most once; different observers track independently.
func (b *Broker) Poll(observer string) []events.Prompt {
	b.mu.Lock()
	defer b.mu.Unlock()

	var undelivered []events.Prompt
	for pair := b.table.Oldest(); pair != nil; pair = pair.Next() {
		req := pair.Value
		if _, seen := req.notified[observer]; seen {
			continue
		}
		req.notified[observer] = struct{}{}
		undelivered = append(undelivered, req.prompt())
	}
	return undelivered
}

// Subscribe attaches a push observer. The still-open backlog is replayed to
// the new subscriber first, then live delivery takes over; the handoff is
// serialized with Submit so the subscriber sees every prompt exactly once.
func (b *Broker) Subscribe(ctx context.Context, hook events.Hook) (pubsub.Subscription, error) {
	if hook == nil {
		return nil, fmt.Errorf("hook is required")
	}
	gate := &gatedHook{next: hook, ready: make(chan struct{})}

	// Holding pubMu keeps new prompt publishes out until the replay is done:
	// everything already published is in the snapshot, everything later is
	// delivered live once the gate opens.
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	sub, err := b.bus.Topic(ctx, b.topic).Subscribe(ctx, gate)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	backlog := make([]events.Prompt, 0, b.table.Len())
	for pair := b.table.Oldest(); pair != nil; pair = pair.Next() {
		backlog = append(backlog, pair.Value.prompt())
	}
	b.mu.Unlock()

	for _, prompt := range backlog {
		hook.OnPrompt(ctx, prompt)
	}
	gate.open()

	return sub, nil
}

// Drain cancels every still-open request so no asker hangs past shutdown.
// An empty reason defaults to ReasonShutdown. Draining an empty broker is a
// no-op and the broker stays usable afterwards.
func (b *Broker) Drain(ctx context.Context, reason string) {
	if reason == "" {
		reason = ReasonShutdown
	}

	b.mu.Lock()
	drained := make([]*pendingRequest, 0, b.table.Len())
	for pair := b.table.Oldest(); pair != nil; pair = pair.Next() {
		req := pair.Value
		req.state = stateCancelled
		if req.timer != nil {
			req.timer.Stop()
		}
		drained = append(drained, req)
	}
	b.table = orderedmap.New[uuid.UUID, *pendingRequest]()
	b.mu.Unlock()

	outcome := &CancelledError{Reason: reason}
	for _, req := range drained {
		req.fut.fail(outcome)
	}
	for _, req := range drained {
		b.publishClosed(req.id, reason)
	}
	if len(drained) > 0 {
		slog.InfoContext(ctx, "drained open requests", slog.Int("count", len(drained)), slog.String("reason", reason))
	}
}

// publishClosed announces a terminal transition on the bus. It takes pubMu,
// never mu, so callers must have released the table lock first; a closure for
// a request whose prompt publish is still in flight waits its turn here.
func (b *Broker) publishClosed(id uuid.UUID, reason string) {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()
	ctx := context.Background()
	if err := b.bus.Topic(ctx, b.topic).Publish(ctx, events.Closed{ID: id, Reason: reason}); err != nil {
		slog.Warn("failed to publish closure", slogx.Error(err), slogx.Stringer("id", id))
	}
}

var _ events.Hook = (*gatedHook)(nil)

// gatedHook holds back live delivery until the backlog replay for a new
// subscriber has finished, so replayed and live prompts cannot interleave or
// duplicate.
type gatedHook struct {
	next  events.Hook
	ready chan struct{}
	once  sync.Once
}

func (g *gatedHook) open() {
	g.once.Do(func() { close(g.ready) })
}

func (g *gatedHook) OnPrompt(ctx context.Context, prompt events.Prompt) {
	<-g.ready
	g.next.OnPrompt(ctx, prompt)
}

func (g *gatedHook) OnClosed(ctx context.Context, closed events.Closed) {
	<-g.ready
	g.next.OnClosed(ctx, closed)
}

func (g *gatedHook) OnError(ctx context.Context, err error) {
	<-g.ready
	g.next.OnError(ctx, err)
}

// IgnoreUnknown discards errors that only say the request was already
// settled; everything else passes through. Transports use it around Resolve
// calls triggered by humans racing each other.
func IgnoreUnknown(err error) error {
	if err == nil || errors.Is(err, ErrUnknownRequest) {
		return nil
	}
	return err
}
