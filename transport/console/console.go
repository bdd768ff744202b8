// Package console surfaces pending questions on a terminal: it subscribes to
// a broker, renders each question as markdown, reads the human's reply from
// stdin, and feeds it back through Resolve.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/fogfish/opts"

	"github.com/casualjim/switchboard"
	"github.com/casualjim/switchboard/events"
	"github.com/casualjim/switchboard/pkg/slogx"
)

var (
	// Input overrides where answers are read from. Defaults to os.Stdin.
	Input = opts.ForName[Console, io.Reader]("input")

	// Output overrides where questions are written to. Defaults to os.Stdout.
	Output = opts.ForName[Console, io.Writer]("output")

	// Plain disables markdown rendering and colors, mostly for tests and
	// dumb terminals.
	Plain = opts.ForName[Console, bool]("plain")
)

// Console is a pull-one-answer-at-a-time transport. Prompts queue up while
// the human is typing; each is resolved before the next is shown.
type Console struct {
	board  *switchboard.Broker
	input  io.Reader
	output io.Writer
	plain  bool
}

// New creates a console transport for the given broker.
func New(board *switchboard.Broker, options ...opts.Option[Console]) *Console {
	c := &Console{
		board:  board,
		input:  os.Stdin,
		output: os.Stdout,
	}
	if err := opts.Apply(c, options); err != nil {
		panic(err)
	}
	return c
}

// Run subscribes and serves questions until ctx is cancelled or input is
// exhausted. A question whose request was closed elsewhere while it sat in
// the queue is skipped silently.
func (c *Console) Run(ctx context.Context) error {
	var render func(string) string
	if c.plain {
		render = func(s string) string { return s }
	} else {
		glam, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
		if err != nil {
			return fmt.Errorf("failed to create renderer: %w", err)
		}
		render = func(s string) string {
			out, rerr := glam.Render(s)
			if rerr != nil {
				return s
			}
			return out
		}
	}

	hook := &queueHook{
		wake:   make(chan struct{}, 1),
		closed: haxmap.New[string, struct{}](),
	}
	sub, err := c.board.Subscribe(ctx, hook)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	scanner := bufio.NewScanner(c.input)
	scanner.Split(bufio.ScanLines)

	marker := color.CyanString(">")
	if c.plain {
		marker = ">"
	}

	for {
		prompt, ok := hook.next()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-hook.wake:
			}
			continue
		}

		if _, gone := hook.closed.Get(prompt.ID.String()); gone {
			continue
		}

		fmt.Fprint(c.output, render(prompt.Question))
		fmt.Fprintf(c.output, "\n%s ", marker)

		if !scanner.Scan() {
			// stdin went away; release the question so observers on other
			// transports can still pick it up after a repoll, or so the
			// asker is unblocked when nobody else is around.
			if cerr := switchboard.IgnoreUnknown(c.board.Cancel(prompt.ID, "observer disconnected")); cerr != nil {
				slog.WarnContext(ctx, "failed to cancel prompt", slogx.Error(cerr))
			}
			return scanner.Err()
		}

		if rerr := switchboard.IgnoreUnknown(c.board.Resolve(prompt.ID, scanner.Text())); rerr != nil {
			return rerr
		}
	}
}

// queueHook buffers prompts without bound so delivery callbacks never block,
// no matter how large the backlog replayed at subscribe time is. The consume
// loop drains it one answer at a time.
type queueHook struct {
	mu      sync.Mutex
	pending []events.Prompt
	wake    chan struct{}
	closed  *haxmap.Map[string, struct{}]
}

func (q *queueHook) OnPrompt(ctx context.Context, prompt events.Prompt) {
	q.mu.Lock()
	q.pending = append(q.pending, prompt)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *queueHook) next() (events.Prompt, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return events.Prompt{}, false
	}
	prompt := q.pending[0]
	q.pending = q.pending[1:]
	return prompt, true
}

func (q *queueHook) OnClosed(ctx context.Context, closed events.Closed) {
	q.closed.Set(closed.ID.String(), struct{}{})
}

func (q *queueHook) OnError(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "notification error", slogx.Error(err))
}
