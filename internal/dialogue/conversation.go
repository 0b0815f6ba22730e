// ABOUTME: Conversation engine driving a prompt tree to completion
// ABOUTME: Suspends on a reply mailbox; external event delivery resumes the waiting dialogue

package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the lifecycle state of a conversation.
type State int

const (
	StateActive State = iota
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// ErrNoReply is returned by Run when a reply timeout is configured and no
// reply arrived in time.
var ErrNoReply = errors.New("no reply received before timeout")

// clarification is sent when a reply matches no branch and the prompt has no
// default. The dialogue keeps waiting rather than hanging silently or
// terminating without an explicit user exit.
const clarification = "Sorry, I didn't catch that. Could you say that again?"

// SendFunc emits one message to the conversation's channel.
type SendFunc func(ctx context.Context, text string) error

// Conversation binds a dialogue run to one messaging target. Replies are
// delivered through a buffered mailbox so the delivering event loop never
// blocks on a slow dialogue; replies from one user are consumed in the
// order delivered.
type Conversation struct {
	send    SendFunc
	replies chan string
	done    chan struct{}
	once    sync.Once
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithReplyTimeout bounds the wait for each reply. The zero default waits
// indefinitely, matching the baseline behavior; a timeout aborts the
// dialogue with ErrNoReply.
func WithReplyTimeout(d time.Duration) Option {
	return func(c *Conversation) { c.timeout = d }
}

// WithLogger sets the conversation logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Conversation) { c.logger = logger.With("component", "dialogue") }
}

// New creates a Conversation that emits messages through send.
func New(send SendFunc, opts ...Option) *Conversation {
	c := &Conversation{
		send:    send,
		replies: make(chan string, 16),
		done:    make(chan struct{}),
		logger:  slog.Default().With("component", "dialogue"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Say emits a message within the conversation.
func (c *Conversation) Say(ctx context.Context, text string) error {
	return c.send(ctx, text)
}

// Deliver feeds a correlated reply into the conversation. It never blocks:
// returns false if the conversation has finished or its mailbox is full.
func (c *Conversation) Deliver(text string) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.replies <- text:
		return true
	default:
		return false
	}
}

// Done is closed when the conversation finishes.
func (c *Conversation) Done() <-chan struct{} {
	return c.done
}

// Run drives the prompt tree rooted at root to a terminal state. Nested
// prompts form a stack: Ask pushes, Next pops (resuming the parent prompt,
// whose question is re-issued), End unwinds everything. Run returns
// StateCompleted on normal termination and StateAborted on cancellation,
// timeout, or send failure.
func (c *Conversation) Run(ctx context.Context, root *Prompt) (State, error) {
	defer c.once.Do(func() { close(c.done) })

	stack := []*Prompt{root}
	for len(stack) > 0 {
		prompt := stack[len(stack)-1]
		if err := c.send(ctx, prompt.Question); err != nil {
			return StateAborted, fmt.Errorf("sending prompt: %w", err)
		}

		action, err := c.receive(ctx, prompt)
		if err != nil {
			return StateAborted, err
		}

		switch action.kind {
		case actionRepeat:
			// Re-issue the same prompt on the next pass
		case actionAsk:
			stack = append(stack, action.nested)
		case actionNext:
			stack = stack[:len(stack)-1]
		case actionEnd:
			return StateCompleted, nil
		}
	}
	return StateCompleted, nil
}

// receive waits for replies until one selects a branch, then invokes the
// continuation and returns its action.
func (c *Conversation) receive(ctx context.Context, prompt *Prompt) (Action, error) {
	for {
		reply, err := c.waitReply(ctx)
		if err != nil {
			return Action{}, err
		}

		for _, branch := range prompt.Branches {
			if branch.Match(reply) {
				return branch.Respond(ctx, c, reply), nil
			}
		}
		if prompt.Default != nil {
			return prompt.Default(ctx, c, reply), nil
		}

		c.logger.Debug("reply matched no branch", "reply", reply)
		if err := c.send(ctx, clarification); err != nil {
			return Action{}, fmt.Errorf("sending clarification: %w", err)
		}
	}
}

// waitReply suspends until a reply arrives, the context is cancelled, or the
// optional reply timeout elapses.
func (c *Conversation) waitReply(ctx context.Context) (string, error) {
	if c.timeout > 0 {
		timer := time.NewTimer(c.timeout)
		defer timer.Stop()
		select {
		case reply := <-c.replies:
			return reply, nil
		case <-timer.C:
			return "", ErrNoReply
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	select {
	case reply := <-c.replies:
		return reply, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
