// ABOUTME: Inbound intent router matching message events against registered patterns
// ABOUTME: Every registration whose pattern and context match is invoked independently

package router

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"
)

// MessageContext classifies where and how a message reached the bot.
type MessageContext string

const (
	DirectMessage MessageContext = "direct_message" // 1:1 conversation with the bot
	DirectMention MessageContext = "direct_mention" // channel message starting with @bot
	Mention       MessageContext = "mention"        // channel message mentioning @bot elsewhere
	Ambient       MessageContext = "ambient"        // any other channel message the bot can see
)

// AllContexts lists every message context. Registrations that should hear
// everything (like the link detector) use this.
var AllContexts = []MessageContext{DirectMessage, DirectMention, Mention, Ambient}

// Message is one inbound message event.
type Message struct {
	TeamID    string
	UserID    string
	ChannelID string
	Text      string
	Context   MessageContext
	Timestamp time.Time
}

// Handler reacts to a matched message.
type Handler func(ctx context.Context, msg *Message)

type registration struct {
	pattern  *regexp.Regexp
	contexts map[MessageContext]bool
	handler  Handler
}

// Router dispatches inbound messages to registered intent handlers.
// Registrations are evaluated independently: a message can trigger several
// handlers, and registration order does not gate matching.
type Router struct {
	mu     sync.RWMutex
	regs   []registration
	logger *slog.Logger
}

// New creates an empty Router.
func New(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{logger: logger.With("component", "router")}
}

// Hear registers a handler for messages whose text matches pattern in any of
// the given contexts.
func (r *Router) Hear(pattern string, contexts []MessageContext, handler Handler) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("compiling pattern %q: %w", pattern, err)
	}

	ctxSet := make(map[MessageContext]bool, len(contexts))
	for _, c := range contexts {
		ctxSet[c] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs = append(r.regs, registration{pattern: re, contexts: ctxSet, handler: handler})
	return nil
}

// Dispatch invokes every handler whose registration matches msg and returns
// how many fired. Handlers run synchronously on the caller's goroutine;
// long-running work (like a dialogue) is expected to hand off internally.
func (r *Router) Dispatch(ctx context.Context, msg *Message) int {
	r.mu.RLock()
	regs := r.regs
	r.mu.RUnlock()

	matched := 0
	for _, reg := range regs {
		if !reg.contexts[msg.Context] {
			continue
		}
		if !reg.pattern.MatchString(msg.Text) {
			continue
		}
		matched++
		reg.handler(ctx, msg)
	}

	if matched > 0 {
		r.logger.Debug("dispatched message",
			"team_id", msg.TeamID,
			"user_id", msg.UserID,
			"handlers", matched,
		)
	}
	return matched
}
