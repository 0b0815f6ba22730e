// ABOUTME: Per-team bot controller: owns the event loop, sessions, and intent routing
// ABOUTME: Delivers replies to active dialogues first, then dispatches intents

package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/2389/charlie/internal/dialogue"
	"github.com/2389/charlie/internal/router"
	"github.com/2389/charlie/internal/session"
	"github.com/2389/charlie/internal/store"
	"github.com/2389/charlie/internal/transport"
)

// Controller drives one logical bot for one team. It consumes the transport
// event stream, routes replies into active dialogues, and dispatches fresh
// messages through the intent router.
type Controller struct {
	teamID    string
	transport transport.Transport
	store     store.Store
	sessions  *session.Registry
	router    *router.Router
	logger    *slog.Logger

	replyTimeout time.Duration

	mu        sync.Mutex
	selfID    string
	connected bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithReplyTimeout bounds how long dialogues wait for each reply. Zero, the
// default, waits indefinitely.
func WithReplyTimeout(d time.Duration) Option {
	return func(c *Controller) { c.replyTimeout = d }
}

// New creates a controller for a team. The transport is assumed to be
// connected (or connecting) with the team's bot token.
func New(teamID string, tr transport.Transport, st store.Store, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "bot", "team_id", teamID)

	c := &Controller{
		teamID:    teamID,
		transport: tr,
		store:     st,
		sessions:  session.NewRegistry(logger),
		router:    router.New(logger),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.registerHandlers()
	return c
}

// Run consumes transport events until the context is cancelled or the
// transport closes its stream. Blocking; callers run it on its own goroutine.
func (c *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-c.transport.Events():
			if !ok {
				c.logger.Info("transport event stream closed")
				return nil
			}
			switch e := ev.(type) {
			case transport.ConnectedEvent:
				c.setConnected(e.BotUserID)
				c.logger.Info("bot connected", "bot_user_id", e.BotUserID)
			case transport.DisconnectedEvent:
				c.setDisconnected()
				c.logger.Warn("bot disconnected", "reason", e.Reason)
			case transport.MessageEvent:
				c.handleMessage(ctx, e)
			}
		}
	}
}

// Connected reports whether the real-time connection is currently up.
func (c *Controller) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Controller) setConnected(selfID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selfID = selfID
	c.connected = true
}

func (c *Controller) setDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func (c *Controller) self() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selfID
}

// handleMessage delivers a reply to the user's active dialogue if one is
// waiting on this channel; otherwise the message is a fresh intent and goes
// through the router.
func (c *Controller) handleMessage(ctx context.Context, e transport.MessageEvent) {
	if e.IsBot || e.UserID == "" || e.UserID == c.self() {
		return
	}

	if c.sessions.Deliver(c.teamID, e.UserID, e.ChannelID, e.Text) {
		return
	}

	msgCtx, text := c.classify(e)
	c.router.Dispatch(ctx, &router.Message{
		TeamID:    c.teamID,
		UserID:    e.UserID,
		ChannelID: e.ChannelID,
		Text:      text,
		Context:   msgCtx,
		Timestamp: time.Now(),
	})
}

// classify determines the message context and strips a leading bot mention
// so command patterns can stay anchored.
func (c *Controller) classify(e transport.MessageEvent) (router.MessageContext, string) {
	mention := "<@" + c.self() + ">"

	if strings.HasPrefix(e.ChannelID, "D") {
		return router.DirectMessage, e.Text
	}
	if strings.HasPrefix(e.Text, mention) {
		text := strings.TrimLeft(strings.TrimPrefix(e.Text, mention), ": ")
		return router.DirectMention, text
	}
	if c.self() != "" && strings.Contains(e.Text, mention) {
		return router.Mention, e.Text
	}
	return router.Ambient, e.Text
}

// sendTo binds the transport to one channel for a dialogue.
func (c *Controller) sendTo(channelID string) dialogue.SendFunc {
	return func(ctx context.Context, text string) error {
		return c.transport.Send(ctx, channelID, text)
	}
}

// startDialogue opens a 1:1 conversation with the user, registers a session
// for it, says the intro lines, and runs the prompt on its own goroutine.
// A colliding trigger (session already active) is dropped silently.
func (c *Controller) startDialogue(ctx context.Context, userID string, intro []string, build func(channelID string) *dialogue.Prompt) error {
	channelID, err := c.transport.OpenDirect(ctx, userID)
	if err != nil {
		return fmt.Errorf("opening direct conversation: %w", err)
	}

	var opts []dialogue.Option
	opts = append(opts, dialogue.WithLogger(c.logger))
	if c.replyTimeout > 0 {
		opts = append(opts, dialogue.WithReplyTimeout(c.replyTimeout))
	}
	convo := dialogue.New(c.sendTo(channelID), opts...)

	sess, err := c.sessions.Open(c.teamID, userID, channelID, convo)
	if errors.Is(err, session.ErrSessionActive) {
		c.logger.Debug("dialogue trigger dropped, session already active", "user_id", userID)
		return nil
	}
	if err != nil {
		return err
	}

	prompt := build(channelID)

	go func() {
		defer c.sessions.Close(c.teamID, userID)

		for _, line := range intro {
			if err := convo.Say(ctx, line); err != nil {
				c.logger.Error("dialogue intro failed", "error", err, "session_id", sess.ID)
				return
			}
		}

		state, err := convo.Run(ctx, prompt)
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("dialogue ended with error",
				"error", err,
				"session_id", sess.ID,
				"user_id", userID,
			)
			return
		}
		c.logger.Debug("dialogue finished",
			"session_id", sess.ID,
			"user_id", userID,
			"state", state.String(),
		)
	}()

	return nil
}

// resolveChannel matches a user-supplied name against the live channel list.
// Matching is first-contains-wins over the listing order, preserving the
// original behavior when several channels contain the name.
func (c *Controller) resolveChannel(ctx context.Context, name string) (transport.Channel, bool) {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "#"))
	if name == "" {
		return transport.Channel{}, false
	}

	channels, err := c.transport.ListChannels(ctx)
	if err != nil {
		c.logger.Error("listing channels failed", "error", err)
		return transport.Channel{}, false
	}
	for _, ch := range channels {
		if strings.Contains(strings.ToLower(ch.Name), name) {
			return ch, true
		}
	}
	return transport.Channel{}, false
}

// Sessions exposes the controller's session registry.
func (c *Controller) Sessions() *session.Registry {
	return c.sessions
}
