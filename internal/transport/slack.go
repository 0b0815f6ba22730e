// ABOUTME: Slack RTM implementation of the Transport interface using slack-go
// ABOUTME: Pumps RTM events into the typed event stream and wraps Web API calls

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/slack-go/slack"
)

// SlackTransport implements Transport over the Slack RTM API.
type SlackTransport struct {
	api    *slack.Client
	rtm    *slack.RTM
	events chan Event
	done   chan struct{}
	logger *slog.Logger
	once   sync.Once
}

// NewSlack connects a Slack RTM transport with the given bot token. The
// RTM client owns reconnect and heartbeat handling.
func NewSlack(token string, logger *slog.Logger) *SlackTransport {
	if logger == nil {
		logger = slog.Default()
	}
	api := slack.New(token)
	rtm := api.NewRTM()

	t := &SlackTransport{
		api:    api,
		rtm:    rtm,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
		logger: logger.With("component", "slack"),
	}

	go rtm.ManageConnection()
	go t.pump()
	return t
}

// deliver pushes one event onto the stream. Returns false once the
// transport is closed, so pump never blocks on a consumer that has exited
// even with a full buffer.
func (t *SlackTransport) deliver(ev Event) bool {
	select {
	case t.events <- ev:
		return true
	case <-t.done:
		return false
	}
}

// pump translates RTM events into the transport event stream.
func (t *SlackTransport) pump() {
	defer close(t.events)

	for msg := range t.rtm.IncomingEvents {
		switch ev := msg.Data.(type) {
		case *slack.ConnectedEvent:
			t.logger.Info("RTM connected",
				"team_id", ev.Info.Team.ID,
				"bot_user_id", ev.Info.User.ID,
			)
			if !t.deliver(ConnectedEvent{
				BotUserID: ev.Info.User.ID,
				TeamID:    ev.Info.Team.ID,
			}) {
				return
			}

		case *slack.DisconnectedEvent:
			reason := "connection closed"
			if ev.Cause != nil {
				reason = ev.Cause.Error()
			}
			t.logger.Warn("RTM disconnected", "intentional", ev.Intentional, "reason", reason)
			if !t.deliver(DisconnectedEvent{Reason: reason}) {
				return
			}

		case *slack.MessageEvent:
			// Edits, joins, and other subtypes are not conversational input.
			if ev.SubType != "" {
				continue
			}
			if !t.deliver(MessageEvent{
				UserID:    ev.User,
				ChannelID: ev.Channel,
				Text:      ev.Text,
				Timestamp: ev.Timestamp,
				IsBot:     ev.BotID != "",
			}) {
				return
			}

		case *slack.RTMError:
			t.logger.Warn("RTM error", "code", ev.Code, "msg", ev.Msg)

		case *slack.InvalidAuthEvent:
			t.logger.Error("invalid RTM credentials, shutting down transport")
			return
		}
	}
}

// Events returns the inbound event stream.
func (t *SlackTransport) Events() <-chan Event {
	return t.events
}

// Send posts text to a channel.
func (t *SlackTransport) Send(ctx context.Context, channelID, text string) error {
	_, _, err := t.api.PostMessageContext(ctx, channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionAsUser(true),
	)
	if err != nil {
		return fmt.Errorf("posting message to %s: %w", channelID, err)
	}
	return nil
}

// OpenDirect opens a 1:1 conversation with a user.
func (t *SlackTransport) OpenDirect(ctx context.Context, userID string) (string, error) {
	ch, _, _, err := t.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users:    []string{userID},
		ReturnIM: true,
	})
	if err != nil {
		return "", fmt.Errorf("opening conversation with %s: %w", userID, err)
	}
	return ch.ID, nil
}

// ListChannels returns every public channel visible to the bot.
func (t *SlackTransport) ListChannels(ctx context.Context) ([]Channel, error) {
	var out []Channel
	params := &slack.GetConversationsParameters{
		Types: []string{"public_channel"},
		Limit: 200,
	}
	for {
		channels, cursor, err := t.api.GetConversationsContext(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("listing channels: %w", err)
		}
		for _, ch := range channels {
			out = append(out, Channel{ID: ch.ID, Name: ch.Name})
		}
		if cursor == "" {
			return out, nil
		}
		params.Cursor = cursor
	}
}

// Team returns workspace metadata.
func (t *SlackTransport) Team(ctx context.Context) (*TeamInfo, error) {
	info, err := t.api.GetTeamInfoContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching team info: %w", err)
	}
	return &TeamInfo{
		ID:          info.ID,
		Name:        info.Name,
		Domain:      info.Domain,
		EmailDomain: info.EmailDomain,
	}, nil
}

// Close disconnects the RTM client and releases the event pump.
func (t *SlackTransport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.done)
		if t.rtm != nil {
			err = t.rtm.Disconnect()
		}
	})
	return err
}
