// ABOUTME: Chat transport abstraction decoupling bot logic from the Slack client
// ABOUTME: Defines the event stream and send/lookup operations a bot needs

package transport

import "context"

// Channel is a channel visible to the bot.
type Channel struct {
	ID   string
	Name string
}

// TeamInfo describes the workspace a transport is connected to.
type TeamInfo struct {
	ID          string
	Name        string
	Domain      string
	EmailDomain string
}

// Event is a transport lifecycle or message event.
type Event interface{ isEvent() }

// ConnectedEvent fires when the real-time connection is established.
type ConnectedEvent struct {
	BotUserID string
	TeamID    string
}

// DisconnectedEvent fires when the real-time connection drops. Reconnecting
// is the transport implementation's responsibility, not the bot's.
type DisconnectedEvent struct {
	Reason string
}

// MessageEvent is one inbound chat message.
type MessageEvent struct {
	UserID    string
	ChannelID string
	Text      string
	Timestamp string
	IsBot     bool // sent by a bot (including ourselves)
}

func (ConnectedEvent) isEvent()    {}
func (DisconnectedEvent) isEvent() {}
func (MessageEvent) isEvent()      {}

// Transport is a connected chat client for one team.
type Transport interface {
	// Events returns the inbound event stream. The channel closes when the
	// transport shuts down for good.
	Events() <-chan Event

	// Send posts text to a channel or direct conversation.
	Send(ctx context.Context, channelID, text string) error

	// OpenDirect opens (or resumes) a 1:1 conversation with a user and
	// returns its channel ID.
	OpenDirect(ctx context.Context, userID string) (string, error)

	// ListChannels returns the channels visible to the bot.
	ListChannels(ctx context.Context) ([]Channel, error)

	// Team returns workspace metadata.
	Team(ctx context.Context) (*TeamInfo, error)

	// Close tears the connection down.
	Close() error
}

// Factory builds a Transport from a bot token. Injected so tests can swap
// in fakes.
type Factory func(token string) Transport
