// ABOUTME: In-memory Transport fake for tests
// ABOUTME: Records outbound messages and lets tests inject inbound events

package transport

import (
	"context"
	"fmt"
	"sync"
)

// SentMessage is one message recorded by the fake.
type SentMessage struct {
	ChannelID string
	Text      string
}

// Fake is an in-memory Transport for tests. Tests push inbound events with
// Emit and inspect outbound traffic with Outbox/MessagesTo.
type Fake struct {
	mu       sync.Mutex
	sent     []SentMessage
	events   chan Event
	closed   bool
	channels []Channel
	team     TeamInfo

	// SendErr, when set, is returned by Send. Lets tests exercise
	// transport-failure paths.
	SendErr error
}

// NewFake creates a fake transport for the given team.
func NewFake(team TeamInfo, channels []Channel) *Fake {
	return &Fake{
		events:   make(chan Event, 64),
		channels: channels,
		team:     team,
	}
}

// Emit injects an inbound event, as if the platform delivered it.
func (f *Fake) Emit(ev Event) {
	f.events <- ev
}

// Finish closes the event stream, ending any consuming event loop.
func (f *Fake) Finish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
}

func (f *Fake) Events() <-chan Event { return f.events }

func (f *Fake) Send(ctx context.Context, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return f.SendErr
	}
	f.sent = append(f.sent, SentMessage{ChannelID: channelID, Text: text})
	return nil
}

// OpenDirect maps a user to a deterministic IM channel id ("D" + user id).
func (f *Fake) OpenDirect(ctx context.Context, userID string) (string, error) {
	return "D" + userID, nil
}

func (f *Fake) ListChannels(ctx context.Context) ([]Channel, error) {
	return append([]Channel(nil), f.channels...), nil
}

func (f *Fake) Team(ctx context.Context) (*TeamInfo, error) {
	team := f.team
	return &team, nil
}

func (f *Fake) Close() error {
	f.Finish()
	return nil
}

// Outbox returns a copy of every message sent so far.
func (f *Fake) Outbox() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentMessage(nil), f.sent...)
}

// MessagesTo returns the texts sent to one channel, in order.
func (f *Fake) MessagesTo(channelID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		if m.ChannelID == channelID {
			out = append(out, m.Text)
		}
	}
	return out
}

var _ Transport = (*Fake)(nil)
var _ Transport = (*SlackTransport)(nil)

// String implements fmt.Stringer for test failure output.
func (m SentMessage) String() string {
	return fmt.Sprintf("[%s] %s", m.ChannelID, m.Text)
}
