// ABOUTME: End-to-end controller tests over the fake transport and memory store
// ABOUTME: Covers the link-share dialogue, installer flow, collisions, and commands

package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/charlie/internal/store"
	"github.com/2389/charlie/internal/transport"
)

const (
	testTeamID = "T123"
	feedID     = "CFEED"
)

type testBot struct {
	ctrl  *Controller
	fake  *transport.Fake
	store *store.MemoryStore
}

func newTestBot(t *testing.T, team *store.Team) *testBot {
	t.Helper()

	ms := store.NewMemoryStore()
	require.NoError(t, ms.SaveTeam(context.Background(), team))

	fake := transport.NewFake(
		transport.TeamInfo{ID: team.ID, Domain: team.Domain},
		[]transport.Channel{
			{ID: "CGENERAL", Name: "general"},
			{ID: "CLINKS", Name: "team-links"},
		},
	)

	ctrl := New(team.ID, fake, ms, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = ctrl.Run(ctx) }()

	fake.Emit(transport.ConnectedEvent{BotUserID: "UBOT", TeamID: team.ID})
	require.Eventually(t, ctrl.Connected, time.Second, 5*time.Millisecond)

	return &testBot{ctrl: ctrl, fake: fake, store: ms}
}

func feedTeam() *store.Team {
	return &store.Team{
		ID:              testTeamID,
		Domain:          "acme",
		BotToken:        "xoxb-test",
		FeedChannelID:   feedID,
		FeedChannelName: "links",
	}
}

// waitForMessages blocks until channelID has received at least n messages.
func (b *testBot) waitForMessages(t *testing.T, channelID string, n int) []string {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(b.fake.MessagesTo(channelID)) >= n
	}, 2*time.Second, 5*time.Millisecond, "waiting for %d messages in %s", n, channelID)
	return b.fake.MessagesTo(channelID)
}

func (b *testBot) user(userID, channelID, text string) {
	b.fake.Emit(transport.MessageEvent{UserID: userID, ChannelID: channelID, Text: text})
}

func (b *testBot) waitSessionsIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return b.ctrl.Sessions().Len() == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestLinkShare_ConfirmBroadcast(t *testing.T) {
	b := newTestBot(t, feedTeam())

	b.user("U1", "C1", "check this out <http://foo.com/x|foo.com/x>")

	dm := b.waitForMessages(t, "DU1", 1)
	assert.Equal(t, "Hey! I saw you just shared a link in <#C1>! Want me to share it to <#CFEED>?", dm[0])

	b.user("U1", "DU1", "yes")

	feed := b.waitForMessages(t, feedID, 1)
	assert.Equal(t, "<@U1> just shared http://foo.com/x in <#C1>", feed[0])

	dm = b.waitForMessages(t, "DU1", 2)
	assert.Equal(t, "Great! Link is shared. Have a nice day!", dm[1])
	b.waitSessionsIdle(t)
}

func TestLinkShare_DeclineThenBlacklist(t *testing.T) {
	b := newTestBot(t, feedTeam())

	b.user("U1", "C1", "see <http://foo.com/x|foo.com/x>")
	b.waitForMessages(t, "DU1", 1)

	b.user("U1", "DU1", "no")
	dm := b.waitForMessages(t, "DU1", 2)
	assert.Contains(t, dm[1], "ignore future links from this domain")

	b.user("U1", "DU1", "yes")
	b.waitForMessages(t, "DU1", 3)
	b.waitSessionsIdle(t)

	team, err := b.store.GetTeam(context.Background(), testTeamID)
	require.NoError(t, err)
	assert.Contains(t, team.Blacklist, "foo.com")
	// Nothing reached the feed channel
	assert.Empty(t, b.fake.MessagesTo(feedID))
}

func TestLinkShare_DeclineTwice(t *testing.T) {
	b := newTestBot(t, feedTeam())

	b.user("U1", "C1", "see <http://foo.com/x|foo.com/x>")
	b.waitForMessages(t, "DU1", 1)
	b.user("U1", "DU1", "no")
	b.waitForMessages(t, "DU1", 2)
	b.user("U1", "DU1", "nah")

	dm := b.waitForMessages(t, "DU1", 3)
	assert.Equal(t, "No problem. Have a great day!", dm[2])
	b.waitSessionsIdle(t)

	team, err := b.store.GetTeam(context.Background(), testTeamID)
	require.NoError(t, err)
	assert.Empty(t, team.Blacklist)
}

func TestLinkShare_DefaultRepeatsOuterPrompt(t *testing.T) {
	b := newTestBot(t, feedTeam())

	b.user("U1", "C1", "see <http://foo.com/x|foo.com/x>")
	b.waitForMessages(t, "DU1", 1)

	b.user("U1", "DU1", "what do you mean")
	dm := b.waitForMessages(t, "DU1", 2)
	// The outer question is asked again verbatim
	assert.Equal(t, dm[0], dm[1])

	b.user("U1", "DU1", "yes")
	b.waitForMessages(t, feedID, 1)
	b.waitSessionsIdle(t)
}

func TestLinkShare_SecondTriggerDroppedWhileActive(t *testing.T) {
	b := newTestBot(t, feedTeam())

	b.user("U1", "C1", "first <http://foo.com/x|foo.com/x>")
	b.waitForMessages(t, "DU1", 1)

	// Same user shares again mid-dialogue; the trigger must be dropped,
	// not interleaved into the active conversation.
	b.user("U1", "C2", "second <http://bar.com/y|bar.com/y>")

	b.user("U1", "DU1", "yes")
	feed := b.waitForMessages(t, feedID, 1)
	assert.Contains(t, feed[0], "foo.com/x")
	b.waitSessionsIdle(t)

	assert.Len(t, b.fake.MessagesTo(feedID), 1)
}

func TestLinkShare_DistinctUsersConcurrently(t *testing.T) {
	b := newTestBot(t, feedTeam())

	b.user("U1", "C1", "a <http://foo.com/1|x>")
	b.user("U2", "C1", "b <http://bar.com/2|y>")
	b.waitForMessages(t, "DU1", 1)
	b.waitForMessages(t, "DU2", 1)

	b.user("U2", "DU2", "yes")
	b.user("U1", "DU1", "yes")

	feed := b.waitForMessages(t, feedID, 2)
	assert.Len(t, feed, 2)
	b.waitSessionsIdle(t)
}

func TestLinkShare_BlacklistedDomainIgnored(t *testing.T) {
	team := feedTeam()
	team.Blacklist = []string{"foo.com"}
	b := newTestBot(t, team)

	b.user("U1", "C1", "see <http://cdn.foo.com/x|x>")

	// Give the event loop a beat; nothing should happen at all.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, b.fake.Outbox())
	assert.Equal(t, 0, b.ctrl.Sessions().Len())
}

func TestLinkShare_NoFeedConfiguredHints(t *testing.T) {
	team := feedTeam()
	team.FeedChannelID = ""
	b := newTestBot(t, team)

	b.user("U1", "C1", "see <http://foo.com/x|x>")

	dm := b.waitForMessages(t, "DU1", 1)
	assert.Contains(t, dm[0], "publish to <channel-name>")
	assert.Equal(t, 0, b.ctrl.Sessions().Len())
}

func TestInstaller_HappyPath(t *testing.T) {
	team := feedTeam()
	team.FeedChannelID = ""
	team.FeedChannelName = ""
	b := newTestBot(t, team)

	require.NoError(t, b.ctrl.StartInstaller(context.Background(), "UOWNER"))

	dm := b.waitForMessages(t, "DUOWNER", 3)
	assert.Contains(t, dm[0], "I'm Charlie")
	assert.Contains(t, dm[2], "What channel should I publish to?")

	b.user("UOWNER", "DUOWNER", "team-links")
	b.waitForMessages(t, "DUOWNER", 4)
	b.waitSessionsIdle(t)

	team2, err := b.store.GetTeam(context.Background(), testTeamID)
	require.NoError(t, err)
	assert.Equal(t, "CLINKS", team2.FeedChannelID)
	assert.Equal(t, "team-links", team2.FeedChannelName)
}

func TestInstaller_InvalidChannelRepeats(t *testing.T) {
	team := feedTeam()
	team.FeedChannelID = ""
	team.FeedChannelName = ""
	b := newTestBot(t, team)

	require.NoError(t, b.ctrl.StartInstaller(context.Background(), "UOWNER"))
	b.waitForMessages(t, "DUOWNER", 3)

	b.user("UOWNER", "DUOWNER", "bogus-channel-xyz")
	dm := b.waitForMessages(t, "DUOWNER", 5)
	assert.Equal(t, "Hmmm, that doesn't look like a valid channel name.", dm[3])
	// Repeat re-issues the question
	assert.Equal(t, dm[2], dm[4])

	// Feed stays unset after the failed attempt
	team2, err := b.store.GetTeam(context.Background(), testTeamID)
	require.NoError(t, err)
	assert.Empty(t, team2.FeedChannelID)

	b.user("UOWNER", "DUOWNER", "general")
	b.waitForMessages(t, "DUOWNER", 6)
	b.waitSessionsIdle(t)

	team2, err = b.store.GetTeam(context.Background(), testTeamID)
	require.NoError(t, err)
	assert.Equal(t, "CGENERAL", team2.FeedChannelID)
}

func TestInstaller_OptOut(t *testing.T) {
	team := feedTeam()
	team.FeedChannelID = ""
	b := newTestBot(t, team)

	require.NoError(t, b.ctrl.StartInstaller(context.Background(), "UOWNER"))
	b.waitForMessages(t, "DUOWNER", 3)

	b.user("UOWNER", "DUOWNER", "no")
	dm := b.waitForMessages(t, "DUOWNER", 4)
	assert.Contains(t, dm[3], "No problem!")
	b.waitSessionsIdle(t)

	team2, err := b.store.GetTeam(context.Background(), testTeamID)
	require.NoError(t, err)
	assert.Empty(t, team2.FeedChannelID)
}

func TestHelp_RepliesInPlace(t *testing.T) {
	b := newTestBot(t, feedTeam())

	b.user("U1", "DU1", "help")
	dm := b.waitForMessages(t, "DU1", 1)
	assert.Contains(t, dm[0], "publish to <channel-name>")
}

func TestBlacklistCommands(t *testing.T) {
	b := newTestBot(t, feedTeam())
	ctx := context.Background()

	b.user("U1", "DU1", "blacklist")
	dm := b.waitForMessages(t, "DU1", 1)
	assert.Contains(t, dm[0], "not ignoring any domains")

	b.user("U1", "DU1", "blacklist add spam.io")
	b.waitForMessages(t, "DU1", 2)
	team, err := b.store.GetTeam(ctx, testTeamID)
	require.NoError(t, err)
	assert.Contains(t, team.Blacklist, "spam.io")

	b.user("U1", "DU1", "blacklist")
	dm = b.waitForMessages(t, "DU1", 3)
	assert.Contains(t, dm[2], "spam.io")

	b.user("U1", "DU1", "blacklist remove spam.io")
	b.waitForMessages(t, "DU1", 4)
	team, err = b.store.GetTeam(ctx, testTeamID)
	require.NoError(t, err)
	assert.Empty(t, team.Blacklist)
}

func TestBlacklistCommands_BareWordArgument(t *testing.T) {
	b := newTestBot(t, feedTeam())
	ctx := context.Background()

	// A dotless hostname never parses as a link; the argument must come
	// from the command pattern itself.
	b.user("U1", "DU1", "blacklist add intranet")
	b.waitForMessages(t, "DU1", 1)
	team, err := b.store.GetTeam(ctx, testTeamID)
	require.NoError(t, err)
	assert.Contains(t, team.Blacklist, "intranet")

	b.user("U1", "DU1", "blacklist remove intranet")
	b.waitForMessages(t, "DU1", 2)
	team, err = b.store.GetTeam(ctx, testTeamID)
	require.NoError(t, err)
	assert.Empty(t, team.Blacklist)
}

func TestPublishToCommand(t *testing.T) {
	b := newTestBot(t, feedTeam())

	// Direct mention form, with the mention stripped before routing
	b.user("U1", "C1", "<@UBOT> publish to general")
	b.waitForMessages(t, "C1", 1)

	team, err := b.store.GetTeam(context.Background(), testTeamID)
	require.NoError(t, err)
	assert.Equal(t, "CGENERAL", team.FeedChannelID)
}

func TestMessagesFromBotsIgnored(t *testing.T) {
	b := newTestBot(t, feedTeam())

	b.fake.Emit(transport.MessageEvent{
		UserID: "UBOT2", ChannelID: "C1",
		Text: "see <http://foo.com/x|x>", IsBot: true,
	})
	b.fake.Emit(transport.MessageEvent{
		UserID: "UBOT", ChannelID: "C1",
		Text: "see <http://foo.com/x|x>",
	})

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, b.fake.Outbox())
}
