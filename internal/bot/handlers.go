// ABOUTME: Intent handlers: link-share dialogue, installer flow, and settings commands
// ABOUTME: Conversational copy lives here alongside the flows that speak it

package bot

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/2389/charlie/internal/dialogue"
	"github.com/2389/charlie/internal/links"
	"github.com/2389/charlie/internal/router"
	"github.com/2389/charlie/internal/store"
)

const (
	linkPattern      = `<(.*?)\|`
	helpPattern      = `(?i)^help\b`
	blacklistPattern = `(?i)^blacklist\s*$`
	blacklistAddRe   = `(?i)^blacklist add\s+(\S+)`
	blacklistRmRe    = `(?i)^blacklist remove\s+(\S+)`
	publishToRe      = `(?i)^publish to\s+(.+)`
)

const helpText = "Here's what I can do:\n" +
	"• `blacklist` — list the domains I'm ignoring for your team\n" +
	"• `blacklist add <domain>` — ignore links from a domain\n" +
	"• `blacklist remove <domain>` — stop ignoring a domain\n" +
	"• `publish to <channel-name>` — change where I post shared links\n" +
	"Whenever someone shares a link in a channel I'm in, I'll offer to post it to your team's feed channel."

// Argument extraction reuses the exact registration patterns, so the
// command grammar lives in one place.
var (
	publishToArg    = regexp.MustCompile(publishToRe)
	blacklistAddArg = regexp.MustCompile(blacklistAddRe)
	blacklistRmArg  = regexp.MustCompile(blacklistRmRe)
)

var commandContexts = []router.MessageContext{router.DirectMessage, router.DirectMention}

// registerHandlers wires every intent the bot hears. Registrations are
// independent; a message can hit more than one.
func (c *Controller) registerHandlers() {
	must := func(err error) {
		if err != nil {
			panic(fmt.Sprintf("registering handler: %v", err))
		}
	}
	must(c.router.Hear(linkPattern, router.AllContexts, c.handleLinkShare))
	must(c.router.Hear(helpPattern, router.AllContexts, c.handleHelp))
	must(c.router.Hear(blacklistPattern, commandContexts, c.handleBlacklistList))
	must(c.router.Hear(blacklistAddRe, commandContexts, c.handleBlacklistAdd))
	must(c.router.Hear(blacklistRmRe, commandContexts, c.handleBlacklistRemove))
	must(c.router.Hear(publishToRe, commandContexts, c.handlePublishTo))
}

// handleLinkShare runs the confirm-broadcast dialogue for a shared link.
func (c *Controller) handleLinkShare(ctx context.Context, msg *router.Message) {
	found := links.Extract(msg.Text)
	if len(found) == 0 {
		return
	}

	team, err := c.store.GetTeam(ctx, c.teamID)
	if err != nil {
		c.logger.Error("loading team failed", "error", err)
		return
	}

	// Blacklisted domains are auto-ignored; take the first survivor.
	var link links.Link
	var ok bool
	for _, l := range found {
		if !team.Blacklisted(l.Domain) {
			link, ok = l, true
			break
		}
	}
	if !ok {
		return
	}

	if team.FeedChannelID == "" {
		// Nowhere to publish yet; nudge instead of asking a dead question.
		channelID, err := c.transport.OpenDirect(ctx, msg.UserID)
		if err != nil {
			c.logger.Error("opening direct conversation failed", "error", err)
			return
		}
		hint := "I saw you share a link, but I don't have a feed channel yet. Say 'publish to <channel-name>' and I'll start collecting links there."
		if err := c.transport.Send(ctx, channelID, hint); err != nil {
			c.logger.Error("sending feed hint failed", "error", err)
		}
		return
	}

	err = c.startDialogue(ctx, msg.UserID, nil, func(string) *dialogue.Prompt {
		return c.linkSharePrompt(msg, team.FeedChannelID, link)
	})
	if err != nil {
		c.logger.Error("starting link dialogue failed", "error", err, "user_id", msg.UserID)
	}
}

// linkSharePrompt builds the two-level confirm/blacklist dialogue.
func (c *Controller) linkSharePrompt(msg *router.Message, feedChannelID string, link links.Link) *dialogue.Prompt {
	blacklistPrompt := &dialogue.Prompt{
		Question: "No problem! Want to ignore future links from this domain (including subdomains) for your entire team?",
		Branches: []dialogue.Branch{
			{
				Match: dialogue.Yes,
				Respond: func(ctx context.Context, convo *dialogue.Conversation, _ string) dialogue.Action {
					_, err := c.store.UpdateTeam(ctx, c.teamID, func(team *store.Team) error {
						team.AddBlacklist(link.Domain)
						return nil
					})
					if err != nil {
						c.logger.Error("saving blacklist failed", "error", err, "domain", link.Domain)
						_ = convo.Say(ctx, "Something went wrong saving that, sorry. Try again in a bit.")
						return dialogue.End()
					}
					_ = convo.Say(ctx, "You got it. Any links from this domain will be ignored. Ask me 'blacklist' for a list of these domains, or 'help' to learn how to update these settings.")
					return dialogue.End()
				},
			},
			{
				Match: dialogue.No,
				Respond: func(ctx context.Context, convo *dialogue.Conversation, _ string) dialogue.Action {
					_ = convo.Say(ctx, "No problem. Have a great day!")
					return dialogue.End()
				},
			},
		},
	}

	return &dialogue.Prompt{
		Question: fmt.Sprintf("Hey! I saw you just shared a link in <#%s>! Want me to share it to <#%s>?", msg.ChannelID, feedChannelID),
		Branches: []dialogue.Branch{
			{
				Match: dialogue.Yes,
				Respond: func(ctx context.Context, convo *dialogue.Conversation, _ string) dialogue.Action {
					text := fmt.Sprintf("<@%s> just shared %s in <#%s>", msg.UserID, link.URL, msg.ChannelID)
					if err := c.transport.Send(ctx, feedChannelID, text); err != nil {
						c.logger.Error("posting to feed failed", "error", err, "feed_channel", feedChannelID)
						_ = convo.Say(ctx, "Hmm, I couldn't post to the feed channel. Am I invited to it?")
						return dialogue.End()
					}
					_ = convo.Say(ctx, "Great! Link is shared. Have a nice day!")
					return dialogue.End()
				},
			},
			{
				Match: dialogue.No,
				Respond: func(context.Context, *dialogue.Conversation, string) dialogue.Action {
					return dialogue.Ask(blacklistPrompt)
				},
			},
		},
		Default: func(context.Context, *dialogue.Conversation, string) dialogue.Action {
			return dialogue.Repeat()
		},
	}
}

// StartInstaller begins the feed-channel setup dialogue with the user who
// installed the bot.
func (c *Controller) StartInstaller(ctx context.Context, userID string) error {
	intro := []string{
		"Hello, I'm Charlie! I just joined your team. I'm here to help centralize all links shared within your team's chat!",
		"Whenever someone in a room I'm in shares a link, I'll publish it to a channel of your choosing.",
	}
	return c.startDialogue(ctx, userID, intro, func(string) *dialogue.Prompt {
		return c.installerPrompt()
	})
}

// installerPrompt asks for the feed channel and resolves the answer against
// the live channel list.
func (c *Controller) installerPrompt() *dialogue.Prompt {
	return &dialogue.Prompt{
		Question: "What channel should I publish to? Respond with the channel name or skip by saying 'no' (you can set this later by saying 'publish to <channel-name>').",
		Branches: []dialogue.Branch{
			{
				Match: dialogue.No,
				Respond: func(ctx context.Context, convo *dialogue.Conversation, _ string) dialogue.Action {
					_ = convo.Say(ctx, "No problem! Please /invite me to the popular channels where your teammates like to share links :).")
					return dialogue.End()
				},
			},
		},
		Default: func(ctx context.Context, convo *dialogue.Conversation, reply string) dialogue.Action {
			channel, ok := c.resolveChannel(ctx, reply)
			if !ok {
				_ = convo.Say(ctx, "Hmmm, that doesn't look like a valid channel name.")
				return dialogue.Repeat()
			}
			if err := c.setFeedChannel(ctx, channel.ID, channel.Name); err != nil {
				c.logger.Error("saving feed channel failed", "error", err)
				_ = convo.Say(ctx, "Something went wrong saving that, sorry. Try again in a bit.")
				return dialogue.End()
			}
			_ = convo.Say(ctx, "Great! New links will be posted there. The last step is to /invite me to the popular channels where your teammates like to share links :).")
			return dialogue.End()
		},
	}
}

func (c *Controller) setFeedChannel(ctx context.Context, channelID, channelName string) error {
	_, err := c.store.UpdateTeam(ctx, c.teamID, func(team *store.Team) error {
		team.FeedChannelID = channelID
		team.FeedChannelName = channelName
		return nil
	})
	return err
}

// handleHelp replies with the command summary in place.
func (c *Controller) handleHelp(ctx context.Context, msg *router.Message) {
	if err := c.transport.Send(ctx, msg.ChannelID, helpText); err != nil {
		c.logger.Error("sending help failed", "error", err)
	}
}

// handleBlacklistList shows the team's ignored domains.
func (c *Controller) handleBlacklistList(ctx context.Context, msg *router.Message) {
	team, err := c.store.GetTeam(ctx, c.teamID)
	if err != nil {
		c.logger.Error("loading team failed", "error", err)
		return
	}

	text := "I'm not ignoring any domains for your team yet."
	if len(team.Blacklist) > 0 {
		text = "I'm ignoring links from: " + strings.Join(team.Blacklist, ", ")
	}
	if err := c.transport.Send(ctx, msg.ChannelID, text); err != nil {
		c.logger.Error("sending blacklist failed", "error", err)
	}
}

// handleBlacklistAdd adds a domain to the team's blacklist.
func (c *Controller) handleBlacklistAdd(ctx context.Context, msg *router.Message) {
	domain := commandDomain(msg.Text)
	if domain == "" {
		return
	}

	_, err := c.store.UpdateTeam(ctx, c.teamID, func(team *store.Team) error {
		team.AddBlacklist(domain)
		return nil
	})
	if err != nil {
		c.logger.Error("saving blacklist failed", "error", err, "domain", domain)
		return
	}
	c.reply(ctx, msg, fmt.Sprintf("Done, links from %s will be ignored.", domain))
}

// handleBlacklistRemove removes a domain from the team's blacklist.
func (c *Controller) handleBlacklistRemove(ctx context.Context, msg *router.Message) {
	domain := commandDomain(msg.Text)
	if domain == "" {
		return
	}

	removed := false
	_, err := c.store.UpdateTeam(ctx, c.teamID, func(team *store.Team) error {
		removed = team.RemoveBlacklist(domain)
		return nil
	})
	if err != nil {
		c.logger.Error("saving blacklist failed", "error", err, "domain", domain)
		return
	}
	if removed {
		c.reply(ctx, msg, fmt.Sprintf("Done, links from %s are welcome again.", domain))
	} else {
		c.reply(ctx, msg, fmt.Sprintf("I wasn't ignoring %s.", domain))
	}
}

// handlePublishTo re-points the feed channel.
func (c *Controller) handlePublishTo(ctx context.Context, msg *router.Message) {
	m := publishToArg.FindStringSubmatch(msg.Text)
	if m == nil {
		return
	}

	channel, ok := c.resolveChannel(ctx, m[1])
	if !ok {
		c.reply(ctx, msg, "Hmmm, that doesn't look like a valid channel name.")
		return
	}
	if err := c.setFeedChannel(ctx, channel.ID, channel.Name); err != nil {
		c.logger.Error("saving feed channel failed", "error", err)
		return
	}
	c.reply(ctx, msg, fmt.Sprintf("Great! New links will be posted to <#%s>.", channel.ID))
}

func (c *Controller) reply(ctx context.Context, msg *router.Message, text string) {
	if err := c.transport.Send(ctx, msg.ChannelID, text); err != nil {
		c.logger.Error("sending reply failed", "error", err)
	}
}

// commandDomain extracts the domain argument from a blacklist command. The
// argument may be a bare domain, a URL, or chat-markup around either.
func commandDomain(text string) string {
	if found := links.Extract(text); len(found) > 0 {
		return found[0].Domain
	}
	m := blacklistAddArg.FindStringSubmatch(text)
	if m == nil {
		m = blacklistRmArg.FindStringSubmatch(text)
	}
	if m == nil {
		return ""
	}
	return strings.ToLower(strings.Trim(m[1], "<>"))
}
