// ABOUTME: Store interface and data types for charlie persistence
// ABOUTME: Defines the Team record and the Store interface for team configuration

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Team represents one installed workspace and its link-feed configuration.
// A Team is created on first successful install and never deleted.
type Team struct {
	ID          string
	Domain      string
	EmailDomain string

	// Bot credentials from the install
	BotToken  string
	BotUserID string
	CreatedBy string // user who installed the bot

	// Feed channel for rebroadcast links. Empty FeedChannelID means unset.
	FeedChannelID   string
	FeedChannelName string

	// Blacklist holds domains whose links are never offered for rebroadcast.
	Blacklist []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Blacklisted reports whether domain (or a subdomain of a listed entry) is
// on the team's blacklist. "sub.foo.com" is covered by a "foo.com" entry.
func (t *Team) Blacklisted(domain string) bool {
	for _, d := range t.Blacklist {
		if domain == d || hasParentDomain(domain, d) {
			return true
		}
	}
	return false
}

// AddBlacklist appends domain to the blacklist if not already present.
// Returns true if the list changed.
func (t *Team) AddBlacklist(domain string) bool {
	for _, d := range t.Blacklist {
		if d == domain {
			return false
		}
	}
	t.Blacklist = append(t.Blacklist, domain)
	return true
}

// RemoveBlacklist removes domain from the blacklist.
// Returns true if the list changed.
func (t *Team) RemoveBlacklist(domain string) bool {
	for i, d := range t.Blacklist {
		if d == domain {
			t.Blacklist = append(t.Blacklist[:i], t.Blacklist[i+1:]...)
			return true
		}
	}
	return false
}

func hasParentDomain(domain, parent string) bool {
	return len(domain) > len(parent) &&
		domain[len(domain)-len(parent)-1] == '.' &&
		domain[len(domain)-len(parent):] == parent
}

// Store defines the interface for team persistence
type Store interface {
	// GetTeam retrieves a team by ID. Returns ErrNotFound if it doesn't exist.
	GetTeam(ctx context.Context, id string) (*Team, error)

	// SaveTeam upserts a team record. Idempotent.
	SaveTeam(ctx context.Context, team *Team) error

	// UpdateTeam applies mutate to the stored team under a per-team lock and
	// persists the result. Concurrent updates for the same team are
	// serialized; updates for different teams proceed independently.
	// Returns the updated record.
	UpdateTeam(ctx context.Context, id string, mutate func(*Team) error) (*Team, error)

	// ListTeams returns every installed team. Used once at startup to
	// resume a bot for each previously-installed team.
	ListTeams(ctx context.Context) ([]*Team, error)

	// Close releases any resources held by the store
	Close() error
}
