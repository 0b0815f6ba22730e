// ABOUTME: Session registry enforcing one active dialogue per (team, user) pair
// ABOUTME: Tracks session lifecycle and routes correlated replies into active conversations

package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/charlie/internal/dialogue"
)

// ErrSessionActive indicates a dialogue is already running for this
// (team, user) pair. The policy for a colliding trigger is to drop it:
// feeding a second concurrent prompt to the same user would interleave
// nondeterministically with the one in flight.
var ErrSessionActive = errors.New("session already active for user")

// Session is the live binding of one dialogue to one (team, user) pair.
type Session struct {
	ID        string
	TeamID    string
	UserID    string
	ChannelID string // conversation channel; replies elsewhere don't belong to it
	Convo     *dialogue.Conversation
	StartedAt time.Time
}

type key struct {
	teamID string
	userID string
}

// Registry tracks active sessions. At most one session exists per
// (team, user) key at any instant; sessions for distinct keys proceed
// independently. The mutex guards only the map, never dialogue work.
type Registry struct {
	mu       sync.Mutex
	sessions map[key]*Session
	logger   *slog.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions: make(map[key]*Session),
		logger:   logger.With("component", "sessions"),
	}
}

// Open registers a new session for (teamID, userID). Returns
// ErrSessionActive if one already exists; open and close for a given key
// are mutually exclusive, so exactly one of concurrent opens wins.
func (r *Registry) Open(teamID, userID, channelID string, convo *dialogue.Conversation) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{teamID: teamID, userID: userID}
	if _, exists := r.sessions[k]; exists {
		return nil, ErrSessionActive
	}

	s := &Session{
		ID:        uuid.New().String(),
		TeamID:    teamID,
		UserID:    userID,
		ChannelID: channelID,
		Convo:     convo,
		StartedAt: time.Now(),
	}
	r.sessions[k] = s

	r.logger.Debug("session opened",
		"session_id", s.ID,
		"team_id", teamID,
		"user_id", userID,
		"active", len(r.sessions),
	)
	return s, nil
}

// Get returns the active session for (teamID, userID), if any.
func (r *Registry) Get(teamID, userID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key{teamID: teamID, userID: userID}]
	return s, ok
}

// Close removes the session for (teamID, userID) regardless of how its
// dialogue ended, making the key available again.
func (r *Registry) Close(teamID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{teamID: teamID, userID: userID}
	if s, ok := r.sessions[k]; ok {
		delete(r.sessions, k)
		r.logger.Debug("session closed",
			"session_id", s.ID,
			"team_id", teamID,
			"user_id", userID,
			"active", len(r.sessions),
		)
	}
}

// Deliver routes a reply into the active session for (teamID, userID),
// provided the message arrived on the session's conversation channel.
// Returns true if the reply was consumed by a dialogue.
func (r *Registry) Deliver(teamID, userID, channelID, text string) bool {
	s, ok := r.Get(teamID, userID)
	if !ok || s.ChannelID != channelID {
		return false
	}
	return s.Convo.Deliver(text)
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
