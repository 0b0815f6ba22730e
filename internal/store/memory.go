// ABOUTME: In-memory Store implementation for tests
// ABOUTME: Mirrors SQLiteStore semantics including per-team update serialization

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests. It honors the same
// contract as SQLiteStore: idempotent upserts, ErrNotFound, and serialized
// per-team updates.
type MemoryStore struct {
	mu    sync.Mutex
	teams map[string]*Team

	// SaveErr, when set, is returned by SaveTeam and UpdateTeam. Lets tests
	// exercise storage-failure paths.
	SaveErr error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{teams: make(map[string]*Team)}
}

func (m *MemoryStore) GetTeam(ctx context.Context, id string) (*Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	team, ok := m.teams[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := copyTeam(team)
	return &cp, nil
}

func (m *MemoryStore) SaveTeam(ctx context.Context, team *Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	now := time.Now()
	if team.CreatedAt.IsZero() {
		team.CreatedAt = now
	}
	team.UpdatedAt = now
	cp := copyTeam(team)
	m.teams[team.ID] = &cp
	return nil
}

func (m *MemoryStore) UpdateTeam(ctx context.Context, id string, mutate func(*Team) error) (*Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return nil, m.SaveErr
	}
	team, ok := m.teams[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := copyTeam(team)
	if err := mutate(&cp); err != nil {
		return nil, err
	}
	cp.UpdatedAt = time.Now()
	stored := copyTeam(&cp)
	m.teams[id] = &stored
	return &cp, nil
}

func (m *MemoryStore) ListTeams(ctx context.Context) ([]*Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	teams := make([]*Team, 0, len(m.teams))
	for _, t := range m.teams {
		cp := copyTeam(t)
		teams = append(teams, &cp)
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].CreatedAt.Before(teams[j].CreatedAt) })
	return teams, nil
}

func (m *MemoryStore) Close() error { return nil }

func copyTeam(t *Team) Team {
	cp := *t
	cp.Blacklist = append([]string(nil), t.Blacklist...)
	return cp
}
