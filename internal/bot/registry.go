// ABOUTME: Process-wide registry of per-team bot controllers
// ABOUTME: Spawns one controller per installed team; idempotent per team id

package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/charlie/internal/store"
	"github.com/2389/charlie/internal/transport"
)

// Registry owns every running bot controller, one per team. It is the
// single injectable home for bot lifecycle: startup resume spawns one
// controller per stored team, and each new install spawns one more. There
// is no implicit teardown; this is a long-running service.
type Registry struct {
	store   store.Store
	factory transport.Factory
	logger  *slog.Logger
	opts    []Option

	mu          sync.Mutex
	controllers map[string]*Controller
}

// NewRegistry creates a controller registry. factory builds a transport
// from a team's bot token.
func NewRegistry(st store.Store, factory transport.Factory, logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:       st,
		factory:     factory,
		logger:      logger.With("component", "bots"),
		opts:        opts,
		controllers: make(map[string]*Controller),
	}
}

// Spawn starts a controller for the team unless one is already running, in
// which case the existing controller is returned unchanged.
func (r *Registry) Spawn(ctx context.Context, team *store.Team) (*Controller, error) {
	if team.BotToken == "" {
		return nil, fmt.Errorf("team %s has no bot token", team.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.controllers[team.ID]; ok {
		return existing, nil
	}

	c := New(team.ID, r.factory(team.BotToken), r.store, r.logger, r.opts...)
	r.controllers[team.ID] = c

	go func() {
		if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("bot controller stopped", "error", err, "team_id", team.ID)
		}
	}()

	r.logger.Info("bot spawned", "team_id", team.ID, "domain", team.Domain)
	return c, nil
}

// ResumeAll spawns a controller for every previously-installed team. Called
// once at startup; a store failure here is fatal to the caller.
func (r *Registry) ResumeAll(ctx context.Context) error {
	teams, err := r.store.ListTeams(ctx)
	if err != nil {
		return fmt.Errorf("loading teams: %w", err)
	}

	for _, team := range teams {
		if team.BotToken == "" {
			r.logger.Warn("skipping team without bot token", "team_id", team.ID)
			continue
		}
		if _, err := r.Spawn(ctx, team); err != nil {
			r.logger.Error("resuming bot failed", "error", err, "team_id", team.ID)
		}
	}

	r.logger.Info("teams resumed", "count", len(teams))
	return nil
}

// Get returns the controller for a team, if running.
func (r *Registry) Get(teamID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.controllers[teamID]
	return c, ok
}

// Len returns the number of running controllers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}
