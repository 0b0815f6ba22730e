// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides team persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	// Per-team locks serializing read-modify-write cycles in UpdateTeam.
	// Two users finishing blacklist dialogues at once must not lose updates.
	teamMu   map[string]*sync.Mutex
	teamMuMu sync.Mutex
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
		teamMu: make(map[string]*sync.Mutex),
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS teams (
			id TEXT PRIMARY KEY,
			domain TEXT NOT NULL DEFAULT '',
			email_domain TEXT NOT NULL DEFAULT '',
			bot_token TEXT NOT NULL DEFAULT '',
			bot_user_id TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL DEFAULT '',
			feed_channel_id TEXT NOT NULL DEFAULT '',
			feed_channel_name TEXT NOT NULL DEFAULT '',
			blacklist TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close releases the database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// lockTeam returns the mutex guarding updates for a team id, creating it on
// first use.
func (s *SQLiteStore) lockTeam(id string) *sync.Mutex {
	s.teamMuMu.Lock()
	defer s.teamMuMu.Unlock()
	mu, ok := s.teamMu[id]
	if !ok {
		mu = &sync.Mutex{}
		s.teamMu[id] = mu
	}
	return mu
}

// GetTeam retrieves a team by ID.
// Returns ErrNotFound if the team doesn't exist.
func (s *SQLiteStore) GetTeam(ctx context.Context, id string) (*Team, error) {
	query := `
		SELECT id, domain, email_domain, bot_token, bot_user_id, created_by,
		       feed_channel_id, feed_channel_name, blacklist, created_at, updated_at
		FROM teams
		WHERE id = ?
	`

	row := s.db.QueryRowContext(ctx, query, id)
	team, err := scanTeam(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying team: %w", err)
	}
	return team, nil
}

// SaveTeam upserts a team record. CreatedAt is preserved on first insert.
func (s *SQLiteStore) SaveTeam(ctx context.Context, team *Team) error {
	if team.ID == "" {
		return fmt.Errorf("team id is required")
	}

	now := time.Now()
	if team.CreatedAt.IsZero() {
		team.CreatedAt = now
	}
	team.UpdatedAt = now

	blacklistJSON, err := json.Marshal(team.Blacklist)
	if err != nil {
		return fmt.Errorf("encoding blacklist: %w", err)
	}

	query := `
		INSERT INTO teams (id, domain, email_domain, bot_token, bot_user_id, created_by,
		                   feed_channel_id, feed_channel_name, blacklist, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			domain = excluded.domain,
			email_domain = excluded.email_domain,
			bot_token = excluded.bot_token,
			bot_user_id = excluded.bot_user_id,
			created_by = excluded.created_by,
			feed_channel_id = excluded.feed_channel_id,
			feed_channel_name = excluded.feed_channel_name,
			blacklist = excluded.blacklist,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		team.ID,
		team.Domain,
		team.EmailDomain,
		team.BotToken,
		team.BotUserID,
		team.CreatedBy,
		team.FeedChannelID,
		team.FeedChannelName,
		string(blacklistJSON),
		team.CreatedAt.UTC().Format(time.RFC3339),
		team.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting team: %w", err)
	}

	s.logger.Debug("saved team", "team_id", team.ID)
	return nil
}

// UpdateTeam applies mutate under the team's lock and persists the result.
func (s *SQLiteStore) UpdateTeam(ctx context.Context, id string, mutate func(*Team) error) (*Team, error) {
	mu := s.lockTeam(id)
	mu.Lock()
	defer mu.Unlock()

	team, err := s.GetTeam(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(team); err != nil {
		return nil, err
	}
	if err := s.SaveTeam(ctx, team); err != nil {
		return nil, err
	}
	return team, nil
}

// ListTeams returns every installed team, oldest first.
func (s *SQLiteStore) ListTeams(ctx context.Context) ([]*Team, error) {
	query := `
		SELECT id, domain, email_domain, bot_token, bot_user_id, created_by,
		       feed_channel_id, feed_channel_name, blacklist, created_at, updated_at
		FROM teams
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying teams: %w", err)
	}
	defer rows.Close()

	var teams []*Team
	for rows.Next() {
		team, err := scanTeam(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning team: %w", err)
		}
		teams = append(teams, team)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating teams: %w", err)
	}

	return teams, nil
}

// scanTeam reads one team row via the given Scan function.
func scanTeam(scan func(dest ...any) error) (*Team, error) {
	var team Team
	var blacklistJSON sql.NullString
	var createdAtStr, updatedAtStr string

	err := scan(
		&team.ID,
		&team.Domain,
		&team.EmailDomain,
		&team.BotToken,
		&team.BotUserID,
		&team.CreatedBy,
		&team.FeedChannelID,
		&team.FeedChannelName,
		&blacklistJSON,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	if blacklistJSON.Valid && blacklistJSON.String != "" {
		// Best effort: invalid JSON leaves the blacklist empty
		_ = json.Unmarshal([]byte(blacklistJSON.String), &team.Blacklist)
	}

	if team.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if team.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &team, nil
}
