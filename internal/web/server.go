// ABOUTME: HTTP surface for OAuth installation and Slack event callbacks
// ABOUTME: Exchanges install codes, persists the team, and kicks off the installer dialogue

package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/slack-go/slack"

	"github.com/2389/charlie/internal/store"
)

// InstallResult is what an OAuth code exchange yields: everything needed to
// persist the team and start its bot.
type InstallResult struct {
	TeamID          string
	TeamName        string
	TeamDomain      string
	EmailDomain     string
	BotToken        string
	BotUserID       string
	InstallerUserID string
}

// ExchangeFunc turns an OAuth code into an InstallResult. Injected so tests
// never touch the network.
type ExchangeFunc func(ctx context.Context, code string) (*InstallResult, error)

// InstallFunc runs after a team is persisted: spawn the bot and greet the
// installer.
type InstallFunc func(ctx context.Context, team *store.Team, installerUserID string) error

// Config holds the server dependencies.
type Config struct {
	Addr      string
	Store     store.Store
	Exchange  ExchangeFunc
	OnInstall InstallFunc
	Logger    *slog.Logger
}

// Server serves the OAuth redirect endpoint and the Slack events endpoint.
type Server struct {
	store     store.Store
	exchange  ExchangeFunc
	onInstall InstallFunc
	logger    *slog.Logger
	srv       *http.Server
}

// New creates the web server. Routes are registered immediately; nothing
// listens until Run.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Exchange == nil {
		return nil, errors.New("exchange func is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		store:     cfg.Store,
		exchange:  cfg.Exchange,
		onInstall: cfg.OnInstall,
		logger:    logger.With("component", "web"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /oauth", s.handleOAuth)
	mux.HandleFunc("POST /slack/events", s.handleEvents)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler exposes the route mux for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run listens until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// handleOAuth completes a workspace install: exchange the code, upsert the
// team record, and hand off to the install hook.
func (s *Server) handleOAuth(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "ERROR: missing code", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	result, err := s.exchange(ctx, code)
	if err != nil {
		s.logger.Error("oauth exchange failed", "error", err)
		http.Error(w, "ERROR: "+err.Error(), http.StatusInternalServerError)
		return
	}

	team, err := s.upsertTeam(ctx, result)
	if err != nil {
		s.logger.Error("saving team failed", "error", err, "team_id", result.TeamID)
		http.Error(w, "ERROR: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if s.onInstall != nil {
		if err := s.onInstall(ctx, team, result.InstallerUserID); err != nil {
			s.logger.Error("install hook failed", "error", err, "team_id", team.ID)
			http.Error(w, "ERROR: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	s.logger.Info("team installed", "team_id", team.ID, "domain", team.Domain)
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "Success!")
}

// upsertTeam refreshes the install fields of an existing team or creates a
// new record. Feed channel and blacklist survive a reinstall; the
// existing-team path goes through UpdateTeam so a settings write landing
// mid-install is not overwritten.
func (s *Server) upsertTeam(ctx context.Context, result *InstallResult) (*store.Team, error) {
	apply := func(team *store.Team) error {
		team.Domain = result.TeamDomain
		team.EmailDomain = result.EmailDomain
		team.BotToken = result.BotToken
		team.BotUserID = result.BotUserID
		team.CreatedBy = result.InstallerUserID
		return nil
	}

	team, err := s.store.UpdateTeam(ctx, result.TeamID, apply)
	if errors.Is(err, store.ErrNotFound) {
		team = &store.Team{ID: result.TeamID}
		if err := apply(team); err != nil {
			return nil, err
		}
		if err := s.store.SaveTeam(ctx, team); err != nil {
			return nil, err
		}
		return team, nil
	}
	if err != nil {
		return nil, err
	}
	return team, nil
}

// handleEvents acks Slack's events API. The bot listens over the real-time
// connection, so the only event handled here is the URL verification
// handshake.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}

	var payload struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "parsing body", http.StatusBadRequest)
		return
	}

	if payload.Type == "url_verification" {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, payload.Challenge)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

// SlackExchange returns the production ExchangeFunc: OAuth v2 code exchange
// followed by a team-info lookup with the fresh bot token.
func SlackExchange(clientID, clientSecret, redirectURI string) ExchangeFunc {
	return func(ctx context.Context, code string) (*InstallResult, error) {
		resp, err := slack.GetOAuthV2ResponseContext(ctx, http.DefaultClient, clientID, clientSecret, code, redirectURI)
		if err != nil {
			return nil, fmt.Errorf("exchanging oauth code: %w", err)
		}

		api := slack.New(resp.AccessToken)
		info, err := api.GetTeamInfoContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetching team info: %w", err)
		}

		return &InstallResult{
			TeamID:          resp.Team.ID,
			TeamName:        info.Name,
			TeamDomain:      info.Domain,
			EmailDomain:     info.EmailDomain,
			BotToken:        resp.AccessToken,
			BotUserID:       resp.BotUserID,
			InstallerUserID: resp.AuthedUser.ID,
		}, nil
	}
}
