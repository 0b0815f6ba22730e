// ABOUTME: Tests for the OAuth install and Slack events endpoints
// ABOUTME: Uses an injected exchange func and the in-memory store

package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/charlie/internal/store"
)

func testResult() *InstallResult {
	return &InstallResult{
		TeamID:          "T123",
		TeamName:        "Acme",
		TeamDomain:      "acme",
		EmailDomain:     "acme.com",
		BotToken:        "xoxb-test",
		BotUserID:       "UBOT",
		InstallerUserID: "UINSTALLER",
	}
}

func newTestServer(t *testing.T, st store.Store, exchange ExchangeFunc, onInstall InstallFunc) *Server {
	t.Helper()
	s, err := New(Config{Store: st, Exchange: exchange, OnInstall: onInstall})
	require.NoError(t, err)
	return s
}

func TestOAuth_InstallsTeam(t *testing.T) {
	st := store.NewMemoryStore()
	var installedTeam *store.Team
	var installerID string

	s := newTestServer(t, st,
		func(ctx context.Context, code string) (*InstallResult, error) {
			assert.Equal(t, "abc123", code)
			return testResult(), nil
		},
		func(ctx context.Context, team *store.Team, userID string) error {
			installedTeam = team
			installerID = userID
			return nil
		},
	)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth?code=abc123", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Success!", rec.Body.String())

	require.NotNil(t, installedTeam)
	assert.Equal(t, "UINSTALLER", installerID)

	team, err := st.GetTeam(context.Background(), "T123")
	require.NoError(t, err)
	assert.Equal(t, "acme", team.Domain)
	assert.Equal(t, "acme.com", team.EmailDomain)
	assert.Equal(t, "xoxb-test", team.BotToken)
	assert.Equal(t, "UBOT", team.BotUserID)
	assert.Equal(t, "UINSTALLER", team.CreatedBy)
}

func TestOAuth_ReinstallKeepsSettings(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.SaveTeam(context.Background(), &store.Team{
		ID:              "T123",
		BotToken:        "xoxb-old",
		FeedChannelID:   "CFEED",
		FeedChannelName: "team-links",
		Blacklist:       []string{"spam.example"},
	}))

	s := newTestServer(t, st,
		func(context.Context, string) (*InstallResult, error) { return testResult(), nil },
		nil,
	)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth?code=abc123", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	team, err := st.GetTeam(context.Background(), "T123")
	require.NoError(t, err)
	assert.Equal(t, "xoxb-test", team.BotToken)
	assert.Equal(t, "CFEED", team.FeedChannelID)
	assert.Equal(t, "team-links", team.FeedChannelName)
	assert.Equal(t, []string{"spam.example"}, team.Blacklist)
}

// racingStore injects a blacklist update once, mid-install: after the first
// read (where a stale-copy save would lose it) or before the first
// serialized update (where it must be preserved).
type racingStore struct {
	*store.MemoryStore
	once sync.Once
}

func (r *racingStore) race(ctx context.Context, id string) {
	r.once.Do(func() {
		_, _ = r.MemoryStore.UpdateTeam(ctx, id, func(team *store.Team) error {
			team.AddBlacklist("raced.com")
			return nil
		})
	})
}

func (r *racingStore) GetTeam(ctx context.Context, id string) (*store.Team, error) {
	team, err := r.MemoryStore.GetTeam(ctx, id)
	r.race(ctx, id)
	return team, err
}

func (r *racingStore) UpdateTeam(ctx context.Context, id string, mutate func(*store.Team) error) (*store.Team, error) {
	r.race(ctx, id)
	return r.MemoryStore.UpdateTeam(ctx, id, mutate)
}

func TestOAuth_ReinstallDoesNotDropConcurrentUpdate(t *testing.T) {
	st := &racingStore{MemoryStore: store.NewMemoryStore()}
	require.NoError(t, st.SaveTeam(context.Background(), &store.Team{
		ID:       "T123",
		BotToken: "xoxb-old",
	}))

	s := newTestServer(t, st,
		func(context.Context, string) (*InstallResult, error) { return testResult(), nil },
		nil,
	)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth?code=abc123", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// A dialogue finishing while the install persists must not be lost.
	team, err := st.GetTeam(context.Background(), "T123")
	require.NoError(t, err)
	assert.Contains(t, team.Blacklist, "raced.com")
	assert.Equal(t, "xoxb-test", team.BotToken)
}

func TestOAuth_MissingCode(t *testing.T) {
	s := newTestServer(t, store.NewMemoryStore(),
		func(context.Context, string) (*InstallResult, error) {
			t.Fatal("exchange should not be called")
			return nil, nil
		},
		nil,
	)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOAuth_ExchangeFailure(t *testing.T) {
	s := newTestServer(t, store.NewMemoryStore(),
		func(context.Context, string) (*InstallResult, error) {
			return nil, errors.New("invalid_code")
		},
		nil,
	)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth?code=bad", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERROR:")
}

func TestOAuth_SaveFailure(t *testing.T) {
	st := store.NewMemoryStore()
	st.SaveErr = errors.New("disk full")

	s := newTestServer(t, st,
		func(context.Context, string) (*InstallResult, error) { return testResult(), nil },
		nil,
	)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth?code=abc", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestEvents_URLVerification(t *testing.T) {
	s := newTestServer(t, store.NewMemoryStore(),
		func(context.Context, string) (*InstallResult, error) { return testResult(), nil },
		nil,
	)

	body := `{"type":"url_verification","challenge":"xyzzy"}`
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "xyzzy", rec.Body.String())
}

func TestEvents_OtherEventsAcked(t *testing.T) {
	s := newTestServer(t, store.NewMemoryStore(),
		func(context.Context, string) (*InstallResult, error) { return testResult(), nil },
		nil,
	)

	body := `{"type":"event_callback","event":{"type":"message"}}`
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, store.NewMemoryStore(),
		func(context.Context, string) (*InstallResult, error) { return testResult(), nil },
		nil,
	)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
