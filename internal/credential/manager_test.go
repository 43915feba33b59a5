package credential

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devpulse/internal/apperr"
)

type fakeTokenStore struct {
	mu    sync.Mutex
	cred  Credential
	swaps []TokenPair
	// swapOK controls whether CompareAndSwap wins the version race.
	swapOK bool
}

func (s *fakeTokenStore) Get(ctx context.Context, id uint64) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.cred
	return &c, nil
}

func (s *fakeTokenStore) CompareAndSwap(ctx context.Context, id, version uint64, tokens TokenPair) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.swaps = append(s.swaps, tokens)
	if !s.swapOK {
		return false, nil
	}
	s.cred.AccessToken = tokens.AccessToken
	s.cred.RefreshToken = tokens.RefreshToken
	s.cred.TokenVersion++
	return true, nil
}

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func testManager(store *fakeTokenStore, tokenURL string) *Manager {
	return &Manager{
		Store:        store,
		States:       NewStateStore(time.Minute),
		Log:          quietLog(),
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://app.example/callback",
		TokenURL:     tokenURL,
	}
}

func TestGetValidTokenRefreshesAndSwaps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.Form.Get("refresh_token"))

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)

		fmt.Fprint(w, `{"access_token": "new-access", "refresh_token": "new-refresh"}`)
	}))
	defer srv.Close()

	store := &fakeTokenStore{
		cred:   Credential{ID: 1, AccessToken: "old-access", RefreshToken: "old-refresh", TokenVersion: 3},
		swapOK: true,
	}
	m := testManager(store, srv.URL)

	token, err := m.GetValidToken(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "new-access", token)
	require.Len(t, store.swaps, 1)
	assert.Equal(t, "new-refresh", store.swaps[0].RefreshToken)
}

func TestGetValidTokenFallsBackOnRefreshFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "invalid_grant"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	store := &fakeTokenStore{
		cred: Credential{ID: 1, AccessToken: "old-access", RefreshToken: "revoked"},
	}
	m := testManager(store, srv.URL)

	token, err := m.GetValidToken(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "old-access", token)
	assert.Empty(t, store.swaps)
}

func TestGetValidTokenDiscardsSupersededRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token": "stale-winner", "refresh_token": "r"}`)
	}))
	defer srv.Close()

	// swapOK=false simulates a concurrent refresh having bumped the version.
	store := &fakeTokenStore{
		cred: Credential{ID: 1, AccessToken: "current-access", RefreshToken: "r", TokenVersion: 9},
	}
	m := testManager(store, srv.URL)

	token, err := m.GetValidToken(context.Background(), 1)
	require.NoError(t, err)
	// the stored (newer) token wins, not this refresh's result
	assert.Equal(t, "current-access", token)
}

func TestExchangeAuthorizationCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.Form.Get("grant_type"))
		assert.Equal(t, "the-code", r.Form.Get("code"))
		assert.Equal(t, "https://app.example/callback", r.Form.Get("redirect_uri"))
		assert.NotEmpty(t, r.Form.Get("code_verifier"))

		fmt.Fprint(w, `{"access_token": "a", "refresh_token": "r"}`)
	}))
	defer srv.Close()

	m := testManager(&fakeTokenStore{}, srv.URL)

	authURL := m.BeginAuthorization(7)
	assert.Contains(t, authURL, "code_challenge_method=S256")
	state := stateParam(t, authURL)

	userID, tokens, err := m.ExchangeAuthorizationCode(context.Background(), "the-code", state)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), userID)
	assert.Equal(t, "a", tokens.AccessToken)

	// state is single-use
	_, _, err = m.ExchangeAuthorizationCode(context.Background(), "the-code", state)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestExchangeAuthorizationCodeProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "invalid_client"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := testManager(&fakeTokenStore{}, srv.URL)
	state := stateParam(t, m.BeginAuthorization(1))

	_, _, err := m.ExchangeAuthorizationCode(context.Background(), "bad-code", state)

	var authErr *apperr.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "exchange", authErr.Op)
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)
}

func TestExchangeAuthorizationCodeUnknownState(t *testing.T) {
	m := testManager(&fakeTokenStore{}, "http://unused")
	_, _, err := m.ExchangeAuthorizationCode(context.Background(), "code", "forged")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func stateParam(t *testing.T, authURL string) string {
	t.Helper()
	_, query, ok := strings.Cut(authURL, "?")
	require.True(t, ok)
	for _, kv := range strings.Split(query, "&") {
		if v, found := strings.CutPrefix(kv, "state="); found {
			return v
		}
	}
	t.Fatal("no state in auth URL")
	return ""
}
