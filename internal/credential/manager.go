package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"devpulse/internal/apperr"
)

const (
	DefaultAuthorizeURL = "https://twitter.com/i/oauth2/authorize"
	DefaultTokenURL     = "https://api.twitter.com/2/oauth2/token"

	scopes = "tweet.read tweet.write users.read offline.access"

	exchangeTimeout = 10 * time.Second
	refreshTimeout  = 8 * time.Second
)

// TokenStore is the slice of the credential store the manager mutates.
type TokenStore interface {
	Get(ctx context.Context, id uint64) (*Credential, error)
	CompareAndSwap(ctx context.Context, id, version uint64, tokens TokenPair) (bool, error)
}

// Manager owns the credential lifecycle: authorization-code exchange on
// connect, proactive refresh before every use, fallback to the last-known-good
// token when a refresh fails.
type Manager struct {
	Store  TokenStore
	States *StateStore
	HTTP   *http.Client
	Log    *logrus.Logger

	ClientID     string
	ClientSecret string
	RedirectURI  string

	AuthorizeURL string
	TokenURL     string
}

// BeginAuthorization creates an authorization URL for userID. The state and
// its PKCE verifier are held server-side until the callback consumes them.
func (m *Manager) BeginAuthorization(userID uint64) string {
	state := NewState()
	verifier := NewVerifier()
	m.States.Put(state, userID, verifier)

	q := url.Values{
		"response_type":         {"code"},
		"client_id":             {m.ClientID},
		"redirect_uri":          {m.RedirectURI},
		"scope":                 {scopes},
		"state":                 {state},
		"code_challenge":        {ChallengeS256(verifier)},
		"code_challenge_method": {"S256"},
	}
	return m.authorizeURL() + "?" + q.Encode()
}

// ExchangeAuthorizationCode validates the callback state (single-use, not
// expired) and exchanges the code for a token pair. Returns the user who
// started the flow.
func (m *Manager) ExchangeAuthorizationCode(ctx context.Context, code, state string) (uint64, TokenPair, error) {
	entry, ok := m.States.TakeOnce(state)
	if !ok {
		return 0, TokenPair{}, apperr.ErrInvalidState
	}

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {m.RedirectURI},
		"code_verifier": {entry.Verifier},
	}
	tokens, err := m.tokenRequest(ctx, "exchange", form, exchangeTimeout)
	if err != nil {
		return 0, TokenPair{}, err
	}
	return entry.UserID, tokens, nil
}

// GetValidToken returns an access token for the credential, refreshing it
// first. A failed refresh degrades to the stored token instead of blocking
// delivery; a refresh that lost the version race is discarded and the newer
// token is returned.
func (m *Manager) GetValidToken(ctx context.Context, credentialID uint64) (string, error) {
	cred, err := m.Store.Get(ctx, credentialID)
	if err != nil {
		return "", err
	}

	tokens, err := m.refresh(ctx, cred.RefreshToken)
	if err != nil {
		m.Log.WithError(err).WithField("credential", credentialID).
			Warn("token refresh failed, using stored token")
		return cred.AccessToken, nil
	}

	swapped, err := m.Store.CompareAndSwap(ctx, cred.ID, cred.TokenVersion, tokens)
	if err != nil {
		m.Log.WithError(err).WithField("credential", credentialID).
			Warn("token swap failed, using stored token")
		return cred.AccessToken, nil
	}
	if !swapped {
		// A concurrent refresh won; its token is the current one.
		current, err := m.Store.Get(ctx, credentialID)
		if err != nil {
			return "", err
		}
		return current.AccessToken, nil
	}
	return tokens.AccessToken, nil
}

func (m *Manager) refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	return m.tokenRequest(ctx, "refresh", form, refreshTimeout)
}

func (m *Manager) tokenRequest(ctx context.Context, op string, form url.Values, timeout time.Duration) (TokenPair, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return TokenPair{}, fmt.Errorf("token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(m.ClientID, m.ClientSecret)

	resp, err := m.httpClient().Do(req)
	if err != nil {
		return TokenPair{}, &apperr.AuthError{Op: op, Status: 0, Body: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK {
		return TokenPair{}, &apperr.AuthError{Op: op, Status: resp.StatusCode, Body: string(body)}
	}

	var tokens TokenPair
	if err := json.Unmarshal(body, &tokens); err != nil {
		return TokenPair{}, &apperr.AuthError{Op: op, Status: resp.StatusCode, Body: "malformed token response"}
	}
	if tokens.AccessToken == "" {
		return TokenPair{}, &apperr.AuthError{Op: op, Status: resp.StatusCode, Body: "empty access token"}
	}
	return tokens, nil
}

func (m *Manager) httpClient() *http.Client {
	if m.HTTP != nil {
		return m.HTTP
	}
	return http.DefaultClient
}

func (m *Manager) authorizeURL() string {
	if m.AuthorizeURL != "" {
		return m.AuthorizeURL
	}
	return DefaultAuthorizeURL
}

func (m *Manager) tokenURL() string {
	if m.TokenURL != "" {
		return m.TokenURL
	}
	return DefaultTokenURL
}
