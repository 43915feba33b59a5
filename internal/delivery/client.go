// Package delivery posts synthesized content to the X API and persists the
// outcome.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"time"

	"github.com/sirupsen/logrus"

	"devpulse/internal/apperr"
)

const (
	DefaultBaseURL = "https://api.twitter.com/2"

	postTimeout = 15 * time.Second
)

// TokenProvider yields a usable access token for a credential; the credential
// manager satisfies it.
type TokenProvider interface {
	GetValidToken(ctx context.Context, credentialID uint64) (string, error)
}

// RecordStore persists delivery outcomes; *Repo satisfies it.
type RecordStore interface {
	Create(ctx context.Context, userID, credentialID uint64, content, status string, attr Attribution) error
}

type Client struct {
	Tokens  TokenProvider
	Records RecordStore
	HTTP    *http.Client
	Log     *logrus.Logger
	BaseURL string
}

// Deliver posts content on behalf of the credential's account. Only the
// platform's created status counts as success; any other response is a
// DeliveryError carrying the upstream status and body. On success exactly one
// SENT record is written; a failed attempt writes nothing so a later retry
// stays idempotent.
func (c *Client) Deliver(ctx context.Context, userID, credentialID uint64, content string, attr Attribution) error {
	token, err := c.Tokens.GetValidToken(ctx, credentialID)
	if err != nil {
		return err
	}

	ctx2, cancel := context.WithTimeout(ctx, postTimeout)
	defer cancel()

	body, _ := json.Marshal(map[string]string{"text": content})
	req, err := http.NewRequestWithContext(ctx2, http.MethodPost, c.baseURL()+"/tweets", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build post request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return &apperr.DeliveryError{Status: 0, Body: err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusCreated {
		return &apperr.DeliveryError{Status: resp.StatusCode, Body: string(respBody)}
	}

	c.Log.WithFields(logrus.Fields{
		"credential": credentialID,
		"chars":      len(content),
	}).Info("tweet posted")

	return c.Records.Create(ctx, userID, credentialID, content, StatusSent, attr)
}

// Account is the platform's view of the authenticated user.
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// Me fetches the account behind an access token, used once at connect time to
// bind the credential to its platform account.
func (c *Client) Me(ctx context.Context, accessToken string) (Account, error) {
	ctx, cancel := context.WithTimeout(ctx, postTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+"/users/me", nil)
	if err != nil {
		return Account{}, fmt.Errorf("build me request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return Account{}, &apperr.AuthError{Op: "me", Status: 0, Body: err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK {
		return Account{}, &apperr.AuthError{Op: "me", Status: resp.StatusCode, Body: string(respBody)}
	}

	var wrapper struct {
		Data Account `json:"data"`
	}
	if err := json.Unmarshal(respBody, &wrapper); err != nil {
		return Account{}, &apperr.AuthError{Op: "me", Status: resp.StatusCode, Body: "malformed user response"}
	}
	return wrapper.Data, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}
