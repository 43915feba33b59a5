package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"devpulse/internal/auth"
	"devpulse/internal/credential"
	"devpulse/internal/delivery"
	"devpulse/internal/metrics"
)

// ConnectHandler wires the three provider connections: the X OAuth flow and
// the two metrics usernames.
type ConnectHandler struct {
	DB       *gorm.DB
	Creds    *credential.Manager
	Store    *credential.Store
	Delivery *delivery.Client
	Github   *metrics.GithubClient
	LeetCode *metrics.LeetCodeClient
}

// TwitterStart returns the provider authorization URL for the caller.
func (h *ConnectHandler) TwitterStart(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"url": h.Creds.BeginAuthorization(uid),
	})
}

// TwitterCallback consumes the one-time state, exchanges the code, and binds
// the resulting credential to the user who started the flow.
func (h *ConnectHandler) TwitterCallback(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	state := strings.TrimSpace(r.URL.Query().Get("state"))
	if code == "" || state == "" {
		http.Error(w, "missing code or state", http.StatusBadRequest)
		return
	}

	userID, tokens, err := h.Creds.ExchangeAuthorizationCode(r.Context(), code, state)
	if err != nil {
		writeErr(w, err)
		return
	}

	account, err := h.Delivery.Me(r.Context(), tokens.AccessToken)
	if err != nil {
		writeErr(w, err)
		return
	}

	cred, err := h.Store.Upsert(r.Context(), userID, account.ID, account.Username, tokens)
	if err != nil {
		writeErr(w, err)
		return
	}

	if err := h.DB.WithContext(r.Context()).
		Model(&auth.User{}).
		Where("id = ?", userID).
		Update("twitter_username", account.Username).Error; err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"credential_id": cred.ID,
		"username":      account.Username,
	})
}

type usernameReq struct {
	Username string `json:"username"`
}

// SetGithub validates and saves the caller's GitHub username.
func (h *ConnectHandler) SetGithub(w http.ResponseWriter, r *http.Request) {
	h.setUsername(w, r, "github_username", func(r *http.Request, username string) bool {
		return h.Github.ValidateUsername(r.Context(), username)
	})
}

// SetLeetCode validates and saves the caller's LeetCode username.
func (h *ConnectHandler) SetLeetCode(w http.ResponseWriter, r *http.Request) {
	h.setUsername(w, r, "leet_code_username", func(r *http.Request, username string) bool {
		return h.LeetCode.ValidateUsername(r.Context(), username)
	})
}

func (h *ConnectHandler) setUsername(w http.ResponseWriter, r *http.Request, column string, validate func(*http.Request, string) bool) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req usernameReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		http.Error(w, "username required", http.StatusBadRequest)
		return
	}

	if !validate(r, req.Username) {
		http.Error(w, "username not found on provider", http.StatusBadRequest)
		return
	}

	if err := h.DB.WithContext(r.Context()).
		Model(&auth.User{}).
		Where("id = ?", uid).
		Update(column, req.Username).Error; err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"username": req.Username})
}
