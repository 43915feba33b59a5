package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"devpulse/internal/auth"
	"devpulse/internal/compose"
	"devpulse/internal/credential"
	"devpulse/internal/delivery"
	"devpulse/internal/jobs"
)

// userGate guards the one-shot test tweet; *auth.Store satisfies it.
type userGate interface {
	ClaimTestTweet(ctx context.Context, userID uint64) (bool, error)
	ReleaseTestTweet(ctx context.Context, userID uint64) error
}

// credentialSource is satisfied by *credential.Store.
type credentialSource interface {
	GetByUser(ctx context.Context, userID uint64) (*credential.Credential, error)
}

// tweetSender is satisfied by *delivery.Client.
type tweetSender interface {
	Deliver(ctx context.Context, userID, credentialID uint64, content string, attr delivery.Attribution) error
}

type TweetHandler struct {
	Jobs     *jobs.Repo
	Tweets   *delivery.Repo
	Users    userGate
	Creds    credentialSource
	Delivery tweetSender

	DefaultCron     string
	DefaultTimezone string
}

// List returns the caller's tweet records ordered by schedule time.
func (h *TweetHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	tweets, err := h.Tweets.ListByUser(r.Context(), uid)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tweets": tweets})
}

type testTweetReq struct {
	Content string `json:"content"`
}

// Test sends a one-off tweet with caller-provided content. Allowed once per
// user: the flag is claimed atomically before delivering, so concurrent calls
// cannot both send, and a failed delivery returns the claim.
func (h *TweetHandler) Test(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req testTweetReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" || utf8.RuneCountInString(req.Content) > compose.MaxLen {
		http.Error(w, "content must be 1-280 characters", http.StatusBadRequest)
		return
	}

	cred, err := h.Creds.GetByUser(r.Context(), uid)
	if err != nil {
		writeErr(w, err)
		return
	}

	claimed, err := h.Users.ClaimTestTweet(r.Context(), uid)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !claimed {
		http.Error(w, "test tweet already used", http.StatusBadRequest)
		return
	}

	if err := h.Delivery.Deliver(r.Context(), uid, cred.ID, req.Content, delivery.NotAttempted()); err != nil {
		if rerr := h.Users.ReleaseTestTweet(r.Context(), uid); rerr != nil {
			writeErr(w, rerr)
			return
		}
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sent": true})
}

type scheduleReq struct {
	Recurring   bool   `json:"recurring"`
	DelayMS     int64  `json:"delay_ms"`
	CronExpr    string `json:"cron_expr"`
	Timezone    string `json:"timezone"`
	MaxAttempts int    `json:"max_attempts"`
}

// Schedule registers a delivery job. With recurring=true it atomically
// replaces any existing recurring registration for the caller; otherwise it
// enqueues a one-shot job after delay_ms.
func (h *TweetHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req scheduleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	cred, err := h.Creds.GetByUser(r.Context(), uid)
	if err != nil {
		writeErr(w, err)
		return
	}
	payload := jobs.TweetPayload{CredentialID: cred.ID}

	if req.Recurring {
		cronExpr := req.CronExpr
		if cronExpr == "" {
			cronExpr = h.DefaultCron
		}
		tz := req.Timezone
		if tz == "" {
			tz = h.DefaultTimezone
		}
		id, err := h.Jobs.UpsertRecurring(r.Context(), jobs.DedupKeyFor(uid), uid, payload, cronExpr, tz)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"job_id": id})
		return
	}

	id, err := h.Jobs.Enqueue(r.Context(), jobs.KindDelayed, uid, payload, jobs.Options{
		Delay:       time.Duration(req.DelayMS) * time.Millisecond,
		CronExpr:    req.CronExpr, // non-empty here fails validation
		MaxAttempts: req.MaxAttempts,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"job_id": id})
}

// Unschedule cancels the caller's recurring registration.
func (h *TweetHandler) Unschedule(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	if err := h.Jobs.CancelRecurring(r.Context(), jobs.DedupKeyFor(uid)); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": true})
}

// ListJobs lists the caller's jobs, soonest first.
func (h *TweetHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	list, err := h.Jobs.ListByUser(r.Context(), uid)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": list})
}
