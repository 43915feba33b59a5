package handler

import (
	"net/http"

	"gorm.io/gorm"

	"devpulse/internal/auth"
	"devpulse/internal/metrics"
)

type MeHandler struct {
	DB      *gorm.DB
	Metrics *metrics.Aggregator
}

type userDTO struct {
	ID               uint64  `json:"id"`
	Email            string  `json:"email"`
	TwitterUsername  *string `json:"twitter_username"`
	GithubUsername   *string `json:"github_username"`
	LeetCodeUsername *string `json:"leetcode_username"`
	TestTweetUsed    bool    `json:"test_tweet_used"`
}

func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var user auth.User
	if err := h.DB.WithContext(r.Context()).First(&user, uid).Error; err != nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, dto(user))
}

// Dashboard returns the profile plus live metrics from both providers.
// Either provider being down yields an unavailable snapshot, never an error.
func (h *MeHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var user auth.User
	if err := h.DB.WithContext(r.Context()).First(&user, uid).Error; err != nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}

	gh, lc := h.Metrics.Fetch(r.Context(), user.GithubUsername, user.LeetCodeUsername)

	writeJSON(w, http.StatusOK, map[string]any{
		"user":     dto(user),
		"github":   gh,
		"leetcode": lc,
	})
}

func dto(u auth.User) userDTO {
	return userDTO{
		ID:               u.ID,
		Email:            u.Email,
		TwitterUsername:  u.TwitterUsername,
		GithubUsername:   u.GithubUsername,
		LeetCodeUsername: u.LeetCodeUsername,
		TestTweetUsed:    u.TestTweetUsed,
	}
}
