package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"devpulse/internal/apperr"
)

const (
	DefaultGithubBaseURL = "https://api.github.com"

	githubTimeout = 10 * time.Second
)

// GithubClient reads a user's recent public events and profile summary.
type GithubClient struct {
	HTTP    *http.Client
	BaseURL string
}

type githubEvent struct {
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Payload   struct {
		Size int `json:"size"`
	} `json:"payload"`
}

type githubProfile struct {
	Followers int `json:"followers"`
}

// ValidateUsername reports whether the username exists on GitHub.
func (c *GithubClient) ValidateUsername(ctx context.Context, username string) bool {
	ctx, cancel := context.WithTimeout(ctx, githubTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+"/users/"+username, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Fetch builds a snapshot from the user's push events and follower count.
func (c *GithubClient) Fetch(ctx context.Context, username string) (*GithubSnapshot, error) {
	now := time.Now()

	var events []githubEvent
	if err := c.getJSON(ctx, "/users/"+username+"/events", &events); err != nil {
		return nil, &apperr.UpstreamError{Provider: "github", Err: err}
	}

	var profile githubProfile
	if err := c.getJSON(ctx, "/users/"+username, &profile); err != nil {
		return nil, &apperr.UpstreamError{Provider: "github", Err: err}
	}

	byDay := make(map[string]int)
	total := 0
	for _, ev := range events {
		if ev.Type != "PushEvent" {
			continue
		}
		total += ev.Payload.Size
		byDay[ev.CreatedAt.UTC().Format("2006-01-02")] += ev.Payload.Size
	}

	buckets := dayBuckets(byDay, now)
	return &GithubSnapshot{
		FetchedAt:     now,
		Contributions: buckets,
		TotalCommits:  total,
		Streak:        LongestRun(countsOf(buckets)),
		Followers:     profile.Followers,
	}, nil
}

func (c *GithubClient) getJSON(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, githubTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *GithubClient) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *GithubClient) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultGithubBaseURL
}
