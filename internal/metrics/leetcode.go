package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"devpulse/internal/apperr"
)

const (
	DefaultLeetCodeURL = "https://leetcode.com/graphql"

	leetcodeTimeout = 10 * time.Second
	recentLimit     = 10
)

// LeetCodeClient reads aggregate solved stats, the day-bucketed submission
// calendar, and the recent submission list through the public GraphQL API.
type LeetCodeClient struct {
	HTTP    *http.Client
	BaseURL string
}

const profileQuery = `
query userProfile($username: String!) {
  matchedUser(username: $username) {
    username
    submitStats: submitStatsGlobal {
      acSubmissionNum {
        difficulty
        count
      }
    }
    submissionCalendar
  }
}`

const submissionsQuery = `
query recentSubmissions($username: String!, $limit: Int) {
  recentSubmissionList(username: $username, limit: $limit) {
    title
    timestamp
    statusDisplay
  }
}`

type leetcodeProfileResp struct {
	Data struct {
		MatchedUser *struct {
			SubmitStats struct {
				ACSubmissionNum []struct {
					Difficulty string `json:"difficulty"`
					Count      int    `json:"count"`
				} `json:"acSubmissionNum"`
			} `json:"submitStats"`
			SubmissionCalendar string `json:"submissionCalendar"`
		} `json:"matchedUser"`
	} `json:"data"`
}

type leetcodeSubmissionsResp struct {
	Data struct {
		RecentSubmissionList []struct {
			Title         string `json:"title"`
			Timestamp     string `json:"timestamp"`
			StatusDisplay string `json:"statusDisplay"`
		} `json:"recentSubmissionList"`
	} `json:"data"`
}

// ValidateUsername reports whether the username matches a LeetCode profile.
func (c *LeetCodeClient) ValidateUsername(ctx context.Context, username string) bool {
	var resp leetcodeProfileResp
	if err := c.query(ctx, profileQuery, map[string]any{"username": username}, &resp); err != nil {
		return false
	}
	return resp.Data.MatchedUser != nil
}

// Fetch runs the profile and submissions queries in parallel and reduces them
// to a snapshot.
func (c *LeetCodeClient) Fetch(ctx context.Context, username string) (*LeetCodeSnapshot, error) {
	now := time.Now()

	var profile leetcodeProfileResp
	var submissions leetcodeSubmissionsResp

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.query(gctx, profileQuery, map[string]any{"username": username}, &profile)
	})
	g.Go(func() error {
		return c.query(gctx, submissionsQuery, map[string]any{"username": username, "limit": recentLimit}, &submissions)
	})
	if err := g.Wait(); err != nil {
		return nil, &apperr.UpstreamError{Provider: "leetcode", Err: err}
	}

	user := profile.Data.MatchedUser
	if user == nil {
		return nil, &apperr.UpstreamError{Provider: "leetcode", Err: fmt.Errorf("user %q not found", username)}
	}

	totalSolved := 0
	for _, n := range user.SubmitStats.ACSubmissionNum {
		if n.Difficulty == "All" {
			totalSolved = n.Count
			break
		}
	}

	buckets := dayBuckets(calendarByDay(user.SubmissionCalendar), now)

	var recent []Submission
	for _, s := range submissions.Data.RecentSubmissionList {
		if s.StatusDisplay != "Accepted" {
			continue
		}
		ts, err := strconv.ParseInt(s.Timestamp, 10, 64)
		if err != nil {
			continue
		}
		recent = append(recent, Submission{
			Title: s.Title,
			// The submission list does not carry difficulty.
			Difficulty:  "Medium",
			SubmittedAt: time.Unix(ts, 0),
		})
	}

	return &LeetCodeSnapshot{
		FetchedAt:   now,
		TotalSolved: totalSolved,
		Streak:      LongestRun(countsOf(buckets)),
		Recent:      recent,
	}, nil
}

// calendarByDay parses the submission calendar, a JSON object mapping unix
// timestamps (as strings) to submission counts, into per-day buckets.
func calendarByDay(calendar string) map[string]int {
	byDay := make(map[string]int)
	if calendar == "" {
		return byDay
	}
	var raw map[string]int
	if err := json.Unmarshal([]byte(calendar), &raw); err != nil {
		return byDay
	}
	for k, count := range raw {
		ts, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		byDay[time.Unix(ts, 0).UTC().Format("2006-01-02")] += count
	}
	return byDay
}

func (c *LeetCodeClient) query(ctx context.Context, query string, variables map[string]any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, leetcodeTimeout)
	defer cancel()

	body, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://leetcode.com")
	req.Header.Set("Referer", "https://leetcode.com/")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("leetcode graphql: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *LeetCodeClient) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *LeetCodeClient) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultLeetCodeURL
}
