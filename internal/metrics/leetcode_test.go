package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devpulse/internal/apperr"
)

// leetcodeTestServer answers both GraphQL queries by inspecting the query
// text, the way the real endpoint multiplexes on operation.
func leetcodeTestServer(t *testing.T, calendar map[int64]int, submissions string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Query string `json:"query"`
		}
		require.NoError(t, json.Unmarshal(body, &req))

		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(req.Query, "recentSubmissionList") {
			fmt.Fprintf(w, `{"data": {"recentSubmissionList": %s}}`, submissions)
			return
		}

		cal := make(map[string]int, len(calendar))
		for ts, n := range calendar {
			cal[strconv.FormatInt(ts, 10)] = n
		}
		calJSON, _ := json.Marshal(cal)
		calStr, _ := json.Marshal(string(calJSON))
		fmt.Fprintf(w, `{"data": {"matchedUser": {
			"submitStats": {"acSubmissionNum": [
				{"difficulty": "All", "count": 120},
				{"difficulty": "Easy", "count": 60},
				{"difficulty": "Medium", "count": 50},
				{"difficulty": "Hard", "count": 10}
			]},
			"submissionCalendar": %s
		}}}`, calStr)
	}))
}

func TestLeetCodeFetch(t *testing.T) {
	now := time.Now()
	dayStart := func(daysAgo int) int64 {
		return now.UTC().AddDate(0, 0, -daysAgo).Truncate(24 * time.Hour).Unix()
	}
	calendar := map[int64]int{
		dayStart(0): 2,
		dayStart(1): 1,
		dayStart(3): 4,
	}

	recent := now.Add(-time.Hour).Unix()
	old := now.Add(-48 * time.Hour).Unix()
	submissions := fmt.Sprintf(`[
		{"title": "Two Sum", "timestamp": "%d", "statusDisplay": "Accepted"},
		{"title": "Word Ladder", "timestamp": "%d", "statusDisplay": "Wrong Answer"},
		{"title": "LRU Cache", "timestamp": "%d", "statusDisplay": "Accepted"}
	]`, recent, recent, old)

	srv := leetcodeTestServer(t, calendar, submissions)
	defer srv.Close()

	c := &LeetCodeClient{BaseURL: srv.URL}
	snap, err := c.Fetch(context.Background(), "coder")
	require.NoError(t, err)

	assert.False(t, snap.Unavailable)
	assert.Equal(t, 120, snap.TotalSolved)
	assert.Equal(t, 2, snap.Streak)

	// rejected submissions are dropped
	require.Len(t, snap.Recent, 2)
	assert.Equal(t, "Two Sum", snap.Recent[0].Title)

	within := snap.RecentWithin(24*time.Hour, now)
	require.Len(t, within, 1)
	assert.Equal(t, "Two Sum", within[0].Title)
}

func TestLeetCodeFetchUnknownUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data": {"matchedUser": null, "recentSubmissionList": []}}`)
	}))
	defer srv.Close()

	c := &LeetCodeClient{BaseURL: srv.URL}
	_, err := c.Fetch(context.Background(), "ghost")

	var upstream *apperr.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "leetcode", upstream.Provider)
}

func TestCalendarByDayIgnoresGarbage(t *testing.T) {
	assert.Empty(t, calendarByDay(""))
	assert.Empty(t, calendarByDay("not json"))

	byDay := calendarByDay(`{"86400": 3, "bogus": 1}`)
	assert.Equal(t, map[string]int{"1970-01-02": 3}, byDay)
}
