package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
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
	"devpulse/internal/auth"
	"devpulse/internal/compose"
	"devpulse/internal/delivery"
	"devpulse/internal/jobs"
	"devpulse/internal/metrics"
)

type fakeUsers struct {
	user *auth.User
}

func (f *fakeUsers) Get(ctx context.Context, id uint64) (*auth.User, error) {
	return f.user, nil
}

type staticTokens struct{}

func (staticTokens) GetValidToken(ctx context.Context, credentialID uint64) (string, error) {
	return "tok", nil
}

type sentRecord struct {
	content string
	status  string
	attr    delivery.Attribution
}

// captureRecords doubles as the delivery client's record store and the
// pipeline's failure store.
type captureRecords struct {
	mu     sync.Mutex
	sent   []sentRecord
	failed []string
}

func (r *captureRecords) Create(ctx context.Context, userID, credentialID uint64, content, status string, attr delivery.Attribution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentRecord{content: content, status: status, attr: attr})
	return nil
}

func (r *captureRecords) CreateFailed(ctx context.Context, userID, credentialID uint64, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, reason)
	return nil
}

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func githubStub(t *testing.T, events string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/dev/events":
			fmt.Fprint(w, events)
		case "/users/dev":
			fmt.Fprint(w, `{"followers": 2}`)
		default:
			http.NotFound(w, r)
		}
	}))
}

func leetcodeStub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "recentSubmissionList") {
			fmt.Fprint(w, `{"data": {"recentSubmissionList": []}}`)
			return
		}
		fmt.Fprint(w, `{"data": {"matchedUser": {
			"submitStats": {"acSubmissionNum": [{"difficulty": "All", "count": 0}]},
			"submissionCalendar": "{}"
		}}}`)
	}))
}

// postStub accepts the platform post and records the text it received.
func postStub(t *testing.T, status int, posts *[]string, mu *sync.Mutex) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		*posts = append(*posts, body["text"])
		mu.Unlock()
		w.WriteHeader(status)
		fmt.Fprint(w, `{"data": {"id": "1"}}`)
	}))
}

func testPipeline(ghURL, lcURL, postURL string) (*Pipeline, *captureRecords) {
	records := &captureRecords{}
	ghUser, lcUser := "dev", "dev"
	p := &Pipeline{
		Users: &fakeUsers{user: &auth.User{
			ID:               7,
			GithubUsername:   &ghUser,
			LeetCodeUsername: &lcUser,
		}},
		Metrics: &metrics.Aggregator{
			Github:   &metrics.GithubClient{BaseURL: ghURL},
			LeetCode: &metrics.LeetCodeClient{BaseURL: lcURL},
			Log:      quietLog(),
		},
		Deliver: &delivery.Client{
			Tokens:  staticTokens{},
			Records: records,
			Log:     quietLog(),
			BaseURL: postURL,
		},
		Records: records,
		Log:     quietLog(),
	}
	return p, records
}

func tweetJob() *jobs.Job {
	return &jobs.Job{
		ID:          1,
		UserID:      7,
		Kind:        jobs.KindDelayed,
		Payload:     jobs.TweetPayload{CredentialID: 3}.Marshal(),
		Attempts:    1,
		MaxAttempts: 3,
	}
}

// Both providers report zero activity: the fallback message is delivered and
// exactly one SENT record with zero contribution counts is persisted.
func TestRunZeroActivityDeliversFallback(t *testing.T) {
	gh := githubStub(t, `[]`)
	defer gh.Close()
	lc := leetcodeStub(t)
	defer lc.Close()

	var posts []string
	var mu sync.Mutex
	post := postStub(t, http.StatusCreated, &posts, &mu)
	defer post.Close()

	p, records := testPipeline(gh.URL, lc.URL, post.URL)

	require.NoError(t, p.Run(context.Background(), tweetJob()))

	require.Equal(t, []string{compose.Fallback}, posts)
	require.Len(t, records.sent, 1)
	rec := records.sent[0]
	assert.Equal(t, compose.Fallback, rec.content)
	assert.Equal(t, delivery.StatusSent, rec.status)
	assert.Equal(t, 0, rec.attr.GithubContribution)
	assert.Equal(t, 0, rec.attr.LeetCodeContribution)
	assert.Empty(t, records.failed)
}

// An isolated LeetCode outage: the tweet carries only the GitHub line plus the
// hashtag suffix and the job still completes.
func TestRunProviderOutageStillDelivers(t *testing.T) {
	today := time.Now().UTC().Format(time.RFC3339)
	gh := githubStub(t, `[{"type": "PushEvent", "created_at": "`+today+`", "payload": {"size": 5}}]`)
	defer gh.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer down.Close()

	var posts []string
	var mu sync.Mutex
	post := postStub(t, http.StatusCreated, &posts, &mu)
	defer post.Close()

	p, records := testPipeline(gh.URL, down.URL, post.URL)

	require.NoError(t, p.Run(context.Background(), tweetJob()))

	want := "🚀 Made 5 contributions on GitHub today!\n\n#coding #developer #100DaysOfCode"
	require.Equal(t, []string{want}, posts)
	require.Len(t, records.sent, 1)
	assert.Equal(t, 5, records.sent[0].attr.GithubContribution)
	assert.Equal(t, delivery.ContributionNotAttempted, records.sent[0].attr.LeetCodeContribution)
}

// A rejected post propagates for retry accounting and writes no record.
func TestRunDeliveryFailurePropagates(t *testing.T) {
	gh := githubStub(t, `[]`)
	defer gh.Close()
	lc := leetcodeStub(t)
	defer lc.Close()

	var posts []string
	var mu sync.Mutex
	post := postStub(t, http.StatusForbidden, &posts, &mu)
	defer post.Close()

	p, records := testPipeline(gh.URL, lc.URL, post.URL)

	err := p.Run(context.Background(), tweetJob())

	var deliveryErr *apperr.DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Empty(t, records.sent)
}

func TestRunRejectsBadPayload(t *testing.T) {
	p, _ := testPipeline("http://unused", "http://unused", "http://unused")

	job := tweetJob()
	job.Payload = []byte("not json")

	err := p.Run(context.Background(), job)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRecordFailurePersistsReason(t *testing.T) {
	p, records := testPipeline("http://unused", "http://unused", "http://unused")

	p.RecordFailure(context.Background(), tweetJob(), errors.New("delivery failed: status=503"))

	assert.Equal(t, []string{"delivery failed: status=503"}, records.failed)
}

func TestAttributionNothingAttempted(t *testing.T) {
	attr := attribution(nil, nil, time.Now())
	assert.Equal(t, delivery.ContributionNotAttempted, attr.GithubContribution)
	assert.Equal(t, delivery.ContributionNotAttempted, attr.LeetCodeContribution)
	assert.Empty(t, attr.IncludedTitles)
}

func TestAttributionUnavailableKeepsSentinel(t *testing.T) {
	gh := &metrics.GithubSnapshot{Unavailable: true}
	lc := &metrics.LeetCodeSnapshot{Unavailable: true}

	attr := attribution(gh, lc, time.Now())
	assert.Equal(t, delivery.ContributionNotAttempted, attr.GithubContribution)
	assert.Equal(t, delivery.ContributionNotAttempted, attr.LeetCodeContribution)
}

func TestAttributionZeroActivityIsZeroNotSentinel(t *testing.T) {
	now := time.Now()
	gh := &metrics.GithubSnapshot{
		Contributions: []metrics.DayCount{{Date: "2026-09-01", Count: 0}},
	}
	lc := &metrics.LeetCodeSnapshot{}

	attr := attribution(gh, lc, now)
	assert.Equal(t, 0, attr.GithubContribution)
	assert.Equal(t, 0, attr.LeetCodeContribution)
}

func TestAttributionCountsAndTitles(t *testing.T) {
	now := time.Now()
	gh := &metrics.GithubSnapshot{
		Contributions: []metrics.DayCount{{Date: "2026-09-01", Count: 7}},
	}

	var recent []metrics.Submission
	for _, title := range []string{"Two Sum", "LRU Cache", "Word Break", "Coin Change", "Jump Game", "N-Queens"} {
		recent = append(recent, metrics.Submission{
			Title:       title,
			Difficulty:  "Medium",
			SubmittedAt: now.Add(-time.Hour),
		})
	}
	lc := &metrics.LeetCodeSnapshot{Recent: recent}

	attr := attribution(gh, lc, now)
	assert.Equal(t, 7, attr.GithubContribution)
	assert.Equal(t, 6, attr.LeetCodeContribution)
	// only the titles that fit in the tweet are recorded
	assert.Equal(t, []string{"Two Sum", "LRU Cache", "Word Break", "Coin Change"}, attr.IncludedTitles)
}

func TestAttributionIgnoresStaleSubmissions(t *testing.T) {
	now := time.Now()
	lc := &metrics.LeetCodeSnapshot{
		Recent: []metrics.Submission{
			{Title: "Old One", SubmittedAt: now.Add(-30 * time.Hour)},
			{Title: "Fresh One", SubmittedAt: now.Add(-time.Hour)},
		},
	}

	attr := attribution(nil, lc, now)
	assert.Equal(t, 1, attr.LeetCodeContribution)
	assert.Equal(t, []string{"Fresh One"}, attr.IncludedTitles)
}
