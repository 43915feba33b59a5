// Package metrics fetches activity summaries from the two external providers
// and reduces them to snapshots the synthesizer consumes. Provider failures
// are isolated: a snapshot is either populated, or explicitly unavailable.
package metrics

import "time"

// streakWindow is the fixed number of most-recent calendar days over which
// activity is bucketed and the streak computed, for both providers.
const streakWindow = 12

// DayCount is one calendar-day activity bucket.
type DayCount struct {
	Date  string // YYYY-MM-DD, UTC
	Count int
}

// GithubSnapshot summarizes recent GitHub push activity. Unavailable marks a
// failed fetch, which is distinct from a fetch that found zero activity.
type GithubSnapshot struct {
	Unavailable bool
	FetchedAt   time.Time

	// Contributions holds one bucket per day in the window, newest first.
	Contributions []DayCount
	TotalCommits  int
	Streak        int
	Followers     int
}

// TodayCount is the newest day bucket, or zero for an unavailable snapshot.
func (s *GithubSnapshot) TodayCount() int {
	if s == nil || s.Unavailable || len(s.Contributions) == 0 {
		return 0
	}
	return s.Contributions[0].Count
}

// Submission is one accepted LeetCode submission.
type Submission struct {
	Title       string
	Difficulty  string
	SubmittedAt time.Time
}

// LeetCodeSnapshot summarizes recent LeetCode activity.
type LeetCodeSnapshot struct {
	Unavailable bool
	FetchedAt   time.Time

	TotalSolved int
	Streak      int
	Recent      []Submission
}

// RecentWithin returns accepted submissions newer than now minus window.
func (s *LeetCodeSnapshot) RecentWithin(window time.Duration, now time.Time) []Submission {
	if s == nil || s.Unavailable {
		return nil
	}
	cutoff := now.Add(-window)
	var out []Submission
	for _, sub := range s.Recent {
		if sub.SubmittedAt.After(cutoff) {
			out = append(out, sub)
		}
	}
	return out
}
