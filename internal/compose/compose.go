// Package compose turns aggregated metrics into the tweet text. Synthesis is
// deterministic: identical snapshots and clock yield byte-identical output.
package compose

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"devpulse/internal/metrics"
)

const (
	// MaxLen is the platform character limit, counted in runes.
	MaxLen = 280

	// Fallback is returned when neither provider yields an appendable line.
	Fallback = "Another productive day of coding! 💻✨"

	suffix = "\n\n#coding #developer #100DaysOfCode"

	maxListedTitles = 4
	recentWindow    = 24 * time.Hour
)

// Synthesize applies the composition rules in fixed order: the GitHub
// same-day line, the LeetCode item list with overflow and summary lines, then
// the hashtag suffix. If the result would exceed MaxLen, lines are dropped
// from the end until it fits.
func Synthesize(gh *metrics.GithubSnapshot, lc *metrics.LeetCodeSnapshot, now time.Time) string {
	var lines []string

	if count := gh.TodayCount(); count > 0 {
		lines = append(lines, fmt.Sprintf("🚀 Made %d contributions on GitHub today!", count))
	}

	if recent := lc.RecentWithin(recentWindow, now); len(recent) > 0 {
		listed := recent
		if len(listed) > maxListedTitles {
			listed = listed[:maxListedTitles]
		}
		titles := make([]string, len(listed))
		for i, sub := range listed {
			titles[i] = fmt.Sprintf("%s (%s)", sub.Title, sub.Difficulty)
		}
		lines = append(lines, fmt.Sprintf("🧩 Solved %s on LeetCode today!", strings.Join(titles, ", ")))

		if len(recent) > maxListedTitles {
			lines = append(lines, fmt.Sprintf("...and %d more!", len(recent)-maxListedTitles))
		}
		lines = append(lines, fmt.Sprintf("💻 Solved %d LeetCode problems with a %d-day streak!", len(recent), lc.Streak))
	}

	if len(lines) == 0 {
		return Fallback
	}

	// Drop lines from the least-important end until the suffix fits too.
	for len(lines) > 0 {
		out := strings.Join(lines, "\n") + suffix
		if utf8.RuneCountInString(out) <= MaxLen {
			return out
		}
		lines = lines[:len(lines)-1]
	}
	return Fallback
}
