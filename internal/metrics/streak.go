package metrics

import "time"

// LongestRun computes the streak over day buckets ordered newest first: the
// length of the longest unbroken run of days with a strictly positive count,
// scanned oldest to newest, carrying the best run forward. Missing days must
// already be present as zero buckets.
func LongestRun(counts []int) int {
	best, current := 0, 0
	for i := len(counts) - 1; i >= 0; i-- {
		if counts[i] > 0 {
			current++
			if current > best {
				best = current
			}
		} else {
			current = 0
		}
	}
	return best
}

// dayBuckets spreads per-day counts over the streak window ending at now,
// newest first. Days absent from byDay contribute zero.
func dayBuckets(byDay map[string]int, now time.Time) []DayCount {
	out := make([]DayCount, 0, streakWindow)
	day := now.UTC()
	for i := 0; i < streakWindow; i++ {
		date := day.AddDate(0, 0, -i).Format("2006-01-02")
		out = append(out, DayCount{Date: date, Count: byDay[date]})
	}
	return out
}

func countsOf(buckets []DayCount) []int {
	out := make([]int, len(buckets))
	for i, b := range buckets {
		out[i] = b.Count
	}
	return out
}
