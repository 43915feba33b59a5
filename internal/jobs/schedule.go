package jobs

import (
	"fmt"
	"math"
	"time"

	"github.com/robfig/cron/v3"

	"devpulse/internal/apperr"
)

// cronParser is a standard 5-field cron parser (minute hour dom month dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextRun computes the next occurrence of a cron expression after from,
// evaluated in the given timezone.
func NextRun(expr, tz string, from time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timezone %q: %v", apperr.ErrInvalidSchedule, tz, err)
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: cron %q: %v", apperr.ErrInvalidSchedule, expr, err)
	}
	return sched.Next(from.In(loc)), nil
}

// Options control how a job is scheduled. Exactly one of Delay (delayed jobs)
// or CronExpr (recurring jobs) must match the job kind.
type Options struct {
	Delay       time.Duration
	CronExpr    string
	Timezone    string
	DedupKey    string
	MaxAttempts int
}

func (o Options) validate(kind string) error {
	switch kind {
	case KindDelayed:
		if o.CronExpr != "" {
			return fmt.Errorf("%w: delayed job cannot carry a cron expression", apperr.ErrInvalidSchedule)
		}
		if o.Delay < 0 {
			return fmt.Errorf("%w: negative delay", apperr.ErrInvalidSchedule)
		}
	case KindRecurring:
		if o.Delay != 0 {
			return fmt.Errorf("%w: recurring job cannot carry a delay", apperr.ErrInvalidSchedule)
		}
		if o.CronExpr == "" {
			return fmt.Errorf("%w: recurring job requires a cron expression", apperr.ErrInvalidSchedule)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", apperr.ErrInvalidSchedule, kind)
	}
	return nil
}

// Backoff returns the delay before the next attempt. Injectable so retry
// behavior is testable without a live store.
type Backoff func(attempt int) time.Duration

// ExponentialBackoff doubles per attempt, capped at 10 minutes.
func ExponentialBackoff(attempt int) time.Duration {
	sec := math.Min(math.Pow(2, float64(attempt)), 600)
	return time.Duration(sec) * time.Second
}
