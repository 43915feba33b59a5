// Package pipeline executes one claimed job end to end: resolve the user,
// aggregate metrics, synthesize content, deliver it.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"devpulse/internal/apperr"
	"devpulse/internal/auth"
	"devpulse/internal/compose"
	"devpulse/internal/delivery"
	"devpulse/internal/jobs"
	"devpulse/internal/metrics"
)

// UserSource resolves the job's owning user; *auth.Store satisfies it.
type UserSource interface {
	Get(ctx context.Context, id uint64) (*auth.User, error)
}

// FailureStore persists the terminal record for an exhausted job; the
// delivery repo satisfies it.
type FailureStore interface {
	CreateFailed(ctx context.Context, userID, credentialID uint64, reason string) error
}

type Pipeline struct {
	Users   UserSource
	Metrics *metrics.Aggregator
	Deliver *delivery.Client
	Records FailureStore
	Log     *logrus.Logger
}

// Run drives the delivery pipeline for one job. Metrics failures degrade to
// the fallback message; credential refresh failures degrade to the stored
// token. Only delivery and persistence failures propagate for retry.
func (p *Pipeline) Run(ctx context.Context, job *jobs.Job) error {
	payload, err := jobs.UnmarshalPayload(job.Payload)
	if err != nil {
		return fmt.Errorf("%w: bad job payload", apperr.ErrValidation)
	}

	user, err := p.Users.Get(ctx, job.UserID)
	if err != nil {
		return err
	}

	gh, lc := p.Metrics.Fetch(ctx, user.GithubUsername, user.LeetCodeUsername)

	now := time.Now()
	content := compose.Synthesize(gh, lc, now)

	return p.Deliver.Deliver(ctx, job.UserID, payload.CredentialID, content, attribution(gh, lc, now))
}

// RecordFailure persists the terminal FAILED record once a job's attempts are
// exhausted. The cause goes into the record's failure reason, not its content.
func (p *Pipeline) RecordFailure(ctx context.Context, job *jobs.Job, cause error) {
	payload, err := jobs.UnmarshalPayload(job.Payload)
	if err != nil {
		return
	}
	if err := p.Records.CreateFailed(ctx, job.UserID, payload.CredentialID, cause.Error()); err != nil {
		p.Log.WithError(err).WithField("job_id", job.ID).Error("failed record write")
	}
}

// attribution derives the per-provider counts stored with the tweet record: a
// provider that was not attempted or unavailable records the sentinel, zero
// activity records zero.
func attribution(gh *metrics.GithubSnapshot, lc *metrics.LeetCodeSnapshot, now time.Time) delivery.Attribution {
	attr := delivery.NotAttempted()

	if gh != nil && !gh.Unavailable {
		attr.GithubContribution = gh.TodayCount()
	}
	if lc != nil && !lc.Unavailable {
		recent := lc.RecentWithin(24*time.Hour, now)
		attr.LeetCodeContribution = len(recent)
		for i, sub := range recent {
			if i == 4 {
				break
			}
			attr.IncludedTitles = append(attr.IncludedTitles, sub.Title)
		}
	}
	return attr
}
