package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// Store is the slice of the queue the worker needs. *Repo satisfies it; tests
// use an in-memory fake.
type Store interface {
	Claim(ctx context.Context, workerID string) (*Job, error)
	MarkSent(ctx context.Context, id uint64) error
	MarkFailed(ctx context.Context, id uint64, errMsg string) error
	RetryLater(ctx context.Context, id uint64, attempts int, runAt time.Time, errMsg string) error
	Rearm(ctx context.Context, id uint64, nextRun time.Time) error
}

// Runner executes the delivery pipeline for one claimed job. RecordFailure is
// called once when a job's attempts are exhausted so a terminal FAILED record
// can be persisted.
type Runner interface {
	Run(ctx context.Context, job *Job) error
	RecordFailure(ctx context.Context, job *Job, cause error)
}

// Pool polls for due jobs and runs them on a bounded set of goroutines. One
// job is claimed by at most one worker; a job whose worker dies becomes
// claimable again after the visibility timeout.
type Pool struct {
	ID           string
	Store        Store
	Runner       Runner
	Backoff      Backoff
	Workers      int
	PollInterval time.Duration
	Log          *logrus.Logger
}

func (p *Pool) Run(ctx context.Context) {
	if p.Backoff == nil {
		p.Backoff = ExponentialBackoff
	}
	workers := int64(p.Workers)
	if workers <= 0 {
		workers = 1
	}
	interval := p.PollInterval
	if interval <= 0 {
		interval = 800 * time.Millisecond
	}

	sem := semaphore.NewWeighted(workers)
	var wg sync.WaitGroup

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case <-ticker.C:
			p.drain(ctx, sem, &wg)
		}
	}
}

// drain claims due jobs until the queue is empty or all workers are busy.
func (p *Pool) drain(ctx context.Context, sem *semaphore.Weighted, wg *sync.WaitGroup) {
	for {
		if !sem.TryAcquire(1) {
			return
		}

		job, err := p.Store.Claim(ctx, p.ID)
		if err != nil {
			sem.Release(1)
			p.Log.WithError(err).Error("worker claim failed")
			return
		}
		if job == nil {
			sem.Release(1)
			return
		}

		wg.Add(1)
		go func(job *Job) {
			defer sem.Release(1)
			defer wg.Done()
			p.handle(ctx, job)
		}(job)
	}
}

func (p *Pool) handle(ctx context.Context, job *Job) {
	log := p.Log.WithFields(logrus.Fields{
		"job_id": job.ID,
		"kind":   job.Kind,
		"user":   job.UserID,
	})

	err := p.Runner.Run(ctx, job)
	if err == nil {
		log.Info("job completed")
		p.acknowledge(ctx, job)
		return
	}

	// Attempts was incremented when the job was claimed.
	if job.Attempts >= job.MaxAttempts {
		log.WithError(err).WithField("attempts", job.Attempts).Error("job failed terminally")
		p.Runner.RecordFailure(ctx, job, err)
		p.exhaust(ctx, job, err)
		return
	}

	delay := p.Backoff(job.Attempts)
	log.WithError(err).WithFields(logrus.Fields{
		"attempts": job.Attempts,
		"retry_in": delay,
	}).Warn("job failed, retrying")
	if rerr := p.Store.RetryLater(ctx, job.ID, job.Attempts, time.Now().Add(delay), err.Error()); rerr != nil {
		log.WithError(rerr).Error("retry scheduling failed")
	}
}

// acknowledge finishes a successful run: delayed jobs reach the terminal SENT
// state, recurring jobs re-arm at the next cron occurrence.
func (p *Pool) acknowledge(ctx context.Context, job *Job) {
	if job.Kind == KindRecurring && job.CronExpr != nil {
		next, err := NextRun(*job.CronExpr, timezoneOf(job), time.Now())
		if err == nil {
			if rerr := p.Store.Rearm(ctx, job.ID, next); rerr != nil {
				p.Log.WithError(rerr).WithField("job_id", job.ID).Error("rearm failed")
			}
			return
		}
		p.Log.WithError(err).WithField("job_id", job.ID).Error("next run calc failed")
	}
	if err := p.Store.MarkSent(ctx, job.ID); err != nil {
		p.Log.WithError(err).WithField("job_id", job.ID).Error("mark sent failed")
	}
}

// exhaust ends a run whose attempts ran out. A delayed job fails terminally;
// a recurring registration skips the occurrence and re-arms.
func (p *Pool) exhaust(ctx context.Context, job *Job, cause error) {
	if job.Kind == KindRecurring && job.CronExpr != nil {
		next, err := NextRun(*job.CronExpr, timezoneOf(job), time.Now())
		if err == nil {
			if rerr := p.Store.Rearm(ctx, job.ID, next); rerr != nil {
				p.Log.WithError(rerr).WithField("job_id", job.ID).Error("rearm failed")
			}
			return
		}
	}
	if err := p.Store.MarkFailed(ctx, job.ID, cause.Error()); err != nil {
		p.Log.WithError(err).WithField("job_id", job.ID).Error("mark failed failed")
	}
}

func timezoneOf(job *Job) string {
	if job.Timezone != nil && *job.Timezone != "" {
		return *job.Timezone
	}
	return "UTC"
}
