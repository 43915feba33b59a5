package jobs

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"devpulse/internal/apperr"
)

type Repo struct {
	DB *gorm.DB
}

// Enqueue inserts a new job. Delayed jobs are due after opts.Delay; recurring
// jobs are due at the next occurrence of opts.CronExpr in opts.Timezone.
func (r *Repo) Enqueue(ctx context.Context, kind string, userID uint64, payload TweetPayload, opts Options) (uint64, error) {
	if err := opts.validate(kind); err != nil {
		return 0, err
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	now := time.Now()
	j := Job{
		UserID:      userID,
		Kind:        kind,
		Payload:     payload.Marshal(),
		Status:      StatusPending,
		MaxAttempts: maxAttempts,
	}
	if opts.DedupKey != "" {
		k := opts.DedupKey
		j.DedupKey = &k
	}

	switch kind {
	case KindDelayed:
		j.RunAt = now.Add(opts.Delay)
	case KindRecurring:
		tz := opts.Timezone
		if tz == "" {
			tz = "UTC"
		}
		next, err := NextRun(opts.CronExpr, tz, now)
		if err != nil {
			return 0, err
		}
		expr, zone := opts.CronExpr, tz
		j.CronExpr = &expr
		j.Timezone = &zone
		j.RunAt = next
	}

	if err := r.DB.WithContext(ctx).Create(&j).Error; err != nil {
		return 0, fmt.Errorf("%w: enqueue: %v", apperr.ErrPersistence, err)
	}
	return j.ID, nil
}

// UpsertRecurring atomically replaces any non-terminal recurring job with the
// same dedup key. The caller never observes two active registrations for one
// key.
func (r *Repo) UpsertRecurring(ctx context.Context, dedupKey string, userID uint64, payload TweetPayload, cronExpr, tz string) (uint64, error) {
	next, err := NextRun(cronExpr, tz, time.Now())
	if err != nil {
		return 0, err
	}

	j := Job{
		UserID:      userID,
		Kind:        KindRecurring,
		Payload:     payload.Marshal(),
		DedupKey:    &dedupKey,
		CronExpr:    &cronExpr,
		Timezone:    &tz,
		RunAt:       next,
		Status:      StatusPending,
		MaxAttempts: 3,
	}

	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`
delete from jobs
where kind = 'recurring'
  and dedup_key = ?
  and status in ('PENDING','RUNNING')
`, dedupKey).Error; err != nil {
			return err
		}
		return tx.Create(&j).Error
	})
	if err != nil {
		return 0, fmt.Errorf("%w: upsert recurring: %v", apperr.ErrPersistence, err)
	}
	return j.ID, nil
}

// CancelRecurring ends the recurring registration for a dedup key. A PENDING
// row is cancelled in place; a claimed (RUNNING) occurrence finishes its
// current run but is not re-armed, since Rearm only touches RUNNING rows.
// CANCELLED is terminal, so a new registration can be created afterwards.
func (r *Repo) CancelRecurring(ctx context.Context, dedupKey string) error {
	err := r.DB.WithContext(ctx).Exec(`
update jobs
set status='CANCELLED', locked_by=null, locked_at=null, updated_at=now()
where kind = 'recurring'
  and dedup_key = ?
  and status in ('PENDING','RUNNING')
`, dedupKey).Error
	if err != nil {
		return fmt.Errorf("%w: cancel recurring: %v", apperr.ErrPersistence, err)
	}
	return nil
}

// visibilityTimeout is how long a RUNNING job may sit unacknowledged before
// it becomes claimable again.
const visibilityTimeout = "5 minutes"

// Claim takes one due job atomically using FOR UPDATE SKIP LOCKED so that no
// two workers run the same job. Equally-due jobs are claimed in insertion
// order. Claiming counts as an attempt.
func (r *Repo) Claim(ctx context.Context, workerID string) (*Job, error) {
	var job Job
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// requeue jobs whose worker died mid-execution
		tx.Exec(`
update jobs
set status='PENDING', locked_by=null, locked_at=null, updated_at=now()
where status='RUNNING' and locked_at is not null and locked_at < now() - interval '` + visibilityTimeout + `'
`)

		q := tx.Raw(`
with cte as (
  select id
  from jobs
  where status='PENDING' and run_at <= now()
  order by run_at asc, id asc
  for update skip locked
  limit 1
)
update jobs
set status='RUNNING', attempts=attempts+1, locked_by=?, locked_at=now(), updated_at=now()
where id in (select id from cte)
returning *;
`, workerID)

		return q.Scan(&job).Error
	})
	if err != nil {
		return nil, fmt.Errorf("%w: claim: %v", apperr.ErrPersistence, err)
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

func (r *Repo) MarkSent(ctx context.Context, id uint64) error {
	return r.exec(ctx, `update jobs set status='SENT', locked_by=null, locked_at=null, updated_at=now() where id=?`, id)
}

func (r *Repo) MarkFailed(ctx context.Context, id uint64, errMsg string) error {
	return r.exec(ctx, `update jobs set status='FAILED', locked_by=null, locked_at=null, last_error=?, updated_at=now() where id=?`, errMsg, id)
}

// RetryLater releases a failed job back to PENDING with its next due time.
func (r *Repo) RetryLater(ctx context.Context, id uint64, attempts int, runAt time.Time, errMsg string) error {
	return r.exec(ctx, `
update jobs
set status='PENDING',
    attempts=?,
    run_at=?,
    locked_by=null,
    locked_at=null,
    last_error=?,
    updated_at=now()
where id=?`, attempts, runAt, errMsg, id)
}

// Rearm schedules a recurring job's next occurrence and resets its attempt
// counter. A no-op if the registration was replaced or cancelled mid-run.
func (r *Repo) Rearm(ctx context.Context, id uint64, nextRun time.Time) error {
	return r.exec(ctx, `
update jobs
set status='PENDING',
    attempts=0,
    run_at=?,
    locked_by=null,
    locked_at=null,
    last_error=null,
    updated_at=now()
where id=? and status='RUNNING'`, nextRun, id)
}

// ListByUser returns a user's jobs, soonest first.
func (r *Repo) ListByUser(ctx context.Context, userID uint64) ([]Job, error) {
	var out []Job
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("run_at asc").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list jobs: %v", apperr.ErrPersistence, err)
	}
	return out, nil
}

func (r *Repo) exec(ctx context.Context, sql string, args ...any) error {
	if err := r.DB.WithContext(ctx).Exec(sql, args...).Error; err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrPersistence, err)
	}
	return nil
}
