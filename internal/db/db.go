package db

import (
	"fmt"

	"devpulse/internal/auth"
	"devpulse/internal/credential"
	"devpulse/internal/delivery"
	"devpulse/internal/jobs"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	// Tables
	if err := gdb.AutoMigrate(
		&auth.User{},
		&credential.Credential{},
		&jobs.Job{},
		&delivery.Tweet{},
	); err != nil {
		return err
	}

	// At most one active recurring job per dedup key. UpsertRecurring deletes
	// before inserting inside a transaction; this index backs it up.
	if err := gdb.Exec(`
create unique index if not exists uq_jobs_recurring_active
on jobs(dedup_key)
where kind = 'recurring' and status in ('PENDING','RUNNING');
`).Error; err != nil {
		return err
	}

	// Helpful indexes
	stmts := []string{
		`create index if not exists idx_jobs_due on jobs(status, run_at);`,
		`create index if not exists idx_jobs_lock on jobs(status, locked_at);`,
		`create index if not exists idx_tweets_user_schedule on tweets(user_id, schedule_time);`,
		`create index if not exists idx_credentials_account on credentials(account_id);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
