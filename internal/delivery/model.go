package delivery

import (
	"time"

	"github.com/lib/pq"
)

const (
	StatusPending = "PENDING"
	StatusSent    = "SENT"
	StatusFailed  = "FAILED"
)

// ContributionNotAttempted is the sentinel recorded when a provider was not
// fetched for a delivery, as opposed to reporting zero activity.
const ContributionNotAttempted = -1

// Tweet is the persisted outcome of a delivery. Exactly one SENT row exists
// per successful job run regardless of how many attempts it took.
type Tweet struct {
	ID           uint64 `gorm:"primaryKey"`
	UserID       uint64 `gorm:"index;not null"`
	CredentialID uint64 `gorm:"index;not null"`

	Content      string    `gorm:"type:text;not null"`
	ScheduleTime time.Time `gorm:"index;not null"`
	Status       string    `gorm:"not null;default:'PENDING'"`

	// FailureReason is set on FAILED records; content stays empty for those.
	FailureReason string `gorm:"type:text;not null;default:''"`

	GithubContribution   int `gorm:"not null;default:-1"`
	LeetCodeContribution int `gorm:"not null;default:-1"`

	// Titles of the submissions named in the tweet body.
	IncludedTitles pq.StringArray `gorm:"type:text[];not null;default:'{}'"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
}

// Attribution carries the per-provider counts recorded with a Tweet.
type Attribution struct {
	GithubContribution   int
	LeetCodeContribution int
	IncludedTitles       []string
}

// NotAttempted is the attribution for a run where no provider was fetched.
func NotAttempted() Attribution {
	return Attribution{
		GithubContribution:   ContributionNotAttempted,
		LeetCodeContribution: ContributionNotAttempted,
	}
}
