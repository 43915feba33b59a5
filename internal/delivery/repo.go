package delivery

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

func (r *Repo) Create(ctx context.Context, userID, credentialID uint64, content, status string, attr Attribution) error {
	titles := attr.IncludedTitles
	if titles == nil {
		titles = []string{}
	}
	t := Tweet{
		UserID:               userID,
		CredentialID:         credentialID,
		Content:              content,
		ScheduleTime:         time.Now(),
		Status:               status,
		GithubContribution:   attr.GithubContribution,
		LeetCodeContribution: attr.LeetCodeContribution,
		IncludedTitles:       titles,
	}
	if err := r.DB.WithContext(ctx).Create(&t).Error; err != nil {
		return fmt.Errorf("%w: create tweet record: %v", apperr.ErrPersistence, err)
	}
	return nil
}

// CreateFailed persists the terminal FAILED record for an exhausted job. No
// content was delivered, so the content column stays empty and the cause is
// recorded separately.
func (r *Repo) CreateFailed(ctx context.Context, userID, credentialID uint64, reason string) error {
	t := Tweet{
		UserID:               userID,
		CredentialID:         credentialID,
		ScheduleTime:         time.Now(),
		Status:               StatusFailed,
		FailureReason:        reason,
		GithubContribution:   ContributionNotAttempted,
		LeetCodeContribution: ContributionNotAttempted,
		IncludedTitles:       []string{},
	}
	if err := r.DB.WithContext(ctx).Create(&t).Error; err != nil {
		return fmt.Errorf("%w: create failed record: %v", apperr.ErrPersistence, err)
	}
	return nil
}

// ListByUser returns a user's tweet records ordered by schedule time.
func (r *Repo) ListByUser(ctx context.Context, userID uint64) ([]Tweet, error) {
	var out []Tweet
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("schedule_time asc").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list tweets: %v", apperr.ErrPersistence, err)
	}
	return out, nil
}
