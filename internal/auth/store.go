package auth

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"devpulse/internal/apperr"
)

type Store struct {
	DB *gorm.DB
}

func (s *Store) Get(ctx context.Context, id uint64) (*User, error) {
	var u User
	err := s.DB.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %d", apperr.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get user: %v", apperr.ErrPersistence, err)
	}
	return &u, nil
}

// ClaimTestTweet flips the one-shot test-tweet flag. The conditional update
// makes the claim atomic: of any number of concurrent callers, exactly one
// sees true.
func (s *Store) ClaimTestTweet(ctx context.Context, id uint64) (bool, error) {
	res := s.DB.WithContext(ctx).Exec(`
update users
set test_tweet_used=true, updated_at=now()
where id=? and test_tweet_used=false`, id)
	if res.Error != nil {
		return false, fmt.Errorf("%w: claim test tweet: %v", apperr.ErrPersistence, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ReleaseTestTweet returns the flag after a claimed test tweet failed to send.
func (s *Store) ReleaseTestTweet(ctx context.Context, id uint64) error {
	err := s.DB.WithContext(ctx).Exec(`
update users
set test_tweet_used=false, updated_at=now()
where id=?`, id).Error
	if err != nil {
		return fmt.Errorf("%w: release test tweet: %v", apperr.ErrPersistence, err)
	}
	return nil
}
