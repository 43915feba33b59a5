package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"devpulse/internal/apperr"
)

type Store struct {
	DB *gorm.DB
}

func (s *Store) Get(ctx context.Context, id uint64) (*Credential, error) {
	var c Credential
	err := s.DB.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: credential %d", apperr.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get credential: %v", apperr.ErrPersistence, err)
	}
	return &c, nil
}

func (s *Store) GetByUser(ctx context.Context, userID uint64) (*Credential, error) {
	var c Credential
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: credential for user %d", apperr.ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get credential: %v", apperr.ErrPersistence, err)
	}
	return &c, nil
}

// Upsert writes the credential obtained from a fresh authorization-code
// exchange. An existing row for the user is replaced with the new token pair.
func (s *Store) Upsert(ctx context.Context, userID uint64, accountID, accountUsername string, tokens TokenPair) (*Credential, error) {
	var c Credential
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ?", userID).First(&c).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c = Credential{
				UserID:          userID,
				AccountID:       accountID,
				AccountUsername: accountUsername,
				AccessToken:     tokens.AccessToken,
				RefreshToken:    tokens.RefreshToken,
			}
			return tx.Create(&c).Error
		case err != nil:
			return err
		}

		if err := tx.Exec(`
update credentials
set account_id=?, account_username=?, access_token=?, refresh_token=?,
    token_version=token_version+1, updated_at=now()
where id=?`, accountID, accountUsername, tokens.AccessToken, tokens.RefreshToken, c.ID).Error; err != nil {
			return err
		}
		// mirror the update so the returned value is not stale
		c.applyExchange(accountID, accountUsername, tokens)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: upsert credential: %v", apperr.ErrPersistence, err)
	}
	return &c, nil
}

// CompareAndSwap installs a refreshed token pair only if the row still holds
// the version that was read before the refresh. Returns false when a
// concurrent refresh won.
func (s *Store) CompareAndSwap(ctx context.Context, id, version uint64, tokens TokenPair) (bool, error) {
	res := s.DB.WithContext(ctx).Exec(`
update credentials
set access_token=?, refresh_token=?, token_version=token_version+1,
    refreshed_at=?, updated_at=now()
where id=? and token_version=?`, tokens.AccessToken, tokens.RefreshToken, time.Now(), id, version)
	if res.Error != nil {
		return false, fmt.Errorf("%w: swap credential: %v", apperr.ErrPersistence, res.Error)
	}
	return res.RowsAffected == 1, nil
}
