package credential

import "time"

// Credential is the delegated-access token pair for one connected X account.
// TokenVersion guards concurrent refreshes: a refresh result is only written
// if the version it read is still current, so a stale refresh never
// overwrites a newer token.
type Credential struct {
	ID     uint64 `gorm:"primaryKey"`
	UserID uint64 `gorm:"uniqueIndex;not null"`

	AccountID       string `gorm:"index;not null"` // X user id
	AccountUsername string `gorm:"type:text;not null"`

	AccessToken  string `gorm:"type:text;not null"`
	RefreshToken string `gorm:"type:text;not null"`
	TokenVersion uint64 `gorm:"not null;default:0"`

	RefreshedAt *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

// applyExchange overwrites the stored pair with a fresh authorization-code
// exchange result, bumping the version the same way the update statement does.
func (c *Credential) applyExchange(accountID, accountUsername string, tokens TokenPair) {
	c.AccountID = accountID
	c.AccountUsername = accountUsername
	c.AccessToken = tokens.AccessToken
	c.RefreshToken = tokens.RefreshToken
	c.TokenVersion++
}

// TokenPair is the identity provider's token response shape.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
