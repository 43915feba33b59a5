package auth

import "time"

// User is a service account. Provider usernames are filled in by the connect
// flow; the engine reads them to decide which metrics sources to fetch.
type User struct {
	ID           uint64 `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`

	TwitterUsername  *string `gorm:"index"`
	GithubUsername   *string `gorm:"type:text"`
	LeetCodeUsername *string `gorm:"type:text"`

	// A single free-form test tweet is allowed per user.
	TestTweetUsed bool `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}
