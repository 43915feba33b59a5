package jobs

import (
	"encoding/json"
	"strconv"
	"time"
)

const (
	KindDelayed   = "delayed"
	KindRecurring = "recurring"
)

const (
	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusSent      = "SENT"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

// Job is a durable work item. Delayed jobs run once and end in SENT or
// FAILED. Recurring jobs re-arm at their next cron occurrence after each run;
// at most one non-terminal recurring job exists per dedup key.
type Job struct {
	ID     uint64 `gorm:"primaryKey"`
	UserID uint64 `gorm:"index;not null"`

	Kind    string `gorm:"type:text;not null"` // delayed | recurring
	Payload []byte `gorm:"type:jsonb;not null;default:'{}'::jsonb"`

	DedupKey *string `gorm:"index"`
	CronExpr *string `gorm:"type:text"`
	Timezone *string `gorm:"type:text"`

	RunAt  time.Time `gorm:"index;not null"`
	Status string    `gorm:"index;not null;default:'PENDING'"`

	Attempts    int `gorm:"not null;default:0"`
	MaxAttempts int `gorm:"not null;default:3"`

	LockedBy *string    `gorm:"type:text"`
	LockedAt *time.Time `gorm:"type:timestamptz"`

	LastError *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

// TweetPayload is the payload of every job the engine currently runs: which
// credential to post with.
type TweetPayload struct {
	CredentialID uint64 `json:"credential_id"`
}

func (p TweetPayload) Marshal() []byte {
	b, _ := json.Marshal(p)
	return b
}

func UnmarshalPayload(raw []byte) (TweetPayload, error) {
	var p TweetPayload
	err := json.Unmarshal(raw, &p)
	return p, err
}

// DedupKeyFor derives the recurring-job dedup key for a user.
func DedupKeyFor(userID uint64) string {
	return "daily-update:" + strconv.FormatUint(userID, 10)
}
