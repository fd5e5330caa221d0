package models

import "time"

// AuthRateLimit is one shared limiter record, keyed by action and subject hash.
// Rows are only mutated through the check_auth_rate_limit procedure.
type AuthRateLimit struct {
	Action      string `gorm:"type:text;not null;primaryKey"` // Throttled action.
	SubjectHash string `gorm:"type:text;not null;primaryKey"` // HMAC of subject and origin address.

	AttemptCount    int        `gorm:"not null;default:0"` // Attempts in the current window.
	WindowStartedAt time.Time  `gorm:"not null"`           // Start of the counting window.
	BlockedUntil    *time.Time `gorm:"index"`              // Cooldown end, when blocked.

	UpdatedAt time.Time `gorm:"not null;autoUpdateTime;index"` // Last mutation.
}

// TableName overrides the default table name.
func (AuthRateLimit) TableName() string {
	return "auth_rate_limits"
}
