package models

import (
	"time"

	"gorm.io/datatypes"
)

// AnalyticsEvent stores a tracked product event.
type AnalyticsEvent struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // Event UUID.

	EventName string  `gorm:"type:varchar(128);not null;index"` // Event name.
	UserID    *string `gorm:"type:text;index"`                  // Authenticated user, if known.
	SessionID string  `gorm:"type:varchar(64);not null"`        // Analytics session.
	Source    string  `gorm:"type:varchar(32);not null"`        // Emitter (server or web_client).
	Phase     string  `gorm:"type:varchar(32);not null"`        // Rollout phase tag.

	Properties datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Event payload.
	OccurredAt time.Time      `gorm:"not null;index"`                   // Event timestamp.
	CreatedAt  time.Time      `gorm:"not null;autoCreateTime"`          // Insert timestamp.
}

// TableName overrides the default table name.
func (AnalyticsEvent) TableName() string {
	return "analytics_events"
}
