package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/router-for-me/CandidatePortal/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LogSink writes events to the process log.
type LogSink struct {
	logger *log.Logger
}

// NewLogSink constructs a LogSink using logger, or the standard logger when nil.
func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &LogSink{logger: logger}
}

// Write logs the event at info level.
func (s *LogSink) Write(_ context.Context, event Event) error {
	fields := log.Fields{
		"event":      event.Name,
		"session_id": event.SessionID,
		"source":     event.Source,
		"phase":      event.Phase,
	}
	if event.UserID != nil {
		fields["user_id"] = *event.UserID
	}
	for key, value := range event.Properties {
		if _, taken := fields[key]; !taken {
			fields[key] = value
		}
	}
	s.logger.WithFields(fields).Info("analytics")
	return nil
}

// GormSink persists events to the analytics_events table.
type GormSink struct {
	db *gorm.DB
}

// NewGormSink constructs a GormSink backed by GORM.
func NewGormSink(db *gorm.DB) *GormSink { return &GormSink{db: db} }

// Write inserts the event. It uses its own timeout so a cancelled request
// does not drop the event.
func (s *GormSink) Write(_ context.Context, event Event) error {
	if s == nil || s.db == nil {
		return errors.New("analytics: nil database")
	}
	props, errMarshal := json.Marshal(event.Properties)
	if errMarshal != nil {
		return errMarshal
	}

	dbCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	row := models.AnalyticsEvent{
		ID:         uuid.NewString(),
		EventName:  event.Name,
		UserID:     event.UserID,
		SessionID:  event.SessionID,
		Source:     string(event.Source),
		Phase:      event.Phase,
		Properties: datatypes.JSON(props),
		OccurredAt: event.Timestamp,
	}
	return s.db.WithContext(dbCtx).Create(&row).Error
}

// MemorySink keeps events in memory for test-mode inspection.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink constructs an empty MemorySink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

// Write appends the event.
func (s *MemorySink) Write(_ context.Context, event Event) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

// Events returns a copy of the recorded events.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Reset discards recorded events.
func (s *MemorySink) Reset() {
	s.mu.Lock()
	s.events = nil
	s.mu.Unlock()
}
