package ratelimit

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// SharedRequest carries the parameters of one atomic check-and-increment.
type SharedRequest struct {
	Action        Action
	SubjectHash   string
	WindowSeconds int
	MaxAttempts   int
	BlockSeconds  int
	Now           time.Time
}

// SharedRow is the raw reply of the remote procedure. Nil fields mean the
// column was missing or NULL.
type SharedRow struct {
	Allowed           *bool
	RetryAfterSeconds *int64
}

// SharedCaller performs the atomic check-and-increment against a shared store.
// A nil row means the procedure returned nothing.
type SharedCaller interface {
	CheckAndIncrement(ctx context.Context, req SharedRequest) (*SharedRow, error)
	Close() error
}

// SharedLimiter adapts a SharedCaller to the Store contract.
type SharedLimiter struct {
	caller SharedCaller
}

// NewSharedLimiter constructs a SharedLimiter.
func NewSharedLimiter(caller SharedCaller) *SharedLimiter {
	return &SharedLimiter{caller: caller}
}

// Check issues one remote call and trusts its decision.
func (l *SharedLimiter) Check(ctx context.Context, action Action, subjectHash string, cfg ActionConfig, now time.Time) (Result, error) {
	if l == nil || l.caller == nil {
		return Result{}, ErrMissingSharedCredential
	}
	row, errCall := l.caller.CheckAndIncrement(ctx, SharedRequest{
		Action:        action,
		SubjectHash:   subjectHash,
		WindowSeconds: cfg.WindowSeconds,
		MaxAttempts:   cfg.MaxAttempts,
		BlockSeconds:  cfg.BlockSeconds,
		Now:           now,
	})
	if errCall != nil {
		return Result{}, fmt.Errorf("rate limit shared store: %w", errCall)
	}
	return parseSharedRow(action, subjectHash, row), nil
}

// parseSharedRow treats an empty reply like a first attempt.
func parseSharedRow(action Action, subjectHash string, row *SharedRow) Result {
	if row == nil || row.Allowed == nil {
		log.WithFields(log.Fields{
			"action":       action,
			"subject_hash": subjectHash,
		}).Warn("rate limit: shared store returned no decision, allowing")
		return allowed()
	}
	retry := 0
	if row.RetryAfterSeconds != nil && *row.RetryAfterSeconds > 0 {
		retry = int(*row.RetryAfterSeconds)
	}
	return Result{Allowed: *row.Allowed, RetryAfterSeconds: retry}
}
