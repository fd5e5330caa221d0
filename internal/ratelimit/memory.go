package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	attemptCount    int
	windowStartedAt time.Time
	blockedUntil    time.Time
}

// MemoryLimiter implements the sliding-window cooldown limiter in process memory.
type MemoryLimiter struct {
	mu      sync.Mutex
	records map[string]*memoryEntry
}

// NewMemoryLimiter constructs a MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		records: make(map[string]*memoryEntry),
	}
}

// Check records an attempt for the key and reports whether it is allowed.
func (l *MemoryLimiter) Check(_ context.Context, action Action, subjectHash string, cfg ActionConfig, now time.Time) (Result, error) {
	key := memoryKey(action, subjectHash)

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.records[key]
	if entry == nil {
		l.records[key] = freshEntry(now)
		return allowed(), nil
	}

	if !entry.blockedUntil.IsZero() {
		if entry.blockedUntil.After(now) {
			return denied(secondsUntil(entry.blockedUntil, now)), nil
		}
		l.records[key] = freshEntry(now)
		return allowed(), nil
	}

	windowExpiresAt := entry.windowStartedAt.Add(time.Duration(cfg.WindowSeconds) * time.Second)
	if !now.Before(windowExpiresAt) {
		l.records[key] = freshEntry(now)
		return allowed(), nil
	}

	entry.attemptCount++
	if entry.attemptCount > cfg.MaxAttempts {
		entry.blockedUntil = now.Add(time.Duration(cfg.BlockSeconds) * time.Second)
		return denied(cfg.BlockSeconds), nil
	}
	return allowed(), nil
}

// Reset drops every record.
func (l *MemoryLimiter) Reset() {
	l.mu.Lock()
	l.records = make(map[string]*memoryEntry)
	l.mu.Unlock()
}

func (l *MemoryLimiter) trackedKeys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

func freshEntry(now time.Time) *memoryEntry {
	return &memoryEntry{attemptCount: 1, windowStartedAt: now}
}
