package ratelimit

import (
	"context"
	"time"
)

// Action identifies the sensitive auth operation being throttled.
type Action string

const (
	ActionLogin              Action = "login"
	ActionPasswordReset      Action = "password_reset"
	ActionVerificationResend Action = "verification_resend"
)

// Actions lists every recognized action in a stable order.
var Actions = []Action{ActionLogin, ActionPasswordReset, ActionVerificationResend}

// Valid reports whether the action is one of the recognized actions.
func (a Action) Valid() bool {
	switch a {
	case ActionLogin, ActionPasswordReset, ActionVerificationResend:
		return true
	default:
		return false
	}
}

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed           bool `json:"allowed"`
	RetryAfterSeconds int  `json:"retryAfterSeconds"`
}

// Store provides per-key rate limit checks.
type Store interface {
	Check(ctx context.Context, action Action, subjectHash string, cfg ActionConfig, now time.Time) (Result, error)
}

// Mode selects the backing store.
type Mode string

const (
	ModeMemory Mode = "memory"
	ModeShared Mode = "shared"
)

// Backend selects the shared store implementation.
type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendRedis    Backend = "redis"
)

// CheckInput is the request accepted by Manager.Check.
type CheckInput struct {
	Action    Action
	Subject   string
	IPAddress *string
}

func allowed() Result {
	return Result{Allowed: true}
}

func denied(retryAfterSeconds int) Result {
	if retryAfterSeconds < 0 {
		retryAfterSeconds = 0
	}
	return Result{Allowed: false, RetryAfterSeconds: retryAfterSeconds}
}

// secondsUntil rounds the remaining duration up to whole seconds.
func secondsUntil(target, now time.Time) int {
	remaining := target.Sub(now)
	if remaining <= 0 {
		return 0
	}
	secs := remaining / time.Second
	if remaining%time.Second != 0 {
		secs++
	}
	return int(secs)
}
