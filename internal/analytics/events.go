package analytics

import (
	"time"

	internalsettings "github.com/router-for-me/CandidatePortal/internal/settings"
)

// Event names emitted by the auth routes.
const (
	EventApplySubmitted               = "auth_apply_submitted"
	EventApplyFailed                  = "auth_apply_failed"
	EventApplySucceeded               = "auth_apply_succeeded"
	EventApplyDuplicateEmailHintShown = "auth_apply_duplicate_email_hint_shown"
	EventProfileCreated               = "profile_created"
	EventLoginSucceeded               = "auth_login_succeeded"
	EventLoginFailed                  = "auth_login_failed"
	EventLoginBlockedUnverified       = "auth_login_blocked_unverified"
	EventRateLimited                  = "auth_rate_limited"
	EventPasswordResetRequested       = "auth_password_reset_requested"
	EventVerificationResendRequested  = "auth_verification_resend_requested"
)

// Source identifies who emitted an event.
type Source string

const (
	SourceServer    Source = "server"
	SourceWebClient Source = "web_client"
)

// Phase is stamped on every event.
const Phase = internalsettings.AnalyticsPhase

// Properties carries event-specific fields.
type Properties map[string]any

// Event is a fully built analytics event.
type Event struct {
	Name       string     `json:"event_name"`
	UserID     *string    `json:"user_id"`
	SessionID  string     `json:"session_id"`
	Timestamp  time.Time  `json:"timestamp"`
	Source     Source     `json:"source"`
	Phase      string     `json:"phase"`
	Properties Properties `json:"properties"`
}

// Context overrides the defaults used when building an event.
type Context struct {
	Source    Source
	SessionID string
	UserID    *string
}

// resolveUserID prefers an explicit user_id property over the context value.
// A present but nil or empty property means "no user".
func resolveUserID(props Properties, ctx *Context) *string {
	if raw, ok := props["user_id"]; ok {
		switch v := raw.(type) {
		case string:
			if v == "" {
				return nil
			}
			return &v
		case *string:
			return v
		default:
			return nil
		}
	}
	if ctx != nil {
		return ctx.UserID
	}
	return nil
}
