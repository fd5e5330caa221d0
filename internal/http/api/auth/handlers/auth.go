package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/CandidatePortal/internal/analytics"
	"github.com/router-for-me/CandidatePortal/internal/gotrue"
	"github.com/router-for-me/CandidatePortal/internal/ratelimit"
	log "github.com/sirupsen/logrus"
)

// Limiter decides whether an auth attempt may proceed.
type Limiter interface {
	Check(ctx context.Context, in ratelimit.CheckInput) (ratelimit.Result, error)
}

// Provider is the hosted auth backend.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*gotrue.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	SignUp(ctx context.Context, email, password, callsign, redirectTo string) (*gotrue.User, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	ResendSignup(ctx context.Context, email, redirectTo string) error
}

// Tracker records analytics events.
type Tracker interface {
	Track(ctx context.Context, name string, props analytics.Properties)
}

// AuthHandler serves the candidate auth endpoints.
type AuthHandler struct {
	limiter  Limiter
	provider Provider
	tracker  Tracker
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(limiter Limiter, provider Provider, tracker Tracker) *AuthHandler {
	return &AuthHandler{limiter: limiter, provider: provider, tracker: tracker}
}

// loginRequest defines the request body for password login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Next     string `json:"next"`
}

// Login signs a candidate in with email and password.
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	var body loginRequest
	_ = c.ShouldBindJSON(&body)
	email, emailOK := normalizeEmail(body.Email)
	fields := FieldErrors{}
	if !emailOK {
		fields["email"] = []string{messageInvalidEmail}
	}
	if body.Password == "" {
		fields["password"] = []string{messagePasswordRequired}
	}
	if len(fields) > 0 {
		h.track(ctx, analytics.EventLoginFailed, analytics.Properties{"error_code": CodeValidation})
		respondValidation(c, fields)
		return
	}
	domain := emailDomain(email)

	result, errLimit := h.limiter.Check(ctx, ratelimit.CheckInput{
		Action:    ratelimit.ActionLogin,
		Subject:   email,
		IPAddress: clientIP(c),
	})
	if errLimit != nil {
		// Fail closed: no credential check without a limiter decision.
		log.WithError(errLimit).Warn("auth login: rate limit check failed")
		h.track(ctx, analytics.EventLoginFailed, analytics.Properties{"error_code": CodeServiceUnavailable})
		respondError(c, http.StatusServiceUnavailable, CodeServiceUnavailable, messageServiceUnavailable)
		return
	}
	if !result.Allowed {
		h.track(ctx, analytics.EventRateLimited, analytics.Properties{
			"action":              string(ratelimit.ActionLogin),
			"retry_after_seconds": result.RetryAfterSeconds,
		})
		h.track(ctx, analytics.EventLoginFailed, analytics.Properties{"error_code": CodeRateLimited})
		respondRateLimited(c, result.RetryAfterSeconds)
		return
	}

	session, errSignIn := h.provider.SignInWithPassword(ctx, email, body.Password)
	if errSignIn != nil {
		mapped := MapAuthError(errSignIn)
		h.track(ctx, analytics.EventLoginFailed, analytics.Properties{"error_code": mapped.Code})
		if mapped.Code == CodeUnverifiedEmail {
			h.track(ctx, analytics.EventLoginBlockedUnverified, analytics.Properties{"email_domain": domain})
		}
		respondMapped(c, mapped)
		return
	}

	if session != nil && session.User != nil && session.User.EmailConfirmedAt == nil {
		if errSignOut := h.provider.SignOut(ctx, session.AccessToken); errSignOut != nil {
			log.WithError(errSignOut).Warn("auth login: sign out of unverified session failed")
		}
		h.track(ctx, analytics.EventLoginFailed, analytics.Properties{"error_code": CodeUnverifiedEmail})
		h.track(ctx, analytics.EventLoginBlockedUnverified, analytics.Properties{"email_domain": domain})
		respondError(c, http.StatusForbidden, CodeUnverifiedEmail, messageUnverifiedEmail)
		return
	}

	next := SanitizeNextPath(body.Next, "")
	var userID any
	if session != nil && session.User != nil && session.User.ID != "" {
		userID = session.User.ID
	}
	h.track(ctx, analytics.EventLoginSucceeded, analytics.Properties{
		"user_id":         userID,
		"method":          "password",
		"redirect_target": next,
	})
	respondSuccess(c, gin.H{"next": next})
}

// applyRequest defines the request body for a candidate application.
type applyRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Callsign string `json:"callsign"`
}

// Apply registers a new candidate account. The provider sends the
// confirmation email; the candidate lands on the review page meanwhile.
func (h *AuthHandler) Apply(c *gin.Context) {
	ctx := c.Request.Context()

	var body applyRequest
	_ = c.ShouldBindJSON(&body)
	email, emailOK := normalizeEmail(body.Email)
	callsign, callsignOK := normalizeCallsign(body.Callsign)
	fields := FieldErrors{}
	if !emailOK {
		fields["email"] = []string{messageInvalidEmail}
	}
	if !validNewPassword(body.Password) {
		fields["password"] = []string{messagePasswordTooShort}
	}
	if !callsignOK {
		fields["callsign"] = []string{messageInvalidCallsign}
	}
	if len(fields) > 0 {
		h.track(ctx, analytics.EventApplyFailed, analytics.Properties{
			"error_code":          CodeValidation,
			"is_validation_error": true,
		})
		respondValidation(c, fields)
		return
	}
	domain := emailDomain(email)
	h.track(ctx, analytics.EventApplySubmitted, analytics.Properties{
		"callsign_length": len(callsign),
		"email_domain":    domain,
	})

	redirectTo := callbackURL(c, "/apply/accepted", "signup")
	user, errSignUp := h.provider.SignUp(ctx, email, body.Password, callsign, redirectTo)
	if errSignUp != nil {
		mapped := MapAuthError(errSignUp)
		log.WithError(errSignUp).WithField("error_code", mapped.Code).Info("auth apply: sign up rejected")
		h.track(ctx, analytics.EventApplyFailed, analytics.Properties{
			"error_code":          mapped.Code,
			"is_validation_error": false,
		})
		if mapped.Code == CodeEmailAlreadyInUse {
			h.track(ctx, analytics.EventApplyDuplicateEmailHintShown, analytics.Properties{"email_domain": domain})
		}
		respondMapped(c, mapped)
		return
	}

	var userID any
	if user != nil && user.ID != "" {
		userID = user.ID
	}
	h.track(ctx, analytics.EventApplySucceeded, analytics.Properties{"user_id": userID})
	h.track(ctx, analytics.EventProfileCreated, analytics.Properties{
		"user_id":  userID,
		"callsign": callsign,
	})
	respondSuccess(c, gin.H{"next": applyReviewPath})
}

// applyReviewPath is where applicants wait for email confirmation.
const applyReviewPath = "/apply/review"

// emailRequest defines the request body for email-only endpoints.
type emailRequest struct {
	Email string `json:"email"`
}

func bindEmail(c *gin.Context) (string, bool) {
	var body emailRequest
	_ = c.ShouldBindJSON(&body)
	email, ok := normalizeEmail(body.Email)
	if !ok {
		respondValidation(c, FieldErrors{"email": {messageInvalidEmail}})
		return "", false
	}
	return email, true
}

// ResetPassword requests recovery instructions. The response is neutral
// whether or not the account exists.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	ctx := c.Request.Context()
	email, ok := bindEmail(c)
	if !ok {
		return
	}

	result, errLimit := h.limiter.Check(ctx, ratelimit.CheckInput{
		Action:    ratelimit.ActionPasswordReset,
		Subject:   email,
		IPAddress: clientIP(c),
	})
	if errLimit != nil {
		// Fail closed: no reset mail without a limiter decision.
		log.WithError(errLimit).Warn("auth reset password: rate limit check failed")
		respondError(c, http.StatusServiceUnavailable, CodeServiceUnavailable, messageServiceUnavailable)
		return
	}
	if !result.Allowed {
		h.track(ctx, analytics.EventRateLimited, analytics.Properties{
			"action":              string(ratelimit.ActionPasswordReset),
			"retry_after_seconds": result.RetryAfterSeconds,
		})
		respondRateLimited(c, result.RetryAfterSeconds)
		return
	}

	h.track(ctx, analytics.EventPasswordResetRequested, analytics.Properties{"email_domain": emailDomain(email)})

	redirectTo := callbackURL(c, "/reset-password/update", "recovery")
	if errReset := h.provider.ResetPasswordForEmail(ctx, email, redirectTo); errReset != nil {
		log.WithError(errReset).Debug("auth reset password: provider request failed")
	}
	respondSuccess(c, gin.H{"message": "If an account exists for this email, you'll receive reset instructions."})
}

// ResendVerification re-sends the signup confirmation email.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	ctx := c.Request.Context()
	email, ok := bindEmail(c)
	if !ok {
		return
	}

	result, errLimit := h.limiter.Check(ctx, ratelimit.CheckInput{
		Action:    ratelimit.ActionVerificationResend,
		Subject:   email,
		IPAddress: clientIP(c),
	})
	switch {
	case errLimit != nil:
		// Fail open: a limiter outage does not block resends.
		log.WithError(errLimit).Warn("auth verification resend: rate limit check failed, continuing")
	case !result.Allowed:
		h.track(ctx, analytics.EventRateLimited, analytics.Properties{
			"action":              string(ratelimit.ActionVerificationResend),
			"retry_after_seconds": result.RetryAfterSeconds,
		})
		respondRateLimited(c, result.RetryAfterSeconds)
		return
	}

	h.track(ctx, analytics.EventVerificationResendRequested, analytics.Properties{"email_domain": emailDomain(email)})

	redirectTo := callbackURL(c, "/apply/accepted", "signup")
	if errResend := h.provider.ResendSignup(ctx, email, redirectTo); errResend != nil {
		log.WithError(errResend).Debug("auth verification resend: provider request failed")
	}
	respondSuccess(c, gin.H{"message": "If the account is eligible, a new verification email has been sent."})
}

func (h *AuthHandler) track(ctx context.Context, name string, props analytics.Properties) {
	if h.tracker != nil {
		h.tracker.Track(ctx, name, props)
	}
}
