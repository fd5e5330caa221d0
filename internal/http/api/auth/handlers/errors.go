package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/router-for-me/CandidatePortal/internal/gotrue"
)

// Error codes returned in the error envelope.
const (
	CodeRateLimited           = "RATE_LIMITED"
	CodeInvalidCredentials    = "INVALID_CREDENTIALS"
	CodeUnverifiedEmail       = "UNVERIFIED_EMAIL"
	CodeEmailAlreadyInUse     = "EMAIL_ALREADY_IN_USE"
	CodeCallsignAlreadyInUse  = "CALLSIGN_ALREADY_IN_USE"
	CodeWeakPassword          = "WEAK_PASSWORD"
	CodeServiceUnavailable    = "SERVICE_UNAVAILABLE"
	CodeTokenInvalidOrExpired = "TOKEN_INVALID_OR_EXPIRED"
	CodeValidation            = "VALIDATION_ERROR"
	CodeUnknown               = "UNKNOWN"
)

// User-facing messages for each code.
const (
	messageRateLimited        = "Too many attempts. Please wait and try again."
	messageInvalidCredentials = "Invalid email or password."
	messageUnverifiedEmail    = "Please verify your email before accessing the Archive."
	messageEmailInUse         = "An account may already exist for this email."
	messageCallsignInUse      = "That callsign is already in use."
	messageWeakPassword       = "Password does not meet minimum security requirements."
	messageServiceUnavailable = "Service temporarily unavailable."
	messageTokenInvalid       = "Reset link expired or invalid."
	messageValidation         = "Invalid request payload."
	messageUnknown            = "Authentication request failed. Please try again."
)

// MappedError is a provider or transport failure translated for clients.
type MappedError struct {
	Code    string
	Message string
	Status  int
}

// uniqueViolation is the SQLSTATE the provider forwards when a profile trigger
// hits a unique index.
const uniqueViolation = "23505"

// MapAuthError classifies err by provider status, code and message. The
// message match covers the provider message, details and hint.
func MapAuthError(err error) MappedError {
	var (
		status  int
		code    string
		message string
	)
	var apiErr *gotrue.Error
	if errors.As(err, &apiErr) {
		status = apiErr.Status
		code = strings.ToLower(apiErr.Code)
		parts := make([]string, 0, 3)
		for _, part := range []string{apiErr.Message, apiErr.Details, apiErr.Hint} {
			if part != "" {
				parts = append(parts, part)
			}
		}
		message = strings.ToLower(strings.Join(parts, " "))
	} else if err != nil {
		message = strings.ToLower(err.Error())
	}

	switch {
	case strings.Contains(message, "rate limit"),
		strings.Contains(message, "too many requests"),
		status == http.StatusTooManyRequests:
		return MappedError{Code: CodeRateLimited, Message: messageRateLimited, Status: http.StatusTooManyRequests}
	case strings.Contains(message, "invalid login credentials"),
		strings.Contains(code, "invalid_credentials"):
		return MappedError{Code: CodeInvalidCredentials, Message: messageInvalidCredentials, Status: http.StatusUnauthorized}
	case strings.Contains(message, "email not confirmed"),
		strings.Contains(code, "email_not_confirmed"):
		return MappedError{Code: CodeUnverifiedEmail, Message: messageUnverifiedEmail, Status: http.StatusForbidden}
	case strings.Contains(message, "already registered"),
		strings.Contains(message, "already been registered"),
		strings.Contains(code, "user_already_exists"):
		return MappedError{Code: CodeEmailAlreadyInUse, Message: messageEmailInUse, Status: http.StatusConflict}
	case code == uniqueViolation &&
		(strings.Contains(message, "callsign") || strings.Contains(message, "profiles_callsign")):
		return MappedError{Code: CodeCallsignAlreadyInUse, Message: messageCallsignInUse, Status: http.StatusConflict}
	case strings.Contains(message, "password should be at least"),
		strings.Contains(code, "weak_password"):
		return MappedError{Code: CodeWeakPassword, Message: messageWeakPassword, Status: http.StatusBadRequest}
	case strings.Contains(message, "token") &&
		(strings.Contains(message, "expired") || strings.Contains(message, "invalid")),
		strings.Contains(message, "otp expired"),
		strings.Contains(code, "otp_expired"),
		strings.Contains(code, "token_expired"),
		strings.Contains(code, "invalid_token"),
		strings.Contains(code, "bad_jwt"):
		return MappedError{Code: CodeTokenInvalidOrExpired, Message: messageTokenInvalid, Status: http.StatusBadRequest}
	case status >= http.StatusInternalServerError,
		errors.Is(err, context.DeadlineExceeded),
		strings.Contains(message, "service unavailable"),
		strings.Contains(message, "temporarily unavailable"),
		strings.Contains(message, "timeout"),
		strings.Contains(message, "timed out"),
		strings.Contains(message, "fetch failed"),
		strings.Contains(message, "network"):
		return MappedError{Code: CodeServiceUnavailable, Message: messageServiceUnavailable, Status: http.StatusServiceUnavailable}
	default:
		return MappedError{Code: CodeUnknown, Message: messageUnknown, Status: http.StatusBadRequest}
	}
}
