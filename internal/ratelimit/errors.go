package ratelimit

import "errors"

var (
	// ErrMissingSharedCredential is returned when shared mode is selected but
	// the credential for the shared store is not configured.
	ErrMissingSharedCredential = errors.New("rate limit: shared store credential missing")
	// ErrUnknownAction is returned for actions outside the recognized set.
	ErrUnknownAction = errors.New("rate limit: unknown action")
)
