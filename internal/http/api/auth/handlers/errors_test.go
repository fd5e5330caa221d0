package handlers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/router-for-me/CandidatePortal/internal/gotrue"
)

func TestMapAuthError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{name: "provider 429", err: &gotrue.Error{Status: 429, Message: "slow down"}, code: CodeRateLimited, status: 429},
		{name: "rate limit message", err: errors.New("Email rate limit exceeded"), code: CodeRateLimited, status: 429},
		{name: "invalid credentials message", err: &gotrue.Error{Status: 400, Code: "invalid_grant", Message: "Invalid login credentials"}, code: CodeInvalidCredentials, status: 401},
		{name: "invalid credentials code", err: &gotrue.Error{Status: 400, Code: "invalid_credentials"}, code: CodeInvalidCredentials, status: 401},
		{name: "unconfirmed", err: &gotrue.Error{Status: 400, Code: "email_not_confirmed", Message: "Email not confirmed"}, code: CodeUnverifiedEmail, status: 403},
		{name: "already registered", err: &gotrue.Error{Status: 422, Message: "User already registered"}, code: CodeEmailAlreadyInUse, status: 409},
		{name: "user exists code", err: &gotrue.Error{Status: 422, Code: "user_already_exists"}, code: CodeEmailAlreadyInUse, status: 409},
		{name: "callsign in details", err: &gotrue.Error{Status: 500, Code: "23505", Message: "duplicate key value violates unique constraint", Details: "Key (callsign)=(night_owl) already exists."}, code: CodeCallsignAlreadyInUse, status: 409},
		{name: "callsign in hint", err: &gotrue.Error{Status: 500, Code: "23505", Message: "Database error saving new user", Hint: "profiles_callsign_key"}, code: CodeCallsignAlreadyInUse, status: 409},
		{name: "other unique violation", err: &gotrue.Error{Status: 500, Code: "23505", Message: "duplicate key value"}, code: CodeServiceUnavailable, status: 503},
		{name: "weak password message", err: &gotrue.Error{Status: 422, Message: "Password should be at least 6 characters."}, code: CodeWeakPassword, status: 400},
		{name: "weak password code", err: &gotrue.Error{Status: 422, Code: "weak_password", Message: "Password is known to be weak"}, code: CodeWeakPassword, status: 400},
		{name: "expired token", err: &gotrue.Error{Status: 403, Message: "Token has expired or is invalid"}, code: CodeTokenInvalidOrExpired, status: 400},
		{name: "otp code", err: &gotrue.Error{Status: 403, Code: "otp_expired"}, code: CodeTokenInvalidOrExpired, status: 400},
		{name: "server error", err: &gotrue.Error{Status: 502, Message: "bad gateway"}, code: CodeServiceUnavailable, status: 503},
		{name: "transport", err: &gotrue.Error{Message: "network request failed: dial tcp"}, code: CodeServiceUnavailable, status: 503},
		{name: "fetch failed", err: errors.New("TypeError: fetch failed"), code: CodeServiceUnavailable, status: 503},
		{name: "wrapped transport deadline", err: &gotrue.Error{Message: "request aborted", Err: context.DeadlineExceeded}, code: CodeServiceUnavailable, status: 503},
		{name: "deadline", err: fmt.Errorf("sign in: %w", context.DeadlineExceeded), code: CodeServiceUnavailable, status: 503},
		{name: "unknown", err: errors.New("something odd"), code: CodeUnknown, status: 400},
		{name: "nil", err: nil, code: CodeUnknown, status: 400},
	}
	for _, tc := range cases {
		got := MapAuthError(tc.err)
		if got.Code != tc.code || got.Status != tc.status || got.Message == "" {
			t.Fatalf("%s: expected %s/%d, got %+v", tc.name, tc.code, tc.status, got)
		}
	}
}

func TestSanitizeNextPath(t *testing.T) {
	cases := []struct {
		next string
		want string
	}{
		{next: "/candidate-file", want: "/candidate-file"},
		{next: "  /archive?tab=2#top ", want: "/archive?tab=2#top"},
		{next: "", want: "/archive"},
		{next: "archive", want: "/archive"},
		{next: "//evil.example", want: "/archive"},
		{next: "/\\evil.example", want: "/archive"},
		{next: "/\tevil", want: "/archive"},
		{next: "/a\x00b", want: "/archive"},
		{next: "https://evil.example/", want: "/archive"},
	}
	for _, tc := range cases {
		if got := SanitizeNextPath(tc.next, ""); got != tc.want {
			t.Fatalf("SanitizeNextPath(%q) = %q, want %q", tc.next, got, tc.want)
		}
	}
	if got := SanitizeNextPath("//x", "/login"); got != "/login" {
		t.Fatalf("expected custom fallback, got %q", got)
	}
}

func TestNormalizeEmail(t *testing.T) {
	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{raw: " A@Example.COM ", want: "a@example.com", ok: true},
		{raw: "a.b+tag@sub.example.org", want: "a.b+tag@sub.example.org", ok: true},
		{raw: "", ok: false},
		{raw: "no-at-sign", ok: false},
		{raw: "a@localhost", ok: false},
		{raw: "Name <a@example.com>", ok: false},
		{raw: "a b@example.com", ok: false},
	}
	for _, tc := range cases {
		got, ok := normalizeEmail(tc.raw)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("normalizeEmail(%q) = %q,%v want %q,%v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}
