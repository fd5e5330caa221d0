package handlers

import (
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	internalsettings "github.com/router-for-me/CandidatePortal/internal/settings"
)

const (
	messageInvalidEmail     = "Enter a valid email address."
	messagePasswordRequired = "Password is required."
	messagePasswordTooShort = "Password must be at least 8 characters long."
	messageInvalidCallsign  = "Callsign must be 3-24 characters using letters, numbers, _ or -."
)

// minPasswordLength applies to new accounts only; login accepts any non-empty password.
const minPasswordLength = 8

var callsignPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,24}$`)

// normalizeCallsign trims and validates a callsign.
func normalizeCallsign(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if !callsignPattern.MatchString(trimmed) {
		return "", false
	}
	return trimmed, true
}

func validNewPassword(password string) bool {
	return utf8.RuneCountInString(password) >= minPasswordLength
}

// clientIP returns the first X-Forwarded-For entry, or nil when absent.
func clientIP(c *gin.Context) *string {
	forwarded := c.GetHeader("X-Forwarded-For")
	if forwarded == "" {
		return nil
	}
	first, _, _ := strings.Cut(forwarded, ",")
	first = strings.TrimSpace(first)
	if first == "" {
		return nil
	}
	return &first
}

// normalizeEmail trims, validates and lower-cases an email address.
func normalizeEmail(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.ContainsAny(trimmed, " \t\r\n") {
		return "", false
	}
	addr, errParse := mail.ParseAddress(trimmed)
	if errParse != nil || addr.Name != "" || addr.Address != trimmed {
		return "", false
	}
	local, domain, ok := strings.Cut(trimmed, "@")
	if !ok || local == "" || !strings.Contains(domain, ".") || strings.HasSuffix(domain, ".") {
		return "", false
	}
	return strings.ToLower(trimmed), true
}

// emailDomain returns the part after "@", or "unknown".
func emailDomain(email string) string {
	if _, domain, ok := strings.Cut(email, "@"); ok && domain != "" {
		return domain
	}
	return "unknown"
}

// requestOrigin rebuilds scheme://host for links sent by the auth provider.
func requestOrigin(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := strings.TrimSpace(strings.Split(c.GetHeader("X-Forwarded-Proto"), ",")[0]); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + c.Request.Host
}

// callbackURL builds the provider redirect that lands on next after confirmation.
func callbackURL(c *gin.Context, next, linkType string) string {
	query := url.Values{}
	query.Set("next", next)
	query.Set("type", linkType)
	return requestOrigin(c) + "/auth/callback?" + query.Encode()
}

// SanitizeNextPath returns next when it is a same-origin relative path and
// fallback otherwise. An empty fallback means the archive.
func SanitizeNextPath(next, fallback string) string {
	if fallback == "" {
		fallback = internalsettings.DefaultNextPath
	}
	trimmed := strings.TrimSpace(next)
	if trimmed == "" || !isSafeRelativePath(trimmed) {
		return fallback
	}
	return trimmed
}

func isSafeRelativePath(value string) bool {
	if !strings.HasPrefix(value, "/") || strings.HasPrefix(value, "//") {
		return false
	}
	// Browsers treat "\" as "/" and drop tabs and newlines, which turns "/\host" into "//host".
	if strings.ContainsRune(value, '\\') {
		return false
	}
	for _, r := range value {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	parsed, errParse := url.Parse(value)
	if errParse != nil {
		return false
	}
	return parsed.Scheme == "" && parsed.Host == "" && parsed.User == nil
}
