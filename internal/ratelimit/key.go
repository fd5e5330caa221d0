package ratelimit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// unknownIP stands in for a missing address so that "absent" and "" never
// collide with a real value.
const unknownIP = "unknown-ip"

// HashSubject derives the opaque store key for an action, subject and origin address.
func HashSubject(action Action, subject string, ipAddress *string, salt string) string {
	base := string(action) + ":" + normalizeSubject(subject) + ":" + normalizeIPAddress(ipAddress)
	mac := hmac.New(sha256.New, []byte(salt))
	_, _ = mac.Write([]byte(base))
	return hex.EncodeToString(mac.Sum(nil))
}

func normalizeSubject(subject string) string {
	return strings.ToLower(strings.TrimSpace(subject))
}

func normalizeIPAddress(ipAddress *string) string {
	if ipAddress == nil {
		return unknownIP
	}
	normalized := strings.TrimSpace(*ipAddress)
	if normalized == "" {
		return unknownIP
	}
	return normalized
}

// memoryKey scopes a subject hash to its action inside the memory store.
func memoryKey(action Action, subjectHash string) string {
	return string(action) + ":" + subjectHash
}
