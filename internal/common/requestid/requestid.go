package requestid

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// MaxRequestIDLength is the maximum total length (same as UUID: 36 chars)
	MaxRequestIDLength = 36
	// PrefixLength is the length of the random prefix
	PrefixLength = 5
	// MaxCustomIDLength is the max length for the sanitized custom portion
	// 36 total - 5 prefix - 1 hyphen = 30
	MaxCustomIDLength = MaxRequestIDLength - PrefixLength - 1
)

var (
	// sanitizeRegex removes all characters except a-z, A-Z, 0-9, and hyphens
	sanitizeRegex = regexp.MustCompile(`[^a-zA-Z0-9-]+`)
	// hyphenRunRegex matches one or more consecutive hyphens
	hyphenRunRegex = regexp.MustCompile(`-+`)
)

// GenerateRequestID creates a unique request ID from an optional caller-supplied ID.
// A non-empty ID is sanitized (keeping only [a-zA-Z0-9-]) and prefixed with
// 5 random hex characters so repeated client IDs stay distinguishable.
// Format: {5-random-chars}-{sanitized-id}
// If the ID is empty or empties out during sanitization, a UUID is returned instead.
// The total length is capped at 36 characters (UUID length).
func GenerateRequestID(customID string) string {
	sanitized := strings.ReplaceAll(customID, " ", "-")
	sanitized = sanitizeRegex.ReplaceAllString(sanitized, "")
	sanitized = hyphenRunRegex.ReplaceAllString(sanitized, "-")
	sanitized = strings.Trim(sanitized, "-")

	if sanitized == "" {
		return uuid.New().String()
	}

	if len(sanitized) > MaxCustomIDLength {
		sanitized = sanitized[:MaxCustomIDLength]
	}

	return randomPrefix() + "-" + sanitized
}

// randomPrefix creates a 5-character random hex string using crypto/rand
func randomPrefix() string {
	bytes := make([]byte, 3)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to UUID-based prefix if crypto/rand fails
		return uuid.New().String()[:PrefixLength]
	}

	// 3 bytes -> 6 hex chars, take the first 5
	return hex.EncodeToString(bytes)[:PrefixLength]
}
