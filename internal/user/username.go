package user

import (
	"regexp"
	"strings"

	"github.com/predicta-labs/predicta_api/internal/validation"
)

const (
	maxUsernameAttempts = 20
	// base + "_" + four digits must stay within the 30 character limit.
	maxUsernameBase = 25
)

var usernameStrip = regexp.MustCompile(`[^a-z0-9_]`)

// ValidUsername reports whether s has the accepted username shape.
func ValidUsername(s string) bool {
	return validation.IsUsername(s)
}

// SanitizeBase lowercases base, drops unsupported characters and falls back
// to "user" when nothing usable remains.
func SanitizeBase(base string) string {
	clean := usernameStrip.ReplaceAllString(strings.ToLower(base), "")
	if len(clean) > maxUsernameBase {
		clean = clean[:maxUsernameBase]
	}
	if clean == "" {
		return "user"
	}
	return clean
}

// usernameBase picks the generation base for a new account.
func usernameBase(email string) string {
	if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
		return local
	}
	return "user"
}
