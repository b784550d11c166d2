package match

import (
	"strings"
)

// IdentityProfile captures the normalization output for a customer identity string.
type IdentityProfile struct {
	Lower   string
	Local   string
	Dots    int
	HasPlus bool
}

// NormalizeIdentity lowercases an email-like identity and extracts its local part.
// Identities without an "@" are treated as all local part.
func NormalizeIdentity(input string) IdentityProfile {
	trimmed := strings.TrimSpace(input)
	lower := strings.ToLower(trimmed)

	local := lower
	if idx := strings.LastIndex(lower, "@"); idx >= 0 {
		local = lower[:idx]
	}

	return IdentityProfile{
		Lower:   lower,
		Local:   local,
		Dots:    strings.Count(lower, "."),
		HasPlus: strings.Contains(local, "+"),
	}
}

// ContainsAny reports whether the identity contains any of the markers.
func (p IdentityProfile) ContainsAny(markers []string) bool {
	for _, marker := range markers {
		if marker != "" && strings.Contains(p.Lower, marker) {
			return true
		}
	}
	return false
}

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" becomes "jo***@example.com"; short local parts are fully masked.
func RedactEmail(email string) string {
	parts := strings.Split(strings.TrimSpace(email), "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}
