package mojang

import (
	"strings"

	"github.com/google/uuid"
)

// NormalizeID strips dashes and lowercases an account id. The result is not
// validated; use IsCanonicalID for that.
func NormalizeID(id string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(id), "-", ""))
}

// IsCanonicalID reports whether s is an account id in canonical form: exactly
// 32 hex digits after dashes are stripped.
func IsCanonicalID(s string) bool {
	n := NormalizeID(s)
	if len(n) != 32 {
		return false
	}
	for i := 0; i < len(n); i++ {
		c := n[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// DashedID renders a canonical id in the 8-4-4-4-12 form. Inputs that are not
// ids are returned unchanged.
func DashedID(id string) string {
	if !IsCanonicalID(id) {
		return id
	}
	parsed, err := uuid.Parse(NormalizeID(id))
	if err != nil {
		return id
	}
	return parsed.String()
}
