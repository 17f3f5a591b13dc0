package cache

import (
	"fmt"
	"strings"
)

const keyPrefix = "eldraxis:"

// RateLimitKey namespaces a rate limiter bucket.
func RateLimitKey(bucket string) string {
	return fmt.Sprintf("ratelimit:%s", bucket)
}

// ProfileKey namespaces a memoised identity lookup. Identifiers are matched
// case-insensitively, the same way the identity service matches handles.
func ProfileKey(identifier string) string {
	return fmt.Sprintf("profile:%s", strings.ToLower(strings.TrimSpace(identifier)))
}
