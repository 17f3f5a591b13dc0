package models

import (
	"time"
)

// CacheEntry is a short lived key/value row used when no redis is configured:
// rate limit counters and memoised identity lookups.
type CacheEntry struct {
	Key       string    `gorm:"primaryKey;size:256"`
	Value     []byte
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the entry has an expiry that lies before t.
func (e *CacheEntry) Expired(t time.Time) bool {
	return e != nil && !e.ExpiresAt.IsZero() && e.ExpiresAt.Before(t)
}
