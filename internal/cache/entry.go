// Package cache stores remote catalog responses on disk with a TTL so that
// repeated hierarchy and schema lookups do not hit the network.
package cache

import (
	"encoding/json"
	"time"
)

// Entry is one cached response body.
type Entry struct {
	Key       string          `json:"key"`
	Route     string          `json:"route"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// NewEntry creates an entry expiring ttl from now.
func NewEntry(key, route string, data json.RawMessage, ttl time.Duration) *Entry {
	now := time.Now().UTC()
	return &Entry{
		Key:       key,
		Route:     route,
		Data:      data,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsExpired reports whether the entry is past its expiry.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// Age returns the time since the entry was created.
func (e *Entry) Age() time.Duration {
	return time.Since(e.CreatedAt)
}
