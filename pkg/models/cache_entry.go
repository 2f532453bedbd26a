package models

import (
	"time"

	"github.com/google/uuid"
)

// CacheEntry is the metadata record behind one vector in the semantic cache:
// the natural-language text that was embedded, the SQL it resolved to, and
// the expiry after which the entry must not be served.
type CacheEntry struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	SQL       string    `json:"sql"`
	Embedding []float32 `json:"embedding"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry is past its TTL at the given instant.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
