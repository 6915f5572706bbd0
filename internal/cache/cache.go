package cache

import "time"

// Cache defines the key-value surface consumed by the session manager, the
// query-page cache and the response cache. Callers must not depend on
// internal eviction timing; a miss and an evicted entry are indistinguishable.
type Cache[V any] interface {
	// Get returns the value and whether it was present and not expired.
	// A hit counts as a use and refreshes recency.
	Get(key string) (V, bool)

	// Set stores the value. If ttl <= 0, the engine's default TTL applies.
	Set(key string, value V, ttl time.Duration)

	// SetUntil stores the value and marks it eligible for durable overflow
	// until the given absolute instant.
	SetUntil(key string, value V, ttl time.Duration, keepUntil time.Time)

	// Remove deletes a key if present, including any durable record.
	Remove(key string)

	// GetMeta returns entry metadata without refreshing recency.
	GetMeta(key string) (Meta, bool)

	// Clear removes all in-memory entries. Durable records are kept.
	Clear()

	// Size returns the tracked total of entry sizes in bytes.
	Size() int64

	// Len returns the number of entries currently held in memory.
	Len() int
}

// Meta describes a live entry without touching it.
type Meta struct {
	InsertedAt time.Time
	ExpiresAt  time.Time
	SizeBytes  int64
}

// StatsProvider is implemented by engines that expose operation counters.
type StatsProvider interface {
	Stats() Stats
}

// Stats holds the current footprint plus monotonic operation counters.
type Stats struct {
	Entries           int    `json:"entries"`
	SizeBytes         int64  `json:"sizeBytes"`
	RejectedOversize  uint64 `json:"rejectedOversize"`
	ExpiredSwept      uint64 `json:"expiredSwept"`
	EvictedOverBudget uint64 `json:"evictedOverBudget"`
	Spilled           uint64 `json:"spilled"`
	Promoted          uint64 `json:"promoted"`
}
