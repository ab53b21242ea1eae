// Package models holds the persisted entities of the stashkeeper server.
package models

import "time"

// StoredEntry is the sole persisted entity: an opaque payload saved under a
// deterministic key, scoped to a canonical owner key and a category tag.
// CreatedAt is reset on every upsert, which restarts the TTL window.
type StoredEntry struct {
	Key        string
	ExternalID string
	OwnerKey   string
	Category   string
	Payload    []byte
	CreatedAt  time.Time
}

// EntrySummary is the listing projection of a StoredEntry: metadata only,
// no payload bytes.
type EntrySummary struct {
	ExternalID string
	SizeBytes  int64
	CreatedAt  time.Time
}

// StoreStats aggregates the whole table.
type StoreStats struct {
	EntryCount int64
	OwnerCount int64
	TotalBytes int64
}
