package entries

import (
	"context"
	"time"

	"github.com/akulikov/stashkeeper/internal/server/models"
)

// Repository is the storage-engine contract for stored entries.
//
// Read methods take a cutoff: the minimum CreatedAt a row must have to be
// visible. Rows older than the cutoff are logically expired and must be
// treated as absent even while a physical row still exists pending sweep.
type Repository interface {
	// Upsert inserts a new row or atomically replaces the row sharing the
	// same key, resetting its CreatedAt to the entry's value.
	Upsert(ctx context.Context, entry *models.StoredEntry) error

	// GetByExternalID returns the most recent live row addressed by the
	// external id, or common.ErrNotFound.
	GetByExternalID(ctx context.Context, externalID string, cutoff time.Time) (*models.StoredEntry, error)

	// ListByOwnerAndCategory returns live entry summaries ordered by
	// CreatedAt descending. An offset past the end yields an empty slice.
	ListByOwnerAndCategory(ctx context.Context, ownerKey, category string, limit, offset int, cutoff time.Time) ([]*models.EntrySummary, error)

	// CountByOwnerAndCategory returns the number of live rows for the pair.
	CountByOwnerAndCategory(ctx context.Context, ownerKey, category string, cutoff time.Time) (int64, error)

	// AggregateStats aggregates the whole table, expired rows included.
	AggregateStats(ctx context.Context) (*models.StoreStats, error)

	// DeleteOlderThan physically removes rows with CreatedAt before the
	// cutoff and reports how many were deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
