package entries

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/akulikov/stashkeeper/internal/common"
	"github.com/akulikov/stashkeeper/internal/server/models"
)

// InMemoryRepository is a map-backed Repository used by tests and local runs
// without a database. Semantics mirror the PostgreSQL implementation.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]*models.StoredEntry
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{entries: make(map[string]*models.StoredEntry)}
}

func (r *InMemoryRepository) Upsert(ctx context.Context, entry *models.StoredEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *entry
	clone.Payload = append([]byte(nil), entry.Payload...)
	r.entries[entry.Key] = &clone
	return nil
}

func (r *InMemoryRepository) GetByExternalID(ctx context.Context, externalID string, cutoff time.Time) (*models.StoredEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *models.StoredEntry
	for _, e := range r.entries {
		if e.ExternalID != externalID || e.CreatedAt.Before(cutoff) {
			continue
		}
		if found == nil || e.CreatedAt.After(found.CreatedAt) {
			found = e
		}
	}
	if found == nil {
		return nil, common.ErrNotFound
	}
	clone := *found
	clone.Payload = append([]byte(nil), found.Payload...)
	return &clone, nil
}

func (r *InMemoryRepository) live(ownerKey, category string, cutoff time.Time) []*models.StoredEntry {
	var result []*models.StoredEntry
	for _, e := range r.entries {
		if e.OwnerKey == ownerKey && e.Category == category && !e.CreatedAt.Before(cutoff) {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].Key < result[j].Key
	})
	return result
}

func (r *InMemoryRepository) ListByOwnerAndCategory(ctx context.Context, ownerKey, category string, limit, offset int, cutoff time.Time) ([]*models.EntrySummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	live := r.live(ownerKey, category, cutoff)

	result := []*models.EntrySummary{}
	for i := offset; i < len(live) && len(result) < limit; i++ {
		e := live[i]
		result = append(result, &models.EntrySummary{
			ExternalID: e.ExternalID,
			SizeBytes:  int64(len(e.Payload)),
			CreatedAt:  e.CreatedAt,
		})
	}
	return result, nil
}

func (r *InMemoryRepository) CountByOwnerAndCategory(ctx context.Context, ownerKey, category string, cutoff time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.live(ownerKey, category, cutoff))), nil
}

func (r *InMemoryRepository) AggregateStats(ctx context.Context) (*models.StoreStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &models.StoreStats{}
	owners := make(map[string]struct{})
	for _, e := range r.entries {
		stats.EntryCount++
		stats.TotalBytes += int64(len(e.Payload))
		owners[e.OwnerKey] = struct{}{}
	}
	stats.OwnerCount = int64(len(owners))
	return stats, nil
}

func (r *InMemoryRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for key, e := range r.entries {
		if e.CreatedAt.Before(cutoff) {
			delete(r.entries, key)
			deleted++
		}
	}
	return deleted, nil
}
