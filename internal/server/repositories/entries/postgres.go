// Package entries provides the PostgreSQL-backed storage engine for
// stashkeeper entries: keyed upsert, TTL-filtered reads, paginated listing,
// aggregate stats, and physical expiry deletes.
package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/akulikov/stashkeeper/internal/common"
	"github.com/akulikov/stashkeeper/internal/dbx"
	"github.com/akulikov/stashkeeper/internal/server/models"
)

// PostgresRepository implements entry storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// storageErr wraps a driver failure so callers can match
// common.ErrStorageUnavailable with errors.Is while keeping the cause.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrStorageUnavailable, err)
}

// Upsert inserts the entry or replaces the row with the same key. The replace
// rewrites every column including created_at, so a rewritten entry starts a
// fresh TTL window.
func (r *PostgresRepository) Upsert(ctx context.Context, entry *models.StoredEntry) error {
	query := `
		INSERT INTO entries (key, external_id, owner_key, category, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key)
		DO UPDATE SET
			external_id = EXCLUDED.external_id,
			owner_key = EXCLUDED.owner_key,
			category = EXCLUDED.category,
			payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at;
	`
	res, err := r.db.ExecContext(ctx, query,
		entry.Key, entry.ExternalID, entry.OwnerKey, entry.Category, entry.Payload, entry.CreatedAt.UnixMilli())
	if err != nil {
		return storageErr("upsert", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("upsert rows affected", err)
	}
	if n != 1 {
		return fmt.Errorf("upsert: unexpected rows affected: %d", n)
	}
	return nil
}

// GetByExternalID returns the newest live row carrying the external id.
// Rows whose created_at is before the cutoff are invisible even if a
// physical row still exists.
func (r *PostgresRepository) GetByExternalID(ctx context.Context, externalID string, cutoff time.Time) (*models.StoredEntry, error) {
	query := `
		SELECT key, external_id, owner_key, category, payload, created_at
		FROM entries
		WHERE external_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT 1;
	`
	var item models.StoredEntry
	var createdAt int64
	err := r.db.QueryRowContext(ctx, query, externalID, cutoff.UnixMilli()).Scan(
		&item.Key, &item.ExternalID, &item.OwnerKey, &item.Category, &item.Payload, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, storageErr("get by external id", err)
	}
	item.CreatedAt = time.UnixMilli(createdAt)
	return &item, nil
}

// ListByOwnerAndCategory returns live summaries for the owner/category pair,
// most recent first, key as tie-break for stable paging.
func (r *PostgresRepository) ListByOwnerAndCategory(ctx context.Context, ownerKey, category string, limit, offset int, cutoff time.Time) ([]*models.EntrySummary, error) {
	query := `
		SELECT external_id, OCTET_LENGTH(payload), created_at
		FROM entries
		WHERE owner_key = $1 AND category = $2 AND created_at >= $3
		ORDER BY created_at DESC, key
		LIMIT $4 OFFSET $5;
	`
	rows, err := r.db.QueryContext(ctx, query, ownerKey, category, cutoff.UnixMilli(), limit, offset)
	if err != nil {
		return nil, storageErr("list", err)
	}
	defer rows.Close()

	result := []*models.EntrySummary{}
	for rows.Next() {
		var item models.EntrySummary
		var createdAt int64
		if err := rows.Scan(&item.ExternalID, &item.SizeBytes, &createdAt); err != nil {
			return nil, storageErr("list scan", err)
		}
		item.CreatedAt = time.UnixMilli(createdAt)
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list rows", err)
	}
	return result, nil
}

// CountByOwnerAndCategory counts live rows for the owner/category pair.
func (r *PostgresRepository) CountByOwnerAndCategory(ctx context.Context, ownerKey, category string, cutoff time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM entries
		WHERE owner_key = $1 AND category = $2 AND created_at >= $3;
	`
	var count int64
	if err := r.db.QueryRowContext(ctx, query, ownerKey, category, cutoff.UnixMilli()).Scan(&count); err != nil {
		return 0, storageErr("count", err)
	}
	return count, nil
}

// AggregateStats runs a full-table aggregation. COALESCE keeps the byte sum
// at zero for an empty table instead of NULL.
func (r *PostgresRepository) AggregateStats(ctx context.Context) (*models.StoreStats, error) {
	query := `
		SELECT COUNT(*), COUNT(DISTINCT owner_key), COALESCE(SUM(OCTET_LENGTH(payload)), 0)
		FROM entries;
	`
	var stats models.StoreStats
	if err := r.db.QueryRowContext(ctx, query).Scan(&stats.EntryCount, &stats.OwnerCount, &stats.TotalBytes); err != nil {
		return nil, storageErr("aggregate stats", err)
	}
	return &stats, nil
}

// DeleteOlderThan physically removes rows with created_at before the cutoff.
func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM entries WHERE created_at < $1;`
	res, err := r.db.ExecContext(ctx, query, cutoff.UnixMilli())
	if err != nil {
		return 0, storageErr("delete older than", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("delete rows affected", err)
	}
	return n, nil
}
