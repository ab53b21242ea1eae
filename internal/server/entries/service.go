// Package entries implements the save/fetch/list/stats flows on top of the
// storage engine: identity canonicalization, validation, deterministic key
// derivation, TTL visibility, and pagination math.
package entries

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/akulikov/stashkeeper/internal/ownerkey"
	"github.com/akulikov/stashkeeper/internal/server/models"
	repo "github.com/akulikov/stashkeeper/internal/server/repositories/entries"
	"github.com/akulikov/stashkeeper/internal/validate"
)

// SaveResult is returned to the boundary layer after a successful save.
type SaveResult struct {
	ExternalID string
	Key        string
	SizeBytes  int64
	ExpiresAt  time.Time
}

// EntryPage is one page of a listing plus the pagination envelope.
type EntryPage struct {
	Items      []*models.EntrySummary
	Page       int
	PageSize   int
	TotalCount int64
	TotalPages int
	HasNext    bool
	HasPrev    bool
}

type Service struct {
	repo     repo.Repository
	ttl      time.Duration
	pageSize int
	now      func() time.Time
}

func NewService(r repo.Repository, ttl time.Duration, pageSize int) *Service {
	return &Service{
		repo:     r,
		ttl:      ttl,
		pageSize: pageSize,
		now:      time.Now,
	}
}

// cutoff is the oldest CreatedAt still considered live.
func (s *Service) cutoff(now time.Time) time.Time {
	return now.Add(-s.ttl)
}

// deriveKey computes the deterministic primary key for a save.
//
// With a caller-supplied external id the key fingerprints
// (ownerKey, category, externalID), so the caller controls overwrite
// semantics per owner and category. Without one the key fingerprints
// (payload, ownerKey), making identical saves idempotent; the key then
// doubles as the external id.
func deriveKey(ownerKey, category, externalID string, payload []byte) (key, extID string) {
	h := sha256.New()
	if externalID != "" {
		h.Write([]byte(ownerKey))
		h.Write([]byte{0})
		h.Write([]byte(category))
		h.Write([]byte{0})
		h.Write([]byte(externalID))
		return hex.EncodeToString(h.Sum(nil)), externalID
	}
	h.Write(payload)
	h.Write([]byte(ownerKey))
	key = hex.EncodeToString(h.Sum(nil))
	return key, key
}

// Save validates the category and payload, canonicalizes the owner
// identifier, and upserts the entry. A save with an already-used key
// replaces the row and restarts its TTL window.
func (s *Service) Save(ctx context.Context, rawOwner []byte, category, externalID string, payload []byte) (*SaveResult, error) {

	category, err := validate.Category(category)
	if err != nil {
		return nil, err
	}
	payload, err = validate.Payload(payload)
	if err != nil {
		return nil, err
	}

	owner := ownerkey.Canonicalize(rawOwner)
	key, extID := deriveKey(owner, category, externalID, payload)

	now := s.now()
	entry := &models.StoredEntry{
		Key:        key,
		ExternalID: extID,
		OwnerKey:   owner,
		Category:   category,
		Payload:    payload,
		CreatedAt:  now,
	}

	if err := s.repo.Upsert(ctx, entry); err != nil {
		return nil, fmt.Errorf("error saving entry: %w", err)
	}

	return &SaveResult{
		ExternalID: extID,
		Key:        key,
		SizeBytes:  int64(len(payload)),
		ExpiresAt:  now.Add(s.ttl),
	}, nil
}

// Get fetches an entry by its external id. Expired entries are reported as
// not found; the caller cannot tell absent from expired, which is intended.
func (s *Service) Get(ctx context.Context, externalID string) (*models.StoredEntry, error) {
	return s.repo.GetByExternalID(ctx, externalID, s.cutoff(s.now()))
}

// List returns one page of live entries for the owner and category,
// most recent first. Pages are 1-based; a page past the end is an empty
// page, not an error.
func (s *Service) List(ctx context.Context, rawOwner []byte, category string, page int) (*EntryPage, error) {

	if page < 1 {
		page = 1
	}

	owner := ownerkey.Canonicalize(rawOwner)
	cutoff := s.cutoff(s.now())

	total, err := s.repo.CountByOwnerAndCategory(ctx, owner, category, cutoff)
	if err != nil {
		return nil, fmt.Errorf("error counting entries: %w", err)
	}

	offset := (page - 1) * s.pageSize
	items := []*models.EntrySummary{}
	if int64(offset) < total {
		items, err = s.repo.ListByOwnerAndCategory(ctx, owner, category, s.pageSize, offset, cutoff)
		if err != nil {
			return nil, fmt.Errorf("error listing entries: %w", err)
		}
	}

	totalPages := int((total + int64(s.pageSize) - 1) / int64(s.pageSize))

	return &EntryPage{
		Items:      items,
		Page:       page,
		PageSize:   s.pageSize,
		TotalCount: total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}, nil
}

// Stats is a thin pass-through of the full-table aggregation.
func (s *Service) Stats(ctx context.Context) (*models.StoreStats, error) {
	return s.repo.AggregateStats(ctx)
}

// TTL exposes the configured entry lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}
