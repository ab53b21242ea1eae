package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/akulikov/stashkeeper/internal/logging"
	repo "github.com/akulikov/stashkeeper/internal/server/repositories/entries"
	"github.com/akulikov/stashkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func TestSweep_DeletesOnlyExpiredRows(t *testing.T) {
	r := repo.NewInMemoryRepository()
	ctx := context.Background()

	now := time.UnixMilli(1700000000000)
	ttl := 25 * 24 * time.Hour

	stale := &models.StoredEntry{Key: "old", ExternalID: "old", OwnerKey: "o1", Category: "note",
		Payload: []byte("x"), CreatedAt: now.Add(-ttl - time.Millisecond)}
	fresh := &models.StoredEntry{Key: "new", ExternalID: "new", OwnerKey: "o1", Category: "note",
		Payload: []byte("y"), CreatedAt: now.Add(-time.Hour)}
	require.NoError(t, r.Upsert(ctx, stale))
	require.NoError(t, r.Upsert(ctx, fresh))

	s := New(r, ttl, 24*time.Hour, testLogger())
	s.now = func() time.Time { return now }

	s.Sweep(ctx)

	stats, err := r.AggregateStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.EntryCount)

	_, err = r.GetByExternalID(ctx, "new", now.Add(-ttl))
	assert.NoError(t, err)
}

type blockingStore struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (b *blockingStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	<-b.release
	return 0, nil
}

func TestSweep_ConcurrentRunsDoNotOverlap(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	s := New(store, time.Hour, time.Hour, testLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Sweep(ctx)
	}()

	// wait for the first run to park inside the store
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.calls == 1
	}, time.Second, 5*time.Millisecond)

	// this one must be skipped, not queued
	s.Sweep(ctx)

	close(store.release)
	wg.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.calls)
}

type failingStore struct {
	mu    sync.Mutex
	calls int
}

func (f *failingStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return 0, errors.New("db is down")
}

func (f *failingStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSweep_FailureDoesNotPanicAndAllowsRetry(t *testing.T) {
	store := &failingStore{}
	s := New(store, time.Hour, time.Hour, testLogger())
	ctx := context.Background()

	require.NotPanics(t, func() { s.Sweep(ctx) })
	require.NotPanics(t, func() { s.Sweep(ctx) })
	assert.Equal(t, 2, store.callCount())
}

func TestRun_SweepsAtStartAndStopsOnCancel(t *testing.T) {
	store := &failingStore{}
	s := New(store, time.Hour, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return store.callCount() >= 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancel")
	}
}
