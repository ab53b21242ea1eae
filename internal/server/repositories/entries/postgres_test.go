package entries

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/akulikov/stashkeeper/internal/common"
	"github.com/akulikov/stashkeeper/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func testEntry(created time.Time) *models.StoredEntry {
	return &models.StoredEntry{
		Key:        "k1",
		ExternalID: "e1",
		OwnerKey:   "o1",
		Category:   "note",
		Payload:    []byte("hello"),
		CreatedAt:  created,
	}
}

func TestUpsert_SuccessRowsAffected1(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.UnixMilli(1700000000000)
	q := regexp.MustCompile(`INSERT INTO entries .* ON CONFLICT \(key\).* DO UPDATE SET .* created_at = EXCLUDED\.created_at;`)

	mock.ExpectExec(q.String()).
		WithArgs("k1", "e1", "o1", "note", []byte("hello"), now.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Upsert(context.Background(), testEntry(now)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpsert_DBExecErrorIsStorageUnavailable(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.UnixMilli(1700000000000)
	q := regexp.MustCompile(`INSERT INTO entries .* ON CONFLICT \(key\)`)

	mock.ExpectExec(q.String()).
		WithArgs("k1", "e1", "o1", "note", []byte("hello"), now.UnixMilli()).
		WillReturnError(errors.New("db is down"))

	err := repo.Upsert(context.Background(), testEntry(now))
	if !errors.Is(err, common.ErrStorageUnavailable) {
		t.Fatalf("want ErrStorageUnavailable, got %v", err)
	}
}

func TestUpsert_UnexpectedRowsAffected(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.UnixMilli(1700000000000)
	q := regexp.MustCompile(`INSERT INTO entries .* ON CONFLICT \(key\)`)

	mock.ExpectExec(q.String()).
		WithArgs("k1", "e1", "o1", "note", []byte("hello"), now.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.Upsert(context.Background(), testEntry(now))
	if err == nil || !regexp.MustCompile(`unexpected rows affected: 2`).MatchString(err.Error()) {
		t.Fatalf("expected rows-affected error, got %v", err)
	}
}

func TestGetByExternalID_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	cutoff := time.UnixMilli(1600000000000)
	created := int64(1700000000000)

	q := regexp.MustCompile(`SELECT key, external_id, owner_key, category, payload, created_at\s+FROM entries\s+WHERE external_id = \$1 AND created_at >= \$2`)

	mock.ExpectQuery(q.String()).
		WithArgs("e1", cutoff.UnixMilli()).
		WillReturnRows(sqlmock.NewRows([]string{"key", "external_id", "owner_key", "category", "payload", "created_at"}).
			AddRow("k1", "e1", "o1", "note", []byte("hello"), created))

	got, err := repo.GetByExternalID(context.Background(), "e1", cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Key != "k1" || string(got.Payload) != "hello" {
		t.Fatalf("unexpected entry: %+v", got)
	}
	if got.CreatedAt.UnixMilli() != created {
		t.Fatalf("created_at mismatch: %v", got.CreatedAt)
	}
}

func TestGetByExternalID_NoRowsIsNotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`SELECT key, external_id, owner_key, category, payload, created_at`)

	mock.ExpectQuery(q.String()).
		WithArgs("missing", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByExternalID(context.Background(), "missing", time.Now())
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestListByOwnerAndCategory_ScansSummaries(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	cutoff := time.UnixMilli(1600000000000)

	q := regexp.MustCompile(`SELECT external_id, OCTET_LENGTH\(payload\), created_at\s+FROM entries\s+WHERE owner_key = \$1 AND category = \$2 AND created_at >= \$3\s+ORDER BY created_at DESC, key\s+LIMIT \$4 OFFSET \$5`)

	mock.ExpectQuery(q.String()).
		WithArgs("o1", "note", cutoff.UnixMilli(), 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"external_id", "octet_length", "created_at"}).
			AddRow("e2", int64(12), int64(1700000001000)).
			AddRow("e1", int64(5), int64(1700000000000)))

	got, err := repo.ListByOwnerAndCategory(context.Background(), "o1", "note", 20, 0, cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 summaries, got %d", len(got))
	}
	if got[0].ExternalID != "e2" || got[0].SizeBytes != 12 {
		t.Fatalf("unexpected first summary: %+v", got[0])
	}
}

func TestListByOwnerAndCategory_EmptyResultIsNotAnError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`SELECT external_id, OCTET_LENGTH\(payload\), created_at`)

	mock.ExpectQuery(q.String()).
		WithArgs("o1", "note", sqlmock.AnyArg(), 20, 100).
		WillReturnRows(sqlmock.NewRows([]string{"external_id", "octet_length", "created_at"}))

	got, err := repo.ListByOwnerAndCategory(context.Background(), "o1", "note", 20, 100, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", got)
	}
}

func TestCountByOwnerAndCategory(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`SELECT COUNT\(\*\)\s+FROM entries\s+WHERE owner_key = \$1 AND category = \$2 AND created_at >= \$3`)

	mock.ExpectQuery(q.String()).
		WithArgs("o1", "note", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(42)))

	got, err := repo.CountByOwnerAndCategory(context.Background(), "o1", "note", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Fatalf("want 42, got %d", got)
	}
}

func TestAggregateStats(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`SELECT COUNT\(\*\), COUNT\(DISTINCT owner_key\), COALESCE\(SUM\(OCTET_LENGTH\(payload\)\), 0\)`)

	mock.ExpectQuery(q.String()).
		WillReturnRows(sqlmock.NewRows([]string{"count", "owners", "bytes"}).AddRow(int64(3), int64(2), int64(17)))

	got, err := repo.AggregateStats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.EntryCount != 3 || got.OwnerCount != 2 || got.TotalBytes != 17 {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	cutoff := time.UnixMilli(1650000000000)
	q := regexp.MustCompile(`DELETE FROM entries WHERE created_at < \$1;`)

	mock.ExpectExec(q.String()).
		WithArgs(cutoff.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(0, 7))

	got, err := repo.DeleteOlderThan(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 7 {
		t.Fatalf("want 7 deleted, got %d", got)
	}
}

func TestDeleteOlderThan_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`DELETE FROM entries WHERE created_at < \$1;`)

	mock.ExpectExec(q.String()).
		WithArgs(sqlmock.AnyArg()).
		WillReturnError(errors.New("db is down"))

	_, err := repo.DeleteOlderThan(context.Background(), time.Now())
	if !errors.Is(err, common.ErrStorageUnavailable) {
		t.Fatalf("want ErrStorageUnavailable, got %v", err)
	}
}
