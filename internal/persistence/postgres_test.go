package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"newsradar/internal/core"
)

func newMockDB(t *testing.T) (*PostgresDB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return newPostgresDB(db), mock
}

// insertPattern pins the uuid cast on cluster_id: the column is uuid and
// an uncast empty-string NULLIF resolves to text, which Postgres rejects.
const insertPattern = `(?s)INSERT INTO articles.+NULLIF\(\$8, ''\)::uuid`

func TestArticleInsert_DuplicateURL(t *testing.T) {
	pgDB, mock := newMockDB(t)

	mock.ExpectExec(insertPattern).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "articles_url_key"})

	article := &core.Article{
		ID:          "0b3c8f2e-6f0a-4a1e-9c31-111111111111",
		SourceID:    1,
		URL:         "https://example.com/news/1",
		Title:       "Title",
		Content:     "Body",
		PublishedAt: time.Now().UTC(),
		ClusterID:   "0b3c8f2e-6f0a-4a1e-9c31-222222222222",
	}

	err := pgDB.Articles().Insert(context.Background(), article)
	if !errors.Is(err, ErrDuplicateURL) {
		t.Errorf("expected ErrDuplicateURL, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestArticleInsert_Success(t *testing.T) {
	pgDB, mock := newMockDB(t)

	mock.ExpectExec(insertPattern).
		WillReturnResult(sqlmock.NewResult(0, 1))

	article := &core.Article{
		ID:          "0b3c8f2e-6f0a-4a1e-9c31-111111111111",
		SourceID:    1,
		URL:         "https://example.com/news/1",
		Title:       "Title",
		Content:     "Body",
		PublishedAt: time.Now().UTC(),
		ClusterID:   "0b3c8f2e-6f0a-4a1e-9c31-222222222222",
	}

	if err := pgDB.Articles().Insert(context.Background(), article); err != nil {
		t.Errorf("insert failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestArticleRecent_ScansRows(t *testing.T) {
	pgDB, mock := newMockDB(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "source_id", "name", "url", "title", "content",
		"published_at", "created_at", "cluster_id", "companies", "people",
	}).AddRow(
		"0b3c8f2e-6f0a-4a1e-9c31-111111111111", int64(1), "Reuters",
		"https://example.com/news/1", "Title", "Body",
		now, now, "0b3c8f2e-6f0a-4a1e-9c31-222222222222",
		[]byte(`["Acme Corp"]`), []byte(`null`),
	)

	// The select side must cast uuid back to text before the COALESCE.
	mock.ExpectQuery(`(?s)SELECT .+COALESCE\(a\.cluster_id::text, ''\).+FROM articles a`).WillReturnRows(rows)

	articles, err := pgDB.Articles().Recent(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 article, got %d", len(articles))
	}
	if articles[0].SourceName != "Reuters" {
		t.Errorf("expected source name Reuters, got %q", articles[0].SourceName)
	}
	if len(articles[0].Companies) != 1 || articles[0].Companies[0] != "Acme Corp" {
		t.Errorf("unexpected companies: %v", articles[0].Companies)
	}
}

func TestSourceGetOrCreate_ReadsAfterUpsert(t *testing.T) {
	pgDB, mock := newMockDB(t)

	mock.ExpectExec(`INSERT INTO sources`).
		WithArgs("Reuters", "https://reuters.com", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0)) // conflict: another worker won

	rows := sqlmock.NewRows([]string{"id", "name", "url", "reputation_score", "created_at"}).
		AddRow(int64(7), "Reuters", "https://reuters.com", 0.5, time.Now().UTC())
	mock.ExpectQuery(`SELECT id, name, url, reputation_score, created_at`).
		WithArgs("Reuters").
		WillReturnRows(rows)

	source, err := pgDB.Sources().GetOrCreate(context.Background(), "Reuters", "https://reuters.com")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if source.ID != 7 {
		t.Errorf("expected id 7, got %d", source.ID)
	}
	if source.Reputation != 0.5 {
		t.Errorf("expected default reputation 0.5, got %v", source.Reputation)
	}
}

func TestSetReputation_RejectsOutOfRange(t *testing.T) {
	pgDB, _ := newMockDB(t)

	if err := pgDB.Sources().SetReputation(context.Background(), 1, 1.5); err == nil {
		t.Error("expected error for out-of-range reputation")
	}
	if err := pgDB.Sources().SetReputation(context.Background(), 1, -0.1); err == nil {
		t.Error("expected error for negative reputation")
	}
}

func TestSetReputation_NotFound(t *testing.T) {
	pgDB, mock := newMockDB(t)

	mock.ExpectExec(`UPDATE sources SET reputation_score`).
		WithArgs(int64(42), 0.9).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := pgDB.Sources().SetReputation(context.Background(), 42, 0.9)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
