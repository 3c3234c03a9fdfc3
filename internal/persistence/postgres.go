package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"newsradar/internal/core"
)

// pq error code for unique_violation
const uniqueViolation = "23505"

// PostgresDB implements the Database interface for PostgreSQL
type PostgresDB struct {
	db       *sql.DB
	articles ArticleRepository
	sources  SourceRepository
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(connectionString string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newPostgresDB(db), nil
}

// newPostgresDB wires repositories around an existing handle. Split out so
// tests can inject a mock *sql.DB.
func newPostgresDB(db *sql.DB) *PostgresDB {
	return &PostgresDB{
		db:       db,
		articles: &postgresArticleRepo{db: db},
		sources:  &postgresSourceRepo{db: db},
	}
}

func (p *PostgresDB) Articles() ArticleRepository { return p.articles }
func (p *PostgresDB) Sources() SourceRepository   { return p.sources }

func (p *PostgresDB) Close() error {
	return p.db.Close()
}

func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// postgresArticleRepo implements ArticleRepository for PostgreSQL
type postgresArticleRepo struct {
	db *sql.DB
}

// cluster_id is a uuid column; it is cast to text on the way out and cast
// back on the way in so the repository can treat it as a plain string.
const articleColumns = `a.id, a.source_id, COALESCE(s.name, ''), a.url, a.title, a.content,
	       a.published_at, a.created_at, COALESCE(a.cluster_id::text, ''), a.companies, a.people`

func (r *postgresArticleRepo) Insert(ctx context.Context, article *core.Article) error {
	companiesJSON, err := json.Marshal(article.Companies)
	if err != nil {
		return fmt.Errorf("failed to marshal companies: %w", err)
	}
	peopleJSON, err := json.Marshal(article.People)
	if err != nil {
		return fmt.Errorf("failed to marshal people: %w", err)
	}

	query := `
		INSERT INTO articles (
			id, source_id, url, title, content, published_at, created_at, cluster_id, companies, people
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, '')::uuid, $9, $10)
	`

	createdAt := article.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, query,
		article.ID, article.SourceID, article.URL, article.Title, article.Content,
		article.PublishedAt, createdAt, article.ClusterID, companiesJSON, peopleJSON,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return ErrDuplicateURL
		}
		return fmt.Errorf("failed to insert article: %w", err)
	}
	return nil
}

func (r *postgresArticleRepo) Recent(ctx context.Context, window time.Duration) ([]core.Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM articles a
		LEFT JOIN sources s ON s.id = a.source_id
		WHERE a.published_at >= $1
		ORDER BY a.published_at DESC, a.id DESC
	`
	since := time.Now().UTC().Add(-window)
	return r.queryArticles(ctx, query, since)
}

func (r *postgresArticleRepo) ByCluster(ctx context.Context, clusterID string) ([]core.Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM articles a
		LEFT JOIN sources s ON s.id = a.source_id
		WHERE a.cluster_id = $1
		ORDER BY a.published_at ASC, a.id ASC
	`
	return r.queryArticles(ctx, query, clusterID)
}

func (r *postgresArticleRepo) CountInCluster(ctx context.Context, clusterID string, window time.Duration) (int, error) {
	query := `
		SELECT COUNT(*) FROM articles
		WHERE cluster_id = $1 AND published_at >= $2
	`
	since := time.Now().UTC().Add(-window)
	var count int
	if err := r.db.QueryRowContext(ctx, query, clusterID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cluster articles: %w", err)
	}
	return count, nil
}

func (r *postgresArticleRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return count, nil
}

func (r *postgresArticleRepo) All(ctx context.Context) ([]core.Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM articles a
		LEFT JOIN sources s ON s.id = a.source_id
		ORDER BY a.created_at ASC, a.id ASC
	`
	return r.queryArticles(ctx, query)
}

func (r *postgresArticleRepo) URLs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT url FROM articles`)
	if err != nil {
		return nil, fmt.Errorf("failed to query article URLs: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, rows.Err()
}

func (r *postgresArticleRepo) queryArticles(ctx context.Context, query string, args ...interface{}) ([]core.Article, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var articles []core.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *article)
	}
	return articles, rows.Err()
}

func scanArticle(rows *sql.Rows) (*core.Article, error) {
	var article core.Article
	var companiesJSON, peopleJSON []byte

	err := rows.Scan(
		&article.ID, &article.SourceID, &article.SourceName, &article.URL,
		&article.Title, &article.Content, &article.PublishedAt,
		&article.CreatedAt, &article.ClusterID, &companiesJSON, &peopleJSON,
	)
	if err != nil {
		return nil, err
	}

	if len(companiesJSON) > 0 {
		if err := json.Unmarshal(companiesJSON, &article.Companies); err != nil {
			return nil, fmt.Errorf("failed to unmarshal companies: %w", err)
		}
	}
	if len(peopleJSON) > 0 {
		if err := json.Unmarshal(peopleJSON, &article.People); err != nil {
			return nil, fmt.Errorf("failed to unmarshal people: %w", err)
		}
	}

	return &article, nil
}

// postgresSourceRepo implements SourceRepository for PostgreSQL
type postgresSourceRepo struct {
	db *sql.DB
}

func (r *postgresSourceRepo) GetOrCreate(ctx context.Context, name, url string) (*core.Source, error) {
	// Losers of a concurrent create hit the unique constraint via DO
	// NOTHING and fall through to the re-read below.
	insert := `
		INSERT INTO sources (name, url, reputation_score, created_at)
		VALUES ($1, $2, 0.5, $3)
		ON CONFLICT (name) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, insert, name, url, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to upsert source %q: %w", name, err)
	}

	query := `
		SELECT id, name, url, reputation_score, created_at
		FROM sources WHERE name = $1
	`
	var source core.Source
	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&source.ID, &source.Name, &source.URL, &source.Reputation, &source.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read source %q: %w", name, err)
	}
	return &source, nil
}

func (r *postgresSourceRepo) GetByID(ctx context.Context, id int64) (*core.Source, error) {
	query := `
		SELECT id, name, url, reputation_score, created_at
		FROM sources WHERE id = $1
	`
	var source core.Source
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&source.ID, &source.Name, &source.URL, &source.Reputation, &source.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read source %d: %w", id, err)
	}
	return &source, nil
}

func (r *postgresSourceRepo) All(ctx context.Context) ([]core.Source, error) {
	query := `
		SELECT id, name, url, reputation_score, created_at
		FROM sources ORDER BY id ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var sources []core.Source
	for rows.Next() {
		var source core.Source
		if err := rows.Scan(&source.ID, &source.Name, &source.URL, &source.Reputation, &source.CreatedAt); err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

func (r *postgresSourceRepo) SetReputation(ctx context.Context, id int64, score float64) error {
	if score < 0 || score > 1 {
		return fmt.Errorf("reputation score must be in [0,1], got %v", score)
	}
	result, err := r.db.ExecContext(ctx, `UPDATE sources SET reputation_score = $2 WHERE id = $1`, id, score)
	if err != nil {
		return fmt.Errorf("failed to update reputation for source %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
