// Package persistence provides the article and source stores
package persistence

import (
	"context"
	"errors"
	"time"

	"newsradar/internal/core"
)

var (
	// ErrDuplicateURL is returned by ArticleRepository.Insert when the URL
	// already exists in the store. Callers treat it as successful duplicate
	// handling, not a failure.
	ErrDuplicateURL = errors.New("article URL already exists")

	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
)

// ArticleRepository is the append-only article store (the cold store).
type ArticleRepository interface {
	// Insert persists one article atomically. The URL is the idempotence
	// key: a second insert with the same URL fails with ErrDuplicateURL.
	Insert(ctx context.Context, article *core.Article) error

	// Recent returns articles published within [now-window, now],
	// newest first. Ties on published_at are broken by id so the
	// ordering is stable.
	Recent(ctx context.Context, window time.Duration) ([]core.Article, error)

	// ByCluster returns the cluster's articles in ascending publication
	// order.
	ByCluster(ctx context.Context, clusterID string) ([]core.Article, error)

	// CountInCluster counts the cluster's articles published within the
	// window.
	CountInCluster(ctx context.Context, clusterID string, window time.Duration) (int, error)

	// Count returns the total number of stored articles.
	Count(ctx context.Context) (int, error)

	// All returns every stored article in insertion order. Used by the
	// index reconciliation pass and the scheduler's seen-URL bootstrap.
	All(ctx context.Context) ([]core.Article, error)

	// URLs returns every stored article URL.
	URLs(ctx context.Context) ([]string, error)
}

// SourceRepository is the mutable source registry (the hot store).
type SourceRepository interface {
	// GetOrCreate resolves a source by name, creating it with the default
	// reputation when unknown. Concurrent creations for the same name
	// collapse to one row; losers re-read.
	GetOrCreate(ctx context.Context, name, url string) (*core.Source, error)

	// GetByID returns one source or ErrNotFound.
	GetByID(ctx context.Context, id int64) (*core.Source, error)

	// All returns every registered source.
	All(ctx context.Context) ([]core.Source, error)

	// SetReputation updates a source's reputation score. Administrative
	// use only.
	SetReputation(ctx context.Context, id int64, score float64) error
}

// Database bundles the repositories backed by one relational store.
type Database interface {
	Articles() ArticleRepository
	Sources() SourceRepository
	Ping(ctx context.Context) error
	Close() error
}
