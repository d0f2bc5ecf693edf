// Package store provides the persistence sinks for normalized product
// records: Postgres for real runs, append-only CSV for offline runs. Both
// offer idempotent insert-or-ignore semantics keyed by product identifier,
// and both can report the persisted row count that drives resume.
package store

import (
	"context"

	"github.com/minjk-dev/go-scrape-musinsa/config"
	"github.com/minjk-dev/go-scrape-musinsa/models"
)

// Sink is the persistence contract the run coordinator depends on.
type Sink interface {
	// InsertProduct persists one record. A duplicate identifier is a
	// no-op, not an error; the boolean reports whether a row was written.
	InsertProduct(ctx context.Context, rec *models.ProductRecord) (bool, error)

	// InsertProducts is the bulk variant for callers needing throughput.
	// It returns the number of rows actually written.
	InsertProducts(ctx context.Context, recs []*models.ProductRecord) (int64, error)

	// CountProducts returns the persisted row count, read once at run
	// start to compute the resume offset.
	CountProducts(ctx context.Context) (int, error)

	Close() error
}

// Open selects a sink from configuration: Postgres when a database URL is
// set, otherwise the CSV sink.
func Open(cfg *config.Config) (Sink, error) {
	if cfg.DatabaseURL != "" {
		return OpenPostgres(cfg.DatabaseURL, cfg.Table)
	}
	return NewCSVSink(cfg.OutputFile)
}
