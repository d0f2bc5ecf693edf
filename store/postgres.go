package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/lib/pq"

	"github.com/minjk-dev/go-scrape-musinsa/models"
)

// Table names are interpolated into DDL/DML, so they are restricted to
// plain identifiers.
var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresSink persists records into one table per product category.
type PostgresSink struct {
	db        *sql.DB
	table     string
	insertSQL string
}

// OpenPostgres connects, verifies the connection, and bootstraps the table.
func OpenPostgres(databaseURL, table string) (*PostgresSink, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresSink{
		db:        db,
		table:     table,
		insertSQL: buildInsertSQL(table),
	}
	if err := s.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}
	return s, nil
}

func (s *PostgresSink) createTable() error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		product_id TEXT PRIMARY KEY,
		product_name TEXT,
		brand TEXT,
		original_price BIGINT DEFAULT 0,
		sale_price BIGINT DEFAULT 0,
		upper_category TEXT,
		lower_category TEXT,
		gender SMALLINT DEFAULT 0,
		rating DOUBLE PRECISION DEFAULT 0,
		wish_count BIGINT DEFAULT 0,
		review_count BIGINT DEFAULT 0,
		discount_rate BIGINT DEFAULT 0,
		cumulative_sales TEXT,
		size_info TEXT,
		fit_season TEXT,
		style TEXT,
		collected_at TIMESTAMPTZ DEFAULT NOW()
	)`, s.table)
	_, err := s.db.Exec(ddl)
	return err
}

func buildInsertSQL(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (
		product_id, product_name, brand, original_price, sale_price,
		upper_category, lower_category, gender, rating, wish_count,
		review_count, discount_rate, cumulative_sales, size_info,
		fit_season, style, collected_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (product_id) DO NOTHING`, table)
}

func insertArgs(rec *models.ProductRecord) []any {
	return []any{
		rec.ProductID, rec.ProductName, rec.Brand, rec.OriginalPrice,
		rec.SalePrice, rec.UpperCategory, rec.LowerCategory, rec.Gender,
		rec.Rating, rec.WishCount, rec.ReviewCount, rec.DiscountRate,
		rec.CumulativeSales, rec.SizeInfo, rec.FitSeason, rec.Style,
		rec.CollectedAt,
	}
}

// InsertProduct writes one record; a conflicting identifier is a no-op.
func (s *PostgresSink) InsertProduct(ctx context.Context, rec *models.ProductRecord) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.insertSQL, insertArgs(rec)...)
	if err != nil {
		return false, fmt.Errorf("insert product %s: %w", rec.ProductID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// InsertProducts writes a batch inside one transaction with a prepared
// statement and returns the total rows written.
func (s *PostgresSink) InsertProducts(ctx context.Context, recs []*models.ProductRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.insertSQL)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var total int64
	for _, rec := range recs {
		result, err := stmt.ExecContext(ctx, insertArgs(rec)...)
		if err != nil {
			return total, fmt.Errorf("insert product %s: %w", rec.ProductID, err)
		}
		if affected, err := result.RowsAffected(); err == nil {
			total += affected
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

// CountProducts returns the number of rows in the category table.
func (s *PostgresSink) CountProducts(ctx context.Context) (int, error) {
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return count, nil
}

// Close releases the connection pool.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
