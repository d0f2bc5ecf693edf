package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/minjk-dev/go-scrape-musinsa/models"
)

var csvHeader = []string{
	"product_id", "product_name", "brand", "original_price", "sale_price",
	"upper_category", "lower_category", "gender", "rating", "wish_count",
	"review_count", "discount_rate", "cumulative_sales", "size_info",
	"fit_season", "style", "collected_at",
}

// CSVSink appends records to a CSV file. Existing rows are indexed by
// identifier on open, which makes inserts idempotent and gives restarted
// runs their resume offset without a database.
type CSVSink struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	seen   map[string]struct{}
}

// NewCSVSink opens or creates the output file and loads its ID index.
func NewCSVSink(filename string) (*CSVSink, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}

	seen := make(map[string]struct{})
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	switch {
	case err == io.EOF:
		header = nil
	case err != nil:
		f.Close()
		return nil, fmt.Errorf("read output header: %w", err)
	}

	if header != nil {
		for {
			row, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("scan output rows: %w", err)
			}
			if len(row) > 0 && row[0] != "" {
				seen[row[0]] = struct{}{}
			}
		}
	}

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek output file: %w", err)
	}

	writer := csv.NewWriter(f)
	if header == nil {
		if err := writer.Write(csvHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("write output header: %w", err)
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("flush output header: %w", err)
		}
	}

	return &CSVSink{
		file:   f,
		writer: writer,
		seen:   seen,
	}, nil
}

// InsertProduct appends one record unless its identifier already exists.
func (cs *CSVSink) InsertProduct(_ context.Context, rec *models.ProductRecord) (bool, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.insertLocked(rec)
}

// InsertProducts appends a batch, skipping duplicates, and returns the
// number of rows written.
func (cs *CSVSink) InsertProducts(_ context.Context, recs []*models.ProductRecord) (int64, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	var total int64
	for _, rec := range recs {
		inserted, err := cs.insertLocked(rec)
		if err != nil {
			return total, err
		}
		if inserted {
			total++
		}
	}
	return total, nil
}

func (cs *CSVSink) insertLocked(rec *models.ProductRecord) (bool, error) {
	if _, ok := cs.seen[rec.ProductID]; ok {
		return false, nil
	}

	row := []string{
		rec.ProductID,
		rec.ProductName,
		rec.Brand,
		strconv.FormatInt(rec.OriginalPrice, 10),
		strconv.FormatInt(rec.SalePrice, 10),
		rec.UpperCategory,
		rec.LowerCategory,
		strconv.Itoa(rec.Gender),
		strconv.FormatFloat(rec.Rating, 'f', -1, 64),
		strconv.FormatInt(rec.WishCount, 10),
		strconv.FormatInt(rec.ReviewCount, 10),
		strconv.FormatInt(rec.DiscountRate, 10),
		rec.CumulativeSales,
		rec.SizeInfo,
		rec.FitSeason,
		rec.Style,
		rec.CollectedAt.Format(time.RFC3339),
	}
	if err := cs.writer.Write(row); err != nil {
		return false, fmt.Errorf("write record: %w", err)
	}
	cs.writer.Flush()
	if err := cs.writer.Error(); err != nil {
		return false, fmt.Errorf("flush record: %w", err)
	}

	cs.seen[rec.ProductID] = struct{}{}
	return true, nil
}

// CountProducts returns the number of indexed rows.
func (cs *CSVSink) CountProducts(context.Context) (int, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.seen), nil
}

// Close flushes and closes the file handle.
func (cs *CSVSink) Close() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.writer.Flush()
	if err := cs.writer.Error(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return cs.file.Close()
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
