// Package models defines data structures shared across the collector.
package models

import "time"

// Default serialized placeholders for fields whose extraction is handled by
// a separate enrichment job.
const (
	DefaultSizeInfo  = "[]"
	DefaultFitSeason = `{"핏":[],"계절감":[]}`
)

// ProductRecord is the normalized output for one product identifier.
// Numeric fields default to 0 rather than being absent; ProductID always
// equals the identifier that was requested.
type ProductRecord struct {
	ProductID       string    `csv:"product_id" json:"product_id"`
	ProductName     string    `csv:"product_name" json:"product_name"`
	Brand           string    `csv:"brand" json:"brand"`
	OriginalPrice   int64     `csv:"original_price" json:"original_price"`
	SalePrice       int64     `csv:"sale_price" json:"sale_price"`
	UpperCategory   string    `csv:"upper_category" json:"upper_category"`
	LowerCategory   string    `csv:"lower_category" json:"lower_category"`
	Gender          int       `csv:"gender" json:"gender"`
	Rating          float64   `csv:"rating" json:"rating"`
	WishCount       int64     `csv:"wish_count" json:"wish_count"`
	ReviewCount     int64     `csv:"review_count" json:"review_count"`
	DiscountRate    int64     `csv:"discount_rate" json:"discount_rate"`
	CumulativeSales string    `csv:"cumulative_sales" json:"cumulative_sales"`
	SizeInfo        string    `csv:"size_info" json:"size_info"`
	FitSeason       string    `csv:"fit_season" json:"fit_season"`
	Style           string    `csv:"style" json:"style"`
	CollectedAt     time.Time `csv:"collected_at" json:"collected_at"`
}

// RunResult holds the overall outcome of one collection run.
type RunResult struct {
	RunID           string
	StartTime       time.Time
	EndTime         time.Time
	Total           int
	ResumeOffset    int
	Attempted       int
	Persisted       int
	Duplicates      int
	SoftMisses      int
	Blocks          int
	TransportErrors int
	PersistErrors   int
	Rotations       int
}
