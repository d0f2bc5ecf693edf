// Package discover pages the category listing API to build the identifier
// CSV the collector consumes.
package discover

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"
)

// Item is one listing entry: the identifier plus display metadata kept for
// later enrichment jobs.
type Item struct {
	GoodsNo   string
	Thumbnail string
	GoodsName string
}

// Options configures a listing crawl.
type Options struct {
	BaseURL     string // listing API host
	Category    string // category code, e.g. "001"
	Gender      string // gf parameter
	MaxPages    int
	PageSize    int
	Delay       time.Duration
	RandomDelay time.Duration
	UserAgent   string
}

func (o *Options) applyDefaults() {
	if o.BaseURL == "" {
		o.BaseURL = "https://api.musinsa.com"
	}
	if o.Gender == "" {
		o.Gender = "M"
	}
	if o.MaxPages <= 0 {
		o.MaxPages = 1000
	}
	if o.PageSize <= 0 {
		o.PageSize = 60
	}
	if o.Delay <= 0 {
		o.Delay = 200 * time.Millisecond
	}
	if o.RandomDelay <= 0 {
		o.RandomDelay = 300 * time.Millisecond
	}
	if o.UserAgent == "" {
		o.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
}

type listResponse struct {
	Data struct {
		List []struct {
			GoodsNo   json.Number `json:"goodsNo"`
			Thumbnail string      `json:"thumbnail"`
			GoodsName string      `json:"goodsName"`
		} `json:"list"`
	} `json:"data"`
}

// Crawler pages the listing endpoint until a page comes back empty or the
// page budget is exhausted.
type Crawler struct {
	opts      Options
	collector *colly.Collector

	items     []Item
	lastCount int
	lastErr   error
}

// New builds a crawler. The inter-page delay mirrors the collector's
// pacing approach at a coarser grain.
func New(opts Options) (*Crawler, error) {
	opts.applyDefaults()

	collector := colly.NewCollector(colly.UserAgent(opts.UserAgent))
	collector.IgnoreRobotsTxt = true
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       opts.Delay,
		RandomDelay: opts.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	cr := &Crawler{opts: opts, collector: collector}

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json")
		r.Headers.Set("Referer", "https://www.musinsa.com/")
	})

	collector.OnResponse(func(r *colly.Response) {
		var body listResponse
		if err := json.Unmarshal(r.Body, &body); err != nil {
			cr.lastErr = fmt.Errorf("decode listing page: %w", err)
			return
		}
		cr.lastCount = len(body.Data.List)
		for _, entry := range body.Data.List {
			cr.items = append(cr.items, Item{
				GoodsNo:   entry.GoodsNo.String(),
				Thumbnail: entry.Thumbnail,
				GoodsName: entry.GoodsName,
			})
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		cr.lastErr = fmt.Errorf("listing page failed (status %d): %w", status, err)
	})

	return cr, nil
}

// SetTransport overrides the HTTP transport. Intended for tests.
func (cr *Crawler) SetTransport(rt http.RoundTripper) {
	cr.collector.WithTransport(rt)
}

// Run crawls pages sequentially and returns all collected items. A page
// error ends the crawl with the items gathered so far.
func (cr *Crawler) Run() ([]Item, error) {
	for page := 1; page <= cr.opts.MaxPages; page++ {
		cr.lastCount = 0
		cr.lastErr = nil

		if err := cr.collector.Visit(cr.pageURL(page)); err != nil {
			return cr.items, fmt.Errorf("visit page %d: %w", page, err)
		}
		cr.collector.Wait()

		if cr.lastErr != nil {
			return cr.items, cr.lastErr
		}
		if cr.lastCount == 0 {
			slog.Info("listing exhausted", slog.Int("page", page), slog.Int("items", len(cr.items)))
			break
		}
		slog.Debug("listing page collected",
			slog.Int("page", page),
			slog.Int("page_items", cr.lastCount),
			slog.Int("total_items", len(cr.items)),
		)
	}
	return cr.items, nil
}

func (cr *Crawler) pageURL(page int) string {
	u, _ := url.Parse(cr.opts.BaseURL + "/api2/dp/v1/plp/goods")
	q := u.Query()
	q.Set("gf", cr.opts.Gender)
	q.Set("sortCode", "POPULAR")
	q.Set("category", cr.opts.Category)
	q.Set("size", strconv.Itoa(cr.opts.PageSize))
	q.Set("caller", "CATEGORY")
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

// WriteCSV writes collected items with the header row the collector's
// identifier loader expects.
func WriteCSV(items []Item, filename string) error {
	dir := filepath.Dir(filename)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create id file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write([]string{"goodsNo", "thumbnail", "goodsName"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, item := range items {
		if err := writer.Write([]string{item.GoodsNo, item.Thumbnail, item.GoodsName}); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush id file: %w", err)
	}
	return nil
}
