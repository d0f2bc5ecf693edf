// Package fetcher performs the two HTTP calls per product and classifies
// raw responses into ok, soft-miss, blocked, or transport-error.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/minjk-dev/go-scrape-musinsa/config"
	"github.com/minjk-dev/go-scrape-musinsa/pacing"
	"github.com/minjk-dev/go-scrape-musinsa/session"
)

// Outcome classifies a detail-page fetch.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeSoftMiss
	OutcomeBlocked
	OutcomeTransport
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeSoftMiss:
		return "soft_miss"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeTransport:
		return "transport_error"
	default:
		return "unknown"
	}
}

// BlockKind distinguishes the two block-detection paths, which carry
// different cooldown policies.
type BlockKind int

const (
	BlockNone BlockKind = iota
	BlockHTTP           // 429 or 403 status
	BlockPage           // 200 with a block-page title
)

func (k BlockKind) String() string {
	switch k {
	case BlockHTTP:
		return "http_status"
	case BlockPage:
		return "page_signature"
	default:
		return "none"
	}
}

// Phrases a bot wall puts in the page title. Matched case-insensitively as
// substrings.
var blockSignatures = []string{
	"access denied",
	"just a moment",
	"security check",
}

const payloadScriptID = "__NEXT_DATA__"

// DetailResult is the classified outcome of one detail-page fetch.
type DetailResult struct {
	Outcome Outcome
	Block   BlockKind
	Status  int
	Title   string
	Payload map[string]any
	Reason  string // soft-miss reason label
	Latency time.Duration
	Err     error
}

// Fetcher issues detail-page and tag requests through the caller's session.
type Fetcher struct {
	baseURL    string
	tagBaseURL string
	tagTimeout time.Duration
	pacer      *pacing.Sampler
	limiter    *rate.Limiter
}

// New builds a fetcher from configuration. The limiter is a hard ceiling on
// request rate, layered under the probabilistic pacing.
func New(cfg *config.Config, pacer *pacing.Sampler) *Fetcher {
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return &Fetcher{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		tagBaseURL: strings.TrimRight(cfg.TagBaseURL, "/"),
		tagTimeout: cfg.TagTimeout,
		pacer:      pacer,
		limiter:    limiter,
	}
}

// FetchDetail fetches the product detail page for one identifier and
// classifies the response. Classification priority: transport error, HTTP
// status, block-page title, embedded JSON presence and validity.
func (f *Fetcher) FetchDetail(ctx context.Context, sess *session.Session, id string) DetailResult {
	start := time.Now()

	if err := f.wait(ctx); err != nil {
		return DetailResult{Outcome: OutcomeTransport, Err: err, Latency: time.Since(start)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/products/"+id, nil)
	if err != nil {
		return DetailResult{Outcome: OutcomeTransport, Err: err, Latency: time.Since(start)}
	}
	sess.Apply(req)

	resp, err := sess.Client.Do(req)
	if err != nil {
		return DetailResult{Outcome: OutcomeTransport, Err: classifyTransport(err), Latency: time.Since(start)}
	}
	defer resp.Body.Close()

	result := DetailResult{Status: resp.StatusCode, Latency: time.Since(start)}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
			result.Outcome = OutcomeBlocked
			result.Block = BlockHTTP
			return result
		}
		result.Outcome = OutcomeSoftMiss
		result.Reason = "http_status"
		return result
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		result.Outcome = OutcomeSoftMiss
		result.Reason = "unreadable_body"
		result.Err = err
		return result
	}

	result.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if isBlockTitle(result.Title) {
		result.Outcome = OutcomeBlocked
		result.Block = BlockPage
		return result
	}

	raw := doc.Find("script#" + payloadScriptID).First().Text()
	if strings.TrimSpace(raw) == "" {
		result.Outcome = OutcomeSoftMiss
		result.Reason = "missing_payload"
		return result
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		result.Outcome = OutcomeSoftMiss
		result.Reason = "invalid_payload"
		result.Err = fmt.Errorf("decode embedded payload: %w", err)
		return result
	}

	result.Outcome = OutcomeOK
	result.Payload = payload
	return result
}

// FetchTags fetches style tags for one identifier. Best effort: any failure
// yields an empty list. A short independent delay precedes the call so the
// two requests per item do not land back to back.
func (f *Fetcher) FetchTags(ctx context.Context, sess *session.Session, id string) []string {
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(f.pacer.TagDelay()):
	}
	if err := f.wait(ctx); err != nil {
		return nil
	}

	tagCtx, cancel := context.WithTimeout(ctx, f.tagTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(tagCtx, http.MethodGet, f.tagBaseURL+"/api2/goods/"+id+"/tags", nil)
	if err != nil {
		return nil
	}
	sess.Apply(req)
	req.Header.Set("Accept", "application/json")

	resp, err := sess.Client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var body struct {
		Data struct {
			Tags []string `json:"tags"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil
	}
	return body.Data.Tags
}

func (f *Fetcher) wait(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	return f.limiter.Wait(ctx)
}

func isBlockTitle(title string) bool {
	lowered := strings.ToLower(title)
	for _, signature := range blockSignatures {
		if strings.Contains(lowered, signature) {
			return true
		}
	}
	return false
}
