package runner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/minjk-dev/go-scrape-musinsa/config"
	"github.com/minjk-dev/go-scrape-musinsa/models"
)

type memSink struct {
	mu         sync.Mutex
	rows       map[string]*models.ProductRecord
	initial    int
	failInsert bool
}

func newMemSink(initial int) *memSink {
	return &memSink{rows: make(map[string]*models.ProductRecord), initial: initial}
}

func (m *memSink) InsertProduct(_ context.Context, rec *models.ProductRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert {
		return false, errors.New("sink unavailable")
	}
	if _, ok := m.rows[rec.ProductID]; ok {
		return false, nil
	}
	m.rows[rec.ProductID] = rec
	return true, nil
}

func (m *memSink) InsertProducts(ctx context.Context, recs []*models.ProductRecord) (int64, error) {
	var total int64
	for _, rec := range recs {
		inserted, err := m.InsertProduct(ctx, rec)
		if err != nil {
			return total, err
		}
		if inserted {
			total++
		}
	}
	return total, nil
}

func (m *memSink) CountProducts(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initial + len(m.rows), nil
}

func (m *memSink) Close() error { return nil }

func (m *memSink) get(id string) *models.ProductRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id]
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://shop.test"
	cfg.TagBaseURL = "http://tags.test"
	cfg.RateLimit = 0
	cfg.CooldownHTTP = 20 * time.Millisecond
	cfg.CooldownPage = 20 * time.Millisecond
	cfg.TransportRecovery = 10 * time.Millisecond
	return cfg
}

func detailPage(id, name string) string {
	return fmt.Sprintf(`<html><head><title>Product %s</title></head><body>
<script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{"meta":{"data":{"goodsNo":%q,"goodsNm":%q}}}}}</script>
</body></html>`, id, id, name)
}

func registerDetail(transport *httpmock.MockTransport, id, name string) {
	transport.RegisterResponder("GET", "http://shop.test/products/"+id,
		httpmock.NewStringResponder(200, detailPage(id, name)))
	transport.RegisterResponder("GET", "http://tags.test/api2/goods/"+id+"/tags",
		httpmock.NewStringResponder(200, `{"data":{"tags":["casual","street"]}}`))
}

func runWith(t *testing.T, cfg *config.Config, sink *memSink, transport http.RoundTripper, ids []string) *models.RunResult {
	t.Helper()
	r := New(cfg, sink, nil)
	r.SetTransport(transport)
	result, err := r.Run(context.Background(), ids)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return result
}

func TestRunPersistsResolvedRecords(t *testing.T) {
	transport := httpmock.NewMockTransport()
	registerDetail(transport, "123", "Test Shirt")

	sink := newMemSink(0)
	result := runWith(t, testConfig(), sink, transport, []string{"123"})

	if result.Attempted != 1 || result.Persisted != 1 {
		t.Fatalf("attempted/persisted = %d/%d, want 1/1", result.Attempted, result.Persisted)
	}
	rec := sink.get("123")
	if rec == nil {
		t.Fatalf("record not persisted")
	}
	if rec.ProductName != "Test Shirt" {
		t.Fatalf("name = %q", rec.ProductName)
	}
	if rec.Style != "casual,street" {
		t.Fatalf("style = %q, want comma-joined tags", rec.Style)
	}
}

func TestRunZeroRequestsWhenResumeCoversList(t *testing.T) {
	transport := httpmock.NewMockTransport() // any request would error

	sink := newMemSink(5)
	result := runWith(t, testConfig(), sink, transport, []string{"1", "2", "3"})

	if result.Attempted != 0 {
		t.Fatalf("attempted = %d, want 0", result.Attempted)
	}
	if result.TransportErrors != 0 {
		t.Fatalf("no requests should have been issued, transport errors = %d", result.TransportErrors)
	}
	if result.ResumeOffset != 5 {
		t.Fatalf("resume offset = %d, want 5", result.ResumeOffset)
	}
}

func TestRunResumesFromPersistedCount(t *testing.T) {
	transport := httpmock.NewMockTransport()
	registerDetail(transport, "b", "B")
	registerDetail(transport, "c", "C")

	sink := newMemSink(1) // "a" counts as already persisted
	result := runWith(t, testConfig(), sink, transport, []string{"a", "b", "c"})

	if result.Attempted != 2 || result.Persisted != 2 {
		t.Fatalf("attempted/persisted = %d/%d, want 2/2", result.Attempted, result.Persisted)
	}
	if sink.get("a") != nil {
		t.Fatalf("identifier before resume offset must not be fetched")
	}
}

func TestRunSoftMissNotPersisted(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://shop.test/products/1",
		httpmock.NewStringResponder(200, `<html><head><title>Product 1</title></head><body></body></html>`))

	sink := newMemSink(0)
	result := runWith(t, testConfig(), sink, transport, []string{"1"})

	if result.SoftMisses != 1 || result.Persisted != 0 {
		t.Fatalf("softMisses/persisted = %d/%d, want 1/0", result.SoftMisses, result.Persisted)
	}
	if sink.get("1") != nil {
		t.Fatalf("soft miss must not be persisted")
	}
}

func TestRunHTTPBlockCoolsDownRotatesAndRetries(t *testing.T) {
	var calls int
	var mu sync.Mutex
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://shop.test/products/123",
		func(req *http.Request) (*http.Response, error) {
			mu.Lock()
			calls++
			first := calls == 1
			mu.Unlock()
			if first {
				return httpmock.NewStringResponse(403, ""), nil
			}
			return httpmock.NewStringResponse(200, detailPage("123", "Recovered")), nil
		})
	transport.RegisterResponder("GET", "http://tags.test/api2/goods/123/tags",
		httpmock.NewStringResponder(200, `{"data":{"tags":[]}}`))

	sink := newMemSink(0)
	result := runWith(t, testConfig(), sink, transport, []string{"123"})

	if result.Blocks != 1 {
		t.Fatalf("blocks = %d, want 1", result.Blocks)
	}
	if result.Rotations < 1 {
		t.Fatalf("block must force a session rotation, got %d", result.Rotations)
	}
	if result.Persisted != 1 || sink.get("123") == nil {
		t.Fatalf("identifier must be retried and persisted after cooldown")
	}
}

func TestRunBlockPageSkipsIdentifier(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://shop.test/products/1",
		httpmock.NewStringResponder(200, `<html><head><title>Access Denied</title></head><body></body></html>`))
	registerDetail(transport, "2", "Next")

	sink := newMemSink(0)
	result := runWith(t, testConfig(), sink, transport, []string{"1", "2"})

	if result.Blocks != 1 {
		t.Fatalf("blocks = %d, want 1", result.Blocks)
	}
	if sink.get("1") != nil {
		t.Fatalf("block-page identifier must be skipped")
	}
	if sink.get("2") == nil {
		t.Fatalf("run must continue after a block-page cooldown")
	}
}

func TestRunTransportErrorSkipsAfterRecovery(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://shop.test/products/1",
		httpmock.NewErrorResponder(errors.New("connection refused")))
	registerDetail(transport, "2", "Next")

	sink := newMemSink(0)
	result := runWith(t, testConfig(), sink, transport, []string{"1", "2"})

	if result.TransportErrors != 1 {
		t.Fatalf("transport errors = %d, want 1", result.TransportErrors)
	}
	if sink.get("1") != nil {
		t.Fatalf("failed identifier must be skipped, not persisted")
	}
	if sink.get("2") == nil {
		t.Fatalf("run must continue after a transport error")
	}
}

func TestRunTransportRetryRecoversIdentifier(t *testing.T) {
	cfg := testConfig()
	cfg.TransportRetries = 2
	cfg.RetryBackoff = 10 * time.Millisecond
	cfg.RetryBackoffMax = 20 * time.Millisecond

	var calls int
	var mu sync.Mutex
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://shop.test/products/1",
		func(req *http.Request) (*http.Response, error) {
			mu.Lock()
			calls++
			first := calls == 1
			mu.Unlock()
			if first {
				return nil, errors.New("connection reset")
			}
			return httpmock.NewStringResponse(200, detailPage("1", "Retried")), nil
		})
	transport.RegisterResponder("GET", "http://tags.test/api2/goods/1/tags",
		httpmock.NewStringResponder(200, `{"data":{"tags":[]}}`))

	sink := newMemSink(0)
	result := runWith(t, cfg, sink, transport, []string{"1"})

	if result.Persisted != 1 || sink.get("1") == nil {
		t.Fatalf("identifier must be persisted after transport retry")
	}
	if result.TransportErrors != 1 {
		t.Fatalf("transport errors = %d, want 1", result.TransportErrors)
	}
}

func TestRunDuplicateIdentifiersInInput(t *testing.T) {
	transport := httpmock.NewMockTransport()
	registerDetail(transport, "1", "Once")

	sink := newMemSink(0)
	result := runWith(t, testConfig(), sink, transport, []string{"1", "1"})

	if result.Attempted != 1 {
		t.Fatalf("attempted = %d, want 1 (duplicate suppressed)", result.Attempted)
	}
	if result.Duplicates != 1 {
		t.Fatalf("duplicates = %d, want 1", result.Duplicates)
	}
}

func TestRunPersistErrorContinues(t *testing.T) {
	transport := httpmock.NewMockTransport()
	registerDetail(transport, "1", "A")
	registerDetail(transport, "2", "B")

	sink := newMemSink(0)
	sink.failInsert = true
	result := runWith(t, testConfig(), sink, transport, []string{"1", "2"})

	if result.PersistErrors != 2 {
		t.Fatalf("persist errors = %d, want 2", result.PersistErrors)
	}
	if result.Attempted != 2 {
		t.Fatalf("run must continue past persistence errors, attempted = %d", result.Attempted)
	}
}

func TestRunWorkerPoolMode(t *testing.T) {
	cfg := testConfig()
	cfg.Workers = 2

	transport := httpmock.NewMockTransport()
	ids := []string{"1", "2", "3", "4"}
	for _, id := range ids {
		registerDetail(transport, id, "Item "+id)
	}

	sink := newMemSink(0)
	result := runWith(t, cfg, sink, transport, ids)

	if result.Persisted != len(ids) {
		t.Fatalf("persisted = %d, want %d", result.Persisted, len(ids))
	}
	for _, id := range ids {
		if sink.get(id) == nil {
			t.Fatalf("identifier %s missing from sink", id)
		}
	}
}
