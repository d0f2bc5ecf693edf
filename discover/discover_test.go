package discover

import (
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/minjk-dev/go-scrape-musinsa/input"
)

func testOptions() Options {
	return Options{
		BaseURL:     "http://listing.test",
		Category:    "001",
		MaxPages:    10,
		Delay:       time.Millisecond,
		RandomDelay: time.Millisecond,
	}
}

func listingResponder(t *testing.T, pages map[string]string) httpmock.Responder {
	t.Helper()
	return func(req *http.Request) (*http.Response, error) {
		page := req.URL.Query().Get("page")
		body, ok := pages[page]
		if !ok {
			body = `{"data":{"list":[]}}`
		}
		return httpmock.NewStringResponse(200, body), nil
	}
}

func TestRunCollectsUntilEmptyPage(t *testing.T) {
	pages := map[string]string{
		"1": `{"data":{"list":[
			{"goodsNo":101,"thumbnail":"http://img/101","goodsName":"Shirt"},
			{"goodsNo":102,"thumbnail":"http://img/102","goodsName":"Pants"}
		]}}`,
		"2": `{"data":{"list":[
			{"goodsNo":103,"thumbnail":"http://img/103","goodsName":"Coat"}
		]}}`,
	}

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", `=~^http://listing\.test/api2/dp/v1/plp/goods`, listingResponder(t, pages))

	cr, err := New(testOptions())
	if err != nil {
		t.Fatalf("new crawler: %v", err)
	}
	cr.SetTransport(transport)

	items, err := cr.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	if items[0].GoodsNo != "101" || items[0].GoodsName != "Shirt" {
		t.Fatalf("first item = %+v", items[0])
	}
}

func TestRunStopsOnPageError(t *testing.T) {
	pages := map[string]string{
		"1": `{"data":{"list":[{"goodsNo":1,"thumbnail":"","goodsName":"A"}]}}`,
	}

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", `=~^http://listing\.test/api2/dp/v1/plp/goods`,
		func(req *http.Request) (*http.Response, error) {
			if req.URL.Query().Get("page") == "2" {
				return httpmock.NewStringResponse(500, ""), nil
			}
			return httpmock.NewStringResponse(200, pages["1"]), nil
		})

	cr, err := New(testOptions())
	if err != nil {
		t.Fatalf("new crawler: %v", err)
	}
	cr.SetTransport(transport)

	items, err := cr.Run()
	if err == nil {
		t.Fatalf("expected error from failing page")
	}
	if len(items) != 1 {
		t.Fatalf("items gathered before failure = %d, want 1", len(items))
	}
}

func TestPageURLParameters(t *testing.T) {
	cr, err := New(testOptions())
	if err != nil {
		t.Fatalf("new crawler: %v", err)
	}

	parsed, err := url.Parse(cr.pageURL(3))
	if err != nil {
		t.Fatalf("parse page url: %v", err)
	}
	q := parsed.Query()
	for key, want := range map[string]string{
		"category": "001",
		"gf":       "M",
		"sortCode": "POPULAR",
		"size":     "60",
		"page":     "3",
	} {
		if got := q.Get(key); got != want {
			t.Fatalf("query %s = %q, want %q", key, got, want)
		}
	}
}

func TestWriteCSVRoundTripsThroughLoader(t *testing.T) {
	items := []Item{
		{GoodsNo: "101", Thumbnail: "http://img/101", GoodsName: "Shirt"},
		{GoodsNo: "102", Thumbnail: "http://img/102", GoodsName: "Pants"},
	}
	path := filepath.Join(t.TempDir(), "ids.csv")

	if err := WriteCSV(items, path); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	ids, err := input.LoadIdentifiers(path)
	if err != nil {
		t.Fatalf("load identifiers: %v", err)
	}
	if fmt.Sprint(ids) != "[101 102]" {
		t.Fatalf("ids = %v, want [101 102]", ids)
	}
}
