// Package resolver locates a product record inside the variably-shaped
// embedded JSON payload and normalizes it into a fixed schema.
//
// The payload has shipped in several mutually exclusive layouts over time.
// Resolution walks an ordered list of known shapes, first match wins:
//
//  1. props.pageProps.meta.data, accepted only when its own identifier
//     matches the requested one.
//  2. props.pageProps.dehydratedState.queries[].state.data, matched on the
//     identifier under known aliases, or nested one level under a
//     "product" or "goods" sub-key.
//
// Field extraction from the accepted node is alias-tolerant: each logical
// field is read from an ordered rule list, taking the first present,
// non-empty value. Absent numerics normalize to 0, absent strings to "".
package resolver

import (
	"errors"
	"time"

	"github.com/minjk-dev/go-scrape-musinsa/models"
)

// ErrNotFound is returned when no payload shape yields a node whose
// identifier matches the requested one. Callers treat it as a soft miss.
var ErrNotFound = errors.New("resolver: no matching product node")

var identifierAliases = []string{"goodsNo", "productNo"}

// Resolve finds the product node for id inside payload and normalizes it.
// The returned record's ProductID always equals the requested id.
func Resolve(payload map[string]any, id string) (*models.ProductRecord, error) {
	node, ok := FindProduct(payload, id)
	if !ok {
		return nil, ErrNotFound
	}
	return Normalize(node, id), nil
}

// FindProduct walks the known payload shapes and returns the first node
// whose identifier matches id.
func FindProduct(payload map[string]any, id string) (map[string]any, bool) {
	pageProps := firstMap(payload, path("props", "pageProps"))
	if pageProps == nil {
		return nil, false
	}

	// Newest layout: meta.data directly on pageProps.
	if data := firstMap(pageProps, path("meta", "data")); data != nil {
		if asString(data["goodsNo"]) == id {
			return data, true
		}
	}

	// Older layout: hydrated query cache.
	queries, _ := path("dehydratedState", "queries")(pageProps)
	list, ok := queries.([]any)
	if !ok {
		return nil, false
	}
	for _, entry := range list {
		query, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		data := firstMap(query, path("state", "data"))
		if data == nil {
			continue
		}
		if identifierMatches(data, id) {
			return data, true
		}
		for _, subKey := range []string{"product", "goods"} {
			if sub := firstMap(data, key(subKey)); sub != nil && identifierMatches(sub, id) {
				return sub, true
			}
		}
	}
	return nil, false
}

func identifierMatches(node map[string]any, id string) bool {
	for _, alias := range identifierAliases {
		if value, ok := node[alias]; ok && asString(value) == id {
			return true
		}
	}
	return false
}

// Normalize extracts the fixed field set from an accepted product node.
func Normalize(node map[string]any, id string) *models.ProductRecord {
	rec := &models.ProductRecord{
		ProductID:   id,
		ProductName: firstString(node, key("goodsNm"), key("goodsName"), key("productName")),
		Brand: firstString(node,
			path("brandInfo", "brandName"),
			key("brandName"),
			key("brand"),
		),
		SizeInfo:    models.DefaultSizeInfo,
		FitSeason:   models.DefaultFitSeason,
		CollectedAt: time.Now().UTC(),
	}

	price := firstMap(node, key("goodsPrice"), key("price"))
	if price != nil {
		rec.OriginalPrice = firstInt(price, key("normalPrice"), key("originPrice"))
		rec.SalePrice = firstInt(price, key("salePrice"), key("price"))
		rec.DiscountRate = firstInt(price, key("discountRate"))
	}

	rec.UpperCategory, rec.LowerCategory = extractCategory(node)
	rec.Gender = NormalizeGender(node["sex"])

	stats := firstMap(node, key("goodsReview"), key("goodsCount"), key("stat"))
	if stats != nil {
		rec.ReviewCount = firstInt(stats, key("totalCount"), key("reviewCount"))
		rec.Rating = firstFloat(stats, key("satisfactionScore"), key("reviewAverage"))
	}
	rec.WishCount = firstInt(node,
		path("goodsCount", "likeCount"),
		path("stat", "likeCount"),
	)
	rec.CumulativeSales = firstString(node, key("cumulativeSales"))
	if rec.CumulativeSales == "" && stats != nil {
		rec.CumulativeSales = firstString(stats, key("purchaseCount"))
	}

	return rec
}

// extractCategory prefers the structured category object's depth-1/depth-2
// titles, falling back to the first element of the category list.
func extractCategory(node map[string]any) (upper, lower string) {
	if cat := firstMap(node, key("category")); cat != nil {
		upper = firstString(cat, key("categoryDepth1Title"))
		lower = firstString(cat, key("categoryDepth2Title"))
	}
	if upper != "" {
		return upper, lower
	}
	if cats, ok := node["categories"].([]any); ok && len(cats) > 0 {
		if first, ok := cats[0].(map[string]any); ok {
			return firstString(first, key("depth1Title")), firstString(first, key("depth2Title"))
		}
	}
	return upper, lower
}

// Gender markers as the source emits them.
const (
	markerMale   = "남성"
	markerFemale = "여성"
)

// NormalizeGender maps the source's sex field to the 0/1/2 gender code.
// A list containing both markers, or neither, is unisex (0). Scalars map
// through a fixed token table; unrecognized values default to 0.
func NormalizeGender(value any) int {
	switch v := value.(type) {
	case []any:
		var male, female bool
		for _, entry := range v {
			switch asString(entry) {
			case markerMale:
				male = true
			case markerFemale:
				female = true
			}
		}
		switch {
		case male && female:
			return 0
		case male:
			return 1
		case female:
			return 2
		default:
			return 0
		}
	default:
		switch asString(value) {
		case "M", "MALE", markerMale:
			return 1
		case "F", "FEMALE", markerFemale:
			return 2
		default:
			return 0
		}
	}
}
