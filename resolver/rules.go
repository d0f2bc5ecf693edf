package resolver

import (
	"strconv"
	"strings"
)

// rule is one extraction attempt against a product node. Rules for a logical
// field are tried in order; the first present, non-empty value wins.
type rule func(node map[string]any) (any, bool)

// key reads a top-level field.
func key(name string) rule {
	return func(node map[string]any) (any, bool) {
		value, ok := node[name]
		if !ok || value == nil {
			return nil, false
		}
		return value, true
	}
}

// path follows a chain of nested object keys.
func path(names ...string) rule {
	return func(node map[string]any) (any, bool) {
		var current any = node
		for _, name := range names {
			m, ok := current.(map[string]any)
			if !ok {
				return nil, false
			}
			current, ok = m[name]
			if !ok || current == nil {
				return nil, false
			}
		}
		return current, true
	}
}

func firstString(node map[string]any, rules ...rule) string {
	for _, r := range rules {
		if value, ok := r(node); ok {
			if s := asString(value); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstInt(node map[string]any, rules ...rule) int64 {
	for _, r := range rules {
		if value, ok := r(node); ok {
			if n, ok := asInt64(value); ok {
				return n
			}
		}
	}
	return 0
}

func firstFloat(node map[string]any, rules ...rule) float64 {
	for _, r := range rules {
		if value, ok := r(node); ok {
			if f, ok := asFloat64(value); ok {
				return f
			}
		}
	}
	return 0
}

func firstMap(node map[string]any, rules ...rule) map[string]any {
	for _, r := range rules {
		if value, ok := r(node); ok {
			if m, ok := value.(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

// asString renders scalar JSON values as strings. Numbers lose no precision
// for the integer identifiers this deals with; 123.0 renders as "123" so
// numeric and string identifiers compare equal.
func asString(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func asInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return int64(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func asFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return f, true
		}
		return 0, false
	default:
		return 0, false
	}
}
