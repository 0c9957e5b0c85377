package cache

import (
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// SymbolParam is the query parameter normalized by NormalizeSymbol.
const SymbolParam = "symbol"

var aShareSymbol = regexp.MustCompile(`^(\d{6})(\.(SH|SZ))?$`)

// CacheKey identifies a hot cache entry.
type CacheKey struct {
	// Item is the provider item identifier (e.g. "stock_zh_a_hist").
	Item string

	// Params are the request's query parameters. Order does not matter.
	Params url.Values
}

// String generates a deterministic cache key string.
// Format: hot:item:param1=val1:param2=val2a,val2b
//
// Example:
//
//	hot:stock_zh_a_hist:period=daily:symbol=600519
func (k CacheKey) String() string {
	parts := []string{"hot"}

	item := strings.Trim(k.Item, "/")
	if item != "" {
		parts = append(parts, item)
	}

	names := make([]string, 0, len(k.Params))
	for name := range k.Params {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		values := slices.Clone(k.Params[name])
		if name == SymbolParam {
			for i, v := range values {
				values[i] = NormalizeSymbol(v)
			}
		}
		slices.Sort(values)
		parts = append(parts, name+"="+strings.Join(values, ","))
	}

	return strings.Join(parts, ":")
}

// NormalizeSymbol maps an exchange-qualified A-share code (600519.SH,
// 002340.sz) to its bare six-digit form so both spellings share an entry.
// Other symbols are returned unchanged.
func NormalizeSymbol(symbol string) string {
	m := aShareSymbol.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(symbol)))
	if m == nil {
		return symbol
	}
	return m[1]
}
