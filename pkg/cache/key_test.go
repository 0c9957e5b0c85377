package cache

import (
	"net/url"
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "item without params",
			key:  CacheKey{Item: "stock_info_a_code_name"},
			want: "hot:stock_info_a_code_name",
		},
		{
			name: "single param",
			key: CacheKey{
				Item:   "stock_zh_a_spot",
				Params: url.Values{"market": []string{"sh"}},
			},
			want: "hot:stock_zh_a_spot:market=sh",
		},
		{
			name: "multiple params (sorted)",
			key: CacheKey{
				Item: "stock_zh_a_hist",
				Params: url.Values{
					"period": []string{"daily"},
					"adjust": []string{"qfq"},
				},
			},
			want: "hot:stock_zh_a_hist:adjust=qfq:period=daily",
		},
		{
			name: "multi-valued param (sorted)",
			key: CacheKey{
				Item:   "quotes",
				Params: url.Values{"symbols": []string{"MSFT", "AAPL"}},
			},
			want: "hot:quotes:symbols=AAPL,MSFT",
		},
		{
			name: "exchange-qualified symbol normalized",
			key: CacheKey{
				Item:   "stock_zh_a_hist",
				Params: url.Values{"symbol": []string{"600519.SH"}},
			},
			want: "hot:stock_zh_a_hist:symbol=600519",
		},
		{
			name: "slashes trimmed from item",
			key:  CacheKey{Item: "/stock_zh_a_spot/"},
			want: "hot:stock_zh_a_spot",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("CacheKey.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCacheKey_OrderIndependent(t *testing.T) {
	a := CacheKey{Item: "x", Params: url.Values{}}
	a.Params.Add("b", "2")
	a.Params.Add("a", "1")

	b := CacheKey{Item: "x", Params: url.Values{}}
	b.Params.Add("a", "1")
	b.Params.Add("b", "2")

	if a.String() != b.String() {
		t.Errorf("keys differ: %q vs %q", a.String(), b.String())
	}
}

func TestCacheKey_DoesNotMutateParams(t *testing.T) {
	params := url.Values{"symbol": []string{"002340.sz", "000001"}}
	_ = CacheKey{Item: "x", Params: params}.String()

	if params["symbol"][0] != "002340.sz" {
		t.Errorf("params mutated: %v", params)
	}
}

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"600519.SH", "600519"},
		{"002340.sz", "002340"},
		{" 600519 ", "600519"},
		{"600519", "600519"},
		{"AAPL", "AAPL"},
		{"600519.HK", "600519.HK"},
		{"60051.SH", "60051.SH"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeSymbol(tt.in); got != tt.want {
				t.Errorf("NormalizeSymbol(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
