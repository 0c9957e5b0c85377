package rangecache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rangeRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_range_cache_requests_total",
		Help: "Total range cache requests by outcome",
	}, []string{"outcome"}) // "hit", "fetched", "partial", "stale", "failed"

	rangeGapFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_range_cache_gap_fetches_total",
		Help: "Total gap fetches by side and result",
	}, []string{"side", "result"})

	rangeRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_range_cache_records",
		Help: "Current number of range cache records",
	})

	rangeRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_range_cache_rows",
		Help: "Current number of rows held across all range cache records",
	})
)
