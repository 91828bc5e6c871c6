package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal counts completed poll cycles by outcome.
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etsy_sync_cycles_total",
		Help: "Poll cycles by result (ok, auth, rate_limited, upstream).",
	}, []string{"result"})

	// CycleDuration observes wall-clock time of one poll cycle.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "etsy_sync_cycle_duration_seconds",
		Help:    "Duration of one poll cycle.",
		Buckets: prometheus.DefBuckets,
	})

	// EventsTotal counts emitted change events by type.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etsy_sync_events_total",
		Help: "Change events by type (new_order, new_review, low_stock).",
	}, []string{"type"})

	// TokenRefreshesTotal counts refresh-token exchanges by outcome.
	TokenRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etsy_sync_token_refreshes_total",
		Help: "Token refreshes by result (ok, revoked, transient).",
	}, []string{"result"})

	// APIRequestsTotal counts upstream API requests by endpoint and status.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etsy_sync_api_requests_total",
		Help: "Upstream API requests by endpoint and HTTP status code.",
	}, []string{"endpoint", "code"})
)

// ObserveCycle records one finished cycle.
func ObserveCycle(result string, took time.Duration) {
	CyclesTotal.WithLabelValues(result).Inc()
	CycleDuration.Observe(took.Seconds())
}

// CountAPIRequest records one upstream request outcome.
func CountAPIRequest(endpoint string, statusCode int) {
	APIRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
}
