// Package metrics registers the Prometheus collectors exported on /metrics.
//
// Collectors are package-level promauto values so any component can record
// without plumbing a registry. Label values stay low-cardinality: job and item
// identifiers are never used as labels.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediabatch_jobs_total",
			Help: "Batch jobs that reached a terminal state",
		},
		[]string{"status"},
	)

	jobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediabatch_jobs_active",
			Help: "Batch jobs currently listing or processing",
		},
	)

	itemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediabatch_items_total",
			Help: "Items processed, by outcome (success, resumed, failure)",
		},
		[]string{"outcome"},
	)

	itemDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mediabatch_item_duration_seconds",
			Help:    "Wall time to process one item",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 2400},
		},
	)

	inferenceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediabatch_inference_requests_total",
			Help: "Model requests recorded by the usage meter",
		},
		[]string{"model"},
	)

	inferenceTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediabatch_inference_tokens_total",
			Help: "Model tokens consumed, by direction (input, output)",
		},
		[]string{"direction"},
	)

	usageRequestsToday = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediabatch_usage_requests_today",
			Help: "Requests counted against today's quota",
		},
	)

	usagePercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediabatch_usage_daily_percent",
			Help: "Share of the daily request quota consumed",
		},
	)

	usageCost = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediabatch_usage_cost_usd",
			Help: "Cumulative model cost in USD",
		},
	)

	listingCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediabatch_listing_cache_lookups_total",
			Help: "Remote folder listing cache lookups, by result (hit, miss)",
		},
		[]string{"result"},
	)
)

// JobStarted marks a job as in flight.
func JobStarted() {
	jobsActive.Inc()
}

// JobFinished records a terminal job state and releases the in-flight gauge.
func JobFinished(status string) {
	jobsActive.Dec()
	jobsTotal.WithLabelValues(status).Inc()
}

// ItemProcessed records one item outcome and how long it took.
func ItemProcessed(outcome string, seconds float64) {
	itemsTotal.WithLabelValues(outcome).Inc()
	if seconds > 0 {
		itemDuration.Observe(seconds)
	}
}

// InferenceRecorded records one metered model call.
func InferenceRecorded(model string, inputTokens, outputTokens int64) {
	if model == "" {
		model = "unknown"
	}
	inferenceRequests.WithLabelValues(model).Inc()
	if inputTokens > 0 {
		inferenceTokens.WithLabelValues("input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		inferenceTokens.WithLabelValues("output").Add(float64(outputTokens))
	}
}

// UsageObserved mirrors the meter's current quota occupancy.
func UsageObserved(requestsToday int, percent, totalCostUSD float64) {
	usageRequestsToday.Set(float64(requestsToday))
	usagePercent.Set(percent)
	usageCost.Set(totalCostUSD)
}

// ListingCacheLookup records a remote listing cache hit or miss.
func ListingCacheLookup(hit bool) {
	if hit {
		listingCacheLookups.WithLabelValues("hit").Inc()
		return
	}
	listingCacheLookups.WithLabelValues("miss").Inc()
}
