package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are registered with the default registry through promauto

var (
	// ==================== HTTP METRICS ====================

	// HTTPRequestDuration tracks the duration of HTTP requests
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTPRequestsTotal counts total HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTPRequestsInFlight tracks currently processing requests
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// ==================== CACHE METRICS ====================

	// CacheHitsTotal counts cache hits
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// CacheMissesTotal counts cache misses
	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheOperationDuration tracks cache operation latency
	CacheOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_operation_duration_seconds",
			Help:    "Duration of cache operations in seconds",
			Buckets: []float64{.0001, .0005, .001, .0025, .005, .01, .025, .05},
		},
		[]string{"operation"}, // get, set, setnx
	)

	// ==================== RATE LIMITING METRICS ====================

	// RateLimitedRequestsTotal counts rate-limited requests
	RateLimitedRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Total number of rate-limited requests",
		},
	)

	// RateLimitAllowedRequestsTotal counts allowed requests
	RateLimitAllowedRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limit_allowed_requests_total",
			Help: "Total number of requests allowed by rate limiter",
		},
	)

	// ==================== REFERRAL METRICS ====================

	// ReferralClicksTotal counts affiliate link clicks by outcome
	ReferralClicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_clicks_total",
			Help: "Total number of affiliate link clicks",
		},
		[]string{"outcome"}, // matched, unmatched, invalid
	)

	// ReferralsRecordedTotal counts referral rows written
	ReferralsRecordedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "referrals_recorded_total",
			Help: "Total number of referrals persisted",
		},
	)

	// ReferralPersistErrorsTotal counts referral writes that failed and were dropped
	ReferralPersistErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "referral_persist_errors_total",
			Help: "Total number of referral writes that failed",
		},
	)

	// RedirectsTotal counts redirects by the fallback tier that produced them
	RedirectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redirects_total",
			Help: "Total number of affiliate redirects",
		},
		[]string{"tier"}, // target, business_domain, error_page
	)

	// OrdersClassifiedTotal counts attribution decisions by detection method
	OrdersClassifiedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_classified_total",
			Help: "Total number of orders classified by the attribution matcher",
		},
		[]string{"method"},
	)

	// ==================== INGESTION METRICS ====================

	// WebhooksReceivedTotal counts platform webhooks by topic and result
	WebhooksReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_received_total",
			Help: "Total number of platform webhooks received",
		},
		[]string{"topic", "result"},
	)

	// TrackingEventsTotal counts browser tracking events by result
	TrackingEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_events_total",
			Help: "Total number of tracking events received",
		},
		[]string{"result"},
	)

	// SinkErrorsTotal counts failed deliveries to downstream sinks
	SinkErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sink_errors_total",
			Help: "Total number of failed deliveries to downstream sinks",
		},
		[]string{"sink"}, // forwarder, kafka, archive
	)

	// ==================== DATABASE METRICS ====================

	// DatabaseQueryDuration tracks database query latency
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"}, // e.g. referral_create, order_list
	)

	// DatabaseErrorsTotal counts database errors
	DatabaseErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_errors_total",
			Help: "Total number of database errors",
		},
		[]string{"operation"},
	)
)

// RecordCacheHit increments cache hit counter
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss increments cache miss counter
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordClick increments the click counter for an outcome
func RecordClick(outcome string) {
	ReferralClicksTotal.WithLabelValues(outcome).Inc()
}

// RecordReferralRecorded increments the persisted referral counter
func RecordReferralRecorded() {
	ReferralsRecordedTotal.Inc()
}

// RecordReferralPersistError increments the dropped referral counter
func RecordReferralPersistError() {
	ReferralPersistErrorsTotal.Inc()
}

// RecordRedirect increments the redirect counter for a tier
func RecordRedirect(tier string) {
	RedirectsTotal.WithLabelValues(tier).Inc()
}

// RecordOrderClassified increments the classification counter for a method
func RecordOrderClassified(method string) {
	OrdersClassifiedTotal.WithLabelValues(method).Inc()
}

// RecordWebhook increments the webhook counter
func RecordWebhook(topic, result string) {
	WebhooksReceivedTotal.WithLabelValues(topic, result).Inc()
}

// RecordTrackingEvent increments the tracking event counter
func RecordTrackingEvent(result string) {
	TrackingEventsTotal.WithLabelValues(result).Inc()
}

// RecordSinkError increments the sink failure counter
func RecordSinkError(sink string) {
	SinkErrorsTotal.WithLabelValues(sink).Inc()
}

// ObserveQuery records the latency of a database operation
func ObserveQuery(operation string, start time.Time, err error) {
	DatabaseQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		DatabaseErrorsTotal.WithLabelValues(operation).Inc()
	}
}

// RecordRateLimited increments rate-limited requests counter
func RecordRateLimited() {
	RateLimitedRequestsTotal.Inc()
}

// RecordRateLimitAllowed increments allowed requests counter
func RecordRateLimitAllowed() {
	RateLimitAllowedRequestsTotal.Inc()
}
