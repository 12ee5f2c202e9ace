// Package metrics defines Prometheus metrics for coinwatch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "coinwatch"

// HTTP metrics.
var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})
)

// Health probe gauges (1 = passing, 0 = failing).
var (
	HealthzUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "healthz_up",
		Help:      "Whether the last liveness probe succeeded.",
	})

	ReadyzUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "readyz_up",
		Help:      "Whether the last readiness probe succeeded.",
	})
)

// Monitoring tick metrics.
var (
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tick_duration_seconds",
		Help:      "Duration of monitoring ticks in seconds.",
		Buckets:   prometheus.DefBuckets,
	})

	SamplesWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "samples_written_total",
		Help:      "Total number of price samples persisted.",
	})

	TickChainErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tick_chain_errors_total",
		Help:      "Total number of per-chain failures during ticks.",
	})

	PriceNotFoundTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "price_not_found_total",
		Help:      "Total number of ticks where a chain's price was unavailable.",
	})
)

// Market provider metrics.
var (
	MarketAPICallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "market_api_calls_total",
		Help:      "Total cumulative market-data provider API calls.",
	})

	MarketDailyUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "market_daily_usage",
		Help:      "Provider API call count within the rolling 24-hour window.",
	})

	MarketDailyLimitHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "market_daily_limit_hits_total",
		Help:      "Total number of times the daily provider API limit was reached.",
	})
)

// Alerting metrics.
var (
	SurgeAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "surge_alerts_total",
		Help:      "Total number of surge notifications sent.",
	})

	AlertsFiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_fired_total",
		Help:      "Total number of price-target alerts fired.",
	})

	NotificationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_failures_total",
		Help:      "Total number of notification send failures.",
	})
)
