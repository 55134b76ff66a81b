// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// RPC metrics
	RPCCallLatency   *prometheus.HistogramVec
	RPCCallErrors    *prometheus.CounterVec
	EndpointFailover prometheus.Counter

	// Fetch metrics
	BalancesFetched prometheus.Counter
	HoldingsFound   prometheus.Gauge

	// Pricing metrics
	QuotesRequested *prometheus.CounterVec
	QuoteLatency    prometheus.Histogram
	TokensPriced    *prometheus.CounterVec

	// Swap metrics
	SwapsExecuted      *prometheus.CounterVec
	SwapAttempts       prometheus.Histogram
	SwapDuration       prometheus.Histogram
	LiquidatedValueUSD prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulAnalysis prometheus.Gauge
	UptimeSeconds          prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_exit_desk"
	}

	return &Metrics{
		// RPC metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of RPC call errors by method",
		}, []string{"method"}),
		EndpointFailover: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "endpoint_failovers_total",
			Help:      "Total number of endpoint rotations caused by throttling or auth errors",
		}),

		// Fetch metrics
		BalancesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "balances",
			Name:      "fetches_total",
			Help:      "Total number of completed balance fetches",
		}),
		HoldingsFound: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "balances",
			Name:      "holdings_found",
			Help:      "Number of non-zero holdings in the last fetch",
		}),

		// Pricing metrics
		QuotesRequested: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "quotes_requested_total",
			Help:      "Total number of quote requests by outcome",
		}, []string{"outcome"}),
		QuoteLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "quote_latency_seconds",
			Help:      "Aggregator quote latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		TokensPriced: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "tokens_priced_total",
			Help:      "Total number of tokens priced by status",
		}, []string{"status"}),

		// Swap metrics
		SwapsExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "executed_total",
			Help:      "Total number of swap executions by outcome",
		}, []string{"outcome"}),
		SwapAttempts: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "attempts_per_token",
			Help:      "Attempts consumed per token before a terminal state",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
		SwapDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "duration_seconds",
			Help:      "End-to-end duration of one token swap in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		LiquidatedValueUSD: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "liquidated_value_usd_total",
			Help:      "Cumulative USD value of confirmed liquidations",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"operation"}),

		// Health metrics
		LastSuccessfulAnalysis: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_analysis_timestamp",
			Help:      "Unix timestamp of last successful analysis run",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordRPCError increments the RPC error counter for a method.
func RecordRPCError(method string) {
	DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
}

// RecordFailover increments the endpoint failover counter.
func RecordFailover() {
	DefaultMetrics.EndpointFailover.Inc()
}

// RecordQuote records one quote request by outcome ("ok", "no_route",
// "rate_limited", "error").
func RecordQuote(outcome string, seconds float64) {
	DefaultMetrics.QuotesRequested.WithLabelValues(outcome).Inc()
	DefaultMetrics.QuoteLatency.Observe(seconds)
}

// RecordTokenPriced increments the priced-token counter by status.
func RecordTokenPriced(status string) {
	DefaultMetrics.TokensPriced.WithLabelValues(status).Inc()
}

// RecordSwap records one terminal swap outcome.
func RecordSwap(outcome string, attempts int, durationSeconds float64) {
	DefaultMetrics.SwapsExecuted.WithLabelValues(outcome).Inc()
	DefaultMetrics.SwapAttempts.Observe(float64(attempts + 1))
	DefaultMetrics.SwapDuration.Observe(durationSeconds)
}

// RecordLiquidatedValue adds a confirmed liquidation's USD value.
func RecordLiquidatedValue(usd float64) {
	if usd > 0 {
		DefaultMetrics.LiquidatedValueUSD.Add(usd)
	}
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(operation).Inc()
	}
}
