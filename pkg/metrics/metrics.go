package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ consume latency (ms)
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// Outbound calls to the payment processor and generative providers (ms)
	ExternalCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "external_call_latency_ms",
			Help:    "Payment processor and generative provider call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(50, 2, 10), // 50ms to ~25s
		},
		[]string{"service", "endpoint", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation"},
	)

	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Statements slower than the configured threshold",
		},
		[]string{"operation"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	// Engagement lifecycle transitions
	EngagementEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_events_total",
			Help: "Lifecycle events: gig_created, bid_placed, bid_awarded, project_completed, ...",
		},
		[]string{"event"},
	)

	// Rejected operations by error kind
	OperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "operation_errors_total",
			Help: "Core operations that failed, by operation and error kind",
		},
		[]string{"operation", "kind"},
	)

	SettledAmount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_amount_total",
			Help: "Captured money split into platform fee and freelancer earnings",
		},
		[]string{"part"}, // part: platform_fee, freelancer_earnings
	)

	QuotaDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_decisions_total",
			Help: "AI-assist quota checks by tier and outcome",
		},
		[]string{"tier", "outcome"}, // outcome: allowed, exceeded
	)

	QuotaResets = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quota_resets_total",
			Help: "Monthly quota resets applied",
		},
	)

	DuplicateDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duplicate_deliveries_total",
			Help: "Webhook or capture deliveries skipped as already applied",
		},
		[]string{"source"},
	)
)

func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

func RecordExternalCallLatency(service, endpoint, status string, duration time.Duration) {
	ExternalCallLatency.WithLabelValues(service, endpoint, status).Observe(float64(duration.Milliseconds()))
}

func RecordDBQueryDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func IncrementSlowQuery(operation string) {
	SlowQueryCount.WithLabelValues(operation).Inc()
}

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func IncrementEngagementEvent(event string) {
	EngagementEvents.WithLabelValues(event).Inc()
}

func IncrementOperationError(operation, kind string) {
	OperationErrors.WithLabelValues(operation, kind).Inc()
}

func AddSettledAmount(platformFee, freelancerEarnings float64) {
	SettledAmount.WithLabelValues("platform_fee").Add(platformFee)
	SettledAmount.WithLabelValues("freelancer_earnings").Add(freelancerEarnings)
}

func IncrementQuotaDecision(tier, outcome string) {
	QuotaDecisions.WithLabelValues(tier, outcome).Inc()
}

func IncrementQuotaReset(n int) {
	QuotaResets.Add(float64(n))
}

func IncrementDuplicateDelivery(source string) {
	DuplicateDeliveries.WithLabelValues(source).Inc()
}
