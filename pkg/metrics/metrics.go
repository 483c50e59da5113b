package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	CirculationChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circulation_checks_total",
			Help: "Total number of circulation checks by mode and outcome (count)",
		},
		[]string{"mode", "outcome"},
	)

	CirculationEvaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "circulation_check_duration_ms",
			Help:    "End-to-end duration of circulation checks in milliseconds",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"mode"},
	)

	RuleCacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rule_cache_requests_total",
			Help: "Rule snapshot cache lookups by result (hit, miss, error) (count)",
		},
		[]string{"result"},
	)

	RuleCacheInvalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rule_cache_invalidations_total",
			Help: "Rule snapshot invalidations by origin (local, event) (count)",
		},
		[]string{"origin"},
	)

	AuditRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_records_total",
			Help: "Audit records written per sink and status (count)",
		},
		[]string{"sink", "status"},
	)

	AuditDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_records_dropped_total",
			Help: "Audit records dropped because the queue was full (count)",
		},
	)

	AuditQueueSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_queue_size",
			Help: "Current number of audit records waiting to be written (count)",
		},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "target"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"repository", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"repository", "operation"},
	)
)

var (
	circulationOnce    sync.Once
	auditOnce          sync.Once
	brokerOnce         sync.Once
	circuitBreakerOnce sync.Once
	httpOnce           sync.Once
)

func RegisterCirculationMetrics() {
	circulationOnce.Do(func() {
		prometheus.MustRegister(CirculationChecksTotal)
		prometheus.MustRegister(CirculationEvaluationDuration)
		prometheus.MustRegister(RuleCacheRequestsTotal)
		prometheus.MustRegister(RuleCacheInvalidationsTotal)
	})
}

func RegisterAuditMetrics() {
	auditOnce.Do(func() {
		prometheus.MustRegister(AuditRecordsTotal)
		prometheus.MustRegister(AuditDroppedTotal)
		prometheus.MustRegister(AuditQueueSize)
	})
}

func RegisterBrokerMetrics() {
	brokerOnce.Do(func() {
		prometheus.MustRegister(RetryAttemptsTotal)
		prometheus.MustRegister(DLQMessagesTotal)
		prometheus.MustRegister(KafkaMessagesReadTotal)
		prometheus.MustRegister(KafkaMessagesWrittenTotal)
		prometheus.MustRegister(KafkaWriteDuration)
	})
}

func RegisterCircuitBreakerMetrics() {
	circuitBreakerOnce.Do(func() {
		prometheus.MustRegister(CircuitBreakerState)
		prometheus.MustRegister(CircuitBreakerRequests)
		prometheus.MustRegister(CircuitBreakerFailures)
	})
}

func RegisterHTTPMetrics() {
	httpOnce.Do(func() {
		prometheus.MustRegister(RateLimitRequestsTotal)
		prometheus.MustRegister(DatabaseQueriesTotal)
		prometheus.MustRegister(DatabaseQueryDuration)
	})
}

func IncCirculationCheck(mode, outcome string) {
	CirculationChecksTotal.WithLabelValues(mode, outcome).Inc()
}

func ObserveCirculationDuration(mode string, duration time.Duration) {
	CirculationEvaluationDuration.WithLabelValues(mode).Observe(float64(duration) / float64(time.Millisecond))
}

func IncRuleCache(result string) {
	RuleCacheRequestsTotal.WithLabelValues(result).Inc()
}

func IncRuleCacheInvalidation(origin string) {
	RuleCacheInvalidationsTotal.WithLabelValues(origin).Inc()
}

func IncAuditRecord(sink, status string) {
	AuditRecordsTotal.WithLabelValues(sink, status).Inc()
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

// ObserveQuery records one repository call. status is "success" or "error".
func ObserveQuery(repository, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseQueriesTotal.WithLabelValues(repository, operation, status).Inc()
	DatabaseQueryDuration.WithLabelValues(repository, operation).Observe(float64(time.Since(start).Milliseconds()))
}
