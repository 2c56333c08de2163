package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the resilience layer
type Metrics struct {
	// Rate limiter metrics
	RateLimitDecisions  *prometheus.CounterVec
	RateLimitViolations *prometheus.CounterVec
	RateLimitEntries    prometheus.Gauge
	TokenBucketDenials  *prometheus.CounterVec
	SweepDuration       prometheus.Histogram

	// Retry engine metrics
	RetryAttempts    *prometheus.CounterVec
	RetrySuccesses   prometheus.Counter
	RetryExhaustions *prometheus.CounterVec
	ManagedErrors    *prometheus.CounterVec

	// Alerting metrics
	AlertsTriggered prometheus.Counter
	AlertsResolved  prometheus.Counter
	ActiveAlerts    prometheus.Gauge
	EvaluationRuns  prometheus.Counter

	// Notification metrics
	NotificationsSent   *prometheus.CounterVec
	NotificationsFailed *prometheus.CounterVec

	registry *prometheus.Registry
	enabled  bool
}

// Config holds metrics configuration
type Config struct {
	Namespace string `json:"namespace"`
	Enabled   bool   `json:"enabled"`
}

// DefaultConfig returns default metrics configuration
func DefaultConfig() *Config {
	return &Config{
		Namespace: "flynnai",
		Enabled:   true,
	}
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(config *Config) *Metrics {
	if config == nil {
		config = DefaultConfig()
	}

	if !config.Enabled {
		return &Metrics{}
	}

	m := &Metrics{
		RateLimitDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "ratelimit_decisions_total",
				Help:      "Total number of rate limit decisions",
			},
			[]string{"outcome", "route"},
		),
		RateLimitViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "ratelimit_violations_total",
				Help:      "Total number of rate limit violations recorded",
			},
			[]string{"route"},
		),
		RateLimitEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Name:      "ratelimit_window_entries",
				Help:      "Number of tracked rate limit window entries",
			},
		),
		TokenBucketDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "ratelimit_token_bucket_denials_total",
				Help:      "Total number of token bucket denials",
			},
			[]string{"key"},
		),
		SweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Name:      "ratelimit_sweep_duration_seconds",
				Help:      "Duration of rate limit cleanup sweeps",
				Buckets:   prometheus.DefBuckets,
			},
		),
		RetryAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "retry_attempts_total",
				Help:      "Total number of operation attempts by the retry engine",
			},
			[]string{"kind", "outcome"},
		),
		RetrySuccesses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "retry_successes_total",
				Help:      "Total number of operations that eventually succeeded",
			},
		),
		RetryExhaustions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "retry_exhaustions_total",
				Help:      "Total number of operations that exhausted their retry budget",
			},
			[]string{"kind"},
		),
		ManagedErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "managed_errors_total",
				Help:      "Total number of classified errors by kind and severity",
			},
			[]string{"kind", "severity"},
		),
		AlertsTriggered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "alerts_triggered_total",
				Help:      "Total number of alerts triggered",
			},
		),
		AlertsResolved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "alerts_resolved_total",
				Help:      "Total number of alerts resolved",
			},
		),
		ActiveAlerts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Name:      "alerts_active",
				Help:      "Number of currently active alerts",
			},
		),
		EvaluationRuns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "alert_evaluation_runs_total",
				Help:      "Total number of alert rule evaluation cycles",
			},
		),
		NotificationsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "notifications_sent_total",
				Help:      "Total number of notifications dispatched",
			},
			[]string{"channel"},
		),
		NotificationsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "notifications_failed_total",
				Help:      "Total number of notification dispatch failures",
			},
			[]string{"channel"},
		),
		registry: prometheus.NewRegistry(),
		enabled:  true,
	}

	m.registry.MustRegister(
		m.RateLimitDecisions,
		m.RateLimitViolations,
		m.RateLimitEntries,
		m.TokenBucketDenials,
		m.SweepDuration,
		m.RetryAttempts,
		m.RetrySuccesses,
		m.RetryExhaustions,
		m.ManagedErrors,
		m.AlertsTriggered,
		m.AlertsResolved,
		m.ActiveAlerts,
		m.EvaluationRuns,
		m.NotificationsSent,
		m.NotificationsFailed,
	)

	return m
}

// Enabled reports whether metrics collection is active
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Recording helpers are safe to call on a nil or disabled Metrics.

func (m *Metrics) RecordRateLimitDecision(outcome, route string) {
	if m.Enabled() {
		m.RateLimitDecisions.WithLabelValues(outcome, route).Inc()
	}
}

func (m *Metrics) RecordRateLimitViolation(route string) {
	if m.Enabled() {
		m.RateLimitViolations.WithLabelValues(route).Inc()
	}
}

func (m *Metrics) SetRateLimitEntries(n int) {
	if m.Enabled() {
		m.RateLimitEntries.Set(float64(n))
	}
}

func (m *Metrics) RecordTokenBucketDenial(key string) {
	if m.Enabled() {
		m.TokenBucketDenials.WithLabelValues(key).Inc()
	}
}

func (m *Metrics) ObserveSweepDuration(seconds float64) {
	if m.Enabled() {
		m.SweepDuration.Observe(seconds)
	}
}

func (m *Metrics) RecordRetryAttempt(kind, outcome string) {
	if m.Enabled() {
		m.RetryAttempts.WithLabelValues(kind, outcome).Inc()
	}
}

func (m *Metrics) RecordRetrySuccess() {
	if m.Enabled() {
		m.RetrySuccesses.Inc()
	}
}

func (m *Metrics) RecordRetryExhaustion(kind string) {
	if m.Enabled() {
		m.RetryExhaustions.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) RecordManagedError(kind, severity string) {
	if m.Enabled() {
		m.ManagedErrors.WithLabelValues(kind, severity).Inc()
	}
}

func (m *Metrics) RecordAlertTriggered() {
	if m.Enabled() {
		m.AlertsTriggered.Inc()
	}
}

func (m *Metrics) RecordAlertResolved() {
	if m.Enabled() {
		m.AlertsResolved.Inc()
	}
}

func (m *Metrics) SetActiveAlerts(n int) {
	if m.Enabled() {
		m.ActiveAlerts.Set(float64(n))
	}
}

func (m *Metrics) RecordEvaluationRun() {
	if m.Enabled() {
		m.EvaluationRuns.Inc()
	}
}

func (m *Metrics) RecordNotificationSent(channel string) {
	if m.Enabled() {
		m.NotificationsSent.WithLabelValues(channel).Inc()
	}
}

func (m *Metrics) RecordNotificationFailed(channel string) {
	if m.Enabled() {
		m.NotificationsFailed.WithLabelValues(channel).Inc()
	}
}

// Handler returns an HTTP handler exposing the metrics registry
func (m *Metrics) Handler() http.Handler {
	if !m.enabled {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
