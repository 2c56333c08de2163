package alerting

import (
	"time"

	"github.com/atticusjxn/flynnai-sub001/pkg/errors"
)

// Metric is a closed enumeration of the operational metrics the engine
// evaluates. Using typed names instead of free-form strings turns a
// metric/rule mismatch into a visible skip rather than a silent no-op.
type Metric string

const (
	MetricErrorRate       Metric = "errorRate"             // percent
	MetricProcessingTime  Metric = "averageProcessingTime" // milliseconds
	MetricConfidenceScore Metric = "confidenceScore"       // 0..1
	MetricQueueDepth      Metric = "queueDepth"            // count
	MetricMemoryUsage     Metric = "memoryUsage"           // percent
)

// Snapshot is an immutable named-value map supplied per evaluation cycle.
type Snapshot map[Metric]float64

// MetricsSource supplies current metric values. The engine degrades
// gracefully when a referenced metric is absent from the snapshot.
type MetricsSource interface {
	Snapshot() Snapshot
}

// SnapshotFunc adapts a function to the MetricsSource interface.
type SnapshotFunc func() Snapshot

// Snapshot calls f.
func (f SnapshotFunc) Snapshot() Snapshot { return f() }

// Comparator compares a metric value against a rule threshold.
type Comparator string

const (
	ComparatorGT  Comparator = "gt"
	ComparatorGTE Comparator = "gte"
	ComparatorLT  Comparator = "lt"
	ComparatorLTE Comparator = "lte"
	ComparatorEQ  Comparator = "eq"
	ComparatorNE  Comparator = "ne"
)

// Compare evaluates value <comparator> threshold.
func (c Comparator) Compare(value, threshold float64) bool {
	switch c {
	case ComparatorGT:
		return value > threshold
	case ComparatorGTE:
		return value >= threshold
	case ComparatorLT:
		return value < threshold
	case ComparatorLTE:
		return value <= threshold
	case ComparatorEQ:
		return value == threshold
	case ComparatorNE:
		return value != threshold
	default:
		return false
	}
}

// Rule is an immutable threshold rule loaded at startup. Resolution is
// detected with the logical negation of the trigger condition; there is
// no separate hysteresis band.
type Rule struct {
	ID         string          `json:"id"`
	Metric     Metric          `json:"metric"`
	Comparator Comparator      `json:"comparator"`
	Threshold  float64         `json:"threshold"`
	Severity   errors.Severity `json:"severity"`
	Cooldown   time.Duration   `json:"cooldown"`
	Channels   []string        `json:"channels"`
	Enabled    bool            `json:"enabled"`
}

// AlertStatus tracks an alert's lifecycle.
type AlertStatus string

const (
	StatusActive       AlertStatus = "active"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusResolved     AlertStatus = "resolved"
)

// Alert is one occurrence of a rule's condition being met. At most one
// non-resolved alert exists per rule at a time.
type Alert struct {
	ID             string          `json:"id"`
	RuleID         string          `json:"rule_id"`
	Severity       errors.Severity `json:"severity"`
	CurrentValue   float64         `json:"current_value"`
	Threshold      float64         `json:"threshold"`
	TriggeredAt    time.Time       `json:"triggered_at"`
	ResolvedAt     *time.Time      `json:"resolved_at,omitempty"`
	Status         AlertStatus     `json:"status"`
	AcknowledgedBy string          `json:"acknowledged_by,omitempty"`
}

// DefaultRules returns the severity-tiered default rule set. Each tier
// pair overlaps intentionally: the critical threshold is strictly more
// extreme than the warning threshold, so both may be active for the
// same metric under different rule IDs.
func DefaultRules() []Rule {
	warnChannels := []string{"in_app", "log"}
	pageChannels := []string{"in_app", "log", "email", "webhook"}

	return []Rule{
		{ID: "error_rate_high", Metric: MetricErrorRate, Comparator: ComparatorGT, Threshold: 5,
			Severity: errors.SeverityHigh, Cooldown: 10 * time.Minute, Channels: warnChannels, Enabled: true},
		{ID: "error_rate_critical", Metric: MetricErrorRate, Comparator: ComparatorGT, Threshold: 10,
			Severity: errors.SeverityCritical, Cooldown: 5 * time.Minute, Channels: pageChannels, Enabled: true},

		{ID: "processing_time_slow", Metric: MetricProcessingTime, Comparator: ComparatorGT, Threshold: 30000,
			Severity: errors.SeverityHigh, Cooldown: 10 * time.Minute, Channels: warnChannels, Enabled: true},
		{ID: "processing_time_critical", Metric: MetricProcessingTime, Comparator: ComparatorGT, Threshold: 60000,
			Severity: errors.SeverityCritical, Cooldown: 5 * time.Minute, Channels: pageChannels, Enabled: true},

		// Confidence rules are the only inverted-direction defaults:
		// they fire when the value falls below the threshold.
		{ID: "confidence_low", Metric: MetricConfidenceScore, Comparator: ComparatorLT, Threshold: 0.7,
			Severity: errors.SeverityMedium, Cooldown: 15 * time.Minute, Channels: warnChannels, Enabled: true},
		{ID: "confidence_very_low", Metric: MetricConfidenceScore, Comparator: ComparatorLT, Threshold: 0.5,
			Severity: errors.SeverityHigh, Cooldown: 10 * time.Minute, Channels: pageChannels, Enabled: true},

		{ID: "queue_depth_high", Metric: MetricQueueDepth, Comparator: ComparatorGT, Threshold: 50,
			Severity: errors.SeverityHigh, Cooldown: 10 * time.Minute, Channels: warnChannels, Enabled: true},
		{ID: "queue_depth_critical", Metric: MetricQueueDepth, Comparator: ComparatorGT, Threshold: 100,
			Severity: errors.SeverityCritical, Cooldown: 5 * time.Minute, Channels: pageChannels, Enabled: true},

		{ID: "memory_usage_high", Metric: MetricMemoryUsage, Comparator: ComparatorGT, Threshold: 80,
			Severity: errors.SeverityHigh, Cooldown: 10 * time.Minute, Channels: warnChannels, Enabled: true},
		{ID: "memory_usage_critical", Metric: MetricMemoryUsage, Comparator: ComparatorGT, Threshold: 90,
			Severity: errors.SeverityCritical, Cooldown: 5 * time.Minute, Channels: pageChannels, Enabled: true},
	}
}
