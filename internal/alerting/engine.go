package alerting

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atticusjxn/flynnai-sub001/internal/audit"
	"github.com/atticusjxn/flynnai-sub001/internal/notify"
	"github.com/atticusjxn/flynnai-sub001/pkg/errors"
	"github.com/atticusjxn/flynnai-sub001/pkg/logging"
	"github.com/atticusjxn/flynnai-sub001/pkg/metrics"
)

// EngineConfig holds the rule engine's tunables.
type EngineConfig struct {
	EvaluationInterval time.Duration
	RecentAlertLimit   int
}

// DefaultEngineConfig returns the default engine configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		EvaluationInterval: 30 * time.Second,
		RecentAlertLimit:   10,
	}
}

// Engine evaluates static threshold rules on a fixed interval, tracks
// active alerts and cooldowns, and emits trigger/resolution events. It
// owns its maps exclusively; cross-service input arrives only as metric
// snapshots.
type Engine struct {
	config   EngineConfig
	rules    map[string]Rule
	source   MetricsSource
	channels map[string]notify.Channel

	mutex         sync.Mutex
	active        map[string]*Alert // keyed by rule ID, at most one per rule
	cooldownUntil map[string]time.Time
	history       []Alert

	auditor *audit.Logger
	logger  *logging.Logger
	metrics *metrics.Metrics

	stopCh  chan struct{}
	running bool
	runMu   sync.Mutex
}

// NewEngine creates a rule engine over the given rules and metrics source.
func NewEngine(config EngineConfig, rules []Rule, source MetricsSource, auditor *audit.Logger, logger *logging.Logger, m *metrics.Metrics) *Engine {
	if config.EvaluationInterval <= 0 {
		config.EvaluationInterval = 30 * time.Second
	}
	if config.RecentAlertLimit <= 0 {
		config.RecentAlertLimit = 10
	}
	if logger == nil {
		logger = logging.GetLogger()
	}

	ruleMap := make(map[string]Rule, len(rules))
	for _, rule := range rules {
		ruleMap[rule.ID] = rule
	}

	return &Engine{
		config:        config,
		rules:         ruleMap,
		source:        source,
		channels:      make(map[string]notify.Channel),
		active:        make(map[string]*Alert),
		cooldownUntil: make(map[string]time.Time),
		auditor:       auditor,
		logger:        logger,
		metrics:       m,
		stopCh:        make(chan struct{}),
	}
}

// RegisterChannel makes a notification channel available to rules by name.
func (e *Engine) RegisterChannel(name string, channel notify.Channel) {
	e.channels[name] = channel
}

// Start launches the evaluation loop. It is a no-op if already running.
func (e *Engine) Start(ctx context.Context) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if e.running {
		return
	}
	e.running = true

	go e.evaluationLoop(ctx)
	e.logger.Info("Alert rule engine started",
		"interval", e.config.EvaluationInterval,
		"rules", len(e.rules),
	)
}

// Stop cancels the evaluation loop. It is a no-op if not running.
func (e *Engine) Stop() {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if !e.running {
		return
	}
	close(e.stopCh)
	e.running = false
	e.logger.Info("Alert rule engine stopped")
}

func (e *Engine) evaluationLoop(ctx context.Context) {
	ticker := time.NewTicker(e.config.EvaluationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.Evaluate(ctx, time.Now())
		}
	}
}

// Evaluate runs one full evaluation cycle against the current metric
// snapshot: triggering for rules outside their cooldown, then
// resolution detection for every active alert.
func (e *Engine) Evaluate(ctx context.Context, now time.Time) {
	snapshot := e.source.Snapshot()
	e.metrics.RecordEvaluationRun()

	var triggered, resolved []Alert

	e.mutex.Lock()

	for id, rule := range e.rules {
		if !rule.Enabled {
			continue
		}
		value, ok := snapshot[rule.Metric]
		if !ok {
			// Referenced metric absent this cycle: skip the rule.
			continue
		}
		if until, cooling := e.cooldownUntil[id]; cooling && now.Before(until) {
			continue
		}
		if !rule.Comparator.Compare(value, rule.Threshold) {
			continue
		}
		if _, exists := e.active[id]; exists {
			continue
		}

		alert := &Alert{
			ID:           uuid.New().String(),
			RuleID:       id,
			Severity:     rule.Severity,
			CurrentValue: value,
			Threshold:    rule.Threshold,
			TriggeredAt:  now,
			Status:       StatusActive,
		}
		e.active[id] = alert
		e.cooldownUntil[id] = now.Add(rule.Cooldown)
		e.appendHistoryLocked(*alert)
		triggered = append(triggered, *alert)
	}

	// Resolution runs independently of cooldowns: an alert resolves as
	// soon as the trigger condition's negation holds.
	for id, alert := range e.active {
		rule, ok := e.rules[id]
		if !ok {
			continue
		}
		value, ok := snapshot[rule.Metric]
		if !ok {
			continue
		}
		if rule.Comparator.Compare(value, rule.Threshold) {
			continue
		}

		resolvedAt := now
		alert.Status = StatusResolved
		alert.ResolvedAt = &resolvedAt
		alert.CurrentValue = value
		delete(e.active, id)
		e.updateHistoryLocked(*alert)
		resolved = append(resolved, *alert)
	}

	activeCount := len(e.active)
	e.mutex.Unlock()

	e.metrics.SetActiveAlerts(activeCount)

	for _, alert := range triggered {
		e.metrics.RecordAlertTriggered()
		e.logger.Warn("Alert triggered",
			"alert_id", alert.ID,
			"rule_id", alert.RuleID,
			"severity", string(alert.Severity),
			"current_value", alert.CurrentValue,
			"threshold", alert.Threshold,
		)
		e.fanOut(ctx, e.rules[alert.RuleID], alert, "triggered")
	}

	for _, alert := range resolved {
		e.metrics.RecordAlertResolved()
		e.logger.Info("Alert resolved",
			"alert_id", alert.ID,
			"rule_id", alert.RuleID,
			"current_value", alert.CurrentValue,
			"threshold", alert.Threshold,
		)
		e.fanOut(ctx, e.rules[alert.RuleID], alert, "resolved")
	}
}

// fanOut delivers an alert event to every channel named by the rule.
// Channel failures are logged and never propagated.
func (e *Engine) fanOut(ctx context.Context, rule Rule, alert Alert, transition string) {
	event := notify.Event{
		Audience: notify.AudienceOperators,
		Severity: alert.Severity,
		Title:    fmt.Sprintf("Alert %s: %s", transition, rule.ID),
		Message: fmt.Sprintf("%s is %.2f (threshold %s %.2f)",
			rule.Metric, alert.CurrentValue, rule.Comparator, rule.Threshold),
		Metadata: map[string]interface{}{
			"alert_id":   alert.ID,
			"rule_id":    rule.ID,
			"metric":     string(rule.Metric),
			"transition": transition,
		},
	}

	for _, name := range rule.Channels {
		channel, ok := e.channels[name]
		if !ok {
			e.logger.Warn("Alert rule references unknown channel",
				"rule_id", rule.ID,
				"channel", name,
			)
			continue
		}
		if err := channel.Send(ctx, event); err != nil {
			e.metrics.RecordNotificationFailed(name)
			e.logger.Error("Alert channel failed",
				"rule_id", rule.ID,
				"channel", name,
				"alert_id", alert.ID,
				"error", err,
			)
			continue
		}
		e.metrics.RecordNotificationSent(name)
	}
}

// appendHistoryLocked records an alert occurrence, keeping history
// bounded. Caller holds e.mutex.
func (e *Engine) appendHistoryLocked(alert Alert) {
	const historyBound = 200
	e.history = append(e.history, alert)
	if len(e.history) > historyBound {
		e.history = e.history[len(e.history)-historyBound:]
	}
}

// updateHistoryLocked replaces the stored occurrence with its resolved
// form. Caller holds e.mutex.
func (e *Engine) updateHistoryLocked(alert Alert) {
	for i := len(e.history) - 1; i >= 0; i-- {
		if e.history[i].ID == alert.ID {
			e.history[i] = alert
			return
		}
	}
}

// ActiveAlerts returns a snapshot of currently active alerts.
func (e *Engine) ActiveAlerts() []Alert {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	out := make([]Alert, 0, len(e.active))
	for _, alert := range e.active {
		out = append(out, *alert)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TriggeredAt.After(out[j].TriggeredAt)
	})
	return out
}

// Statistics summarizes current alert state.
type Statistics struct {
	TotalActiveAlerts int                     `json:"total_active_alerts"`
	AlertsBySeverity  map[errors.Severity]int `json:"alerts_by_severity"`
	RecentAlerts      []Alert                 `json:"recent_alerts"`
}

// GetStatistics returns alert statistics including the most recent
// occurrences by recency.
func (e *Engine) GetStatistics() Statistics {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	stats := Statistics{
		TotalActiveAlerts: len(e.active),
		AlertsBySeverity:  make(map[errors.Severity]int),
	}
	for _, alert := range e.active {
		stats.AlertsBySeverity[alert.Severity]++
	}

	n := e.config.RecentAlertLimit
	if n > len(e.history) {
		n = len(e.history)
	}
	recent := make([]Alert, n)
	for i := 0; i < n; i++ {
		recent[i] = e.history[len(e.history)-1-i]
	}
	stats.RecentAlerts = recent

	return stats
}

// Acknowledge marks an active alert as acknowledged by an operator. It
// is informational only: the underlying condition, the rule's cooldown
// and future resolution detection are unaffected.
func (e *Engine) Acknowledge(ctx context.Context, alertID, actorID string) error {
	e.mutex.Lock()
	var found *Alert
	for _, alert := range e.active {
		if alert.ID == alertID {
			found = alert
			break
		}
	}
	if found == nil {
		e.mutex.Unlock()
		return fmt.Errorf("active alert %s not found", alertID)
	}
	found.Status = StatusAcknowledged
	found.AcknowledgedBy = actorID
	e.updateHistoryLocked(*found)
	e.mutex.Unlock()

	e.logger.Info("Alert acknowledged",
		"alert_id", alertID,
		"actor_id", actorID,
	)

	if e.auditor != nil {
		return e.auditor.Log(ctx, audit.Entry{
			ActorID:    actorID,
			Action:     audit.ActionAlertAcknowledged,
			Resource:   "alert",
			ResourceID: alertID,
			Success:    true,
			Severity:   errors.SeverityLow,
		})
	}
	return nil
}
