package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atticusjxn/flynnai-sub001/pkg/errors"
	"github.com/atticusjxn/flynnai-sub001/pkg/logging"
)

// Action identifies what an audit entry records.
type Action string

const (
	ActionRateLimitViolation Action = "ratelimit.violation"
	ActionRateLimitOverride  Action = "ratelimit.override"
	ActionTemporaryBlock     Action = "ratelimit.temporary_block"
	ActionDenyListHit        Action = "ratelimit.deny_list"
	ActionAlertAcknowledged  Action = "alert.acknowledged"
)

// Entry is a single append-only audit record.
type Entry struct {
	ID         string                 `json:"id"`
	Timestamp  time.Time              `json:"timestamp"`
	ActorID    string                 `json:"actor_id,omitempty"`
	Action     Action                 `json:"action"`
	Resource   string                 `json:"resource"`
	ResourceID string                 `json:"resource_id,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Success    bool                   `json:"success"`
	Severity   errors.Severity        `json:"severity"`
}

// Logger writes audit entries to the structured log. Entries are
// append-only; there is no API to amend or remove one.
type Logger struct {
	logger      *logging.Logger
	serviceName string
}

// NewLogger creates a new audit logger.
func NewLogger(logger *logging.Logger, serviceName string) *Logger {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Logger{
		logger:      logger,
		serviceName: serviceName,
	}
}

// Log writes an audit entry.
func (a *Logger) Log(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Severity == "" {
		entry.Severity = errors.SeverityLow
	}

	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	a.logger.Info("AUDIT_EVENT",
		"audit_entry", string(entryJSON),
		"entry_id", entry.ID,
		"action", string(entry.Action),
		"actor_id", entry.ActorID,
		"resource", entry.Resource,
		"resource_id", entry.ResourceID,
		"success", entry.Success,
		"correlation_id", logging.GetCorrelationID(ctx),
		"service", a.serviceName,
	)

	return nil
}

// LogViolation records a rate-limit violation for a key.
func (a *Logger) LogViolation(ctx context.Context, key, route string, violationCount int64) error {
	return a.Log(ctx, Entry{
		Action:     ActionRateLimitViolation,
		Resource:   "ratelimit",
		ResourceID: key,
		Success:    false,
		Severity:   errors.SeverityMedium,
		Details: map[string]interface{}{
			"route":           route,
			"violation_count": violationCount,
		},
	})
}

// LogOverride records an administrative rate-limit override.
func (a *Logger) LogOverride(ctx context.Context, key, action, reason, actorID string) error {
	return a.Log(ctx, Entry{
		ActorID:    actorID,
		Action:     ActionRateLimitOverride,
		Resource:   "ratelimit",
		ResourceID: key,
		Success:    true,
		Severity:   errors.SeverityMedium,
		Details: map[string]interface{}{
			"override_action": action,
			"reason":          reason,
		},
	})
}
