package retry

import (
	"context"
	"time"

	"github.com/atticusjxn/flynnai-sub001/internal/notify"
	"github.com/atticusjxn/flynnai-sub001/pkg/errors"
	"github.com/atticusjxn/flynnai-sub001/pkg/logging"
	"github.com/atticusjxn/flynnai-sub001/pkg/metrics"
)

// Classifier builds ManagedError records for failed operations,
// persists them through the record store and notifies operators for
// high and critical severities.
type Classifier struct {
	store      RecordStore
	dispatcher *notify.Dispatcher
	logger     *logging.Logger
	metrics    *metrics.Metrics
}

// NewClassifier creates a new error classifier.
func NewClassifier(store RecordStore, dispatcher *notify.Dispatcher, logger *logging.Logger, m *metrics.Metrics) *Classifier {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Classifier{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    m,
	}
}

// Option customizes a classified error before it is persisted.
type Option func(*errors.ManagedError)

// WithSeverity overrides the kind's default severity.
func WithSeverity(severity errors.Severity) Option {
	return func(e *errors.ManagedError) { e.Severity = severity }
}

// WithMaxRetries overrides the kind's default retry budget.
func WithMaxRetries(maxRetries int) Option {
	return func(e *errors.ManagedError) {
		if maxRetries < 0 {
			maxRetries = 0
		}
		e.MaxRetries = maxRetries
	}
}

// WithDetail adds a detail entry to the error payload.
func WithDetail(key string, value interface{}) Option {
	return func(e *errors.ManagedError) {
		if e.Detail == nil {
			e.Detail = make(map[string]interface{})
		}
		e.Detail[key] = value
	}
}

// WithCause attaches the underlying cause.
func WithCause(cause error) Option {
	return func(e *errors.ManagedError) { e.Cause = cause }
}

// ClassifyAndCreate builds a ManagedError with the kind's defaults,
// persists it and, for high/critical severities, sends a notification.
// Persistence or notification failures are logged but do not prevent
// the caller from receiving the classified error.
func (c *Classifier) ClassifyAndCreate(ctx context.Context, kind errors.Kind, ownerID, subjectID, message string, opts ...Option) *errors.ManagedError {
	managed := errors.New(kind, subjectID, message)
	managed.OwnerID = ownerID
	for _, opt := range opts {
		opt(managed)
	}

	c.metrics.RecordManagedError(string(managed.Kind), string(managed.Severity))

	if err := c.store.Save(ctx, managed); err != nil {
		c.logger.Error("Failed to persist managed error",
			"error_id", managed.ID,
			"kind", string(managed.Kind),
			"subject_id", managed.SubjectID,
			"error", err,
		)
	}

	c.logger.Info("Error classified",
		"error_id", managed.ID,
		"kind", string(managed.Kind),
		"severity", string(managed.Severity),
		"subject_id", managed.SubjectID,
		"max_retries", managed.MaxRetries,
	)

	if managed.Severity == errors.SeverityHigh || managed.Severity == errors.SeverityCritical {
		c.dispatcher.Notify(ctx, notify.Event{
			Audience: notify.AudienceOperators,
			Severity: managed.Severity,
			Title:    "Call processing failure: " + string(managed.Kind),
			Message:  managed.Message,
			Metadata: map[string]interface{}{
				"error_id":    managed.ID,
				"subject_id":  managed.SubjectID,
				"max_retries": managed.MaxRetries,
			},
		})
	}

	return managed
}

// Resolve stamps an error record as resolved. Called when the enclosing
// retry sequence finally succeeds.
func (c *Classifier) Resolve(ctx context.Context, errorID string) error {
	return c.store.MarkResolved(ctx, errorID, time.Now().UTC())
}

// Stats is a read-only aggregation over persisted error records.
type Stats struct {
	TotalErrors           int                        `json:"total_errors"`
	ErrorsByKind          map[errors.Kind]int        `json:"errors_by_kind"`
	ErrorsBySeverity      map[errors.Severity]int    `json:"errors_by_severity"`
	ResolutionRate        float64                    `json:"resolution_rate"`
	AverageResolutionTime time.Duration              `json:"average_resolution_time"`
}

// GetErrorStats aggregates persisted records for an owner within the
// given time range. A range with zero records yields zeroed rates,
// never a division by zero.
func (c *Classifier) GetErrorStats(ctx context.Context, ownerID string, since, until time.Time) (*Stats, error) {
	records, err := c.store.ListByOwner(ctx, ownerID, since, until)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		ErrorsByKind:     make(map[errors.Kind]int),
		ErrorsBySeverity: make(map[errors.Severity]int),
	}

	var resolved int
	var totalResolution time.Duration

	for _, record := range records {
		stats.TotalErrors++
		stats.ErrorsByKind[record.Kind]++
		stats.ErrorsBySeverity[record.Severity]++
		if record.ResolvedAt != nil {
			resolved++
			totalResolution += record.ResolvedAt.Sub(record.CreatedAt)
		}
	}

	if stats.TotalErrors > 0 {
		stats.ResolutionRate = float64(resolved) / float64(stats.TotalErrors)
	}
	if resolved > 0 {
		stats.AverageResolutionTime = totalResolution / time.Duration(resolved)
	}

	return stats, nil
}
