package errors

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies a failure category in the call-processing pipeline.
// The taxonomy is closed; every failure a caller can observe maps onto
// exactly one of these kinds.
type Kind string

const (
	KindAudioQuality         Kind = "audio_quality"
	KindNoAppointment        Kind = "no_appointment"
	KindMultipleAppointments Kind = "multiple_appointments"
	KindCallDropped          Kind = "call_dropped"
	KindProcessingTimeout    Kind = "processing_timeout"
	KindAPIError             Kind = "api_error"
	KindTranscriptionFailed  Kind = "transcription_failed"
)

// Severity represents the operational severity of a managed error.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// kindDefaults maps each kind to its default severity and retry budget.
// Retry budgets reflect whether retrying can plausibly help: transient
// network and API failures get a budget, content-quality failures do not
// (re-running transcription over bad audio yields the same bad audio).
var kindDefaults = map[Kind]struct {
	Severity   Severity
	MaxRetries int
}{
	KindAudioQuality:         {SeverityMedium, 0},
	KindNoAppointment:        {SeverityLow, 0},
	KindMultipleAppointments: {SeverityMedium, 0},
	KindCallDropped:          {SeverityHigh, 2},
	KindProcessingTimeout:    {SeverityHigh, 2},
	KindAPIError:             {SeverityMedium, 3},
	KindTranscriptionFailed:  {SeverityHigh, 2},
}

// DefaultSeverity returns the default severity for a kind.
func DefaultSeverity(kind Kind) Severity {
	if d, ok := kindDefaults[kind]; ok {
		return d.Severity
	}
	return SeverityMedium
}

// DefaultMaxRetries returns the default retry budget for a kind.
func DefaultMaxRetries(kind Kind) int {
	if d, ok := kindDefaults[kind]; ok {
		return d.MaxRetries
	}
	return 0
}

// Retryable reports whether a kind carries a non-zero retry budget.
func Retryable(kind Kind) bool {
	return DefaultMaxRetries(kind) > 0
}

// ManagedError is a classified failure record tied to the originating
// business record (a call). It is never mutated after creation except to
// record resolution.
type ManagedError struct {
	ID         string                 `json:"id" db:"id"`
	Kind       Kind                   `json:"kind" db:"kind"`
	Severity   Severity               `json:"severity" db:"severity"`
	SubjectID  string                 `json:"subject_id" db:"subject_id"`
	OwnerID    string                 `json:"owner_id,omitempty" db:"owner_id"`
	Detail     map[string]interface{} `json:"detail,omitempty" db:"-"`
	Message    string                 `json:"message" db:"message"`
	MaxRetries int                    `json:"max_retries" db:"max_retries"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
	ResolvedAt *time.Time             `json:"resolved_at,omitempty" db:"resolved_at"`
	Cause      error                  `json:"-" db:"-"`
}

// Error implements the error interface.
func (e *ManagedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ManagedError) Unwrap() error {
	return e.Cause
}

// Resolved reports whether the error has been marked resolved.
func (e *ManagedError) Resolved() bool {
	return e.ResolvedAt != nil
}

// New creates a ManagedError for the given kind with the kind's default
// severity and retry budget.
func New(kind Kind, subjectID, message string) *ManagedError {
	return &ManagedError{
		ID:         uuid.New().String(),
		Kind:       kind,
		Severity:   DefaultSeverity(kind),
		SubjectID:  subjectID,
		Message:    message,
		MaxRetries: DefaultMaxRetries(kind),
		Detail:     make(map[string]interface{}),
		CreatedAt:  time.Now().UTC(),
	}
}

// WithCause attaches the underlying cause to the error.
func (e *ManagedError) WithCause(cause error) *ManagedError {
	e.Cause = cause
	return e
}

// WithDetail adds a detail entry to the error payload.
func (e *ManagedError) WithDetail(key string, value interface{}) *ManagedError {
	if e.Detail == nil {
		e.Detail = make(map[string]interface{})
	}
	e.Detail[key] = value
	return e
}

// WithSeverity overrides the default severity for the kind.
func (e *ManagedError) WithSeverity(severity Severity) *ManagedError {
	e.Severity = severity
	return e
}

// WithMaxRetries overrides the default retry budget for the kind.
func (e *ManagedError) WithMaxRetries(maxRetries int) *ManagedError {
	if maxRetries < 0 {
		maxRetries = 0
	}
	e.MaxRetries = maxRetries
	return e
}

// Common constructors.

func NewAudioQualityError(subjectID, message string) *ManagedError {
	return New(KindAudioQuality, subjectID, message)
}

func NewNoAppointmentError(subjectID string) *ManagedError {
	return New(KindNoAppointment, subjectID, "no appointment found in call")
}

func NewMultipleAppointmentsError(subjectID string, count int) *ManagedError {
	return New(KindMultipleAppointments, subjectID, "multiple appointments detected, flagged for review").
		WithDetail("appointment_count", count)
}

func NewCallDroppedError(subjectID, message string) *ManagedError {
	return New(KindCallDropped, subjectID, message)
}

func NewProcessingTimeoutError(subjectID, operation string) *ManagedError {
	return New(KindProcessingTimeout, subjectID, fmt.Sprintf("%s timed out", operation))
}

func NewAPIError(subjectID, service, message string) *ManagedError {
	return New(KindAPIError, subjectID, message).
		WithDetail("service", service)
}

func NewTranscriptionFailedError(subjectID, message string) *ManagedError {
	return New(KindTranscriptionFailed, subjectID, message)
}

// IsKind checks if the error is a ManagedError of a specific kind.
func IsKind(err error, kind Kind) bool {
	if me, ok := err.(*ManagedError); ok {
		return me.Kind == kind
	}
	return false
}

// GetKind returns the kind if the error is a ManagedError.
func GetKind(err error) Kind {
	if me, ok := err.(*ManagedError); ok {
		return me.Kind
	}
	return KindAPIError
}

// GetSeverity returns the severity if the error is a ManagedError.
func GetSeverity(err error) Severity {
	if me, ok := err.(*ManagedError); ok {
		return me.Severity
	}
	return SeverityMedium
}
