package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRetrySuccessHasItsOwnCounter(t *testing.T) {
	m := NewMetrics(&Config{Namespace: "test", Enabled: true})

	m.RecordRetrySuccess()
	m.RecordRetrySuccess()
	m.RecordRetryAttempt("api_error", "failure")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RetrySuccesses))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RetryAttempts.WithLabelValues("api_error", "failure")))

	// The kind label space holds only real taxonomy kinds.
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RetryAttempts.WithLabelValues("none", "success")))
}

func TestRecordingIsNilAndDisabledSafe(t *testing.T) {
	var nilMetrics *Metrics
	assert.False(t, nilMetrics.Enabled())
	nilMetrics.RecordRetrySuccess()
	nilMetrics.RecordRateLimitDecision("allowed", "/api/calls")
	nilMetrics.SetActiveAlerts(3)

	disabled := NewMetrics(&Config{Enabled: false})
	assert.False(t, disabled.Enabled())
	disabled.RecordAlertTriggered()
	disabled.RecordNotificationSent("log")
}
