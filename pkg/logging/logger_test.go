package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger(t *testing.T) (*Logger, *bytes.Buffer) {
	t.Helper()
	logger, err := NewLogger(&Config{
		Level:       "debug",
		Format:      "json",
		Output:      "stdout",
		ServiceName: "test-service",
		Version:     "test",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	return logger, &buf
}

func TestNewLogger_RejectsBadConfig(t *testing.T) {
	_, err := NewLogger(&Config{Level: "nonsense", Format: "json", Output: "stdout"})
	assert.Error(t, err)

	_, err = NewLogger(&Config{Level: "info", Format: "yaml", Output: "stdout"})
	assert.Error(t, err)
}

func TestInfo_EmitsStructuredFields(t *testing.T) {
	logger, buf := newBufferedLogger(t)

	logger.Info("Something happened", "call_id", "call-1", "attempt", 3)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Something happened", line["message"])
	assert.Equal(t, "call-1", line["call_id"])
	assert.Equal(t, float64(3), line["attempt"])
	assert.Equal(t, "test-service", line["service"])
}

func TestInfo_OddKeyValuePairIsDropped(t *testing.T) {
	logger, buf := newBufferedLogger(t)

	logger.Info("Odd pairs", "key_without_value")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	_, exists := line["key_without_value"]
	assert.False(t, exists)
}

func TestWithContext_IncludesContextFields(t *testing.T) {
	logger, buf := newBufferedLogger(t)

	ctx := WithCorrelationID(context.Background(), "corr-123")
	ctx = WithCallID(ctx, "call-9")
	logger.WithContext(ctx).Info("from context")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "corr-123", line["correlation_id"])
	assert.Equal(t, "call-9", line["call_id"])
}

func TestGetCorrelationID(t *testing.T) {
	assert.Empty(t, GetCorrelationID(context.Background()))

	ctx := WithCorrelationID(context.Background(), "corr-123")
	assert.Equal(t, "corr-123", GetCorrelationID(ctx))
}

func TestNewCorrelationID_Unique(t *testing.T) {
	assert.NotEqual(t, NewCorrelationID(), NewCorrelationID())
}

func TestGlobalLogger(t *testing.T) {
	assert.NotNil(t, GetLogger())
}
