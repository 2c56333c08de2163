package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/atticusjxn/flynnai-sub001/pkg/errors"
)

func testPolicy(maxRetries int) Policy {
	return Policy{
		MaxRetries:      maxRetries,
		BaseDelay:       time.Millisecond,
		MaxDelay:        10 * time.Millisecond,
		ExponentialBase: 2.0,
		Jitter:          false,
	}
}

func TestRunner_SuccessOnFirstAttempt(t *testing.T) {
	runner := NewRunner(nil, nil)

	attempts := 0
	err := runner.Run(context.Background(), "err-1", testPolicy(3), func(ctx context.Context) error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRunner_AttemptsEqualMaxRetriesPlusOne(t *testing.T) {
	runner := NewRunner(nil, nil)

	for _, maxRetries := range []int{0, 1, 2, 3, 5} {
		t.Run(fmt.Sprintf("maxRetries=%d", maxRetries), func(t *testing.T) {
			attempts := 0
			err := runner.Run(context.Background(), "err-1", testPolicy(maxRetries), func(ctx context.Context) error {
				attempts++
				return apperrors.NewAPIError("call-1", "telephony", "service unavailable")
			})

			require.Error(t, err)
			assert.Equal(t, maxRetries+1, attempts)
			assert.Contains(t, err.Error(), fmt.Sprintf("failed after %d retries", maxRetries))
		})
	}
}

func TestRunner_SuccessAfterRetriesStopsAttempting(t *testing.T) {
	runner := NewRunner(nil, nil)

	attempts := 0
	err := runner.Run(context.Background(), "err-1", testPolicy(5), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return apperrors.NewCallDroppedError("call-1", "carrier hangup")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRunner_ExponentialBackoffDelays(t *testing.T) {
	runner := NewRunner(nil, nil)

	policy := Policy{
		MaxRetries:      3,
		BaseDelay:       100 * time.Millisecond,
		MaxDelay:        time.Second,
		ExponentialBase: 2.0,
		Jitter:          false,
	}

	var delays []time.Duration
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
	}

	attempts := 0
	err := runner.Run(context.Background(), "err-1", policy, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return apperrors.NewAPIError("call-1", "stt", "timeout")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	require.Len(t, delays, 2)
	assert.Equal(t, 100*time.Millisecond, delays[0])
	assert.Equal(t, 200*time.Millisecond, delays[1])
}

func TestRunner_MaxDelayCapsBackoff(t *testing.T) {
	runner := NewRunner(nil, nil)

	policy := Policy{
		MaxRetries:      4,
		BaseDelay:       2 * time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		ExponentialBase: 2.0,
		Jitter:          false,
	}

	var delays []time.Duration
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
	}

	_ = runner.Run(context.Background(), "err-1", policy, func(ctx context.Context) error {
		return apperrors.NewProcessingTimeoutError("call-1", "extraction")
	})

	require.Len(t, delays, 4)
	for _, delay := range delays {
		assert.LessOrEqual(t, delay, 5*time.Millisecond)
	}
}

func TestRunner_JitterStaysWithinFraction(t *testing.T) {
	runner := NewRunner(nil, nil)

	policy := Policy{
		MaxRetries:      3,
		BaseDelay:       100 * time.Millisecond,
		MaxDelay:        time.Minute,
		ExponentialBase: 1.0, // constant base delay for a tight bound
		Jitter:          true,
		JitterFraction:  0.1,
	}

	for i := 0; i < 20; i++ {
		delay := runner.calculateDelay(policy, 0)
		assert.GreaterOrEqual(t, delay, 90*time.Millisecond)
		assert.LessOrEqual(t, delay, 110*time.Millisecond)
	}
}

func TestRunner_ContextCancellationStopsSequence(t *testing.T) {
	runner := NewRunner(nil, nil)

	policy := testPolicy(5)
	policy.BaseDelay = 100 * time.Millisecond
	policy.MaxDelay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	attempts := 0
	err := runner.Run(ctx, "err-1", policy, func(ctx context.Context) error {
		attempts++
		return apperrors.NewAPIError("call-1", "llm", "rate limited")
	})

	require.Error(t, err)
	assert.Equal(t, context.DeadlineExceeded, err)
	assert.Equal(t, 1, attempts)
}

func TestRunner_ZeroRetryBudgetFailsImmediately(t *testing.T) {
	runner := NewRunner(nil, nil)

	attempts := 0
	err := runner.Run(context.Background(), "err-1", testPolicy(0), func(ctx context.Context) error {
		attempts++
		return apperrors.NewAudioQualityError("call-1", "too much noise")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Contains(t, err.Error(), "failed after 0 retries")
}

func TestRunWithResult(t *testing.T) {
	runner := NewRunner(nil, nil)

	attempts := 0
	result, err := RunWithResult(context.Background(), runner, "err-1", testPolicy(3), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", apperrors.NewTranscriptionFailedError("call-1", "upstream 503")
		}
		return "transcript", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "transcript", result)
	assert.Equal(t, 2, attempts)
}

func TestPolicyForKind(t *testing.T) {
	assert.Equal(t, 3, PolicyForKind(apperrors.KindAPIError).MaxRetries)
	assert.Equal(t, 2, PolicyForKind(apperrors.KindCallDropped).MaxRetries)
	assert.Equal(t, 0, PolicyForKind(apperrors.KindAudioQuality).MaxRetries)
}
