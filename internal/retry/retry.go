package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/atticusjxn/flynnai-sub001/pkg/errors"
	"github.com/atticusjxn/flynnai-sub001/pkg/logging"
	"github.com/atticusjxn/flynnai-sub001/pkg/metrics"
)

// Policy holds configuration for retry behaviour. MaxRetries counts
// retries, not attempts: an operation is attempted MaxRetries+1 times
// before failing permanently.
type Policy struct {
	// MaxRetries is the number of retries after the initial attempt
	MaxRetries int
	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration
	// MaxDelay caps the computed backoff delay
	MaxDelay time.Duration
	// ExponentialBase is the multiplier for exponential backoff
	ExponentialBase float64
	// Jitter adds randomness to delay to avoid synchronized retry storms
	Jitter bool
	// JitterFraction bounds the random perturbation as a fraction of delay
	JitterFraction float64
	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy returns a default retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      3,
		BaseDelay:       time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
		JitterFraction:  0.1,
	}
}

// PolicyForKind returns a policy seeded with the kind's default retry budget.
func PolicyForKind(kind errors.Kind) Policy {
	p := DefaultPolicy()
	p.MaxRetries = errors.DefaultMaxRetries(kind)
	return p
}

func (p Policy) normalized() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.ExponentialBase < 1 {
		p.ExponentialBase = 2.0
	}
	if p.JitterFraction <= 0 || p.JitterFraction > 1 {
		p.JitterFraction = 0.1
	}
	return p
}

// Runner executes operations with bounded exponential backoff. Each
// retry sequence suspends only its own call chain; concurrent callers
// are never blocked by another sequence's backoff sleep.
type Runner struct {
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewRunner creates a new retry runner.
func NewRunner(logger *logging.Logger, m *metrics.Metrics) *Runner {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Runner{logger: logger, metrics: m}
}

// Run executes op with the given policy. The errorID correlates the
// sequence with a classified ManagedError record. The returned error on
// exhaustion states the exact retry count spent.
func (r *Runner) Run(ctx context.Context, errorID string, policy Policy, op func(context.Context) error) error {
	policy = policy.normalized()

	var lastErr error
	totalAttempts := policy.MaxRetries + 1

	for attempt := 0; attempt < totalAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := op(ctx)
		if err == nil {
			r.metrics.RecordRetrySuccess()
			if attempt > 0 {
				r.logger.Info("Operation succeeded after retry",
					"error_id", errorID,
					"attempt", attempt+1,
					"total_attempts", totalAttempts,
				)
			}
			return nil
		}

		lastErr = err
		r.metrics.RecordRetryAttempt(string(errors.GetKind(err)), "failure")

		// Last attempt, no delay needed
		if attempt == totalAttempts-1 {
			break
		}

		delay := r.calculateDelay(policy, attempt)

		r.logger.Debug("Operation failed, retrying",
			"error_id", errorID,
			"error", err.Error(),
			"attempt", attempt+1,
			"max_retries", policy.MaxRetries,
			"delay", delay,
		)

		if policy.OnRetry != nil {
			policy.OnRetry(attempt+1, err, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	r.metrics.RecordRetryExhaustion(string(errors.GetKind(lastErr)))
	r.logger.Error("Operation failed after all retries",
		"error_id", errorID,
		"error", lastErr.Error(),
		"retries", policy.MaxRetries,
	)

	return fmt.Errorf("operation %s failed after %d retries: %w", errorID, policy.MaxRetries, lastErr)
}

// RunWithResult executes op with retry logic and returns its result.
func RunWithResult[T any](ctx context.Context, r *Runner, errorID string, policy Policy, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := r.Run(ctx, errorID, policy, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}

// calculateDelay computes the backoff delay for the given zero-based
// attempt index: min(maxDelay, base * expBase^attempt), optionally
// perturbed by up to ±JitterFraction of the delay.
func (r *Runner) calculateDelay(policy Policy, attempt int) time.Duration {
	delay := float64(policy.BaseDelay) * math.Pow(policy.ExponentialBase, float64(attempt))

	if delay > float64(policy.MaxDelay) {
		delay = float64(policy.MaxDelay)
	}

	if policy.Jitter {
		jitter := (rand.Float64()*2 - 1) * policy.JitterFraction * delay
		delay += jitter
		if delay < 0 {
			delay = 0
		}
	}

	return time.Duration(delay)
}
