package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket_DrainsToZero(t *testing.T) {
	bucket := NewTokenBucket(3, 1)
	now := time.Now()

	for i := 0; i < 3; i++ {
		allowed, _ := bucket.take(1, now)
		assert.True(t, allowed)
	}

	allowed, remaining := bucket.take(1, now)
	assert.False(t, allowed)
	assert.Equal(t, 0.0, remaining)
}

func TestTokenBucket_RefillsFromElapsedTime(t *testing.T) {
	bucket := NewTokenBucket(3, 2) // 2 tokens per second
	now := time.Now()

	for i := 0; i < 3; i++ {
		bucket.take(1, now)
	}
	allowed, _ := bucket.take(1, now)
	require.False(t, allowed)

	// Half a second at 2 tokens/s refills exactly one token.
	allowed, remaining := bucket.take(1, now.Add(500*time.Millisecond))
	assert.True(t, allowed)
	assert.InDelta(t, 0.0, remaining, 0.001)
}

func TestTokenBucket_RefillCappedAtCapacity(t *testing.T) {
	bucket := NewTokenBucket(2, 100)
	now := time.Now()

	bucket.take(1, now)

	// A long idle period must not overfill the bucket.
	allowed, remaining := bucket.take(1, now.Add(time.Hour))
	assert.True(t, allowed)
	assert.InDelta(t, 1.0, remaining, 0.001)
}

func TestTokenBucket_MultiTokenRequest(t *testing.T) {
	bucket := NewTokenBucket(5, 1)
	now := time.Now()

	allowed, remaining := bucket.take(3, now)
	assert.True(t, allowed)
	assert.InDelta(t, 2.0, remaining, 0.001)

	allowed, _ = bucket.take(3, now)
	assert.False(t, allowed)
}

func TestCheckTokenBucket(t *testing.T) {
	s := newTestService(t)

	for i := 0; i < 3; i++ {
		decision := s.CheckTokenBucket("burst:user:1", 3, 0.001, 1)
		assert.True(t, decision.Allowed)
	}

	decision := s.CheckTokenBucket("burst:user:1", 3, 0.001, 1)
	assert.False(t, decision.Allowed)

	// Separate bucket keys are independent.
	assert.True(t, s.CheckTokenBucket("burst:user:2", 3, 0.001, 1).Allowed)
}

func TestCheckTokenBucket_ConcurrentRequestsRespectCapacity(t *testing.T) {
	s := newTestService(t)

	var allowed int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.CheckTokenBucket("burst:user:1", 50, 0.001, 1).Allowed {
				atomic.AddInt64(&allowed, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), atomic.LoadInt64(&allowed),
		"exactly the capacity may pass when takes race")
}

func TestCheckTokenBucket_ZeroRequestCountsAsOne(t *testing.T) {
	s := newTestService(t)

	decision := s.CheckTokenBucket("burst:user:1", 1, 0.001, 0)
	assert.True(t, decision.Allowed)

	decision = s.CheckTokenBucket("burst:user:1", 1, 0.001, 0)
	assert.False(t, decision.Allowed)
}
