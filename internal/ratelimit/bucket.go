package ratelimit

import (
	"time"
)

// TokenBucket implements burst-tolerant limiting. Tokens refill lazily
// from elapsed wall-clock time at read time; no per-bucket timer runs.
// Invariant: 0 <= tokens <= capacity.
type TokenBucket struct {
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewTokenBucket creates a bucket starting at full capacity.
func NewTokenBucket(capacity, refillRatePerSecond float64) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRatePerSecond,
		lastRefill: time.Now(),
	}
}

// take refills from elapsed time, then debits n tokens if available.
// Returns whether the request was granted and the remaining tokens.
func (b *TokenBucket) take(n float64, now time.Time) (bool, float64) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.lastRefill = now
	}

	if b.tokens >= n {
		b.tokens -= n
		return true, b.tokens
	}
	return false, b.tokens
}

// BucketDecision reports the outcome of a token bucket check.
type BucketDecision struct {
	Allowed   bool    `json:"allowed"`
	Remaining float64 `json:"remaining"`
}

// CheckTokenBucket grants tokensRequested tokens from the named bucket
// if available. The bucket is created at full capacity on first use;
// capacity and refill rate are fixed by the first caller for the
// bucket's lifetime.
func (s *Service) CheckTokenBucket(key string, capacity, refillRatePerSecond float64, tokensRequested float64) BucketDecision {
	if tokensRequested <= 0 {
		tokensRequested = 1
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	bucket, ok := s.buckets[key]
	if !ok {
		bucket = NewTokenBucket(capacity, refillRatePerSecond)
		s.buckets[key] = bucket
	}

	allowed, remaining := bucket.take(tokensRequested, time.Now())
	if !allowed {
		s.metrics.RecordTokenBucketDenial(key)
	}
	return BucketDecision{Allowed: allowed, Remaining: remaining}
}
