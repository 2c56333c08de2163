package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/atticusjxn/flynnai-sub001/internal/audit"
	"github.com/atticusjxn/flynnai-sub001/internal/notify"
	"github.com/atticusjxn/flynnai-sub001/pkg/errors"
	"github.com/atticusjxn/flynnai-sub001/pkg/logging"
	"github.com/atticusjxn/flynnai-sub001/pkg/metrics"
)

const (
	// violationPenaltyThreshold is the violation count past which a
	// key's effective limit is halved.
	violationPenaltyThreshold = 5
	// securityNotifyThreshold is the cumulative violation count past
	// which a security notification is emitted.
	securityNotifyThreshold = 10
	// hourlyBlockThreshold is the number of violations within the last
	// hour past which an identity is temporarily denied.
	hourlyBlockThreshold = 10
)

// ServiceConfig holds the limiter's tunables.
type ServiceConfig struct {
	Default            Config
	Routes             []RouteLimit
	KeyFunc            KeyFunc
	CleanupInterval    time.Duration
	ViolationRetention time.Duration
}

// DefaultServiceConfig returns a conservative default configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Default:            Config{Window: time.Minute, MaxRequests: 60},
		Routes:             DefaultRouteLimits(),
		KeyFunc:            DefaultKeyFunc,
		CleanupInterval:    5 * time.Minute,
		ViolationRetention: 24 * time.Hour,
	}
}

// windowEntry tracks one key's request count within the active window.
// Entries are replaced, not mutated, when the window expires.
type windowEntry struct {
	count       int64
	windowStart time.Time
	window      time.Duration
}

func (e *windowEntry) resetTime() time.Time {
	return e.windowStart.Add(e.window)
}

// violationRecord tracks a key's denial history. It is never reset by
// window expiry, only by the idle-cleanup sweep or an admin reset.
type violationRecord struct {
	count    int64
	lastSeen time.Time
}

// identityHistory tracks recent violation timestamps per identity for
// the hourly temporary-block rule.
type identityHistory struct {
	recent []time.Time
}

func (h *identityHistory) prune(now time.Time) {
	cutoff := now.Add(-time.Hour)
	kept := h.recent[:0]
	for _, t := range h.recent {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	h.recent = kept
}

// Service is the rate limiter. It owns its maps exclusively; all access
// goes through the service's mutex so check-then-increment sequences
// are atomic under concurrent request handlers.
type Service struct {
	config ServiceConfig

	mutex      sync.Mutex
	entries    map[string]*windowEntry
	violations map[string]*violationRecord
	identities map[string]*identityHistory
	buckets    map[string]*TokenBucket
	allowList  map[string]struct{}
	denyList   map[string]struct{}
	blocked    map[string]struct{} // admin blocks, cleared only by unblock/reset
	load       LoadSignals
	hasLoad    bool

	counters   CounterStore // distributed backend seam, nil for local counting
	auditor    *audit.Logger
	dispatcher *notify.Dispatcher
	logger     *logging.Logger
	metrics    *metrics.Metrics

	stopCh  chan struct{}
	running bool
	runMu   sync.Mutex
}

// NewService creates a new rate limiter.
func NewService(config ServiceConfig, auditor *audit.Logger, dispatcher *notify.Dispatcher, logger *logging.Logger, m *metrics.Metrics) *Service {
	if config.Default.MaxRequests <= 0 {
		config.Default = Config{Window: time.Minute, MaxRequests: 60}
	}
	if config.KeyFunc == nil {
		config.KeyFunc = DefaultKeyFunc
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	if config.ViolationRetention <= 0 {
		config.ViolationRetention = 24 * time.Hour
	}
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &Service{
		config:     config,
		entries:    make(map[string]*windowEntry),
		violations: make(map[string]*violationRecord),
		identities: make(map[string]*identityHistory),
		buckets:    make(map[string]*TokenBucket),
		allowList:  make(map[string]struct{}),
		denyList:   make(map[string]struct{}),
		blocked:    make(map[string]struct{}),
		auditor:    auditor,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    m,
		stopCh:     make(chan struct{}),
	}
}

// SetCounterStore injects a shared counter backend for horizontally
// scaled deployments. When unset, counting is process-local.
func (s *Service) SetCounterStore(store CounterStore) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.counters = store
}

// Allow adds an identity to the allow list.
func (s *Service) Allow(identity string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.allowList[identity] = struct{}{}
}

// Deny adds an identity to the deny list.
func (s *Service) Deny(identity string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.denyList[identity] = struct{}{}
}

// UpdateLoad feeds current system load signals into adaptive limiting.
func (s *Service) UpdateLoad(load LoadSignals) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.load = load
	s.hasLoad = true
}

// Check evaluates a request against the limiter. A nil override uses
// the routing table, falling back to the service default.
func (s *Service) Check(ctx context.Context, rc RequestContext, override *Config) Decision {
	now := time.Now()
	cfg := s.resolveConfig(rc, override)
	key := s.config.KeyFunc(rc)
	route := routePrefix(rc.Path)

	s.mutex.Lock()

	// Temporary block from recent violation history overrides list
	// membership in both directions.
	if hist, ok := s.identities[rc.Identity]; ok {
		hist.prune(now)
		if len(hist.recent) > hourlyBlockThreshold {
			s.mutex.Unlock()
			s.metrics.RecordRateLimitDecision("denied", route)
			if s.auditor != nil {
				_ = s.auditor.Log(ctx, audit.Entry{
					Action:     audit.ActionTemporaryBlock,
					Resource:   "ratelimit",
					ResourceID: rc.Identity,
					Success:    false,
					Severity:   errors.SeverityHigh,
					Details:    map[string]interface{}{"route": route},
				})
			}
			return Decision{
				Allowed:    false,
				Limit:      cfg.MaxRequests,
				Remaining:  0,
				ResetTime:  now.Add(time.Hour),
				RetryAfter: int(time.Hour.Seconds()),
				Reason:     "temporarily blocked",
			}
		}
	}

	if _, denied := s.denyList[rc.Identity]; denied {
		s.mutex.Unlock()
		s.metrics.RecordRateLimitDecision("denied", route)
		if s.auditor != nil {
			_ = s.auditor.Log(ctx, audit.Entry{
				Action:     audit.ActionDenyListHit,
				Resource:   "ratelimit",
				ResourceID: rc.Identity,
				Success:    false,
				Severity:   errors.SeverityMedium,
				Details:    map[string]interface{}{"route": route},
			})
		}
		return Decision{
			Allowed:    false,
			Limit:      0,
			Remaining:  0,
			ResetTime:  now.Add(cfg.Window),
			RetryAfter: int(math.Ceil(cfg.Window.Seconds())),
			Reason:     "deny-listed",
		}
	}

	if _, allowed := s.allowList[rc.Identity]; allowed {
		s.mutex.Unlock()
		s.metrics.RecordRateLimitDecision("allowed", route)
		return Decision{
			Allowed:   true,
			Limit:     cfg.MaxRequests,
			Remaining: cfg.MaxRequests,
			ResetTime: now.Add(cfg.Window),
		}
	}

	// Admin blocks live outside the window entries so they survive
	// window expiry; only an explicit unblock or reset lifts one.
	if _, isBlocked := s.blocked[key]; isBlocked {
		s.mutex.Unlock()
		s.metrics.RecordRateLimitDecision("denied", route)
		return Decision{
			Allowed:    false,
			Limit:      cfg.MaxRequests,
			Remaining:  0,
			ResetTime:  now.Add(cfg.Window),
			RetryAfter: int(math.Ceil(cfg.Window.Seconds())),
			Reason:     "blocked by administrator",
		}
	}

	limit := s.effectiveLimitLocked(key, cfg.MaxRequests)

	entry, ok := s.entries[key]
	if !ok || !now.Before(entry.resetTime()) {
		// Fresh window: the entry is replaced wholesale so count and
		// windowStart advance atomically.
		entry = &windowEntry{windowStart: now, window: cfg.Window}
		s.entries[key] = entry
	}

	var count int64
	if s.counters != nil {
		// Shared backend: the increment happens remotely; the local
		// entry keeps the window boundaries for reset-time reporting.
		store := s.counters
		s.mutex.Unlock()
		remote, err := store.Incr(ctx, key, entry.resetTime())
		if err != nil {
			// Fail open on backend errors rather than dropping traffic.
			s.logger.Error("Counter store failed, allowing request",
				"key", key,
				"error", err,
			)
			s.metrics.RecordRateLimitDecision("allowed", route)
			return Decision{
				Allowed:   true,
				Limit:     limit,
				Remaining: limit,
				ResetTime: entry.resetTime(),
			}
		}
		s.mutex.Lock()
		if cur, ok := s.entries[key]; ok && cur == entry {
			cur.count = remote
		}
		count = remote
	} else {
		entry.count++
		count = entry.count
	}

	if count <= int64(limit) {
		s.mutex.Unlock()
		s.metrics.RecordRateLimitDecision("allowed", route)
		return Decision{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit - int(count),
			ResetTime: entry.resetTime(),
		}
	}

	violations := s.recordViolationLocked(key, rc.Identity, now)
	resetTime := entry.resetTime()
	s.mutex.Unlock()

	s.metrics.RecordRateLimitDecision("denied", route)
	s.metrics.RecordRateLimitViolation(route)

	if s.auditor != nil {
		_ = s.auditor.LogViolation(ctx, key, route, violations)
	}
	if violations == securityNotifyThreshold+1 && s.dispatcher != nil {
		s.dispatcher.Notify(ctx, notify.Event{
			Audience: notify.AudienceSecurity,
			Severity: errors.SeverityHigh,
			Title:    "Repeated rate limit violations",
			Message:  "Key exceeded the cumulative violation threshold",
			Metadata: map[string]interface{}{
				"key":             key,
				"identity":        rc.Identity,
				"route":           route,
				"violation_count": violations,
			},
		})
	}

	return Decision{
		Allowed:    false,
		Limit:      limit,
		Remaining:  0,
		ResetTime:  resetTime,
		RetryAfter: retryAfterSeconds(resetTime, now),
		Reason:     "rate limit exceeded",
	}
}

// resolveConfig picks the window parameters for a request: explicit
// override, then routing table, then the conservative default.
func (s *Service) resolveConfig(rc RequestContext, override *Config) Config {
	if override != nil && override.MaxRequests > 0 && override.Window > 0 {
		return *override
	}
	if rl, ok := matchRoute(s.config.Routes, rc); ok {
		return rl.Config
	}
	return s.config.Default
}

// effectiveLimitLocked applies the adaptive multiplier and the repeat
// offender penalty to the base limit. Caller holds s.mutex.
func (s *Service) effectiveLimitLocked(key string, base int) int {
	limit := base
	if s.hasLoad {
		limit = AdaptiveLimit(limit, s.load)
	}
	if rec, ok := s.violations[key]; ok && rec.count > violationPenaltyThreshold {
		limit = limit / 2
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

// recordViolationLocked increments the key's violation counter and the
// identity's hourly history. Caller holds s.mutex.
func (s *Service) recordViolationLocked(key, identity string, now time.Time) int64 {
	rec, ok := s.violations[key]
	if !ok {
		rec = &violationRecord{}
		s.violations[key] = rec
	}
	rec.count++
	rec.lastSeen = now

	hist, ok := s.identities[identity]
	if !ok {
		hist = &identityHistory{}
		s.identities[identity] = hist
	}
	hist.recent = append(hist.recent, now)

	return rec.count
}

// ViolationCount returns the cumulative violation count for a key.
func (s *Service) ViolationCount(key string) int64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if rec, ok := s.violations[key]; ok {
		return rec.count
	}
	return 0
}

func retryAfterSeconds(resetTime, now time.Time) int {
	secs := int(math.Ceil(resetTime.Sub(now).Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
