package ratelimit

import (
	"context"
	"time"
)

// Start launches the background cleanup sweep on its own ticker,
// decoupled from request volume. It is a no-op if already running.
func (s *Service) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.running {
		return
	}
	s.running = true

	go s.sweepLoop(ctx)
	s.logger.Info("Rate limit cleanup sweep started",
		"interval", s.config.CleanupInterval,
	)
}

// Stop cancels the background sweep. It is a no-op if not running.
func (s *Service) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if !s.running {
		return
	}
	close(s.stopCh)
	s.running = false
	s.logger.Info("Rate limit cleanup sweep stopped")
}

func (s *Service) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Sweep(time.Now())
		}
	}
}

// Sweep deletes window entries whose reset time has passed and
// violation records idle beyond the retention period, bounding memory
// growth. Admin blocks live in their own map and are never swept. Work
// under the lock is limited to map iteration and deletes; logging
// happens after release.
func (s *Service) Sweep(now time.Time) {
	start := time.Now()

	s.mutex.Lock()
	var expiredWindows, staleViolations int
	for key, entry := range s.entries {
		if now.After(entry.resetTime()) {
			delete(s.entries, key)
			expiredWindows++
		}
	}
	cutoff := now.Add(-s.config.ViolationRetention)
	for key, rec := range s.violations {
		if rec.lastSeen.Before(cutoff) {
			delete(s.violations, key)
			staleViolations++
		}
	}
	for identity, hist := range s.identities {
		hist.prune(now)
		if len(hist.recent) == 0 {
			delete(s.identities, identity)
		}
	}
	remaining := len(s.entries)
	s.mutex.Unlock()

	s.metrics.SetRateLimitEntries(remaining)
	s.metrics.ObserveSweepDuration(time.Since(start).Seconds())

	if expiredWindows > 0 || staleViolations > 0 {
		s.logger.Debug("Rate limit sweep completed",
			"expired_windows", expiredWindows,
			"stale_violations", staleViolations,
			"remaining_entries", remaining,
		)
	}
}
