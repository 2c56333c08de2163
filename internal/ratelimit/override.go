package ratelimit

import (
	"context"
	"fmt"
)

// OverrideAction is an administrative mutation of limiter state.
type OverrideAction string

const (
	OverrideUnblock OverrideAction = "unblock"
	OverrideBlock   OverrideAction = "block"
	OverrideReset   OverrideAction = "reset"
)

// Override applies an administrative action to a key's stored state and
// writes an audit entry attributing the change to the actor. All
// actions are idempotent: applying the same action twice leaves the
// same state as applying it once.
func (s *Service) Override(ctx context.Context, key string, action OverrideAction, reason, actorID string) error {
	s.mutex.Lock()

	switch action {
	case OverrideBlock:
		s.blocked[key] = struct{}{}
	case OverrideUnblock:
		delete(s.blocked, key)
	case OverrideReset:
		delete(s.entries, key)
		delete(s.violations, key)
		delete(s.blocked, key)
	default:
		s.mutex.Unlock()
		return fmt.Errorf("unknown override action: %s", action)
	}

	s.mutex.Unlock()

	s.logger.Info("Rate limit override applied",
		"key", key,
		"action", string(action),
		"actor_id", actorID,
		"reason", reason,
	)

	if s.auditor != nil {
		return s.auditor.LogOverride(ctx, key, string(action), reason, actorID)
	}
	return nil
}
