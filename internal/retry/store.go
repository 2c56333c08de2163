package retry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/atticusjxn/flynnai-sub001/pkg/errors"
)

// RecordStore persists classified errors. The resilience layer treats
// persistence as an external collaborator: state may be rebuilt from
// zero on restart.
type RecordStore interface {
	Save(ctx context.Context, record *errors.ManagedError) error
	MarkResolved(ctx context.Context, errorID string, at time.Time) error
	ListByOwner(ctx context.Context, ownerID string, since, until time.Time) ([]*errors.ManagedError, error)
}

// MemoryStore is an in-process RecordStore guarded by a mutex.
type MemoryStore struct {
	records map[string]*errors.ManagedError
	mutex   sync.RWMutex
}

// NewMemoryStore creates an empty in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*errors.ManagedError),
	}
}

// Save stores a copy of the record keyed by its ID.
func (s *MemoryStore) Save(ctx context.Context, record *errors.ManagedError) error {
	if record.ID == "" {
		return fmt.Errorf("record has no ID")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	clone := *record
	s.records[record.ID] = &clone
	return nil
}

// MarkResolved stamps the record's resolution time.
func (s *MemoryStore) MarkResolved(ctx context.Context, errorID string, at time.Time) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	record, ok := s.records[errorID]
	if !ok {
		return fmt.Errorf("error record %s not found", errorID)
	}
	if record.ResolvedAt == nil {
		record.ResolvedAt = &at
	}
	return nil
}

// ListByOwner returns copies of records for the owner created within
// [since, until].
func (s *MemoryStore) ListByOwner(ctx context.Context, ownerID string, since, until time.Time) ([]*errors.ManagedError, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var out []*errors.ManagedError
	for _, record := range s.records {
		if record.OwnerID != ownerID {
			continue
		}
		if record.CreatedAt.Before(since) || record.CreatedAt.After(until) {
			continue
		}
		clone := *record
		out = append(out, &clone)
	}
	return out, nil
}
