package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/atticusjxn/flynnai-sub001/pkg/errors"
)

func TestMemoryStore_SaveRequiresID(t *testing.T) {
	store := NewMemoryStore()
	err := store.Save(context.Background(), &apperrors.ManagedError{})
	assert.Error(t, err)
}

func TestMemoryStore_SaveStoresCopy(t *testing.T) {
	store := NewMemoryStore()
	record := apperrors.New(apperrors.KindAPIError, "call-1", "timeout")
	record.OwnerID = "owner-1"

	require.NoError(t, store.Save(context.Background(), record))

	// Mutating the caller's record must not affect the stored copy.
	record.Message = "changed afterwards"

	records, err := store.ListByOwner(context.Background(), "owner-1",
		record.CreatedAt.Add(-time.Minute), record.CreatedAt.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "timeout", records[0].Message)
}

func TestMemoryStore_MarkResolvedFirstTimestampWins(t *testing.T) {
	store := NewMemoryStore()
	record := apperrors.New(apperrors.KindAPIError, "call-1", "timeout")
	record.OwnerID = "owner-1"
	require.NoError(t, store.Save(context.Background(), record))

	first := time.Now().UTC()
	require.NoError(t, store.MarkResolved(context.Background(), record.ID, first))
	require.NoError(t, store.MarkResolved(context.Background(), record.ID, first.Add(time.Hour)))

	records, err := store.ListByOwner(context.Background(), "owner-1",
		record.CreatedAt.Add(-time.Minute), record.CreatedAt.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].ResolvedAt)
	assert.Equal(t, first, *records[0].ResolvedAt)
}

func TestMemoryStore_MarkResolvedUnknownID(t *testing.T) {
	store := NewMemoryStore()
	assert.Error(t, store.MarkResolved(context.Background(), "missing", time.Now()))
}

func TestMemoryStore_ListByOwnerFiltersRange(t *testing.T) {
	store := NewMemoryStore()

	inRange := apperrors.New(apperrors.KindAPIError, "call-1", "timeout")
	inRange.OwnerID = "owner-1"
	require.NoError(t, store.Save(context.Background(), inRange))

	old := apperrors.New(apperrors.KindAPIError, "call-2", "timeout")
	old.OwnerID = "owner-1"
	old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, store.Save(context.Background(), old))

	other := apperrors.New(apperrors.KindAPIError, "call-3", "timeout")
	other.OwnerID = "owner-2"
	require.NoError(t, store.Save(context.Background(), other))

	records, err := store.ListByOwner(context.Background(), "owner-1",
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, inRange.ID, records[0].ID)
}
