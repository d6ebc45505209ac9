package reservations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSweepRepo drives ReleaseExpiredBatch without a database.
type fakeSweepRepo struct {
	ids      []uuid.UUID
	failOn   uuid.UUID
	released []uuid.UUID
}

func (f *fakeSweepRepo) CreateWithStockLock(ctx context.Context, reservation *Reservation) error {
	return nil
}

func (f *fakeSweepRepo) GetByID(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSweepRepo) Release(ctx context.Context, id uuid.UUID) (bool, error) {
	if id == f.failOn {
		return false, errors.New("deadlock detected")
	}
	f.released = append(f.released, id)
	return true, nil
}

func (f *fakeSweepRepo) ListExpiredIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	if limit < len(f.ids) {
		return f.ids[:limit], nil
	}
	return f.ids, nil
}

func TestReleaseExpiredBatch_KeepsSweepingPastFailingRows(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	repo := &fakeSweepRepo{ids: ids, failOn: ids[1]}
	svc := NewService(repo, 10*time.Minute)

	released, err := svc.ReleaseExpiredBatch(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 2, released, "one contended row does not stall the batch")
	assert.Equal(t, []uuid.UUID{ids[0], ids[2]}, repo.released)
}

func TestReleaseExpiredBatch_HonorsBatchSize(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	repo := &fakeSweepRepo{ids: ids}
	svc := NewService(repo, 10*time.Minute)

	released, err := svc.ReleaseExpiredBatch(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, released)
}
