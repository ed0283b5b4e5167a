package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs-lzh/seat-booking/internal/database/dbtest"
	"github.com/qs-lzh/seat-booking/internal/model"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func claim(seatID uint, holder, handle string, expiresAt time.Time) *model.SeatClaim {
	return &model.SeatClaim{
		ID:          uuid.NewString(),
		HandleID:    handle,
		ShowtimeID:  1,
		SeatID:      seatID,
		HolderToken: holder,
		ExpiresAt:   expiresAt,
		CreatedAt:   t0,
	}
}

func TestAcquire_FreeSeat(t *testing.T) {
	repo := NewClaimRepoGorm(dbtest.New(t))
	ctx := context.Background()

	ok, err := repo.Acquire(ctx, claim(1, "alice", "h1", t0.Add(5*time.Minute)), t0)

	require.NoError(t, err)
	assert.True(t, ok)
	claims, err := repo.ListByHandle(ctx, "h1")
	require.NoError(t, err)
	assert.Len(t, claims, 1)
}

func TestAcquire_HeldByOther(t *testing.T) {
	repo := NewClaimRepoGorm(dbtest.New(t))
	ctx := context.Background()

	ok, err := repo.Acquire(ctx, claim(1, "alice", "h1", t0.Add(5*time.Minute)), t0)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.Acquire(ctx, claim(1, "bob", "h2", t0.Add(6*time.Minute)), t0.Add(time.Minute))

	require.NoError(t, err)
	assert.False(t, ok)
	live, err := repo.ListLiveByShowtime(ctx, 1, t0.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "alice", live[0].HolderToken)
	assert.Equal(t, "h1", live[0].HandleID)
}

func TestAcquire_TakesOverExpiredClaim(t *testing.T) {
	repo := NewClaimRepoGorm(dbtest.New(t))
	ctx := context.Background()

	_, err := repo.Acquire(ctx, claim(1, "alice", "h1", t0.Add(5*time.Minute)), t0)
	require.NoError(t, err)

	now := t0.Add(6 * time.Minute)
	ok, err := repo.Acquire(ctx, claim(1, "bob", "h2", now.Add(5*time.Minute)), now)

	require.NoError(t, err)
	assert.True(t, ok)
	live, err := repo.ListLiveByShowtime(ctx, 1, now)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "bob", live[0].HolderToken)
	assert.Equal(t, "h2", live[0].HandleID)
}

func TestAcquire_SameHolderMovesClaimToNewHandle(t *testing.T) {
	repo := NewClaimRepoGorm(dbtest.New(t))
	ctx := context.Background()

	_, err := repo.Acquire(ctx, claim(1, "alice", "h1", t0.Add(5*time.Minute)), t0)
	require.NoError(t, err)

	ok, err := repo.Acquire(ctx, claim(1, "alice", "h2", t0.Add(7*time.Minute)), t0.Add(2*time.Minute))

	require.NoError(t, err)
	assert.True(t, ok)
	old, err := repo.ListByHandle(ctx, "h1")
	require.NoError(t, err)
	assert.Empty(t, old)
	moved, err := repo.ListByHandle(ctx, "h2")
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.True(t, moved[0].ExpiresAt.Equal(t0.Add(7*time.Minute)))
}

func TestConsumeLive_IgnoresExpiredClaims(t *testing.T) {
	repo := NewClaimRepoGorm(dbtest.New(t))
	ctx := context.Background()

	for _, c := range []*model.SeatClaim{
		claim(1, "alice", "h1", t0.Add(5*time.Minute)),
		claim(2, "alice", "h1", t0.Add(time.Minute)),
	} {
		_, err := repo.Acquire(ctx, c, t0)
		require.NoError(t, err)
	}

	n, err := repo.ConsumeLive(ctx, "h1", t0.Add(2*time.Minute))

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	left, err := repo.ListByHandle(ctx, "h1")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, uint(2), left[0].SeatID)
}

func TestListLiveByHolder_OrderedBySeat(t *testing.T) {
	repo := NewClaimRepoGorm(dbtest.New(t))
	ctx := context.Background()

	for _, seatID := range []uint{3, 1, 2} {
		_, err := repo.Acquire(ctx, claim(seatID, "alice", "h1", t0.Add(5*time.Minute)), t0)
		require.NoError(t, err)
	}
	_, err := repo.Acquire(ctx, claim(4, "bob", "h2", t0.Add(5*time.Minute)), t0)
	require.NoError(t, err)

	claims, err := repo.ListLiveByHolder(ctx, 1, "alice", t0)

	require.NoError(t, err)
	require.Len(t, claims, 3)
	for i, c := range claims {
		assert.Equal(t, uint(i+1), c.SeatID)
	}
}

func TestDeleteExpired(t *testing.T) {
	repo := NewClaimRepoGorm(dbtest.New(t))
	ctx := context.Background()

	_, err := repo.Acquire(ctx, claim(1, "alice", "h1", t0.Add(time.Minute)), t0)
	require.NoError(t, err)
	_, err = repo.Acquire(ctx, claim(2, "bob", "h2", t0.Add(10*time.Minute)), t0)
	require.NoError(t, err)

	removed, err := repo.DeleteExpired(ctx, t0.Add(5*time.Minute))

	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, uint(1), removed[0].SeatID)
	live, err := repo.ListLiveByShowtime(ctx, 1, t0)
	require.NoError(t, err)
	assert.Len(t, live, 1)

	removed, err = repo.DeleteExpired(ctx, t0.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestDeleteByHandle(t *testing.T) {
	repo := NewClaimRepoGorm(dbtest.New(t))
	ctx := context.Background()

	_, err := repo.Acquire(ctx, claim(1, "alice", "h1", t0.Add(time.Minute)), t0)
	require.NoError(t, err)
	_, err = repo.Acquire(ctx, claim(2, "alice", "h2", t0.Add(time.Minute)), t0)
	require.NoError(t, err)

	n, err := repo.DeleteByHandle(ctx, "h1", "mallory")
	require.NoError(t, err)
	assert.Zero(t, n, "another holder cannot drop the claims")

	n, err = repo.DeleteByHandle(ctx, "h1", "alice")

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	live, err := repo.ListLiveByShowtime(ctx, 1, t0)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "h2", live[0].HandleID)
}
