package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bingoduel/backend/internal/apperror"
	"bingoduel/backend/internal/models"
)

func TestRoomStoreCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryRoomStore()

	room := &models.GameRoom{ID: "ABC123", Creator: &models.Player{ID: "p1"}, Status: models.StatusWaiting}
	require.NoError(t, store.CreateRoom(ctx, room))
	assert.Equal(t, int64(1), room.Version)
	assert.ErrorIs(t, store.CreateRoom(ctx, room), ErrRoomExists)

	first, err := store.GetRoom(ctx, "ABC123")
	require.NoError(t, err)
	second, err := store.GetRoom(ctx, "ABC123")
	require.NoError(t, err)

	first.Status = models.StatusPlaying
	require.NoError(t, store.UpdateRoom(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.Status = models.StatusFinished
	assert.ErrorIs(t, store.UpdateRoom(ctx, second), ErrVersionConflict)

	got, err := store.GetRoom(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPlaying, got.Status)
}

func TestRoomStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryRoomStore()
	require.NoError(t, store.CreateRoom(ctx, &models.GameRoom{ID: "X", Creator: &models.Player{ID: "p1"}}))

	got, err := store.GetRoom(ctx, "X")
	require.NoError(t, err)
	got.CalledNumbers = append(got.CalledNumbers, 9)
	got.Creator.MarkedNumbers = append(got.Creator.MarkedNumbers, 9)

	again, err := store.GetRoom(ctx, "X")
	require.NoError(t, err)
	assert.Empty(t, again.CalledNumbers)
	assert.Empty(t, again.Creator.MarkedNumbers)
}

func TestRoomStoreMissing(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryRoomStore()

	_, err := store.GetRoom(ctx, "NOPE")
	assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
	assert.ErrorIs(t, store.UpdateRoom(ctx, &models.GameRoom{ID: "NOPE"}), apperror.ErrRoomNotFound)
	assert.ErrorIs(t, store.DeleteRoom(ctx, "NOPE"), apperror.ErrRoomNotFound)
	assert.NoError(t, store.Ping(ctx))
}

func TestLedgerGrantAndDebit(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryLedgerStore()

	require.NoError(t, store.EnsureGrant(ctx, "p1", 2))
	require.NoError(t, store.EnsureGrant(ctx, "p1", 2))
	balance, err := store.Balance(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, balance)

	left, err := store.Debit(ctx, "p1", 1, models.ReasonGameStart, "")
	require.NoError(t, err)
	assert.Equal(t, 1, left)
	left, err = store.Debit(ctx, "p1", 1, models.ReasonGameStart, "")
	require.NoError(t, err)
	assert.Equal(t, 0, left)

	_, err = store.Debit(ctx, "p1", 1, models.ReasonGameStart, "")
	assert.ErrorIs(t, err, apperror.ErrInsufficientTokens)
}

func TestLedgerConcurrentDebitsNeverOverspend(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryLedgerStore()
	require.NoError(t, store.EnsureGrant(ctx, "p1", 5))

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Debit(ctx, "p1", 1, models.ReasonGameStart, ""); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	balance, _ := store.Balance(ctx, "p1")
	assert.Equal(t, 0, balance)
}

func TestLedgerEntriesPaging(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryLedgerStore()
	for i := 1; i <= 5; i++ {
		require.NoError(t, store.Append(ctx, &models.LedgerEntry{PlayerID: "p1", Delta: i, Reason: models.ReasonAdminCredit}))
	}

	page, total, err := store.Entries(ctx, "p1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.Equal(t, 5, page[0].Delta)
	assert.Equal(t, 4, page[1].Delta)

	page, _, err = store.Entries(ctx, "p1", 3, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, 1, page[0].Delta)

	page, _, err = store.Entries(ctx, "p1", 9, 2)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestInMemoryRoomStoreSuite(t *testing.T) {
	runRoomStoreSuite(t, NewInMemoryRoomStore())
}

func TestInMemoryLedgerStoreSuite(t *testing.T) {
	runLedgerStoreSuite(t, NewInMemoryLedgerStore())
}
