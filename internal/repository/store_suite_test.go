package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bingoduel/backend/internal/apperror"
	"bingoduel/backend/internal/models"
)

func newRoomCode() string {
	return lo.RandomString(8, lo.UpperCaseLettersCharset)
}

// runRoomStoreSuite checks the RoomStore contract every implementation shares.
func runRoomStoreSuite(t *testing.T, store RoomStore) {
	ctx := context.Background()

	t.Run("create and duplicate", func(t *testing.T) {
		room := &models.GameRoom{ID: newRoomCode(), Creator: &models.Player{ID: "p1"}, Status: models.StatusWaiting, CalledNumbers: []int{}}
		require.NoError(t, store.CreateRoom(ctx, room))
		assert.Equal(t, int64(1), room.Version)

		dup := &models.GameRoom{ID: room.ID, Creator: &models.Player{ID: "p2"}}
		assert.ErrorIs(t, store.CreateRoom(ctx, dup), ErrRoomExists)

		got, err := store.GetRoom(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, "p1", got.Creator.ID)
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("compare and swap", func(t *testing.T) {
		code := newRoomCode()
		require.NoError(t, store.CreateRoom(ctx, &models.GameRoom{ID: code, Creator: &models.Player{ID: "p1"}, Status: models.StatusWaiting}))

		first, err := store.GetRoom(ctx, code)
		require.NoError(t, err)
		second, err := store.GetRoom(ctx, code)
		require.NoError(t, err)

		first.Status = models.StatusPlaying
		first.CalledNumbers = []int{7}
		require.NoError(t, store.UpdateRoom(ctx, first))
		assert.Equal(t, int64(2), first.Version)

		second.Status = models.StatusFinished
		assert.ErrorIs(t, store.UpdateRoom(ctx, second), ErrVersionConflict)
		assert.Equal(t, int64(1), second.Version, "a rejected write leaves the version alone")

		got, err := store.GetRoom(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPlaying, got.Status)
		assert.Equal(t, []int{7}, got.CalledNumbers)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("racing writers", func(t *testing.T) {
		code := newRoomCode()
		require.NoError(t, store.CreateRoom(ctx, &models.GameRoom{ID: code, Creator: &models.Player{ID: "p1"}}))

		const writers = 8
		copies := make([]*models.GameRoom, writers)
		for i := range copies {
			room, err := store.GetRoom(ctx, code)
			require.NoError(t, err)
			copies[i] = room
		}

		var wg sync.WaitGroup
		errs := make([]error, writers)
		for i, room := range copies {
			wg.Add(1)
			go func() {
				defer wg.Done()
				room.CalledNumbers = []int{i + 1}
				errs[i] = store.UpdateRoom(ctx, room)
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, lo.CountBy(errs, func(err error) bool { return err == nil }))
		for _, err := range errs {
			if err != nil {
				assert.ErrorIs(t, err, ErrVersionConflict)
			}
		}
	})

	t.Run("missing room", func(t *testing.T) {
		code := newRoomCode()
		_, err := store.GetRoom(ctx, code)
		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
		assert.ErrorIs(t, store.UpdateRoom(ctx, &models.GameRoom{ID: code, Version: 1}), apperror.ErrRoomNotFound)
		assert.ErrorIs(t, store.DeleteRoom(ctx, code), apperror.ErrRoomNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		code := newRoomCode()
		require.NoError(t, store.CreateRoom(ctx, &models.GameRoom{ID: code, Creator: &models.Player{ID: "p1"}}))
		require.NoError(t, store.DeleteRoom(ctx, code))
		_, err := store.GetRoom(ctx, code)
		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, store.Ping(ctx))
	})
}

// runLedgerStoreSuite checks the LedgerStore contract every implementation shares.
func runLedgerStoreSuite(t *testing.T, store LedgerStore) {
	ctx := context.Background()

	t.Run("grant once", func(t *testing.T) {
		player := uuid.NewString()
		require.NoError(t, store.EnsureGrant(ctx, player, 3))
		require.NoError(t, store.EnsureGrant(ctx, player, 3))
		balance, err := store.Balance(ctx, player)
		require.NoError(t, err)
		assert.Equal(t, 3, balance)
	})

	t.Run("debit", func(t *testing.T) {
		player := uuid.NewString()
		require.NoError(t, store.EnsureGrant(ctx, player, 1))

		left, err := store.Debit(ctx, player, 1, models.ReasonGameStart, "solo")
		require.NoError(t, err)
		assert.Equal(t, 0, left)

		left, err = store.Debit(ctx, player, 1, models.ReasonGameStart, "solo")
		assert.ErrorIs(t, err, apperror.ErrInsufficientTokens)
		assert.Equal(t, 0, left)
	})

	t.Run("concurrent debits never overspend", func(t *testing.T) {
		player := uuid.NewString()
		require.NoError(t, store.EnsureGrant(ctx, player, 5))

		var wg sync.WaitGroup
		errs := make([]error, 20)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = store.Debit(ctx, player, 1, models.ReasonGameStart, "")
			}()
		}
		wg.Wait()

		assert.Equal(t, 5, lo.CountBy(errs, func(err error) bool { return err == nil }))
		for _, err := range errs {
			if err != nil {
				assert.ErrorIs(t, err, apperror.ErrInsufficientTokens)
			}
		}
		balance, err := store.Balance(ctx, player)
		require.NoError(t, err)
		assert.Equal(t, 0, balance)
	})

	t.Run("entries newest first", func(t *testing.T) {
		player := uuid.NewString()
		for i := 1; i <= 5; i++ {
			require.NoError(t, store.Append(ctx, &models.LedgerEntry{PlayerID: player, Delta: i, Reason: models.ReasonAdminCredit}))
		}

		page, total, err := store.Entries(ctx, player, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		require.Len(t, page, 2)
		assert.Equal(t, 5, page[0].Delta)
		assert.Equal(t, 4, page[1].Delta)

		page, _, err = store.Entries(ctx, player, 3, 2)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, 1, page[0].Delta)
	})
}
