package repository

import (
	"context"
	"errors"

	"bingoduel/backend/internal/models"
)

var (
	// ErrRoomExists is returned by CreateRoom when the code is taken.
	ErrRoomExists = errors.New("room code already in use")
	// ErrVersionConflict is returned by UpdateRoom when the stored
	// document changed since it was read.
	ErrVersionConflict = errors.New("room was modified concurrently")
)

// RoomStore keeps one GameRoom document per room code.
//
// UpdateRoom is a compare-and-swap: it only writes when the stored version
// equals room.Version, and on success advances room.Version. Missing rooms
// are reported as apperror.ErrRoomNotFound.
type RoomStore interface {
	CreateRoom(ctx context.Context, room *models.GameRoom) error
	GetRoom(ctx context.Context, code string) (*models.GameRoom, error)
	UpdateRoom(ctx context.Context, room *models.GameRoom) error
	DeleteRoom(ctx context.Context, code string) error
	Ping(ctx context.Context) error
}

// LedgerStore is the append-only token ledger.
type LedgerStore interface {
	// EnsureGrant writes a welcome grant of amount iff the player has no entries yet.
	EnsureGrant(ctx context.Context, playerID string, amount int) error
	Append(ctx context.Context, entry *models.LedgerEntry) error
	// Debit atomically appends a negative entry when the balance covers
	// amount, and returns the new balance.
	Debit(ctx context.Context, playerID string, amount int, reason models.LedgerReason, note string) (int, error)
	Balance(ctx context.Context, playerID string) (int, error)
	// Entries pages through a player's entries, newest first.
	Entries(ctx context.Context, playerID string, page, limit int) ([]models.LedgerEntry, int64, error)
}
