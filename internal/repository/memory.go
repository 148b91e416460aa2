package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bingoduel/backend/internal/apperror"
	"bingoduel/backend/internal/models"
)

// InMemoryRoomStore keeps rooms in a map. Callers only ever see copies.
type InMemoryRoomStore struct {
	mu    sync.Mutex
	rooms map[string]*models.GameRoom
}

func NewInMemoryRoomStore() *InMemoryRoomStore {
	return &InMemoryRoomStore{rooms: make(map[string]*models.GameRoom)}
}

func (s *InMemoryRoomStore) CreateRoom(_ context.Context, room *models.GameRoom) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; ok {
		return ErrRoomExists
	}
	room.Version = 1
	s.rooms[room.ID] = room.Clone()
	return nil
}

func (s *InMemoryRoomStore) GetRoom(_ context.Context, code string) (*models.GameRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", code, apperror.ErrRoomNotFound)
	}
	return room.Clone(), nil
}

func (s *InMemoryRoomStore) UpdateRoom(_ context.Context, room *models.GameRoom) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.rooms[room.ID]
	if !ok {
		return fmt.Errorf("room %s: %w", room.ID, apperror.ErrRoomNotFound)
	}
	if stored.Version != room.Version {
		return ErrVersionConflict
	}
	room.Version++
	s.rooms[room.ID] = room.Clone()
	return nil
}

func (s *InMemoryRoomStore) DeleteRoom(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[code]; !ok {
		return fmt.Errorf("room %s: %w", code, apperror.ErrRoomNotFound)
	}
	delete(s.rooms, code)
	return nil
}

func (s *InMemoryRoomStore) Ping(context.Context) error { return nil }

// InMemoryLedgerStore is a mutex-guarded ledger.
type InMemoryLedgerStore struct {
	mu      sync.Mutex
	entries map[string][]models.LedgerEntry
	nextID  uint
}

func NewInMemoryLedgerStore() *InMemoryLedgerStore {
	return &InMemoryLedgerStore{entries: make(map[string][]models.LedgerEntry), nextID: 1}
}

func (s *InMemoryLedgerStore) appendLocked(entry *models.LedgerEntry) {
	entry.ID = s.nextID
	s.nextID++
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.entries[entry.PlayerID] = append(s.entries[entry.PlayerID], *entry)
}

func (s *InMemoryLedgerStore) balanceLocked(playerID string) int {
	total := 0
	for _, e := range s.entries[playerID] {
		total += e.Delta
	}
	return total
}

func (s *InMemoryLedgerStore) EnsureGrant(_ context.Context, playerID string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries[playerID]) > 0 {
		return nil
	}
	s.appendLocked(&models.LedgerEntry{PlayerID: playerID, Delta: amount, Reason: models.ReasonWelcomeGrant})
	return nil
}

func (s *InMemoryLedgerStore) Append(_ context.Context, entry *models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendLocked(entry)
	return nil
}

func (s *InMemoryLedgerStore) Debit(_ context.Context, playerID string, amount int, reason models.LedgerReason, note string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance := s.balanceLocked(playerID)
	if balance < amount {
		return balance, apperror.ErrInsufficientTokens
	}
	s.appendLocked(&models.LedgerEntry{PlayerID: playerID, Delta: -amount, Reason: reason, Note: note})
	return balance - amount, nil
}

func (s *InMemoryLedgerStore) Balance(_ context.Context, playerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.balanceLocked(playerID), nil
}

func (s *InMemoryLedgerStore) Entries(_ context.Context, playerID string, page, limit int) ([]models.LedgerEntry, int64, error) {
	s.mu.Lock()
	all := make([]models.LedgerEntry, len(s.entries[playerID]))
	copy(all, s.entries[playerID])
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	total := int64(len(all))
	offset := (page - 1) * limit
	if offset >= len(all) || offset < 0 {
		return []models.LedgerEntry{}, total, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], total, nil
}
