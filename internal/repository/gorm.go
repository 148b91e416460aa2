package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"bingoduel/backend/internal/apperror"
	"bingoduel/backend/internal/models"
)

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", apperror.ErrStoreUnavailable, err)
}

// GormRoomStore stores room documents as JSON rows with a version column.
type GormRoomStore struct {
	db *gorm.DB
}

func NewGormRoomStore(db *gorm.DB) *GormRoomStore {
	return &GormRoomStore{db: db}
}

func (s *GormRoomStore) CreateRoom(ctx context.Context, room *models.GameRoom) error {
	room.Version = 1
	doc, err := json.Marshal(room)
	if err != nil {
		return err
	}

	record := models.RoomRecord{Code: room.ID, Version: room.Version, Document: datatypes.JSON(doc)}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrRoomExists
		}
		return unavailable(err)
	}
	return nil
}

func (s *GormRoomStore) GetRoom(ctx context.Context, code string) (*models.GameRoom, error) {
	var record models.RoomRecord
	if err := s.db.WithContext(ctx).First(&record, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("room %s: %w", code, apperror.ErrRoomNotFound)
		}
		return nil, unavailable(err)
	}

	var room models.GameRoom
	if err := json.Unmarshal(record.Document, &room); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", code, err)
	}
	room.Version = record.Version
	return &room, nil
}

func (s *GormRoomStore) UpdateRoom(ctx context.Context, room *models.GameRoom) error {
	prev := room.Version
	room.Version = prev + 1
	doc, err := json.Marshal(room)
	if err != nil {
		room.Version = prev
		return err
	}

	result := s.db.WithContext(ctx).Model(&models.RoomRecord{}).
		Where("code = ? AND version = ?", room.ID, prev).
		Updates(map[string]any{"version": room.Version, "document": datatypes.JSON(doc)})
	if result.Error != nil {
		room.Version = prev
		return unavailable(result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}

	room.Version = prev
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.RoomRecord{}).Where("code = ?", room.ID).Count(&count).Error; err != nil {
		return unavailable(err)
	}
	if count == 0 {
		return fmt.Errorf("room %s: %w", room.ID, apperror.ErrRoomNotFound)
	}
	return ErrVersionConflict
}

func (s *GormRoomStore) DeleteRoom(ctx context.Context, code string) error {
	result := s.db.WithContext(ctx).Delete(&models.RoomRecord{}, "code = ?", code)
	if result.Error != nil {
		return unavailable(result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("room %s: %w", code, apperror.ErrRoomNotFound)
	}
	return nil
}

func (s *GormRoomStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return unavailable(err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

// GormLedgerStore serialises writes per player with a transaction-scoped
// PostgreSQL advisory lock.
type GormLedgerStore struct {
	db *gorm.DB
}

func NewGormLedgerStore(db *gorm.DB) *GormLedgerStore {
	return &GormLedgerStore{db: db}
}

func lockPlayer(tx *gorm.DB, playerID string) error {
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", playerID).Error
}

func sumDeltas(tx *gorm.DB, playerID string) (int, error) {
	var total int
	err := tx.Model(&models.LedgerEntry{}).
		Where("player_id = ?", playerID).
		Select("COALESCE(SUM(delta), 0)").
		Scan(&total).Error
	return total, err
}

func (s *GormLedgerStore) EnsureGrant(ctx context.Context, playerID string, amount int) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPlayer(tx, playerID); err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.LedgerEntry{}).Where("player_id = ?", playerID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		return tx.Create(&models.LedgerEntry{PlayerID: playerID, Delta: amount, Reason: models.ReasonWelcomeGrant}).Error
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *GormLedgerStore) Append(ctx context.Context, entry *models.LedgerEntry) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *GormLedgerStore) Debit(ctx context.Context, playerID string, amount int, reason models.LedgerReason, note string) (int, error) {
	var balance int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPlayer(tx, playerID); err != nil {
			return err
		}
		total, err := sumDeltas(tx, playerID)
		if err != nil {
			return err
		}
		balance = total
		if total < amount {
			return apperror.ErrInsufficientTokens
		}
		if err := tx.Create(&models.LedgerEntry{PlayerID: playerID, Delta: -amount, Reason: reason, Note: note}).Error; err != nil {
			return err
		}
		balance = total - amount
		return nil
	})
	if errors.Is(err, apperror.ErrInsufficientTokens) {
		return balance, err
	}
	if err != nil {
		return 0, unavailable(err)
	}
	return balance, nil
}

func (s *GormLedgerStore) Balance(ctx context.Context, playerID string) (int, error) {
	total, err := sumDeltas(s.db.WithContext(ctx), playerID)
	if err != nil {
		return 0, unavailable(err)
	}
	return total, nil
}

func (s *GormLedgerStore) Entries(ctx context.Context, playerID string, page, limit int) ([]models.LedgerEntry, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.LedgerEntry{}).
		Where("player_id = ?", playerID).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, unavailable(err)
	}

	var entries []models.LedgerEntry
	offset := (page - 1) * limit
	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&entries).Error; err != nil {
		return nil, 0, unavailable(err)
	}
	return entries, total, nil
}
