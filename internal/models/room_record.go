package models

import (
	"time"

	"gorm.io/datatypes"
)

// RoomRecord persists one GameRoom document as JSON under its code.
type RoomRecord struct {
	Code      string         `gorm:"primaryKey;size:16"`
	Version   int64          `gorm:"not null;default:0"`
	Document  datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
