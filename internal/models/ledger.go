package models

import "time"

// LedgerReason labels why a balance changed.
type LedgerReason string

const (
	ReasonWelcomeGrant LedgerReason = "welcome_grant"
	ReasonGameStart    LedgerReason = "game_start"
	ReasonAdminCredit  LedgerReason = "admin_credit"
)

// LedgerEntry is one append-only debit (negative delta) or credit.
// A player's balance is the sum of their entries.
type LedgerEntry struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	PlayerID  string       `gorm:"size:64;not null;index" json:"player_id"`
	Delta     int          `gorm:"not null" json:"delta"`
	Reason    LedgerReason `gorm:"size:50;not null" json:"reason"`
	Note      string       `gorm:"size:255" json:"note,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
