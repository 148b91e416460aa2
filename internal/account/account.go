// Package account manages each player's play tokens. Balances live in an
// append-only ledger; a new player is granted the starting allowance on
// first access.
package account

import (
	"context"
	"fmt"

	"bingoduel/backend/internal/apperror"
	"bingoduel/backend/internal/logger"
	"bingoduel/backend/internal/models"
	"bingoduel/backend/internal/repository"
)

// GameCost is what starting one single-player game debits.
const GameCost = 1

type Service struct {
	store          repository.LedgerStore
	startingTokens int
}

func NewService(store repository.LedgerStore, startingTokens int) *Service {
	return &Service{store: store, startingTokens: startingTokens}
}

func (s *Service) ensure(ctx context.Context, playerID string) error {
	if playerID == "" {
		return fmt.Errorf("player id is required: %w", apperror.ErrInvalidInput)
	}
	return s.store.EnsureGrant(ctx, playerID, s.startingTokens)
}

// Balance returns the player's token count.
func (s *Service) Balance(ctx context.Context, playerID string) (int, error) {
	if err := s.ensure(ctx, playerID); err != nil {
		return 0, err
	}
	return s.store.Balance(ctx, playerID)
}

// SpendGame debits one game start and returns the remaining balance, or
// apperror.ErrInsufficientTokens when the player has none left.
func (s *Service) SpendGame(ctx context.Context, playerID string) (int, error) {
	if err := s.ensure(ctx, playerID); err != nil {
		return 0, err
	}
	left, err := s.store.Debit(ctx, playerID, GameCost, models.ReasonGameStart, "")
	if err != nil {
		return 0, err
	}
	logger.Debugf("player %s spent a token, %d left", playerID, left)
	return left, nil
}

// Credit tops a player up. Only positive amounts are accepted.
func (s *Service) Credit(ctx context.Context, playerID string, amount int, note string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be positive: %w", apperror.ErrInvalidInput)
	}
	if err := s.ensure(ctx, playerID); err != nil {
		return 0, err
	}
	entry := &models.LedgerEntry{PlayerID: playerID, Delta: amount, Reason: models.ReasonAdminCredit, Note: note}
	if err := s.store.Append(ctx, entry); err != nil {
		return 0, err
	}
	logger.Infof("credited %d tokens to %s", amount, playerID)
	return s.store.Balance(ctx, playerID)
}

// Ledger pages through the player's entries, newest first.
func (s *Service) Ledger(ctx context.Context, playerID string, page, limit int) ([]models.LedgerEntry, int64, error) {
	if err := s.ensure(ctx, playerID); err != nil {
		return nil, 0, err
	}
	return s.store.Entries(ctx, playerID, page, limit)
}
