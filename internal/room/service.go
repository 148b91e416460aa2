package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"bingoduel/backend/internal/apperror"
	"bingoduel/backend/internal/bingo"
	"bingoduel/backend/internal/hub"
	"bingoduel/backend/internal/logger"
	"bingoduel/backend/internal/models"
	"bingoduel/backend/internal/repository"
)

const (
	defaultMaxAttempts = 8
	createAttempts     = 5
)

// errNoChange lets a mutation finish successfully without writing.
var errNoChange = errors.New("no change")

// Options tune a Service. Zero values get defaults in NewService.
type Options struct {
	TurnTimeLimit time.Duration
	// VerifyClaims re-checks a bingo claim against the claimant's card
	// and marked numbers. Off by default: claims are trusted.
	VerifyClaims bool
	// MaxAttempts bounds how often a mutation is re-validated after losing
	// a compare-and-swap race.
	MaxAttempts int
	Now         func() time.Time
	Cards       bingo.Source
}

// Service implements the room operations on top of a RoomStore and pushes
// every committed document to the room's hub topic.
type Service struct {
	store repository.RoomStore
	hub   *hub.Hub
	opts  Options
}

func NewService(store repository.RoomStore, h *hub.Hub, opts Options) *Service {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Cards == nil {
		opts.Cards = bingo.DefaultSource
	}
	return &Service{store: store, hub: h, opts: opts}
}

// Topic is the hub topic carrying a room's snapshots.
func Topic(code string) string {
	return "room:" + code
}

func (s *Service) nowMs() int64 {
	return s.opts.Now().UnixMilli()
}

func (s *Service) newPlayer(id, name string) *models.Player {
	card := bingo.GenerateCard(s.opts.Cards)
	return &models.Player{ID: id, Name: name, Card: &card, MarkedNumbers: []int{}}
}

func (s *Service) startTurn(room *models.GameRoom, playerID string) {
	now := s.nowMs()
	room.CurrentTurn = playerID
	room.TurnStartTime = now
	room.NextNumberTime = now + room.TurnTimeLimit
}

func (s *Service) publish(room *models.GameRoom) {
	s.hub.Broadcast(Topic(room.ID), hub.Event{Type: hub.EventRoomUpdated, Payload: room})
}

// mutate loads the room, applies fn and writes it back only if nobody else
// wrote in between. On a lost race fn runs again against the fresh document.
func (s *Service) mutate(ctx context.Context, code string, fn func(room *models.GameRoom) error) (*models.GameRoom, error) {
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		room, err := s.store.GetRoom(ctx, code)
		if err != nil {
			return nil, err
		}
		if err := fn(room); err != nil {
			if errors.Is(err, errNoChange) {
				return room, nil
			}
			return nil, err
		}
		room.LastUpdated = s.nowMs()

		err = s.store.UpdateRoom(ctx, room)
		if errors.Is(err, repository.ErrVersionConflict) {
			logger.Debugf("room %s: version conflict on attempt %d, retrying", code, attempt)
			continue
		}
		if err != nil {
			return nil, err
		}
		s.publish(room)
		return room, nil
	}
	return nil, fmt.Errorf("room %s: gave up after %d conflicting writes: %w", code, s.opts.MaxAttempts, apperror.ErrStoreUnavailable)
}

// CreateRoom opens a waiting room with the caller as creator and returns its code.
func (s *Service) CreateRoom(ctx context.Context, playerID, name string) (string, error) {
	if playerID == "" {
		return "", fmt.Errorf("player id is required: %w", apperror.ErrInvalidInput)
	}
	name, err := CleanName(name)
	if err != nil {
		return "", err
	}

	for i := 0; i < createAttempts; i++ {
		room := &models.GameRoom{
			ID:            NewCode(),
			Creator:       s.newPlayer(playerID, name),
			IsActive:      true,
			CurrentTurn:   playerID,
			CalledNumbers: []int{},
			Status:        models.StatusWaiting,
			LastUpdated:   s.nowMs(),
			TurnTimeLimit: s.opts.TurnTimeLimit.Milliseconds(),
		}
		err := s.store.CreateRoom(ctx, room)
		if errors.Is(err, repository.ErrRoomExists) {
			logger.Warnf("room code %s collided, generating another", room.ID)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create room: %w", err)
		}
		logger.Infof("room %s created by %s", room.ID, playerID)
		s.publish(room)
		return room.ID, nil
	}
	return "", fmt.Errorf("create room: no free room code: %w", apperror.ErrStoreUnavailable)
}

// GetRoom returns the current document.
func (s *Service) GetRoom(ctx context.Context, code string) (*models.GameRoom, error) {
	return s.store.GetRoom(ctx, NormalizeCode(code))
}

// JoinRoom seats the caller as opponent and starts play with the creator's turn.
func (s *Service) JoinRoom(ctx context.Context, code, playerID, name string) (*models.GameRoom, error) {
	name, err := CleanName(name)
	if err != nil {
		return nil, err
	}
	code = NormalizeCode(code)

	room, err := s.mutate(ctx, code, func(room *models.GameRoom) error {
		if !room.IsActive {
			return fmt.Errorf("join %s: %w: %w", code, apperror.ErrRoomFull, apperror.ErrRoomInactive)
		}
		if room.Opponent != nil {
			return fmt.Errorf("join %s: %w", code, apperror.ErrRoomFull)
		}
		if room.Creator.ID == playerID {
			return fmt.Errorf("join %s: %w", code, apperror.ErrSelfJoin)
		}
		room.Opponent = s.newPlayer(playerID, name)
		room.Status = models.StatusPlaying
		s.startTurn(room, room.Creator.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("room %s joined by %s", code, playerID)
	return room, nil
}

// MarkNumber adds a called number to the caller's marked numbers. Marking
// twice is a no-op.
func (s *Service) MarkNumber(ctx context.Context, code, playerID string, n int) (*models.GameRoom, error) {
	code = NormalizeCode(code)
	return s.mutate(ctx, code, func(room *models.GameRoom) error {
		player := room.PlayerByID(playerID)
		if player == nil {
			return fmt.Errorf("mark in %s: %w", code, apperror.ErrPlayerNotFound)
		}
		if !room.IsCalled(n) {
			return fmt.Errorf("mark %d: %w", n, apperror.ErrNumberNotCalled)
		}
		if player.HasMarked(n) {
			return errNoChange
		}
		player.MarkedNumbers = append(player.MarkedNumbers, n)
		return nil
	})
}

// CallNumber draws n into play for the player holding the turn and passes
// the turn to the other player.
func (s *Service) CallNumber(ctx context.Context, code, playerID string, n int) (*models.GameRoom, error) {
	if !bingo.ValidNumber(n) {
		return nil, fmt.Errorf("call %d: %w", n, apperror.ErrInvalidNumber)
	}
	code = NormalizeCode(code)

	return s.mutate(ctx, code, func(room *models.GameRoom) error {
		if room.PlayerByID(playerID) == nil {
			return fmt.Errorf("call in %s: %w", code, apperror.ErrPlayerNotFound)
		}
		if room.Status != models.StatusPlaying {
			return fmt.Errorf("call in %s (%s): %w", code, room.Status, apperror.ErrRoomInactive)
		}
		if room.CurrentTurn != playerID {
			return fmt.Errorf("call %d: %w", n, apperror.ErrNotYourTurn)
		}
		if room.IsCalled(n) {
			return fmt.Errorf("call %d: %w", n, apperror.ErrAlreadyCalled)
		}
		room.CurrentNumber = &n
		room.CalledNumbers = append(room.CalledNumbers, n)
		s.startTurn(room, room.OtherPlayer(playerID).ID)
		return nil
	})
}

// ClaimBingo finishes the game with the caller as winner. With
// VerifyClaims off the claim is trusted as is.
func (s *Service) ClaimBingo(ctx context.Context, code, playerID string) (*models.GameRoom, error) {
	code = NormalizeCode(code)
	room, err := s.mutate(ctx, code, func(room *models.GameRoom) error {
		player := room.PlayerByID(playerID)
		if player == nil {
			return fmt.Errorf("claim in %s: %w", code, apperror.ErrPlayerNotFound)
		}
		if room.Status != models.StatusPlaying {
			return fmt.Errorf("claim in %s (%s): %w", code, room.Status, apperror.ErrRoomInactive)
		}
		if s.opts.VerifyClaims && !s.claimHolds(room, player) {
			return fmt.Errorf("claim by %s: %w", playerID, apperror.ErrClaimRejected)
		}
		winner := playerID
		room.Winner = &winner
		room.Status = models.StatusFinished
		room.IsActive = false
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("room %s won by %s", code, playerID)
	return room, nil
}

func (s *Service) claimHolds(room *models.GameRoom, player *models.Player) bool {
	if player.Card == nil {
		return false
	}
	marked := lo.Filter(player.MarkedNumbers, func(n int, _ int) bool {
		return room.IsCalled(n)
	})
	return bingo.HasWin(marked, *player.Card)
}

// LeaveRoom removes the caller. A leaving creator deletes the room; a
// leaving opponent frees the seat and the room goes back to waiting. A
// finished room keeps its opponent so the result stays readable, and the
// leave only ends the caller's interest in it.
func (s *Service) LeaveRoom(ctx context.Context, code, playerID string) error {
	code = NormalizeCode(code)
	current, err := s.store.GetRoom(ctx, code)
	if err != nil {
		return err
	}

	if current.Creator != nil && current.Creator.ID == playerID {
		if err := s.store.DeleteRoom(ctx, code); err != nil {
			return err
		}
		logger.Infof("room %s closed by its creator", code)
		s.hub.Broadcast(Topic(code), hub.Event{Type: hub.EventRoomDeleted, Payload: map[string]string{"id": code}})
		return nil
	}

	_, err = s.mutate(ctx, code, func(room *models.GameRoom) error {
		if room.Opponent == nil || room.Opponent.ID != playerID {
			return fmt.Errorf("leave %s: %w", code, apperror.ErrPlayerNotFound)
		}
		if room.Status == models.StatusFinished {
			return errNoChange
		}
		room.Opponent = nil
		room.Status = models.StatusWaiting
		room.CurrentTurn = room.Creator.ID
		room.TurnStartTime = 0
		room.NextNumberTime = 0
		return nil
	})
	if err == nil {
		logger.Infof("room %s: opponent %s left", code, playerID)
	}
	return err
}

// SuggestNumber picks a random uncalled number for the caller to call.
func (s *Service) SuggestNumber(ctx context.Context, code string) (int, error) {
	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return 0, err
	}
	n, ok := bingo.NextNumber(room.CalledNumbers, s.opts.Cards)
	if !ok {
		return 0, fmt.Errorf("all numbers called in %s: %w", room.ID, apperror.ErrRoomInactive)
	}
	return n, nil
}

// Ping checks the backing store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
