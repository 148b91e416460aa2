// Package solo runs single-player games against a simulated opponent.
// Each game is an Engine whose numbers are drawn by a ticker goroutine;
// the opponent marks automatically and wins passively.
package solo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"

	"bingoduel/backend/internal/apperror"
	"bingoduel/backend/internal/bingo"
	"bingoduel/backend/internal/models"
)

// Phase of a single-player game. Won, Lost and Exhausted are terminal
// until the next Start.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseActive    Phase = "active"
	PhaseWon       Phase = "won"
	PhaseLost      Phase = "lost"
	PhaseExhausted Phase = "exhausted"
)

const (
	WinnerPlayer   = "player"
	WinnerOpponent = "opponent"
)

// TokenSpender debits one game start from a player's balance.
type TokenSpender interface {
	SpendGame(ctx context.Context, playerID string) (int, error)
}

// State is a snapshot of one game.
type State struct {
	Phase                 Phase             `json:"phase"`
	PlayerCard            *models.BingoCard `json:"playerCard"`
	OpponentCard          *models.BingoCard `json:"opponentCard"`
	CalledNumbers         []int             `json:"calledNumbers"`
	CurrentNumber         *int              `json:"currentNumber"`
	PlayerMarkedNumbers   []int             `json:"playerMarkedNumbers"`
	OpponentMarkedNumbers []int             `json:"opponentMarkedNumbers"`
	Winner                string            `json:"winner,omitempty"`
	IsPaused              bool              `json:"isPaused"`
	ClaimRejected         bool              `json:"claimRejected"`
	Tokens                int               `json:"tokens"`
}

func (s State) clone() State {
	out := s
	if s.PlayerCard != nil {
		card := s.PlayerCard.Clone()
		out.PlayerCard = &card
	}
	if s.OpponentCard != nil {
		card := s.OpponentCard.Clone()
		out.OpponentCard = &card
	}
	if s.CurrentNumber != nil {
		n := *s.CurrentNumber
		out.CurrentNumber = &n
	}
	out.CalledNumbers = cp(s.CalledNumbers)
	out.PlayerMarkedNumbers = cp(s.PlayerMarkedNumbers)
	out.OpponentMarkedNumbers = cp(s.OpponentMarkedNumbers)
	return out
}

func cp(in []int) []int {
	return append([]int{}, in...)
}

type EngineOptions struct {
	// CallInterval is the time between draws. Zero disables the ticker;
	// draws then only happen through Tick.
	CallInterval time.Duration
	Cards        bingo.Source
	Now          func() time.Time
	// OnChange receives every new state. It runs with the engine locked
	// and must not call back into the engine.
	OnChange func(State)
}

type Engine struct {
	mu       sync.Mutex
	playerID string
	tokens   TokenSpender
	opts     EngineOptions

	state State
	// game counts Starts; a ticker only draws for the game it was started for.
	game         uint64
	stopTicker   context.CancelFunc
	lastActivity time.Time
}

func NewEngine(playerID string, tokens TokenSpender, opts EngineOptions) *Engine {
	if opts.Cards == nil {
		opts.Cards = bingo.DefaultSource
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	e := &Engine{
		playerID: playerID,
		tokens:   tokens,
		opts:     opts,
		state:    State{Phase: PhaseIdle, CalledNumbers: []int{}, PlayerMarkedNumbers: []int{}, OpponentMarkedNumbers: []int{}},
	}
	e.lastActivity = opts.Now()
	return e
}

// Start spends a token and deals a fresh game, replacing any game in
// progress. With no tokens left it fails with apperror.ErrInsufficientTokens
// and leaves the current game untouched.
func (e *Engine) Start(ctx context.Context) (State, error) {
	left, err := e.tokens.SpendGame(ctx, e.playerID)
	if err != nil {
		return e.Snapshot(), err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.haltLocked()
	e.game++
	playerCard := bingo.GenerateCard(e.opts.Cards)
	opponentCard := bingo.GenerateCard(e.opts.Cards)
	e.state = State{
		Phase:                 PhaseActive,
		PlayerCard:            &playerCard,
		OpponentCard:          &opponentCard,
		CalledNumbers:         []int{},
		PlayerMarkedNumbers:   []int{},
		OpponentMarkedNumbers: []int{},
		Tokens:                left,
	}
	e.touchLocked()

	if e.opts.CallInterval > 0 {
		tickCtx, cancel := context.WithCancel(context.Background())
		e.stopTicker = cancel
		go e.run(tickCtx, e.opts.CallInterval, e.game)
	}
	e.notifyLocked()
	return e.state.clone(), nil
}

func (e *Engine) run(ctx context.Context, interval time.Duration, game uint64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			e.tickGame(game)
		}
	}
}

// tickGame is Tick for a ticker started with game. A ticker that outlived
// its game draws nothing.
func (e *Engine) tickGame(game uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.game != game {
		return false
	}
	return e.tickLocked()
}

// Tick draws one uncalled number and lets the opponent mark it. It does
// nothing unless the game is active and not paused, and reports whether a
// number was drawn.
func (e *Engine) Tick() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tickLocked()
}

func (e *Engine) tickLocked() bool {
	if e.state.Phase != PhaseActive || e.state.IsPaused {
		return false
	}
	n, ok := bingo.NextNumber(e.state.CalledNumbers, e.opts.Cards)
	if !ok {
		e.state.Phase = PhaseExhausted
		e.haltLocked()
		e.notifyLocked()
		return false
	}

	e.state.CalledNumbers = append(e.state.CalledNumbers, n)
	e.state.CurrentNumber = &n
	if e.state.OpponentCard.Contains(n) {
		e.state.OpponentMarkedNumbers = append(e.state.OpponentMarkedNumbers, n)
		if bingo.HasWin(e.state.OpponentMarkedNumbers, *e.state.OpponentCard) {
			e.state.Winner = WinnerOpponent
			e.state.Phase = PhaseLost
			e.haltLocked()
		}
	}
	e.notifyLocked()
	return true
}

// MarkPlayerNumber marks a called number on the player's side. Marking twice
// is a no-op. Works while paused.
func (e *Engine) MarkPlayerNumber(n int) (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Phase != PhaseActive {
		return e.state.clone(), fmt.Errorf("mark in %s game: %w", e.state.Phase, apperror.ErrGameNotActive)
	}
	if !lo.Contains(e.state.CalledNumbers, n) {
		return e.state.clone(), fmt.Errorf("mark %d: %w", n, apperror.ErrNumberNotCalled)
	}
	e.touchLocked()
	if lo.Contains(e.state.PlayerMarkedNumbers, n) {
		return e.state.clone(), nil
	}
	e.state.PlayerMarkedNumbers = append(e.state.PlayerMarkedNumbers, n)
	e.state.ClaimRejected = false
	e.notifyLocked()
	return e.state.clone(), nil
}

// ClaimBingo checks the player's marks for a line. A false claim only sets
// ClaimRejected.
func (e *Engine) ClaimBingo() (State, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Phase != PhaseActive {
		return e.state.clone(), false, fmt.Errorf("claim in %s game: %w", e.state.Phase, apperror.ErrGameNotActive)
	}
	e.touchLocked()
	won := bingo.HasWin(e.state.PlayerMarkedNumbers, *e.state.PlayerCard)
	if won {
		e.state.Winner = WinnerPlayer
		e.state.Phase = PhaseWon
		e.state.ClaimRejected = false
		e.haltLocked()
	} else {
		e.state.ClaimRejected = true
	}
	e.notifyLocked()
	return e.state.clone(), won, nil
}

// TogglePause flips the pause flag of an active game.
func (e *Engine) TogglePause() (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Phase != PhaseActive {
		return e.state.clone(), fmt.Errorf("pause in %s game: %w", e.state.Phase, apperror.ErrGameNotActive)
	}
	e.touchLocked()
	e.state.IsPaused = !e.state.IsPaused
	e.notifyLocked()
	return e.state.clone(), nil
}

func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// LastActivity is when the player last started or acted on the game.
func (e *Engine) LastActivity() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastActivity
}

// Stop cancels the ticker. The state is kept.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.haltLocked()
}

func (e *Engine) haltLocked() {
	if e.stopTicker != nil {
		e.stopTicker()
		e.stopTicker = nil
	}
}

func (e *Engine) ticking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopTicker != nil
}

func (e *Engine) touchLocked() {
	e.lastActivity = e.opts.Now()
}

func (e *Engine) notifyLocked() {
	if e.opts.OnChange != nil {
		e.opts.OnChange(e.state.clone())
	}
}
