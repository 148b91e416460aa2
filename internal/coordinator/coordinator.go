// Package coordinator keeps one participant's view of a multiplayer room.
//
// The view is the last confirmed snapshot pushed by the room's
// subscription, optionally covered by an optimistic overlay while one of
// the participant's own actions is in flight. Any confirmed snapshot at
// least as new as the current one replaces the confirmed state and drops
// the overlay.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"

	"bingoduel/backend/internal/apperror"
	"bingoduel/backend/internal/models"
	rooms "bingoduel/backend/internal/room"
)

// RoomAPI is the subset of room.Service a coordinator drives.
type RoomAPI interface {
	CreateRoom(ctx context.Context, playerID, name string) (string, error)
	JoinRoom(ctx context.Context, code, playerID, name string) (*models.GameRoom, error)
	MarkNumber(ctx context.Context, code, playerID string, n int) (*models.GameRoom, error)
	CallNumber(ctx context.Context, code, playerID string, n int) (*models.GameRoom, error)
	ClaimBingo(ctx context.Context, code, playerID string) (*models.GameRoom, error)
	LeaveRoom(ctx context.Context, code, playerID string) error
	Subscribe(ctx context.Context, code string, onChange func(*models.GameRoom)) (func(), error)
}

// View is what a participant's UI renders.
type View struct {
	Code     string           `json:"code"`
	Room     *models.GameRoom `json:"room"`
	IsMyTurn bool             `json:"isMyTurn"`
	Me       *models.Player   `json:"me"`
	Other    *models.Player   `json:"other"`
	TimeLeft int64            `json:"timeLeft"`
	Pending  bool             `json:"pending"`
	Error    string           `json:"error,omitempty"`
}

type Options struct {
	Now func() time.Time
	// OnChange receives the view after every change. It runs with the
	// coordinator locked and must not call back into it.
	OnChange func(View)
}

type Coordinator struct {
	mu       sync.Mutex
	api      RoomAPI
	playerID string
	opts     Options

	code        string
	confirmed   *models.GameRoom
	overlay     *models.GameRoom
	lastErr     error
	unsubscribe func()
}

func New(api RoomAPI, playerID string, opts Options) *Coordinator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{api: api, playerID: playerID, opts: opts}
}

// Create opens a room and follows it.
func (c *Coordinator) Create(ctx context.Context, name string) error {
	code, err := c.api.CreateRoom(ctx, c.playerID, name)
	if err != nil {
		return c.fail(err)
	}
	return c.Attach(ctx, code)
}

// Join takes the opponent seat of code and follows the room.
func (c *Coordinator) Join(ctx context.Context, code, name string) error {
	room, err := c.api.JoinRoom(ctx, code, c.playerID, name)
	if err != nil {
		return c.fail(err)
	}
	if err := c.Attach(ctx, room.ID); err != nil {
		return err
	}
	c.apply(room.ID, room)
	return nil
}

// Attach follows a room without changing it, replacing any earlier room.
func (c *Coordinator) Attach(ctx context.Context, code string) error {
	c.detach()
	code = rooms.NormalizeCode(code)

	c.mu.Lock()
	if c.code != code {
		c.confirmed = nil
		c.overlay = nil
	}
	c.code = code
	c.lastErr = nil
	c.mu.Unlock()

	unsubscribe, err := c.api.Subscribe(ctx, code, func(room *models.GameRoom) {
		c.apply(code, room)
	})
	if err != nil {
		c.mu.Lock()
		c.code = ""
		c.mu.Unlock()
		return c.fail(err)
	}

	c.mu.Lock()
	c.unsubscribe = unsubscribe
	c.mu.Unlock()
	return nil
}

// Leave gives up the seat and stops following the room.
func (c *Coordinator) Leave(ctx context.Context) error {
	code := c.Code()
	if code == "" {
		return c.fail(fmt.Errorf("leave: %w", apperror.ErrRoomNotFound))
	}
	if err := c.api.LeaveRoom(ctx, code, c.playerID); err != nil {
		return c.fail(err)
	}
	c.detach()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.code = ""
	c.confirmed = nil
	c.overlay = nil
	c.lastErr = nil
	c.notifyLocked()
	return nil
}

// Mark marks n on the participant's card.
func (c *Coordinator) Mark(ctx context.Context, n int) error {
	return c.act(ctx, func(room *models.GameRoom) {
		if me := room.PlayerByID(c.playerID); me != nil && !me.HasMarked(n) {
			me.MarkedNumbers = append(me.MarkedNumbers, n)
		}
	}, func(code string) (*models.GameRoom, error) {
		return c.api.MarkNumber(ctx, code, c.playerID, n)
	})
}

// Call calls n if it is the participant's turn.
func (c *Coordinator) Call(ctx context.Context, n int) error {
	return c.act(ctx, func(room *models.GameRoom) {
		room.CalledNumbers = append(room.CalledNumbers, n)
		room.CurrentNumber = &n
		if other := room.OtherPlayer(c.playerID); other != nil {
			room.CurrentTurn = other.ID
		}
	}, func(code string) (*models.GameRoom, error) {
		return c.api.CallNumber(ctx, code, c.playerID, n)
	})
}

// Claim claims bingo.
func (c *Coordinator) Claim(ctx context.Context) error {
	return c.act(ctx, nil, func(code string) (*models.GameRoom, error) {
		return c.api.ClaimBingo(ctx, code, c.playerID)
	})
}

// act lays the optimistic edit over the current view, runs the call and
// reconciles: a returned room is applied as confirmed, a failure discards
// the overlay and records the error.
func (c *Coordinator) act(ctx context.Context, optimistic func(*models.GameRoom), call func(code string) (*models.GameRoom, error)) error {
	c.mu.Lock()
	code := c.code
	if code == "" || c.confirmed == nil {
		c.mu.Unlock()
		return c.fail(fmt.Errorf("no room: %w", apperror.ErrRoomNotFound))
	}
	if optimistic != nil {
		base := c.overlay
		if base == nil {
			base = c.confirmed
		}
		next := base.Clone()
		optimistic(next)
		c.overlay = next
		c.notifyLocked()
	}
	c.mu.Unlock()

	room, err := call(code)
	if err != nil {
		c.mu.Lock()
		c.overlay = nil
		c.mu.Unlock()
		return c.fail(err)
	}
	c.mu.Lock()
	c.lastErr = nil
	c.mu.Unlock()
	c.apply(code, room)
	return nil
}

// apply takes a confirmed snapshot of the room code. nil means the room
// was deleted. Anything about a room other than the followed one, and
// snapshots older than the confirmed one, are ignored.
func (c *Coordinator) apply(code string, room *models.GameRoom) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if code != c.code {
		return
	}
	if room == nil {
		c.confirmed = nil
		c.overlay = nil
		c.notifyLocked()
		return
	}
	if room.ID != c.code {
		return
	}
	if c.confirmed != nil && room.Version < c.confirmed.Version {
		return
	}
	c.confirmed = room.Clone()
	c.overlay = nil
	c.notifyLocked()
}

func (c *Coordinator) fail(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
	c.notifyLocked()
	return err
}

func (c *Coordinator) detach() {
	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Close stops following the room.
func (c *Coordinator) Close() {
	c.detach()
}

func (c *Coordinator) Code() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code
}

// Room is the rendered room: the overlay if one is pending, else the
// confirmed snapshot. nil when there is no room.
func (c *Coordinator) Room() *models.GameRoom {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLocked().Clone()
}

// Confirmed is the last snapshot pushed by the store.
func (c *Coordinator) Confirmed() *models.GameRoom {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmed.Clone()
}

func (c *Coordinator) IsMyTurn() bool {
	return c.View().IsMyTurn
}

func (c *Coordinator) MyPlayer() *models.Player {
	return c.View().Me
}

func (c *Coordinator) OtherPlayer() *models.Player {
	return c.View().Other
}

// Err is the message of the most recent failure, or "".
func (c *Coordinator) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return errMessage(c.lastErr)
}

// TimeLeft is the remaining turn time in milliseconds.
func (c *Coordinator) TimeLeft() int64 {
	return c.View().TimeLeft
}

func (c *Coordinator) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Coordinator) currentLocked() *models.GameRoom {
	if c.overlay != nil {
		return c.overlay
	}
	return c.confirmed
}

func (c *Coordinator) viewLocked() View {
	view := View{Code: c.code, Pending: c.overlay != nil, Error: errMessage(c.lastErr)}
	room := c.currentLocked()
	if room == nil {
		return view
	}
	room = room.Clone()
	view.Room = room
	view.IsMyTurn = room.CurrentTurn == c.playerID
	view.TimeLeft = room.TimeLeft(c.opts.Now().UnixMilli())

	isCreator := room.Creator != nil && room.Creator.ID == c.playerID
	view.Me = lo.Ternary(isCreator, room.Creator, room.Opponent)
	view.Other = lo.Ternary(isCreator, room.Opponent, room.Creator)
	return view
}

func (c *Coordinator) notifyLocked() {
	if c.opts.OnChange != nil {
		c.opts.OnChange(c.viewLocked())
	}
}

func errMessage(err error) string {
	return apperror.Message(err)
}
