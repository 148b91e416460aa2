package models

import "github.com/samber/lo"

// RoomStatus only moves waiting -> playing -> finished, except that an
// opponent leaving a playing room sends it back to waiting.
type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusPlaying  RoomStatus = "playing"
	StatusFinished RoomStatus = "finished"
)

// Player is one seat in a room.
type Player struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Card          *BingoCard `json:"card"`
	MarkedNumbers []int      `json:"markedNumbers"`
	IsReady       bool       `json:"isReady"`
}

// HasMarked reports whether n is in the player's marked set.
func (p *Player) HasMarked(n int) bool {
	return lo.Contains(p.MarkedNumbers, n)
}

func (p *Player) clone() *Player {
	if p == nil {
		return nil
	}
	out := *p
	if p.Card != nil {
		card := p.Card.Clone()
		out.Card = &card
	}
	out.MarkedNumbers = append([]int{}, p.MarkedNumbers...)
	return &out
}

// GameRoom is the shared document of one multiplayer match, keyed by ID
// (the room code). Timestamps are unix milliseconds.
type GameRoom struct {
	ID             string     `json:"id"`
	Creator        *Player    `json:"creator"`
	Opponent       *Player    `json:"opponent"`
	IsActive       bool       `json:"isActive"`
	CurrentTurn    string     `json:"currentTurn"`
	CalledNumbers  []int      `json:"calledNumbers"`
	CurrentNumber  *int       `json:"currentNumber"`
	Winner         *string    `json:"winner"`
	Status         RoomStatus `json:"status"`
	LastUpdated    int64      `json:"lastUpdated"`
	TurnTimeLimit  int64      `json:"turnTimeLimit"`
	TurnStartTime  int64      `json:"turnStartTime"`
	NextNumberTime int64      `json:"nextNumberTime"`

	// Version increments on every successful write and guards
	// compare-and-swap updates.
	Version int64 `json:"version"`
}

// Clone returns a deep copy safe to mutate.
func (r *GameRoom) Clone() *GameRoom {
	if r == nil {
		return nil
	}
	out := *r
	out.Creator = r.Creator.clone()
	out.Opponent = r.Opponent.clone()
	out.CalledNumbers = append([]int{}, r.CalledNumbers...)
	if r.CurrentNumber != nil {
		n := *r.CurrentNumber
		out.CurrentNumber = &n
	}
	if r.Winner != nil {
		w := *r.Winner
		out.Winner = &w
	}
	return &out
}

// PlayerByID returns the creator or opponent with the given id, or nil.
func (r *GameRoom) PlayerByID(id string) *Player {
	if r.Creator != nil && r.Creator.ID == id {
		return r.Creator
	}
	if r.Opponent != nil && r.Opponent.ID == id {
		return r.Opponent
	}
	return nil
}

// OtherPlayer returns the seat that is not id, or nil.
func (r *GameRoom) OtherPlayer(id string) *Player {
	if r.Creator != nil && r.Creator.ID == id {
		return r.Opponent
	}
	if r.Opponent != nil && r.Opponent.ID == id {
		return r.Creator
	}
	return nil
}

// IsCalled reports whether n has been drawn into play.
func (r *GameRoom) IsCalled(n int) bool {
	return lo.Contains(r.CalledNumbers, n)
}

// TimeLeft is the remaining turn time in milliseconds at nowMs, never negative.
func (r *GameRoom) TimeLeft(nowMs int64) int64 {
	if r.Status != StatusPlaying || r.TurnTimeLimit == 0 {
		return 0
	}
	return max(0, r.TurnStartTime+r.TurnTimeLimit-nowMs)
}
