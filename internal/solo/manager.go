package solo

import (
	"context"
	"sync"
	"time"

	"bingoduel/backend/internal/bingo"
	"bingoduel/backend/internal/hub"
	"bingoduel/backend/internal/logger"
)

type ManagerOptions struct {
	CallInterval time.Duration
	// SessionTTL is how long a game may sit untouched before Cleanup drops it.
	SessionTTL time.Duration
	Cards      bingo.Source
	Now        func() time.Time
}

// Manager holds one Engine per player and publishes every state change to
// the player's hub topic.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Engine
	tokens   TokenSpender
	hub      *hub.Hub
	opts     ManagerOptions
}

func NewManager(tokens TokenSpender, h *hub.Hub, opts ManagerOptions) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		sessions: make(map[string]*Engine),
		tokens:   tokens,
		hub:      h,
		opts:     opts,
	}
}

// Topic is the hub topic carrying a player's single-player states.
func Topic(playerID string) string {
	return "solo:" + playerID
}

// Session returns the player's engine, creating an idle one on first use.
func (m *Manager) Session(playerID string) *Engine {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.sessions[playerID]; ok {
		return e
	}
	topic := Topic(playerID)
	e := NewEngine(playerID, m.tokens, EngineOptions{
		CallInterval: m.opts.CallInterval,
		Cards:        m.opts.Cards,
		Now:          m.opts.Now,
		OnChange: func(s State) {
			m.hub.Broadcast(topic, hub.Event{Type: hub.EventSoloState, Payload: s})
		},
	})
	m.sessions[playerID] = e
	return e
}

// Watch attaches a hub client to the player's topic and returns it with
// the current state. cancel detaches and closes the client.
func (m *Manager) Watch(playerID string) (State, hub.Client, func()) {
	topic := Topic(playerID)
	client := hub.NewClient()
	m.hub.Subscribe(topic, client)
	return m.Session(playerID).Snapshot(), client, func() { m.hub.Unsubscribe(topic, client) }
}

// Start deals the player a new game, spending one token.
func (m *Manager) Start(ctx context.Context, playerID string) (State, error) {
	state, err := m.Session(playerID).Start(ctx)
	if err == nil {
		logger.Infof("solo game started for %s, %d tokens left", playerID, state.Tokens)
	}
	return state, err
}

// Cleanup stops and forgets sessions idle for longer than the TTL and
// returns how many it removed.
func (m *Manager) Cleanup() int {
	if m.opts.SessionTTL <= 0 {
		return 0
	}
	cutoff := m.opts.Now().Add(-m.opts.SessionTTL)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, e := range m.sessions {
		if e.LastActivity().Before(cutoff) {
			e.Stop()
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup every interval until ctx is done.
func (m *Manager) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Cleanup(); n > 0 {
					logger.Infof("solo: removed %d idle sessions", n)
				}
			}
		}
	}()
}

// Close stops every running game.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.sessions {
		e.Stop()
	}
}

// Len counts live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
