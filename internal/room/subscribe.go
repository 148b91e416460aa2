package room

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"bingoduel/backend/internal/hub"
	"bingoduel/backend/internal/logger"
	"bingoduel/backend/internal/models"
)

// DecodeEvent reads a hub message published for a room. deleted is true
// when the room no longer exists.
func DecodeEvent(msg []byte) (room *models.GameRoom, deleted bool, err error) {
	evt, err := hub.Decode(msg)
	if err != nil {
		return nil, false, fmt.Errorf("decode room event: %w", err)
	}
	switch evt.Type {
	case hub.EventRoomDeleted:
		return nil, true, nil
	case hub.EventRoomUpdated:
		room = &models.GameRoom{}
		if err := json.Unmarshal(evt.Payload, room); err != nil {
			return nil, false, fmt.Errorf("decode room snapshot: %w", err)
		}
		return room, false, nil
	default:
		return nil, false, fmt.Errorf("unexpected event type %q", evt.Type)
	}
}

// Watch checks that the room exists and attaches a fresh hub client to it.
// The returned snapshot was read after subscribing, so no later write is
// missed. cancel detaches and closes the client.
func (s *Service) Watch(ctx context.Context, code string) (*models.GameRoom, hub.Client, func(), error) {
	code = NormalizeCode(code)
	client := hub.NewClient()
	s.hub.Subscribe(Topic(code), client)
	cancel := func() { s.hub.Unsubscribe(Topic(code), client) }

	room, err := s.store.GetRoom(ctx, code)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return room, client, cancel, nil
}

// Subscribe calls onChange with the current snapshot and then with every
// later one, in order, from a single goroutine. onChange receives nil once
// the room is deleted. Delivery stops when ctx ends or unsubscribe is called:
// snapshots still buffered at that point are dropped, and only a callback
// already under way may finish after unsubscribe returns.
func (s *Service) Subscribe(ctx context.Context, code string, onChange func(*models.GameRoom)) (unsubscribe func(), err error) {
	room, client, cancel, err := s.Watch(ctx, code)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	stopDelivery := sync.OnceFunc(func() {
		close(done)
		cancel()
	})
	deliver := func(next *models.GameRoom) bool {
		select {
		case <-done:
			return false
		default:
		}
		onChange(next)
		return true
	}

	go func() {
		if !deliver(room) {
			return
		}
		for msg := range client {
			next, deleted, err := DecodeEvent(msg)
			if err != nil {
				logger.Warnf("room %s: %v", room.ID, err)
				continue
			}
			if deleted {
				next = nil
			}
			if !deliver(next) {
				return
			}
		}
	}()

	stop := context.AfterFunc(ctx, stopDelivery)
	return func() {
		stop()
		stopDelivery()
	}, nil
}
