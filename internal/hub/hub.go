package hub

import (
	"encoding/json"
	"sync"

	"bingoduel/backend/internal/logger"
)

// Event types pushed to subscribers.
const (
	EventRoomUpdated = "room.updated"
	EventRoomDeleted = "room.deleted"
	EventSoloState   = "solo.state"
)

// DefaultBuffer is the channel capacity handed out by NewClient.
const DefaultBuffer = 32

// Event represents a real-time event to be sent to clients.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Envelope is a broadcast message as read back by a subscriber, with the
// payload left encoded.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode reads a message received on a Client.
func Decode(msg []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(msg, &env)
	return env, err
}

// Client is one subscriber. SSE and WebSocket handlers drain it; the hub
// closes it on Unsubscribe.
type Client chan []byte

func NewClient() Client {
	return make(Client, DefaultBuffer)
}

// Hub fans events out to the clients of each topic (a room code, or a
// player's single-player session).
type Hub struct {
	topics map[string]map[Client]bool
	mu     sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		topics: make(map[string]map[Client]bool),
	}
}

// Subscribe adds a client to a topic.
func (h *Hub) Subscribe(topic string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.topics[topic]; !ok {
		h.topics[topic] = make(map[Client]bool)
	}
	h.topics[topic][client] = true
}

// Unsubscribe removes a client and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(topic string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.topics[topic]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client)
			if len(clients) == 0 {
				delete(h.topics, topic)
			}
		}
	}
}

// Broadcast sends an event to every client of a topic without blocking;
// a client whose buffer is full misses the event.
func (h *Hub) Broadcast(topic string, event Event) {
	messageBytes, err := json.Marshal(event)
	if err != nil {
		logger.Errorf("hub: encode %s event for %s: %v", event.Type, topic, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.topics[topic] {
		select {
		case client <- messageBytes:
		default:
			logger.Warnf("hub: dropping %s event for a slow client on %s", event.Type, topic)
		}
	}
}

// Subscribers counts the clients currently on a topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
