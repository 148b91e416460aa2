package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"bingoduel/backend/internal/auth"
	"bingoduel/backend/internal/coordinator"
	"bingoduel/backend/internal/hub"
	"bingoduel/backend/internal/logger"
)

const (
	sseHeartbeat   = 15 * time.Second
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// stream writes initial as the first event and then relays the client's
// hub messages until the request ends, the client is closed or the room is
// deleted.
func stream(c *gin.Context, initialType string, initial any, client hub.Client) {
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent(initialType, initial)
	c.Writer.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-client:
			if !ok {
				return false
			}
			evt, err := hub.Decode(msg)
			if err != nil {
				logger.Warnf("sse: skipping undecodable event: %v", err)
				return true
			}
			c.SSEvent(evt.Type, string(evt.Payload))
			return evt.Type != hub.EventRoomDeleted
		case <-heartbeat.C:
			c.SSEvent("ping", "")
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// RoomEvents godoc
// @Summary      Stream room updates
// @Description  Server-sent events: the current room first, then every change as room.updated, and room.deleted when the creator leaves.
// @Tags         rooms
// @Produce      text/event-stream
// @Security     BearerAuth
// @Param        code path string true "Room code"
// @Param        token query string false "Session token for clients that cannot set headers"
// @Success      200
// @Failure      404  {object}  ErrorResponse
// @Router       /rooms/{code}/events [get]
func (h *Handler) RoomEvents(c *gin.Context) {
	room, client, cancel, err := h.Rooms.Watch(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer cancel()

	stream(c, hub.EventRoomUpdated, room, client)
}

// SoloEvents godoc
// @Summary      Stream my single-player game
// @Description  Server-sent events: the current state first, then a solo.state event on every draw or action.
// @Tags         solo
// @Produce      text/event-stream
// @Security     BearerAuth
// @Param        token query string false "Session token for clients that cannot set headers"
// @Success      200
// @Router       /solo/events [get]
func (h *Handler) SoloEvents(c *gin.Context) {
	state, client, cancel := h.Solo.Watch(auth.PlayerID(c))
	defer cancel()

	stream(c, hub.EventSoloState, state, client)
}

// socketAction is one intent sent by a WebSocket client.
type socketAction struct {
	Action string `json:"action"`
	Number int    `json:"number"`
}

// socketClient is one WebSocket connection. Views are queued on send and
// written by writePump; push never blocks.
type socketClient struct {
	conn   *websocket.Conn
	send   chan []byte
	mu     sync.Mutex
	closed bool
}

func (s *socketClient) push(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Errorf("ws: encode message: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.send <- data:
	default:
		logger.Warnf("ws: dropping message for a slow client")
	}
}

func (s *socketClient) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

func (s *socketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debugf("ws: write error: %v", err)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump feeds intents to the coordinator until the peer goes away or
// leaves the room. Failures reach the peer through the view's error.
func (s *socketClient) readPump(ctx context.Context, coord *coordinator.Coordinator) {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warnf("ws: read error: %v", err)
			}
			return
		}

		var action socketAction
		if err := json.Unmarshal(message, &action); err != nil {
			s.push(gin.H{"error": "invalid message"})
			continue
		}

		switch action.Action {
		case "mark":
			err = coord.Mark(ctx, action.Number)
		case "call":
			err = coord.Call(ctx, action.Number)
		case "claim":
			err = coord.Claim(ctx)
		case "leave":
			if err = coord.Leave(ctx); err == nil {
				return
			}
		default:
			s.push(gin.H{"error": "unknown action"})
			continue
		}
		if err != nil {
			logger.Debugf("ws: %s failed: %v", action.Action, err)
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return lo.Contains(h.AllowedOrigins, "*") || lo.Contains(h.AllowedOrigins, origin)
}

// RoomSocket godoc
// @Summary      Play a room over WebSocket
// @Description  Pushes the caller's view of the room on every change and accepts {"action": "mark"|"call"|"claim"|"leave", "number": n}.
// @Tags         rooms
// @Security     BearerAuth
// @Param        code path string true "Room code"
// @Param        token query string false "Session token for clients that cannot set headers"
// @Success      101
// @Failure      404  {object}  ErrorResponse
// @Router       /rooms/{code}/ws [get]
func (h *Handler) RoomSocket(c *gin.Context) {
	client := &socketClient{send: make(chan []byte, hub.DefaultBuffer)}
	coord := coordinator.New(h.Rooms, auth.PlayerID(c), coordinator.Options{
		Now:      h.now,
		OnChange: func(v coordinator.View) { client.push(v) },
	})

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	if err := coord.Attach(ctx, c.Param("code")); err != nil {
		respondError(c, err)
		return
	}
	defer coord.Close()

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("ws: upgrade error: %v", err)
		return
	}
	client.conn = conn
	// Ending the request, as a server shutdown does, unblocks readPump.
	stopClose := context.AfterFunc(ctx, func() { conn.Close() })
	defer stopClose()

	go client.writePump()
	client.readPump(ctx, coord)
	client.close()
}
