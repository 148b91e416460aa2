package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bingoduel/backend/internal/auth"
	"bingoduel/backend/internal/models"
)

// region --- DTOs ---

// RoomInput carries the caller's display name.
type RoomInput struct {
	Name string `json:"name" binding:"required" example:"Ada"`
}

// NumberInput carries a ball number.
type NumberInput struct {
	Number int `json:"number" binding:"required" example:"37"`
}

// RoomResponse is a room as seen by the caller.
type RoomResponse struct {
	Room     *models.GameRoom `json:"room"`
	IsMyTurn bool             `json:"is_my_turn"`
	TimeLeft int64            `json:"time_left" example:"27500"`
}

func (h *Handler) newRoomResponse(room *models.GameRoom, playerID string) RoomResponse {
	return RoomResponse{
		Room:     room,
		IsMyTurn: room.Status == models.StatusPlaying && room.CurrentTurn == playerID,
		TimeLeft: room.TimeLeft(h.now().UnixMilli()),
	}
}

// endregion

// CreateRoom godoc
// @Summary      Create a room
// @Description  Opens a waiting room with the caller as creator and returns its code.
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body RoomInput true "Creator name"
// @Success      201  {object}  RoomResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /rooms [post]
func (h *Handler) CreateRoom(c *gin.Context) {
	var input RoomInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	playerID := auth.PlayerID(c)
	ctx := c.Request.Context()

	code, err := h.Rooms.CreateRoom(ctx, playerID, input.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	room, err := h.Rooms.GetRoom(ctx, code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.newRoomResponse(room, playerID))
}

// GetRoom godoc
// @Summary      Get a room
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        code path string true "Room code"
// @Success      200  {object}  RoomResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /rooms/{code} [get]
func (h *Handler) GetRoom(c *gin.Context) {
	room, err := h.Rooms.GetRoom(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.newRoomResponse(room, auth.PlayerID(c)))
}

// JoinRoom godoc
// @Summary      Join a room
// @Description  Takes the opponent seat and starts the game with the creator's turn.
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        code path string true "Room code"
// @Param        input body RoomInput true "Opponent name"
// @Success      200  {object}  RoomResponse
// @Failure      400  {object}  ErrorResponse "Cannot join your own room"
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse "Room is full or not active"
// @Router       /rooms/{code}/join [post]
func (h *Handler) JoinRoom(c *gin.Context) {
	var input RoomInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	playerID := auth.PlayerID(c)

	room, err := h.Rooms.JoinRoom(c.Request.Context(), c.Param("code"), playerID, input.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.newRoomResponse(room, playerID))
}

// LeaveRoom godoc
// @Summary      Leave a room
// @Description  A leaving creator deletes the room; a leaving opponent frees the seat.
// @Tags         rooms
// @Security     BearerAuth
// @Param        code path string true "Room code"
// @Success      204
// @Failure      404  {object}  ErrorResponse
// @Router       /rooms/{code}/leave [post]
func (h *Handler) LeaveRoom(c *gin.Context) {
	if err := h.Rooms.LeaveRoom(c.Request.Context(), c.Param("code"), auth.PlayerID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkNumber godoc
// @Summary      Mark a called number
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        code path string true "Room code"
// @Param        input body NumberInput true "Number"
// @Success      200  {object}  RoomResponse
// @Failure      400  {object}  ErrorResponse "Number has not been called"
// @Failure      404  {object}  ErrorResponse
// @Router       /rooms/{code}/mark [post]
func (h *Handler) MarkNumber(c *gin.Context) {
	var input NumberInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	playerID := auth.PlayerID(c)

	room, err := h.Rooms.MarkNumber(c.Request.Context(), c.Param("code"), playerID, input.Number)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.newRoomResponse(room, playerID))
}

// CallNumber godoc
// @Summary      Call a number
// @Description  Only the player holding the turn may call; the turn then passes over.
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        code path string true "Room code"
// @Param        input body NumberInput true "Number"
// @Success      200  {object}  RoomResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse "Not your turn"
// @Failure      409  {object}  ErrorResponse "Number already called"
// @Router       /rooms/{code}/call [post]
func (h *Handler) CallNumber(c *gin.Context) {
	var input NumberInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	playerID := auth.PlayerID(c)

	room, err := h.Rooms.CallNumber(c.Request.Context(), c.Param("code"), playerID, input.Number)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.newRoomResponse(room, playerID))
}

// ClaimBingo godoc
// @Summary      Claim bingo
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        code path string true "Room code"
// @Success      200  {object}  RoomResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse "Game already finished"
// @Failure      422  {object}  ErrorResponse "Claim rejected"
// @Router       /rooms/{code}/claim [post]
func (h *Handler) ClaimBingo(c *gin.Context) {
	playerID := auth.PlayerID(c)

	room, err := h.Rooms.ClaimBingo(c.Request.Context(), c.Param("code"), playerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.newRoomResponse(room, playerID))
}

// SuggestNumber godoc
// @Summary      Suggest a number to call
// @Description  Picks a random number that has not been called yet.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        code path string true "Room code"
// @Success      200  {object}  NumberInput
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse "All numbers called"
// @Router       /rooms/{code}/suggest [get]
func (h *Handler) SuggestNumber(c *gin.Context) {
	n, err := h.Rooms.SuggestNumber(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, NumberInput{Number: n})
}
