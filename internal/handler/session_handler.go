package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bingoduel/backend/internal/auth"
	"bingoduel/backend/internal/logger"
	"bingoduel/backend/internal/room"
	"bingoduel/backend/pkg/jwt"
)

// region --- DTOs ---

// SessionInput names the player for a new or renewed session.
type SessionInput struct {
	Name string `json:"name" binding:"required" example:"Ada"`
}

// SessionResponse carries the token every other endpoint expects.
type SessionResponse struct {
	Token    string `json:"token"`
	PlayerID string `json:"player_id" example:"8b0c6f0e-5a7e-4a55-9d61-0f4a1e7f2c11"`
	Name     string `json:"name" example:"Ada"`
	Tokens   int    `json:"tokens" example:"5"`
}

// endregion

// CreateSession godoc
// @Summary      Start a player session
// @Description  Issues a player id and a signed token. A caller that already holds a valid player token keeps its id and may change its name.
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        input body SessionInput true "Display name"
// @Success      201  {object}  SessionResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      429  {object}  ErrorResponse
// @Router       /session [post]
func (h *Handler) CreateSession(c *gin.Context) {
	var input SessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name, err := room.CleanName(input.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	playerID := auth.PlayerID(c)
	if playerID == "" || c.GetString(auth.KeyRole) != jwt.RolePlayer {
		playerID = uuid.NewString()
		logger.Infof("new player session %s", playerID)
	}

	balance, err := h.Accounts.Balance(c.Request.Context(), playerID)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := jwt.GenerateToken(playerID, name, jwt.RolePlayer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusCreated, SessionResponse{Token: token, PlayerID: playerID, Name: name, Tokens: balance})
}
