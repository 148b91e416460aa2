package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bingoduel/backend/internal/auth"
	"bingoduel/backend/internal/solo"
)

// ClaimResponse is the game after a claim, and whether it won.
type ClaimResponse struct {
	State solo.State `json:"state"`
	Won   bool       `json:"won"`
}

// StartSolo godoc
// @Summary      Start a single-player game
// @Description  Spends one token and deals a new game against the computer. Restarting spends another token.
// @Tags         solo
// @Produce      json
// @Security     BearerAuth
// @Success      201  {object}  solo.State
// @Failure      401  {object}  ErrorResponse
// @Failure      402  {object}  ErrorResponse "Insufficient tokens"
// @Router       /solo/start [post]
func (h *Handler) StartSolo(c *gin.Context) {
	state, err := h.Solo.Start(c.Request.Context(), auth.PlayerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, state)
}

// GetSolo godoc
// @Summary      Get my single-player game
// @Tags         solo
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  solo.State
// @Router       /solo [get]
func (h *Handler) GetSolo(c *gin.Context) {
	c.JSON(http.StatusOK, h.Solo.Session(auth.PlayerID(c)).Snapshot())
}

// MarkSolo godoc
// @Summary      Mark a called number in my single-player game
// @Tags         solo
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body NumberInput true "Number"
// @Success      200  {object}  solo.State
// @Failure      400  {object}  ErrorResponse "Number has not been called"
// @Failure      409  {object}  ErrorResponse "Game is not active"
// @Router       /solo/mark [post]
func (h *Handler) MarkSolo(c *gin.Context) {
	var input NumberInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	state, err := h.Solo.Session(auth.PlayerID(c)).MarkPlayerNumber(input.Number)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// ClaimSolo godoc
// @Summary      Claim bingo in my single-player game
// @Description  A claim without a complete line is rejected without penalty.
// @Tags         solo
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  ClaimResponse
// @Failure      409  {object}  ErrorResponse "Game is not active"
// @Router       /solo/claim [post]
func (h *Handler) ClaimSolo(c *gin.Context) {
	state, won, err := h.Solo.Session(auth.PlayerID(c)).ClaimBingo()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ClaimResponse{State: state, Won: won})
}

// PauseSolo godoc
// @Summary      Pause or resume my single-player game
// @Tags         solo
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  solo.State
// @Failure      409  {object}  ErrorResponse "Game is not active"
// @Router       /solo/pause [post]
func (h *Handler) PauseSolo(c *gin.Context) {
	state, err := h.Solo.Session(auth.PlayerID(c)).TogglePause()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}
