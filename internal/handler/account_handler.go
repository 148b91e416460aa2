package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bingoduel/backend/internal/auth"
	"bingoduel/backend/internal/models"
)

// AccountResponse is a player's token balance.
type AccountResponse struct {
	PlayerID string `json:"player_id"`
	Tokens   int    `json:"tokens" example:"5"`
}

// PaginatedLedgerResponse documents a page of ledger entries.
type PaginatedLedgerResponse struct {
	Data []models.LedgerEntry `json:"data"`
	Meta PaginationMeta       `json:"meta"`
}

// GetAccount godoc
// @Summary      Get my token balance
// @Description  A player seen for the first time receives the starting allowance.
// @Tags         account
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  AccountResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /account [get]
func (h *Handler) GetAccount(c *gin.Context) {
	playerID := auth.PlayerID(c)
	balance, err := h.Accounts.Balance(c.Request.Context(), playerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, AccountResponse{PlayerID: playerID, Tokens: balance})
}

// GetLedger godoc
// @Summary      List my token history
// @Description  Gets a paginated list of ledger entries, newest first.
// @Tags         account
// @Produce      json
// @Security     BearerAuth
// @Param        page  query int false "Page number" default(1)
// @Param        limit query int false "Items per page" default(10)
// @Success      200  {object}  PaginatedLedgerResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /account/ledger [get]
func (h *Handler) GetLedger(c *gin.Context) {
	page, limit := pageParams(c)

	entries, total, err := h.Accounts.Ledger(c.Request.Context(), auth.PlayerID(c), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewPaginatedResponse(entries, total, page, limit))
}
