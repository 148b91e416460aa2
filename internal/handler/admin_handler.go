package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"bingoduel/backend/internal/logger"
	"bingoduel/backend/pkg/jwt"
)

// region --- DTOs ---

// AdminLoginInput defines the structure for admin login.
type AdminLoginInput struct {
	Password string `json:"password" binding:"required" example:"correct horse battery staple"`
}

// CreditInput tops up a player's tokens.
type CreditInput struct {
	Amount int    `json:"amount" binding:"required,min=1" example:"5"`
	Reason string `json:"reason" binding:"max=255" example:"support ticket #42"`
}

// endregion

// AdminLogin godoc
// @Summary      Log in as admin
// @Description  Checks the admin password and returns an admin token.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        input body AdminLoginInput true "Admin credentials"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  ErrorResponse "Invalid input"
// @Failure      401  {object}  ErrorResponse "Invalid credentials"
// @Failure      403  {object}  ErrorResponse "Admin login disabled"
// @Router       /admin/login [post]
func (h *Handler) AdminLogin(c *gin.Context) {
	var input AdminLoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.AdminPasswordHash == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin login disabled"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(h.AdminPasswordHash), []byte(input.Password)); err != nil {
		logger.Warnf("failed admin login from %s", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := jwt.GenerateToken(jwt.RoleAdmin, jwt.RoleAdmin, jwt.RoleAdmin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// CreditAccount godoc
// @Summary      Credit a player's tokens
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        playerID path string true "Player ID"
// @Param        input body CreditInput true "Credit"
// @Success      200  {object}  AccountResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /admin/accounts/{playerID}/credit [post]
func (h *Handler) CreditAccount(c *gin.Context) {
	playerID := c.Param("playerID")

	var input CreditInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	balance, err := h.Accounts.Credit(c.Request.Context(), playerID, input.Amount, input.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, AccountResponse{PlayerID: playerID, Tokens: balance})
}
