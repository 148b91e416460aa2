package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bingoduel/backend/internal/account"
	"bingoduel/backend/internal/apperror"
	"bingoduel/backend/internal/auth"
	"bingoduel/backend/internal/logger"
	"bingoduel/backend/internal/room"
	"bingoduel/backend/internal/solo"
)

// ErrorResponse represents a generic error response.
type ErrorResponse struct {
	Error string `json:"error" example:"An error message"`
}

// Handler serves the HTTP API on top of the game services.
type Handler struct {
	Rooms    *room.Service
	Solo     *solo.Manager
	Accounts *account.Service

	// AdminPasswordHash is a bcrypt hash; empty disables admin login.
	AdminPasswordHash string
	// AllowedOrigins gates WebSocket upgrades. "*" allows any origin.
	AllowedOrigins []string
	// RateLimit guards the endpoints that create sessions, rooms and games.
	RateLimit gin.HandlerFunc
	Now       func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// respondError answers with the status and message mapped from err.
func respondError(c *gin.Context, err error) {
	status := apperror.Status(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": apperror.Message(err)})
}

func (h *Handler) limited() gin.HandlerFunc {
	if h.RateLimit != nil {
		return h.RateLimit
	}
	return func(c *gin.Context) { c.Next() }
}

// RegisterRoutes mounts the API under api.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	limit := h.limited()

	api.POST("/session", limit, auth.OptionalAuthMiddleware(), h.CreateSession)

	account := api.Group("/account")
	account.Use(auth.AuthMiddleware(), auth.PlayerMiddleware())
	{
		account.GET("", h.GetAccount)
		account.GET("/ledger", h.GetLedger)
	}

	rooms := api.Group("/rooms")
	rooms.Use(auth.AuthMiddleware(), auth.PlayerMiddleware())
	{
		rooms.POST("", limit, h.CreateRoom)
		rooms.GET("/:code", h.GetRoom)
		rooms.GET("/:code/suggest", h.SuggestNumber)
		rooms.GET("/:code/events", h.RoomEvents)
		rooms.GET("/:code/ws", h.RoomSocket)
		rooms.POST("/:code/join", h.JoinRoom)
		rooms.POST("/:code/leave", h.LeaveRoom)
		rooms.POST("/:code/mark", h.MarkNumber)
		rooms.POST("/:code/call", h.CallNumber)
		rooms.POST("/:code/claim", h.ClaimBingo)
	}

	soloRoutes := api.Group("/solo")
	soloRoutes.Use(auth.AuthMiddleware(), auth.PlayerMiddleware())
	{
		soloRoutes.GET("", h.GetSolo)
		soloRoutes.GET("/events", h.SoloEvents)
		soloRoutes.POST("/start", limit, h.StartSolo)
		soloRoutes.POST("/mark", h.MarkSolo)
		soloRoutes.POST("/claim", h.ClaimSolo)
		soloRoutes.POST("/pause", h.PauseSolo)
	}

	api.POST("/admin/login", limit, h.AdminLogin)
	admin := api.Group("/admin")
	admin.Use(auth.AuthMiddleware(), auth.AdminMiddleware())
	{
		admin.POST("/accounts/:playerID/credit", h.CreditAccount)
	}
}

// Ping godoc
// @Summary      Health check
// @Description  Reports whether the room store is reachable.
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  ErrorResponse
// @Router       /ping [get]
func (h *Handler) Ping(c *gin.Context) {
	if err := h.Rooms.Ping(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}
