package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bingoduel/backend/pkg/jwt"
)

// Context keys set by the middlewares.
const (
	KeyPlayerID   = "playerID"
	KeyPlayerName = "playerName"
	KeyRole       = "role"
)

// tokenFromRequest reads a Bearer header, falling back to the token query
// parameter that EventSource and WebSocket clients use.
func tokenFromRequest(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}

func setClaims(c *gin.Context, claims *jwt.Claims) {
	c.Set(KeyPlayerID, claims.Subject)
	c.Set(KeyPlayerName, claims.Name)
	c.Set(KeyRole, claims.Role)
}

// AuthMiddleware rejects requests without a valid session token.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := tokenFromRequest(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token required"})
			return
		}
		claims, err := jwt.ParseToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuthMiddleware inspects for a token and sets the player if present and valid,
// but does not fail if the token is missing or invalid.
func OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := tokenFromRequest(c); tokenString != "" {
			if claims, err := jwt.ParseToken(tokenString); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

// PlayerMiddleware limits a route to player sessions. It must be used
// after AuthMiddleware.
func PlayerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(KeyRole) != jwt.RolePlayer {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Player session required"})
			return
		}
		c.Next()
	}
}

// PlayerID returns the authenticated player, or "".
func PlayerID(c *gin.Context) string {
	return c.GetString(KeyPlayerID)
}
