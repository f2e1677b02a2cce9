package middleware

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pulsetrack/api/utils"
)

// tokenFromRequest looks for a JWT in the auth cookie first, then the
// Authorization header.
func tokenFromRequest(c *gin.Context) string {
	if token, err := c.Cookie("jwt_token"); err == nil && token != "" {
		return token
	}
	token := c.GetHeader("Authorization")
	return strings.TrimPrefix(token, "Bearer ")
}

// AuthRequired guards the dashboard endpoints. A matching X-API-KEY header
// bypasses JWT validation for server-to-server callers.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := c.GetHeader("X-API-KEY"); key != "" && key == os.Getenv("AUTH_DEFAULT") {
			c.Set("authenticated", true)
			c.Next()
			return
		}

		tokenString := tokenFromRequest(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: No token provided"})
			return
		}

		claims, err := utils.ValidateJWT(tokenString)
		if err != nil {
			log.Debug().Err(err).Msg("rejected invalid JWT")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid or expired token"})
			return
		}

		c.Set("authenticated", true)
		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)
		c.Next()
	}
}

// OptionalAuth marks the request as authenticated when a valid JWT is
// present, but never rejects. Used on public endpoints whose behavior
// widens for the dashboard (e.g. the activity feed's private events).
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := tokenFromRequest(c); tokenString != "" {
			if claims, err := utils.ValidateJWT(tokenString); err == nil {
				c.Set("authenticated", true)
				c.Set("user_id", claims.UserID)
				c.Set("user_email", claims.Email)
			}
		}
		c.Next()
	}
}
