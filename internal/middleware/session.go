package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geocatalyst/exam-engine/internal/response"
)

// RequireSessionOwner rejects tokens issued for a session other than the
// one named by the :session_id path parameter. It runs after
// RequireSessionToken.
func RequireSessionOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if claims.SessionID != c.Param("session_id") {
			response.AbortFail(c, http.StatusForbidden, response.ErrSessionMismatch)
			return
		}

		c.Next()
	}
}
