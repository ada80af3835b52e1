package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireAuthKey returns a Gin middleware that guards operator endpoints with
// a shared-secret header check.
//
// The request must carry an "Auth-Key" header whose value matches key exactly.
// Comparison is constant-time to avoid leaking the secret through timing.
// On mismatch (or when the server has no key configured) the middleware aborts
// with 401 and the standard error envelope:
//
//	HTTP/1.1 401 Unauthorized
//	{
//	  "request_id": "<uuid>",
//	  "code":       "unauthorized",
//	  "message":    "invalid or missing Auth-Key header"
//	}
//
// An empty configured key disables the endpoints entirely rather than leaving
// them open.
func RequireAuthKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("Auth-Key")
		if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get("X-Request-ID"),
				"code":       "unauthorized",
				"message":    "invalid or missing Auth-Key header",
			})
			return
		}
		c.Next()
	}
}
