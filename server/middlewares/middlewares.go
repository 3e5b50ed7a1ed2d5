package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ggeejehd-eng/mj36/auth"
)

// Session fetches the session token from the "token" query parameter or the
// X-Session-Token header and attaches it to the request context, where the
// auth manager resolves it lazily. Requests without a token pass through as
// anonymous; handlers that need an identity use RequireUser.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token = c.GetHeader("X-Session-Token")
		}
		if token != "" {
			c.Request = c.Request.WithContext(auth.WithToken(c.Request.Context(), token))
		}
		c.Next()
	}
}

// RequireUser aborts with 401 unless the session token resolves to a user.
func RequireUser(m *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.CurrentUser(c.Request.Context()) == nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"msg": "sign in required",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
