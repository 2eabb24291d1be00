package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/sitechat/internal/auth"
	"github.com/suPer8Hu/sitechat/internal/common"
)

// AdminAuth guards the admin surface with basic auth against a bcrypt hash.
// Without a configured hash the surface does not exist.
func AdminAuth(user, passwordHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if passwordHash == "" {
			common.AbortFail(c, http.StatusNotFound, "route not found")
			return
		}
		u, p, ok := c.Request.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || !auth.CheckPassword(passwordHash, p) {
			c.Header("WWW-Authenticate", `Basic realm="sitechat admin"`)
			common.AbortFail(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		c.Next()
	}
}
