package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/echolabs/echocore/internal/utils"
)

// RequireRole gates a route group to callers whose token role is in the
// allowed set. Roles match case-insensitively.
func RequireRole(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := strings.ToLower(strings.TrimSpace(c.GetString("role")))
		if role == "" {
			forbid(c)
			return
		}
		for _, a := range allowed {
			if role == strings.ToLower(strings.TrimSpace(a)) {
				c.Next()
				return
			}
		}
		forbid(c)
	}
}

func RequireAdmin() gin.HandlerFunc { return RequireRole("admin") }

func forbid(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, apiError{
		Code:    utils.CodeForbidden,
		Message: "forbidden",
	})
}
