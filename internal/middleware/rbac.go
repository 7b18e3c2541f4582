package middleware

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/mylo-ta-api/pkg/errors"
	"github.com/noah-isme/mylo-ta-api/pkg/response"
)

// SelfOnly lets a request through only when the path parameter equals the authenticated user id.
func SelfOnly(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if target := c.Param(param); target == "" || target != user.ID {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "Access denied"))
			c.Abort()
			return
		}
		c.Next()
	}
}
