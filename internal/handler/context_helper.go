package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mylo-ta-api/internal/middleware"
	"github.com/noah-isme/mylo-ta-api/internal/models"
	appErrors "github.com/noah-isme/mylo-ta-api/pkg/errors"
	"github.com/noah-isme/mylo-ta-api/pkg/response"
)

// requireUser returns the authenticated user or writes a 401.
func requireUser(c *gin.Context) (*models.AuthUser, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return user, true
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return false
	}
	return true
}
