package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/mylo-ta-api/internal/models"
	appErrors "github.com/noah-isme/mylo-ta-api/pkg/errors"
	"github.com/noah-isme/mylo-ta-api/pkg/logger"
	"github.com/noah-isme/mylo-ta-api/pkg/response"
)

// ContextUserKey is the gin context key storing the authenticated user.
const ContextUserKey = "currentUser"

// Authenticator verifies a bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.AuthUser, error)
}

// TestIdentityProvider supplies the development identity.
type TestIdentityProvider interface {
	TestUser() models.AuthUser
	EnsureTestUser(ctx context.Context) error
}

// JWT protects routes by requiring a valid access token.
func JWT(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing or invalid authorization header"))
			c.Abort()
			return
		}

		user, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		setUser(c, user)
		c.Next()
	}
}

// TestUser attaches the development identity without a token. Disabled routes answer 404.
func TestUser(provider TestIdentityProvider, enabled bool, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		if !enabled {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "test routes are disabled"))
			c.Abort()
			return
		}
		if err := provider.EnsureTestUser(c.Request.Context()); err != nil {
			log.Warn("test user upsert failed", zap.Error(err))
			response.Error(c, err)
			c.Abort()
			return
		}
		user := provider.TestUser()
		setUser(c, &user)
		c.Next()
	}
}

// CurrentUser returns the user attached by JWT or TestUser.
func CurrentUser(c *gin.Context) (*models.AuthUser, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.AuthUser)
	return user, ok && user != nil
}

func setUser(c *gin.Context, user *models.AuthUser) {
	c.Set(ContextUserKey, user)
	c.Set(logger.ContextUserIDKey, user.ID)
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
