package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/mylo-ta-api/internal/models"
	appErrors "github.com/noah-isme/mylo-ta-api/pkg/errors"
)

type authUserStore interface {
	Upsert(ctx context.Context, user *models.User) error
}

// AuthConfig defines how bearer tokens are verified.
type AuthConfig struct {
	// JWTSecret enables local HS256 verification. When empty tokens are checked remotely.
	JWTSecret     string
	SupabaseURL   string
	SupabaseKey   string
	VerifyTimeout time.Duration
	TestUser      models.AuthUser
}

// AuthService verifies Supabase access tokens and manages the development test identity.
type AuthService struct {
	users  authUserStore
	http   *resty.Client
	config AuthConfig
	logger *zap.Logger
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users authUserStore, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.VerifyTimeout <= 0 {
		config.VerifyTimeout = 10 * time.Second
	}
	config.TestUser.IsTest = true
	if config.TestUser.Role == "" {
		config.TestUser.Role = models.RoleTeacher
	}
	client := resty.New().SetTimeout(config.VerifyTimeout)
	if config.SupabaseURL != "" {
		client.SetBaseURL(strings.TrimRight(config.SupabaseURL, "/"))
	}
	return &AuthService{users: users, http: client, config: config, logger: logger}
}

// Authenticate resolves a bearer token to a user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.AuthUser, error) {
	if strings.TrimSpace(token) == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing bearer token")
	}
	if s.config.JWTSecret != "" {
		return s.ValidateToken(token)
	}
	if s.config.SupabaseURL != "" {
		return s.verifyRemote(ctx, token)
	}
	return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "token verification is not configured")
}

// ValidateToken parses and validates an HS256 access token locally.
func (s *AuthService) ValidateToken(tokenString string) (*models.AuthUser, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.SupabaseClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.SupabaseClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return &models.AuthUser{ID: claims.Subject, Email: claims.Email, FullName: claims.FullName()}, nil
}

type remoteUser struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
}

func (s *AuthService) verifyRemote(ctx context.Context, token string) (*models.AuthUser, error) {
	var user remoteUser
	resp, err := s.http.R().
		SetContext(ctx).
		SetHeader("apikey", s.config.SupabaseKey).
		SetAuthToken(token).
		SetResult(&user).
		Get("/auth/v1/user")
	if err != nil {
		s.logger.Error("auth verification failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "authentication failed")
	}
	if resp.IsError() || user.ID == "" {
		s.logger.Debug("auth server rejected token", zap.Int("status", resp.StatusCode()))
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}

	claims := models.SupabaseClaims{UserMetadata: user.UserMetadata}
	return &models.AuthUser{ID: user.ID, Email: user.Email, FullName: claims.FullName()}, nil
}

// TestUser returns the fixed development identity.
func (s *AuthService) TestUser() models.AuthUser {
	return s.config.TestUser
}

// EnsureTestUser upserts the development identity into the users table.
func (s *AuthService) EnsureTestUser(ctx context.Context) error {
	tu := s.config.TestUser
	if tu.ID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "test user id not configured")
	}
	if err := s.users.Upsert(ctx, &models.User{ID: tu.ID, Email: tu.Email, FullName: tu.FullName, Role: tu.Role}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to ensure test user")
	}
	return nil
}
