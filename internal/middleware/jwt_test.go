package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mylo-ta-api/internal/models"
	appErrors "github.com/noah-isme/mylo-ta-api/pkg/errors"
	"github.com/noah-isme/mylo-ta-api/pkg/logger"
)

type tokenTable map[string]models.AuthUser

func (t tokenTable) Authenticate(ctx context.Context, token string) (*models.AuthUser, error) {
	user, ok := t[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return &user, nil
}

type testIdentity struct {
	user      models.AuthUser
	ensureErr error
	ensured   int
}

func (p *testIdentity) TestUser() models.AuthUser { return p.user }

func (p *testIdentity) EnsureTestUser(ctx context.Context) error {
	p.ensured++
	return p.ensureErr
}

func whoAmI(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.String(http.StatusOK, user.ID+"|"+c.GetString(logger.ContextUserIDKey))
}

func serve(router *gin.Engine, header string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestJWTAttachesUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWT(tokenTable{"good": {ID: "teacher-1"}}))
	router.GET("/", whoAmI)

	recorder := serve(router, "Bearer good")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "teacher-1|teacher-1", recorder.Body.String())
}

func TestJWTRejects(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWT(tokenTable{"good": {ID: "teacher-1"}}))
	router.GET("/", whoAmI)

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer bad"} {
		recorder := serve(router, header)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code, header)
	}
}

func TestTestUserMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	provider := &testIdentity{user: models.AuthUser{ID: "test-1", IsTest: true}}
	router := gin.New()
	router.Use(TestUser(provider, true, nil))
	router.GET("/", whoAmI)

	recorder := serve(router, "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "test-1|test-1", recorder.Body.String())
	assert.Equal(t, 1, provider.ensured)
}

func TestTestUserMiddlewareDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	provider := &testIdentity{}
	router := gin.New()
	router.Use(TestUser(provider, false, nil))
	router.GET("/", whoAmI)

	recorder := serve(router, "")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Zero(t, provider.ensured)
}

func TestTestUserMiddlewareUpsertFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	provider := &testIdentity{ensureErr: errors.New("db down")}
	router := gin.New()
	router.Use(TestUser(provider, true, nil))
	router.GET("/", whoAmI)

	recorder := serve(router, "")
	require.Equal(t, http.StatusInternalServerError, recorder.Code)
}

func TestSelfOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWT(tokenTable{"student": {ID: "stu-1"}}))
	router.GET("/context/:student_id", SelfOnly("student_id"), whoAmI)

	own := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/context/stu-1", nil)
	req.Header.Set("Authorization", "Bearer student")
	router.ServeHTTP(own, req)
	assert.Equal(t, http.StatusOK, own.Code)

	other := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/context/stu-2", nil)
	req.Header.Set("Authorization", "Bearer student")
	router.ServeHTTP(other, req)
	assert.Equal(t, http.StatusForbidden, other.Code)
}
