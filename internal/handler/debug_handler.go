package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mylo-ta-api/internal/models"
	"github.com/noah-isme/mylo-ta-api/internal/service"
	appErrors "github.com/noah-isme/mylo-ta-api/pkg/errors"
	"github.com/noah-isme/mylo-ta-api/pkg/config"
	"github.com/noah-isme/mylo-ta-api/pkg/llm"
	"github.com/noah-isme/mylo-ta-api/pkg/response"
)

const debugListLimit = 10

type debugIdentity interface {
	TestUser() models.AuthUser
	EnsureTestUser(ctx context.Context) error
}

type debugUserLister interface {
	ListRecent(ctx context.Context, limit int) ([]models.User, error)
}

type debugCourseLister interface {
	ListByTeacher(ctx context.Context, teacherID string, limit int) ([]models.Course, error)
}

type metricsSnapshotter interface {
	Snapshot() service.MetricsSnapshot
}

// DebugHandler serves development diagnostics. Routes are not registered in production.
type DebugHandler struct {
	cfg      *config.Config
	identity debugIdentity
	users    debugUserLister
	courses  debugCourseLister
	llm      llm.Completer
	metrics  metricsSnapshotter
}

// NewDebugHandler constructs the handler.
func NewDebugHandler(cfg *config.Config, identity debugIdentity, users debugUserLister, courses debugCourseLister, completer llm.Completer, metrics metricsSnapshotter) *DebugHandler {
	return &DebugHandler{cfg: cfg, identity: identity, users: users, courses: courses, llm: completer, metrics: metrics}
}

// Config godoc
// @Summary Report which integrations are configured
// @Tags Debug
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /debug/config [get]
func (h *DebugHandler) Config(c *gin.Context) {
	response.OK(c, gin.H{
		"env":                     h.cfg.Env,
		"timezone":                h.cfg.Timezone,
		"supabase_url_set":        h.cfg.Auth.SupabaseURL != "",
		"supabase_key_set":        h.cfg.Auth.SupabaseKey != "",
		"supabase_jwt_secret_set": h.cfg.Auth.JWTSecret != "",
		"openai_key_set":          h.cfg.LLM.APIKey != "",
		"intent_model":            h.cfg.LLM.IntentModel,
		"grading_model":           h.cfg.LLM.GradingModel,
		"elevenlabs_key_set":      h.cfg.VoiceAgentEnabled(),
		"elevenlabs_agent_set":    h.cfg.VoiceAgent.AgentID != "",
		"test_routes_enabled":     h.cfg.Auth.EnableTestRoute,
		"test_user_id":            h.cfg.Auth.TestUserID,
	})
}

// TestUser godoc
// @Summary Ensure and return the development identity
// @Tags Debug
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /debug/test-user [get]
func (h *DebugHandler) TestUser(c *gin.Context) {
	if err := h.identity.EnsureTestUser(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"test_user": h.identity.TestUser(), "exists": true})
}

// ListData godoc
// @Summary List recent users and the test user's courses
// @Tags Debug
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /debug/list-data [get]
func (h *DebugHandler) ListData(c *gin.Context) {
	ctx := c.Request.Context()
	users, err := h.users.ListRecent(ctx, debugListLimit)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users"))
		return
	}
	var courses []models.Course
	if id := h.identity.TestUser().ID; id != "" {
		courses, err = h.courses.ListByTeacher(ctx, id, debugListLimit)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses"))
			return
		}
	}
	if users == nil {
		users = []models.User{}
	}
	if courses == nil {
		courses = []models.Course{}
	}
	response.OK(c, gin.H{"users": users, "courses": courses})
}

// LLMTest godoc
// @Summary Send a one-line prompt to the LLM
// @Tags Debug
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /debug/llm-test [post]
func (h *DebugHandler) LLMTest(c *gin.Context) {
	if h.llm == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrServiceUnavailable, "llm client is not configured"))
		return
	}
	reply, err := h.llm.Complete(c.Request.Context(), llm.Request{
		Model:     h.cfg.LLM.IntentModel,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: "Reply with the single word: pong"}},
		MaxTokens: 5,
	})
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "llm request failed"))
		return
	}
	response.OK(c, gin.H{"reply": strings.TrimSpace(reply), "model": h.cfg.LLM.IntentModel})
}

// Metrics godoc
// @Summary In-process request and intent counters
// @Tags Debug
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /debug/metrics [get]
func (h *DebugHandler) Metrics(c *gin.Context) {
	if h.metrics == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrServiceUnavailable, "metrics are disabled"))
		return
	}
	response.OK(c, h.metrics.Snapshot())
}
