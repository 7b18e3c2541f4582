package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mylo-ta-api/internal/models"
	"github.com/noah-isme/mylo-ta-api/internal/service"
	appErrors "github.com/noah-isme/mylo-ta-api/pkg/errors"
	"github.com/noah-isme/mylo-ta-api/pkg/elevenlabs"
	"github.com/noah-isme/mylo-ta-api/pkg/response"
)

type voiceAgentService interface {
	Available() bool
	UpdateContext(ctx context.Context, req service.VoiceContextRequest) (*service.VoiceContextResponse, error)
	RetryAttachment(ctx context.Context, agentID string) (*service.RetryAttachmentResult, error)
	ListAgents(ctx context.Context) ([]elevenlabs.Agent, error)
	ListDocuments(ctx context.Context) ([]elevenlabs.Document, error)
	RAGStatus(ctx context.Context) ([]service.DocumentRAGStatus, error)
	AgentConfig(ctx context.Context, agentID string) (*service.AgentConfigSummary, error)
}

type studentContextBuilder interface {
	BuildStudentContext(ctx context.Context, studentID, courseID string) (*models.VoiceAgentContext, error)
}

// VoiceAgentHandler exposes the voice agent knowledge-base endpoints.
type VoiceAgentHandler struct {
	service voiceAgentService
	builder studentContextBuilder
}

// NewVoiceAgentHandler constructs the handler.
func NewVoiceAgentHandler(service voiceAgentService, builder studentContextBuilder) *VoiceAgentHandler {
	return &VoiceAgentHandler{service: service, builder: builder}
}

// UpdateContext godoc
// @Summary Push course context to the voice agent
// @Description Builds a student (or all-students) snapshot and replaces the agent knowledge-base document.
// @Tags VoiceAgent
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.VoiceContextRequest true "Context target"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /voice-agent/update-context [post]
func (h *VoiceAgentHandler) UpdateContext(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}
	var req service.VoiceContextRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.service.UpdateContext(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// StudentContext godoc
// @Summary Read a student's course context
// @Description Students may only read their own context.
// @Tags VoiceAgent
// @Produce json
// @Security BearerAuth
// @Param student_id path string true "Student ID"
// @Param course_id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /voice-agent/context/{student_id}/{course_id} [get]
func (h *VoiceAgentHandler) StudentContext(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}
	studentID := strings.TrimSpace(c.Param("student_id"))
	courseID := strings.TrimSpace(c.Param("course_id"))
	vc, err := h.builder.BuildStudentContext(c.Request.Context(), studentID, courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, vc)
}

// Health godoc
// @Summary Voice agent integration status
// @Tags VoiceAgent
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /voice-agent/health [get]
func (h *VoiceAgentHandler) Health(c *gin.Context) {
	status := "unavailable"
	if h.service.Available() {
		status = "available"
	}
	response.OK(c, gin.H{"status": "healthy", "service": "voice-agent", "elevenlabs_status": status})
}

// Agents godoc
// @Summary List voice agents
// @Tags VoiceAgent
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /voice-agent/agents [get]
func (h *VoiceAgentHandler) Agents(c *gin.Context) {
	agents, err := h.service.ListAgents(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"agents": agents, "count": len(agents)})
}

// KnowledgeBase godoc
// @Summary List knowledge-base documents
// @Tags VoiceAgent
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /voice-agent/knowledge-base [get]
func (h *VoiceAgentHandler) KnowledgeBase(c *gin.Context) {
	docs, err := h.service.ListDocuments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"documents": docs, "count": len(docs)})
}

// RAGStatus godoc
// @Summary Retrieval index status of context documents
// @Tags VoiceAgent
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /voice-agent/rag-status [get]
func (h *VoiceAgentHandler) RAGStatus(c *gin.Context) {
	statuses, err := h.service.RAGStatus(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"documents": statuses, "count": len(statuses)})
}

// AgentConfig godoc
// @Summary Agent knowledge-base configuration
// @Tags VoiceAgent
// @Produce json
// @Security BearerAuth
// @Param agent_id path string true "Agent ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /voice-agent/agent-config/{agent_id} [get]
func (h *VoiceAgentHandler) AgentConfig(c *gin.Context) {
	summary, err := h.service.AgentConfig(c.Request.Context(), c.Param("agent_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}

// RetryAttachment godoc
// @Summary Retry pending knowledge-base attachments
// @Tags VoiceAgent
// @Produce json
// @Security BearerAuth
// @Param agent_id path string true "Agent ID"
// @Success 200 {object} response.Envelope
// @Router /voice-agent/retry-attachment/{agent_id} [post]
func (h *VoiceAgentHandler) RetryAttachment(c *gin.Context) {
	agentID := strings.TrimSpace(c.Param("agent_id"))
	if agentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "agent_id is required"))
		return
	}
	result, err := h.service.RetryAttachment(c.Request.Context(), agentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if !result.Success && len(result.Attached) == 0 && len(result.Failed) > 0 {
		status = http.StatusBadGateway
	}
	response.JSON(c, status, result, nil)
}
