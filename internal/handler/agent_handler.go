package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mylo-ta-api/internal/dto"
	"github.com/noah-isme/mylo-ta-api/internal/models"
	"github.com/noah-isme/mylo-ta-api/pkg/response"
)

type agentService interface {
	Process(ctx context.Context, user models.AuthUser, req dto.AgentRequest) (dto.AgentResponse, error)
	GenerateThreadTitle(ctx context.Context, req dto.ThreadTitleRequest) (dto.ThreadTitleResponse, error)
}

// AgentHandler exposes the conversational assistant.
type AgentHandler struct {
	service agentService
}

// NewAgentHandler constructs the handler.
func NewAgentHandler(service agentService) *AgentHandler {
	return &AgentHandler{service: service}
}

// Process godoc
// @Summary Process a teacher message
// @Description Classifies the message, runs the matching action and returns the assistant reply.
// @Tags Agent
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.AgentRequest true "Teacher message"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /agent/process [post]
func (h *AgentHandler) Process(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req dto.AgentRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.service.Process(c.Request.Context(), *user, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// GenerateThreadTitle godoc
// @Summary Generate a conversation title
// @Tags Agent
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ThreadTitleRequest true "First exchange"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /agent/generate-thread-title [post]
func (h *AgentHandler) GenerateThreadTitle(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}
	var req dto.ThreadTitleRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.service.GenerateThreadTitle(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}
