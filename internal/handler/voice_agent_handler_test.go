package handler

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mylo-ta-api/internal/models"
	"github.com/noah-isme/mylo-ta-api/internal/service"
	appErrors "github.com/noah-isme/mylo-ta-api/pkg/errors"
	"github.com/noah-isme/mylo-ta-api/pkg/elevenlabs"
)

type fakeVoiceSrv struct {
	available bool
	req       service.VoiceContextRequest
	retry     *service.RetryAttachmentResult
	agents    []elevenlabs.Agent
	err       error
}

func (f *fakeVoiceSrv) Available() bool { return f.available }

func (f *fakeVoiceSrv) UpdateContext(_ context.Context, req service.VoiceContextRequest) (*service.VoiceContextResponse, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &service.VoiceContextResponse{Success: true, AgentID: "agent-1", KnowledgeBaseUpdated: true}, nil
}

func (f *fakeVoiceSrv) RetryAttachment(context.Context, string) (*service.RetryAttachmentResult, error) {
	return f.retry, f.err
}

func (f *fakeVoiceSrv) ListAgents(context.Context) ([]elevenlabs.Agent, error) {
	return f.agents, f.err
}

func (f *fakeVoiceSrv) ListDocuments(context.Context) ([]elevenlabs.Document, error) {
	return nil, f.err
}

func (f *fakeVoiceSrv) RAGStatus(context.Context) ([]service.DocumentRAGStatus, error) {
	return nil, f.err
}

func (f *fakeVoiceSrv) AgentConfig(_ context.Context, agentID string) (*service.AgentConfigSummary, error) {
	return &service.AgentConfigSummary{AgentID: agentID}, f.err
}

type fakeStudentContext struct {
	err error
}

func (f fakeStudentContext) BuildStudentContext(_ context.Context, studentID, courseID string) (*models.VoiceAgentContext, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.VoiceAgentContext{}, nil
}

func TestVoiceHandlerUpdateContext(t *testing.T) {
	srv := &fakeVoiceSrv{available: true}
	handler := NewVoiceAgentHandler(srv, fakeStudentContext{})

	c, rec := newJSONContext(http.MethodPost, "/api/voice-agent/update-context",
		map[string]string{"student_id": "stu-1", "course_id": "course-1"}, handlerTeacher)
	handler.UpdateContext(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stu-1", srv.req.StudentID)
	assert.Equal(t, "course-1", srv.req.CourseID)

	var got service.VoiceContextResponse
	decodeData(t, rec, &got)
	assert.True(t, got.KnowledgeBaseUpdated)
}

func TestVoiceHandlerUpdateContextNotEnrolled(t *testing.T) {
	srv := &fakeVoiceSrv{available: true, err: appErrors.Clone(appErrors.ErrNotFound, "Course context not found.")}
	handler := NewVoiceAgentHandler(srv, fakeStudentContext{})

	c, rec := newJSONContext(http.MethodPost, "/api/voice-agent/update-context",
		map[string]string{"student_id": "stu-1", "course_id": "course-1"}, handlerTeacher)
	handler.UpdateContext(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVoiceHandlerStudentContext(t *testing.T) {
	handler := NewVoiceAgentHandler(&fakeVoiceSrv{}, fakeStudentContext{})

	c, rec := newJSONContext(http.MethodGet, "/api/voice-agent/context/stu-1/course-1", nil, &models.AuthUser{ID: "stu-1"})
	c.Params = gin.Params{{Key: "student_id", Value: "stu-1"}, {Key: "course_id", Value: "course-1"}}
	handler.StudentContext(c)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVoiceHandlerStudentContextPropagatesErrors(t *testing.T) {
	handler := NewVoiceAgentHandler(&fakeVoiceSrv{}, fakeStudentContext{err: sql.ErrNoRows})

	c, rec := newJSONContext(http.MethodGet, "/api/voice-agent/context/stu-1/course-1", nil, &models.AuthUser{ID: "stu-1"})
	c.Params = gin.Params{{Key: "student_id", Value: "stu-1"}, {Key: "course_id", Value: "course-1"}}
	handler.StudentContext(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestVoiceHandlerHealth(t *testing.T) {
	handler := NewVoiceAgentHandler(&fakeVoiceSrv{available: false}, fakeStudentContext{})

	c, rec := newJSONContext(http.MethodGet, "/api/voice-agent/health", nil, nil)
	handler.Health(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]string
	decodeData(t, rec, &got)
	assert.Equal(t, "unavailable", got["elevenlabs_status"])
}

func TestVoiceHandlerAgentsUnavailable(t *testing.T) {
	handler := NewVoiceAgentHandler(&fakeVoiceSrv{err: appErrors.Clone(appErrors.ErrServiceUnavailable, "ElevenLabs not configured")}, fakeStudentContext{})

	c, rec := newJSONContext(http.MethodGet, "/api/voice-agent/agents", nil, handlerTeacher)
	handler.Agents(c)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestVoiceHandlerRetryAttachmentAllFailed(t *testing.T) {
	srv := &fakeVoiceSrv{retry: &service.RetryAttachmentResult{
		AgentID: "agent-1",
		Failed:  []models.PendingAttachment{{DocumentID: "doc-1"}},
	}}
	handler := NewVoiceAgentHandler(srv, fakeStudentContext{})

	c, rec := newJSONContext(http.MethodPost, "/api/voice-agent/retry-attachment/agent-1", nil, handlerTeacher)
	c.Params = gin.Params{{Key: "agent_id", Value: "agent-1"}}
	handler.RetryAttachment(c)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestVoiceHandlerRetryAttachmentNothingPending(t *testing.T) {
	srv := &fakeVoiceSrv{retry: &service.RetryAttachmentResult{Success: true, AgentID: "agent-1"}}
	handler := NewVoiceAgentHandler(srv, fakeStudentContext{})

	c, rec := newJSONContext(http.MethodPost, "/api/voice-agent/retry-attachment/agent-1", nil, handlerTeacher)
	c.Params = gin.Params{{Key: "agent_id", Value: "agent-1"}}
	handler.RetryAttachment(c)

	assert.Equal(t, http.StatusOK, rec.Code)
}
