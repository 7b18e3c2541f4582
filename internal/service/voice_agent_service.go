package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/mylo-ta-api/internal/models"
	"github.com/noah-isme/mylo-ta-api/pkg/elevenlabs"
	appErrors "github.com/noah-isme/mylo-ta-api/pkg/errors"
	"github.com/noah-isme/mylo-ta-api/pkg/jobs"
	"github.com/noah-isme/mylo-ta-api/pkg/retry"
)

// JobTypeRAGIndex identifies background retrieval index jobs.
const JobTypeRAGIndex = "voice.rag_index"

const voiceUnavailableMessage = "ElevenLabs service is not available. Please check ELEVENLABS_API_KEY configuration."

type voiceAgentClient interface {
	Configured() bool
	ListAgents(ctx context.Context) ([]elevenlabs.Agent, error)
	GetAgent(ctx context.Context, agentID string) (*elevenlabs.AgentDetail, error)
	SetAgentKnowledgeBase(ctx context.Context, agentID string, docs []elevenlabs.KnowledgeBaseRef) error
	ListDocuments(ctx context.Context, search string) ([]elevenlabs.Document, error)
	CreateTextDocument(ctx context.Context, name, text string) (*elevenlabs.CreatedDocument, error)
	DeleteDocument(ctx context.Context, documentID string) error
	ComputeRAGIndex(ctx context.Context, documentID, model string) (*elevenlabs.RAGIndex, error)
	ListRAGIndexes(ctx context.Context, documentID string) ([]elevenlabs.RAGIndex, error)
	DeleteRAGIndex(ctx context.Context, documentID, indexID string) error
}

type voiceContextSource interface {
	BuildStudentContext(ctx context.Context, studentID, courseID string) (*models.VoiceAgentContext, error)
	BuildCourseContext(ctx context.Context, courseID string) (*models.CourseRosterContext, error)
}

// PendingAttachmentStore records documents that could not be attached to an agent.
type PendingAttachmentStore interface {
	Save(ctx context.Context, pending models.PendingAttachment) error
	ListByAgent(ctx context.Context, agentID string) ([]models.PendingAttachment, error)
	Delete(ctx context.Context, agentID, documentName string) error
}

type jobEnqueuer interface {
	TryEnqueue(job jobs.Job) error
}

type voiceObserver interface {
	ObserveVoiceAttach(outcome string)
}

type nopVoiceObserver struct{}

func (nopVoiceObserver) ObserveVoiceAttach(string) {}

// RAGIndexPayload is the job payload for retrieval index creation.
type RAGIndexPayload struct {
	DocumentID string
	Model      string
}

// VoiceAgentConfig tunes the knowledge base push.
type VoiceAgentConfig struct {
	DefaultAgentID string
	AttachAttempts uint
	AttachDelay    time.Duration
	RAGModel       string
}

// VoiceContextRequest selects what to push. An empty StudentID pushes the whole course.
type VoiceContextRequest struct {
	StudentID string `json:"student_id"`
	CourseID  string `json:"course_id" validate:"required"`
	AgentID   string `json:"agent_id"`
}

// VoiceContextResponse reports the outcome of a context push.
type VoiceContextResponse struct {
	Success              bool                      `json:"success"`
	Message              string                    `json:"message"`
	AgentID              string                    `json:"agent_id,omitempty"`
	KnowledgeBaseUpdated bool                      `json:"knowledge_base_updated"`
	Context              *models.VoiceAgentContext `json:"context,omitempty"`
	Push                 *models.VoicePushResult   `json:"push,omitempty"`
	RetrySuggestion      string                    `json:"retry_suggestion,omitempty"`
}

// DocumentRAGStatus lists the retrieval indexes of one document.
type DocumentRAGStatus struct {
	DocumentID   string                `json:"document_id"`
	DocumentName string                `json:"document_name"`
	Indexes      []elevenlabs.RAGIndex `json:"rag_indices"`
	Error        string                `json:"error,omitempty"`
}

// AgentConfigSummary describes the documents attached to an agent.
type AgentConfigSummary struct {
	AgentID                string                        `json:"agent_id"`
	AgentName              string                        `json:"agent_name"`
	KnowledgeBaseAttached  bool                          `json:"knowledge_base_attached"`
	KnowledgeBaseDocuments []elevenlabs.KnowledgeBaseRef `json:"knowledge_base_documents"`
	TotalDocuments         int                           `json:"total_kb_documents"`
}

// RetryAttachmentResult reports a manual attachment retry.
type RetryAttachmentResult struct {
	Success  bool                       `json:"success"`
	Message  string                     `json:"message"`
	AgentID  string                     `json:"agent_id"`
	Attached []models.PendingAttachment `json:"attached"`
	Failed   []models.PendingAttachment `json:"failed"`
}

// VoiceAgentService keeps the voice agent's knowledge base in sync with course data.
type VoiceAgentService struct {
	client    voiceAgentClient
	builder   voiceContextSource
	pending   PendingAttachmentStore
	queue     jobEnqueuer
	metrics   voiceObserver
	cfg       VoiceAgentConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewVoiceAgentService constructs the service. queue may be attached later with SetQueue.
func NewVoiceAgentService(
	client voiceAgentClient,
	builder voiceContextSource,
	pending PendingAttachmentStore,
	metrics voiceObserver,
	cfg VoiceAgentConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *VoiceAgentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopVoiceObserver{}
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.AttachAttempts == 0 {
		cfg.AttachAttempts = 3
	}
	if cfg.AttachDelay <= 0 {
		cfg.AttachDelay = 2 * time.Second
	}
	if cfg.RAGModel == "" {
		cfg.RAGModel = "e5_mistral_7b_instruct"
	}
	return &VoiceAgentService{
		client:    client,
		builder:   builder,
		pending:   pending,
		metrics:   metrics,
		cfg:       cfg,
		validator: validate,
		logger:    logger,
	}
}

// SetQueue attaches the background queue used for retrieval index creation.
func (s *VoiceAgentService) SetQueue(queue jobEnqueuer) {
	s.queue = queue
}

// Available reports whether the ElevenLabs client has credentials.
func (s *VoiceAgentService) Available() bool {
	return s.client != nil && s.client.Configured()
}

// UpdateContext builds the requested snapshot and pushes it to the agent's knowledge base.
func (s *VoiceAgentService) UpdateContext(ctx context.Context, req VoiceContextRequest) (*VoiceContextResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "course_id is required")
	}
	if !s.Available() {
		return &VoiceContextResponse{Success: false, Message: voiceUnavailableMessage}, nil
	}
	agentID := strings.TrimSpace(req.AgentID)
	if agentID == "" {
		agentID = s.cfg.DefaultAgentID
	}
	if agentID == "" {
		return &VoiceContextResponse{Success: false, Message: "No agent_id provided. Please specify which ElevenLabs agent to update."}, nil
	}

	exists, err := s.agentExists(ctx, agentID)
	if err != nil {
		return &VoiceContextResponse{Success: false, AgentID: agentID, Message: fmt.Sprintf("Failed to verify agent: %v", err)}, nil
	}
	if !exists {
		return &VoiceContextResponse{Success: false, AgentID: agentID, Message: fmt.Sprintf("Agent %s not found in ElevenLabs", agentID)}, nil
	}

	var (
		name, text string
		scope      string
		vc         *models.VoiceAgentContext
		students   int
	)
	if req.StudentID != "" {
		vc, err = s.builder.BuildStudentContext(ctx, req.StudentID, req.CourseID)
		if err != nil {
			return nil, err
		}
		name = StudentDocumentName(req.CourseID, req.StudentID)
		text, err = StudentDocument(vc)
		scope = vc.Student.Name
		students = 1
	} else {
		var roster *models.CourseRosterContext
		roster, err = s.builder.BuildCourseContext(ctx, req.CourseID)
		if err != nil {
			return nil, err
		}
		name = CourseDocumentName(req.CourseID)
		text, err = CourseDocument(roster)
		scope = "all students"
		students = len(roster.Students)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render voice context")
	}

	push, err := s.Push(ctx, agentID, name, text)
	if err != nil {
		s.logger.Error("voice context push failed", zap.String("agent_id", agentID), zap.String("document", name), zap.Error(err))
		return &VoiceContextResponse{
			Success: false,
			AgentID: agentID,
			Message: "Failed to update voice agent knowledge base.",
			Context: vc,
		}, nil
	}
	push.StudentsIncluded = students

	resp := &VoiceContextResponse{
		Success:              true,
		AgentID:              agentID,
		KnowledgeBaseUpdated: !push.PendingAttach,
		Context:              vc,
		Push:                 push,
		Message:              fmt.Sprintf("Voice agent context updated for %s in course %s", scope, req.CourseID),
	}
	if push.PendingAttach {
		resp.Message = fmt.Sprintf("Knowledge base document %s was uploaded but could not be attached to agent %s", name, agentID)
		resp.RetrySuggestion = fmt.Sprintf("Wait a few minutes and call POST /api/voice-agent/retry-attachment/%s", agentID)
	}
	return resp, nil
}

// Push replaces the named document and attaches the new one to the agent.
// Upload errors are returned. Attach errors are recorded as a pending attachment.
func (s *VoiceAgentService) Push(ctx context.Context, agentID, name, text string) (*models.VoicePushResult, error) {
	existing, err := s.documentsNamed(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, doc := range existing {
		s.dropRAGIndexes(ctx, doc.ID)
	}

	created, err := s.client.CreateTextDocument(ctx, name, text)
	if err != nil {
		return nil, fmt.Errorf("upload knowledge base document: %w", err)
	}
	result := &models.VoicePushResult{DocumentID: created.ID, DocumentName: name}
	s.logger.Info("knowledge base document uploaded", zap.String("document_id", created.ID), zap.String("name", name))

	result.RAGIndexQueued = s.enqueueRAGIndex(created.ID)

	replaced := make(map[string]bool, len(existing))
	for _, doc := range existing {
		if err := s.client.DeleteDocument(ctx, doc.ID); err != nil {
			s.logger.Warn("could not delete superseded document", zap.String("document_id", doc.ID), zap.Error(err))
			continue
		}
		replaced[doc.ID] = true
		result.ReplacedDocs = append(result.ReplacedDocs, doc.ID)
	}

	if err := s.attach(ctx, agentID, created.ID, name, replaced); err != nil {
		result.PendingAttach = true
		result.AttachError = err.Error()
		pending := models.PendingAttachment{AgentID: agentID, DocumentID: created.ID, DocumentName: name, LastError: err.Error()}
		if s.pending != nil {
			if saveErr := s.pending.Save(ctx, pending); saveErr != nil {
				s.logger.Warn("could not record pending attachment", zap.String("document_id", created.ID), zap.Error(saveErr))
			}
		}
		return result, nil
	}

	result.Attached = true
	if s.pending != nil {
		if err := s.pending.Delete(ctx, agentID, name); err != nil {
			s.logger.Debug("could not clear pending attachment", zap.String("name", name), zap.Error(err))
		}
	}
	return result, nil
}

// RetryAttachment re-attempts every pending attachment recorded for the agent.
func (s *VoiceAgentService) RetryAttachment(ctx context.Context, agentID string) (*RetryAttachmentResult, error) {
	if !s.Available() {
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, voiceUnavailableMessage)
	}
	if s.pending == nil {
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "pending attachment tracking is not configured")
	}
	pending, err := s.pending.ListByAgent(ctx, agentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending attachments")
	}

	result := &RetryAttachmentResult{
		AgentID:  agentID,
		Attached: []models.PendingAttachment{},
		Failed:   []models.PendingAttachment{},
	}
	if len(pending) == 0 {
		result.Success = true
		result.Message = "No pending knowledge base documents to attach"
		return result, nil
	}

	for _, p := range pending {
		if err := s.attach(ctx, agentID, p.DocumentID, p.DocumentName, nil); err != nil {
			p.LastError = err.Error()
			if saveErr := s.pending.Save(ctx, p); saveErr != nil {
				s.logger.Warn("could not update pending attachment", zap.String("document_id", p.DocumentID), zap.Error(saveErr))
			}
			result.Failed = append(result.Failed, p)
			continue
		}
		if err := s.pending.Delete(ctx, agentID, p.DocumentName); err != nil {
			s.logger.Debug("could not clear pending attachment", zap.String("name", p.DocumentName), zap.Error(err))
		}
		result.Attached = append(result.Attached, p)
	}

	result.Success = len(result.Failed) == 0
	if result.Success {
		result.Message = fmt.Sprintf("Attached %d knowledge base document(s) to agent %s", len(result.Attached), agentID)
	} else {
		result.Message = fmt.Sprintf("Failed to attach %d knowledge base document(s) to agent %s (ElevenLabs servers may still be down)", len(result.Failed), agentID)
	}
	return result, nil
}

// HandleRAGJob is the queue handler that requests a document's retrieval index.
func (s *VoiceAgentService) HandleRAGJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(RAGIndexPayload)
	if !ok {
		return jobs.Permanent(fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type))
	}
	idx, err := s.client.ComputeRAGIndex(ctx, payload.DocumentID, payload.Model)
	if err != nil {
		if elevenlabs.IsNotFound(err) {
			s.logger.Info("document removed before indexing", zap.String("document_id", payload.DocumentID))
			return nil
		}
		return err
	}
	s.logger.Info("rag index requested",
		zap.String("document_id", payload.DocumentID),
		zap.String("index_id", idx.ID),
		zap.String("status", idx.Status),
	)
	return nil
}

// ListAgents returns the agents visible to the API key.
func (s *VoiceAgentService) ListAgents(ctx context.Context) ([]elevenlabs.Agent, error) {
	if !s.Available() {
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, voiceUnavailableMessage)
	}
	agents, err := s.client.ListAgents(ctx)
	if err != nil {
		return nil, upstreamError(err, "failed to retrieve agents from ElevenLabs")
	}
	return agents, nil
}

// ListDocuments returns every knowledge base document.
func (s *VoiceAgentService) ListDocuments(ctx context.Context) ([]elevenlabs.Document, error) {
	if !s.Available() {
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, voiceUnavailableMessage)
	}
	docs, err := s.client.ListDocuments(ctx, "")
	if err != nil {
		return nil, upstreamError(err, "failed to retrieve knowledge base documents from ElevenLabs")
	}
	return docs, nil
}

// RAGStatus lists the retrieval indexes of every knowledge base document.
func (s *VoiceAgentService) RAGStatus(ctx context.Context) ([]DocumentRAGStatus, error) {
	docs, err := s.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	statuses := make([]DocumentRAGStatus, 0, len(docs))
	for _, doc := range docs {
		status := DocumentRAGStatus{DocumentID: doc.ID, DocumentName: doc.Name, Indexes: []elevenlabs.RAGIndex{}}
		indexes, err := s.client.ListRAGIndexes(ctx, doc.ID)
		if err != nil {
			status.Error = err.Error()
		} else if indexes != nil {
			status.Indexes = indexes
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// AgentConfig summarises the knowledge base attached to an agent.
func (s *VoiceAgentService) AgentConfig(ctx context.Context, agentID string) (*AgentConfigSummary, error) {
	if !s.Available() {
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, voiceUnavailableMessage)
	}
	agent, err := s.client.GetAgent(ctx, agentID)
	if err != nil {
		if elevenlabs.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("Agent %s not found", agentID))
		}
		return nil, upstreamError(err, "failed to retrieve agent configuration")
	}
	kb := agent.KnowledgeBase()
	if kb == nil {
		kb = []elevenlabs.KnowledgeBaseRef{}
	}
	return &AgentConfigSummary{
		AgentID:                agentID,
		AgentName:              agent.Name,
		KnowledgeBaseAttached:  len(kb) > 0,
		KnowledgeBaseDocuments: kb,
		TotalDocuments:         len(kb),
	}, nil
}

func (s *VoiceAgentService) agentExists(ctx context.Context, agentID string) (bool, error) {
	agents, err := s.client.ListAgents(ctx)
	if err != nil {
		return false, err
	}
	for _, a := range agents {
		if a.AgentID == agentID {
			return true, nil
		}
	}
	return false, nil
}

func (s *VoiceAgentService) documentsNamed(ctx context.Context, name string) ([]elevenlabs.Document, error) {
	docs, err := s.client.ListDocuments(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("list knowledge base documents: %w", err)
	}
	matches := make([]elevenlabs.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.Name == name {
			matches = append(matches, doc)
		}
	}
	return matches, nil
}

func (s *VoiceAgentService) dropRAGIndexes(ctx context.Context, documentID string) {
	indexes, err := s.client.ListRAGIndexes(ctx, documentID)
	if err != nil {
		s.logger.Warn("could not list rag indexes", zap.String("document_id", documentID), zap.Error(err))
		return
	}
	for _, idx := range indexes {
		if err := s.client.DeleteRAGIndex(ctx, documentID, idx.ID); err != nil {
			s.logger.Warn("could not delete rag index", zap.String("document_id", documentID), zap.String("index_id", idx.ID), zap.Error(err))
		}
	}
}

func (s *VoiceAgentService) enqueueRAGIndex(documentID string) bool {
	if s.queue == nil {
		return false
	}
	err := s.queue.TryEnqueue(jobs.Job{
		Type:    JobTypeRAGIndex,
		Key:     documentID,
		Payload: RAGIndexPayload{DocumentID: documentID, Model: s.cfg.RAGModel},
	})
	if err != nil {
		s.logger.Warn("rag index job not queued", zap.String("document_id", documentID), zap.Error(err))
		return false
	}
	return true
}

// attach replaces earlier copies of the document on the agent and adds the new one.
// Only upstream 5xx answers are retried.
func (s *VoiceAgentService) attach(ctx context.Context, agentID, documentID, name string, replaced map[string]bool) error {
	err := retry.Do(ctx, retry.Policy{
		Attempts: s.cfg.AttachAttempts,
		Delay:    s.cfg.AttachDelay,
		RetryIf:  elevenlabs.IsServerError,
		Logger:   s.logger,
		Name:     "elevenlabs.attach",
	}, func(ctx context.Context) error {
		agent, err := s.client.GetAgent(ctx, agentID)
		if err != nil {
			s.metrics.ObserveVoiceAttach("error")
			return err
		}
		current := agent.KnowledgeBase()
		next := make([]elevenlabs.KnowledgeBaseRef, 0, len(current)+1)
		for _, ref := range current {
			if ref.Name == name || ref.ID == documentID || replaced[ref.ID] {
				continue
			}
			next = append(next, ref)
		}
		next = append(next, elevenlabs.KnowledgeBaseRef{Type: "text", Name: name, ID: documentID, UsageMode: "auto"})
		if err := s.client.SetAgentKnowledgeBase(ctx, agentID, next); err != nil {
			s.metrics.ObserveVoiceAttach("error")
			return err
		}
		s.metrics.ObserveVoiceAttach("ok")
		return nil
	})
	if err != nil {
		s.logger.Warn("knowledge base attach failed",
			zap.String("agent_id", agentID),
			zap.String("document_id", documentID),
			zap.Error(err),
		)
	}
	return err
}

func upstreamError(err error, message string) error {
	if errors.Is(err, elevenlabs.ErrNotConfigured) {
		return appErrors.Clone(appErrors.ErrServiceUnavailable, voiceUnavailableMessage)
	}
	return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, message)
}
