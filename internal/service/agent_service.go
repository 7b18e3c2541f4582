package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/mylo-ta-api/internal/dto"
	"github.com/noah-isme/mylo-ta-api/internal/models"
	appErrors "github.com/noah-isme/mylo-ta-api/pkg/errors"
	"github.com/noah-isme/mylo-ta-api/pkg/middleware/requestid"
)

const agentErrorReply = "I encountered an error. Please try again."

type chatHistoryStore interface {
	ListByThread(ctx context.Context, threadID string, limit int) ([]models.ChatMessage, error)
	Create(ctx context.Context, message *models.ChatMessage) error
}

type messageClassifier interface {
	Classify(ctx context.Context, in ClassifyInput) models.IntentResult
	GenerateThreadTitle(ctx context.Context, firstMessage, firstResponse string) (string, error)
}

type actionExecutor interface {
	Execute(ctx context.Context, intent models.Intent, params models.Params, teacherID string) models.ActionResult
}

type intentObserver interface {
	ObserveIntent(intent string, success bool)
}

type nopIntentObserver struct{}

func (nopIntentObserver) ObserveIntent(string, bool) {}

// AgentService turns a teacher message into a classified intent and executes it.
type AgentService struct {
	history      chatHistoryStore
	classifier   messageClassifier
	actions      actionExecutor
	metrics      intentObserver
	historyLimit int
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewAgentService wires the orchestration pipeline. history may be nil to disable thread memory.
func NewAgentService(
	history chatHistoryStore,
	classifier messageClassifier,
	actions actionExecutor,
	metrics intentObserver,
	historyLimit int,
	validate *validator.Validate,
	logger *zap.Logger,
) *AgentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopIntentObserver{}
	}
	if validate == nil {
		validate = validator.New()
	}
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &AgentService{
		history:      history,
		classifier:   classifier,
		actions:      actions,
		metrics:      metrics,
		historyLimit: historyLimit,
		validator:    validate,
		logger:       logger,
	}
}

// Process handles one teacher message. Only invalid payloads produce an error.
func (s *AgentService) Process(ctx context.Context, user models.AuthUser, req dto.AgentRequest) (resp dto.AgentResponse, err error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AgentResponse{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "message is required")
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("agent request panicked",
				zap.Any("panic", r),
				zap.String("user_id", user.ID),
				zap.Stack("stack"),
			)
			s.metrics.ObserveIntent(string(models.IntentError), false)
			resp = dto.AgentResponse{
				Response:    agentErrorReply,
				ActionTaken: string(models.IntentError),
				ThreadID:    req.ThreadID,
				Data:        map[string]interface{}{"error": fmt.Sprint(r)},
			}
			err = nil
		}
	}()

	s.logger.Info("processing agent request",
		zap.String("user_id", user.ID),
		zap.String("thread_id", req.ThreadID),
		zap.String("request_id", requestid.FromContext(ctx)),
	)

	intent := s.classifier.Classify(ctx, ClassifyInput{
		Message: req.Message,
		History: s.loadHistory(ctx, req.ThreadID),
		Context: req.Context,
	})

	switch intent.Intent {
	case models.IntentError:
		resp = dto.AgentResponse{
			Response:    intent.Response,
			ActionTaken: string(models.IntentError),
			Success:     false,
			ThreadID:    req.ThreadID,
			Data:        map[string]interface{}{"intent_analysis": intent},
		}
	case models.IntentConversation:
		resp = dto.AgentResponse{
			Response:    intent.Response,
			ActionTaken: string(models.IntentConversation),
			Success:     true,
			ThreadID:    req.ThreadID,
			Data:        map[string]interface{}{"intent_analysis": intent, "type": "conversational"},
		}
	default:
		s.logger.Info("executing action", zap.String("intent", string(intent.Intent)))
		result := s.actions.Execute(ctx, intent.Intent, intent.Parameters, user.ID)
		reply := result.Message
		if !result.Success {
			reply = "I understood your request but " + result.Message
		}
		resp = dto.AgentResponse{
			Response:    reply,
			ActionTaken: string(intent.Intent),
			Success:     result.Success,
			ThreadID:    req.ThreadID,
			Data:        map[string]interface{}{"intent_analysis": intent, "action_result": result},
		}
	}

	s.metrics.ObserveIntent(string(intent.Intent), resp.Success)
	s.record(ctx, user.ID, req, resp)
	return resp, nil
}

// GenerateThreadTitle names a conversation from its first exchange.
func (s *AgentService) GenerateThreadTitle(ctx context.Context, req dto.ThreadTitleRequest) (dto.ThreadTitleResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ThreadTitleResponse{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Both first_message and first_response are required")
	}
	title, err := s.classifier.GenerateThreadTitle(ctx, req.FirstMessage, req.FirstResponse)
	if err != nil {
		s.logger.Warn("thread title generation failed", zap.Error(err))
		return dto.ThreadTitleResponse{Success: false, Title: title, Error: err.Error()}, nil
	}
	return dto.ThreadTitleResponse{Success: true, Title: title}, nil
}

func (s *AgentService) loadHistory(ctx context.Context, threadID string) []models.ChatMessage {
	if threadID == "" || s.history == nil {
		return nil
	}
	history, err := s.history.ListByThread(ctx, threadID, s.historyLimit)
	if err != nil {
		s.logger.Warn("could not fetch thread history", zap.String("thread_id", threadID), zap.Error(err))
		return nil
	}
	return history
}

func (s *AgentService) record(ctx context.Context, userID string, req dto.AgentRequest, resp dto.AgentResponse) {
	if req.ThreadID == "" || s.history == nil {
		return
	}
	intent := resp.ActionTaken
	msg := &models.ChatMessage{
		ThreadID: req.ThreadID,
		UserID:   userID,
		Message:  req.Message,
		Response: resp.Response,
		Intent:   &intent,
	}
	if err := s.history.Create(ctx, msg); err != nil {
		s.logger.Warn("could not store chat message", zap.String("thread_id", req.ThreadID), zap.Error(err))
	}
}
