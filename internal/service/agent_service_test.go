package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mylo-ta-api/internal/dto"
	"github.com/noah-isme/mylo-ta-api/internal/models"
	appErrors "github.com/noah-isme/mylo-ta-api/pkg/errors"
)

type memChatLog struct {
	rows    []models.ChatMessage
	listErr error
	limits  []int
}

func (m *memChatLog) ListByThread(ctx context.Context, threadID string, limit int) ([]models.ChatMessage, error) {
	m.limits = append(m.limits, limit)
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.ChatMessage
	for _, row := range m.rows {
		if row.ThreadID == threadID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memChatLog) Create(ctx context.Context, message *models.ChatMessage) error {
	m.rows = append(m.rows, *message)
	return nil
}

type intentCounter struct {
	seen []string
}

func (c *intentCounter) ObserveIntent(intent string, success bool) {
	outcome := "fail"
	if success {
		outcome = "ok"
	}
	c.seen = append(c.seen, intent+":"+outcome)
}

type panickingExecutor struct{}

func (panickingExecutor) Execute(context.Context, models.Intent, models.Params, string) models.ActionResult {
	panic("boom")
}

var agentTeacher = models.AuthUser{ID: fixtureTeacher, Email: "teacher@example.com", Role: models.RoleTeacher}

func newTestAgent(replies []string, executor actionExecutor, log *memChatLog, metrics intentObserver) (*AgentService, *scriptedCompleter) {
	completer := &scriptedCompleter{replies: replies}
	classifier := newTestClassifier(completer, nil)
	var history chatHistoryStore
	if log != nil {
		history = log
	}
	return NewAgentService(history, classifier, executor, metrics, 10, nil, nil), completer
}

func TestAgentProcessUpdatesMidterm(t *testing.T) {
	f := newActionFixture()
	f.addAssignment("a-mid", "course-ml", "Midterm Exam", fakeEpoch)
	log := &memChatLog{}
	metrics := &intentCounter{}
	agent, _ := newTestAgent([]string{
		`{"intent":"update_assignment","parameters":{"assignment_name":"midterm","due_date":"tomorrow"},"response":"Updating.","confidence":0.9}`,
	}, f.service, log, metrics)

	resp, err := agent.Process(context.Background(), agentTeacher, dto.AgentRequest{
		Message:  "move the midterm to tomorrow",
		ThreadID: "thread-1",
	})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "update_assignment", resp.ActionTaken)
	assert.Equal(t, "✅ Updated assignment 'Midterm Exam' - changed due date to 2025-01-16T23:59:59!", resp.Response)
	assert.Equal(t, "thread-1", resp.ThreadID)
	assert.Contains(t, resp.Data, "intent_analysis")
	assert.Contains(t, resp.Data, "action_result")

	patch := f.assignments.updates["a-mid"]
	require.NotNil(t, patch.DueDate)

	require.Len(t, log.rows, 1)
	assert.Equal(t, fixtureTeacher, log.rows[0].UserID)
	assert.Equal(t, "move the midterm to tomorrow", log.rows[0].Message)
	require.NotNil(t, log.rows[0].Intent)
	assert.Equal(t, "update_assignment", *log.rows[0].Intent)
	assert.Equal(t, []string{"update_assignment:ok"}, metrics.seen)
}

func TestAgentProcessPrefixesFailedAction(t *testing.T) {
	f := newActionFixture()
	agent, _ := newTestAgent([]string{
		`{"intent":"delete_assignment","parameters":{"assignment_name":"final project"},"response":"Deleting.","confidence":0.8}`,
	}, f.service, nil, nil)

	resp, err := agent.Process(context.Background(), agentTeacher, dto.AgentRequest{Message: "delete the final project"})

	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "delete_assignment", resp.ActionTaken)
	assert.Contains(t, resp.Response, "I understood your request but ")
	assert.Empty(t, resp.ThreadID)
}

func TestAgentProcessConversation(t *testing.T) {
	f := newActionFixture()
	agent, _ := newTestAgent([]string{
		`{"intent":"conversation","parameters":{},"response":"Hello there!","confidence":1}`,
	}, f.service, nil, nil)

	resp, err := agent.Process(context.Background(), agentTeacher, dto.AgentRequest{Message: "hi"})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "conversation", resp.ActionTaken)
	assert.Equal(t, "Hello there!", resp.Response)
	assert.Equal(t, "conversational", resp.Data["type"])
	assert.Empty(t, f.assignments.updates)
}

func TestAgentProcessClassifierErrorIsReported(t *testing.T) {
	f := newActionFixture()
	metrics := &intentCounter{}
	agent, completer := newTestAgent(nil, f.service, nil, metrics)
	completer.err = errors.New("upstream down")

	resp, err := agent.Process(context.Background(), agentTeacher, dto.AgentRequest{Message: "create a quiz"})

	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "error", resp.ActionTaken)
	assert.Equal(t, classifierErrorReply, resp.Response)
	assert.Equal(t, []string{"error:fail"}, metrics.seen)
}

func TestAgentProcessUsesThreadHistory(t *testing.T) {
	f := newActionFixture()
	log := &memChatLog{rows: []models.ChatMessage{
		{ThreadID: "thread-9", Message: "earlier question", Response: "earlier answer"},
		{ThreadID: "other", Message: "unrelated", Response: "unrelated"},
	}}
	agent, completer := newTestAgent([]string{
		`{"intent":"conversation","parameters":{},"response":"Sure.","confidence":1}`,
	}, f.service, log, nil)

	_, err := agent.Process(context.Background(), agentTeacher, dto.AgentRequest{Message: "and now?", ThreadID: "thread-9"})

	require.NoError(t, err)
	require.Len(t, completer.requests, 1)
	var sawHistory bool
	for _, msg := range completer.requests[0].Messages {
		if msg.Content == "Teacher request: earlier question" {
			sawHistory = true
		}
		assert.NotEqual(t, "Teacher request: unrelated", msg.Content)
	}
	assert.True(t, sawHistory)
	assert.Equal(t, []int{10}, log.limits)
	assert.Len(t, log.rows, 3)
}

func TestAgentProcessHistoryFailureIsNotFatal(t *testing.T) {
	f := newActionFixture()
	log := &memChatLog{listErr: errors.New("db down")}
	agent, _ := newTestAgent([]string{
		`{"intent":"conversation","parameters":{},"response":"Hi.","confidence":1}`,
	}, f.service, log, nil)

	resp, err := agent.Process(context.Background(), agentTeacher, dto.AgentRequest{Message: "hi", ThreadID: "t"})

	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestAgentProcessRecoversPanics(t *testing.T) {
	agent, _ := newTestAgent([]string{
		`{"intent":"publish_assignment","parameters":{"assignment_name":"quiz"},"response":"Publishing.","confidence":0.9}`,
	}, panickingExecutor{}, nil, nil)

	resp, err := agent.Process(context.Background(), agentTeacher, dto.AgentRequest{Message: "publish the quiz"})

	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "error", resp.ActionTaken)
	assert.Equal(t, agentErrorReply, resp.Response)
}

func TestAgentProcessRejectsEmptyMessage(t *testing.T) {
	agent, _ := newTestAgent(nil, newActionFixture().service, nil, nil)

	_, err := agent.Process(context.Background(), agentTeacher, dto.AgentRequest{})

	require.Error(t, err)
	assert.True(t, appErrors.IsStatus(err, 400))
}

func TestAgentGenerateThreadTitle(t *testing.T) {
	agent, _ := newTestAgent([]string{`"Midterm Due Date Change."`}, newActionFixture().service, nil, nil)

	resp, err := agent.GenerateThreadTitle(context.Background(), dto.ThreadTitleRequest{
		FirstMessage:  "move the midterm to tomorrow",
		FirstResponse: "Done.",
	})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "Midterm Due Date Change", resp.Title)
}

func TestAgentGenerateThreadTitleFallsBack(t *testing.T) {
	agent, completer := newTestAgent(nil, newActionFixture().service, nil, nil)
	completer.err = errors.New("timeout")

	resp, err := agent.GenerateThreadTitle(context.Background(), dto.ThreadTitleRequest{
		FirstMessage:  "create an essay assignment please",
		FirstResponse: "Done.",
	})

	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Title)
	assert.Equal(t, "timeout", resp.Error)
}

func TestAgentGenerateThreadTitleRequiresBoth(t *testing.T) {
	agent, _ := newTestAgent(nil, newActionFixture().service, nil, nil)

	_, err := agent.GenerateThreadTitle(context.Background(), dto.ThreadTitleRequest{FirstMessage: "hi"})

	require.Error(t, err)
	assert.True(t, appErrors.IsStatus(err, 400))
}
