package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mylo-ta-api/internal/models"
	"github.com/noah-isme/mylo-ta-api/pkg/llm"
)

const (
	intentTemperature    = 0.1
	intentMaxTokens      = 500
	defaultHistoryLimit  = 10
	classifierErrorReply = "I encountered an error processing your request. Please try again."
	clarificationReply   = "I'm not sure I understood that. Could you rephrase it? For example: \"Create an assignment called Essay 1 for CS101 worth 50 points\"."
	unsupportedReply     = "I can't do that yet. I can create, update, publish or delete assignments, manage courses, and count submissions."
)

var (
	quotedNamePattern = regexp.MustCompile(`'([^']{2,120})'`)
	courseCodePattern = regexp.MustCompile(`^(?i)(?:course\s+)?([a-z]{2,5}[\s-]?\d{2,4}[a-z]?)$`)

	pronounReferences = map[string]struct{}{
		"it": {}, "this": {}, "that": {}, "them": {}, "this one": {}, "that one": {},
		"this assignment": {}, "that assignment": {}, "the assignment": {}, "same assignment": {},
		"the same assignment": {}, "the same one": {},
	}
	assignmentRefKeys = []string{"assignment_name", "assignment_id", "assignment", "title"}
)

type llmObserver interface {
	ObserveLLMRequest(purpose, outcome string)
}

type nopLLMObserver struct{}

func (nopLLMObserver) ObserveLLMRequest(string, string) {}

// ClassifyInput is one teacher message with its conversational context.
type ClassifyInput struct {
	Message string
	History []models.ChatMessage
	Context map[string]interface{}
}

// IntentClassifier asks the LLM to map a teacher message to an intent.
type IntentClassifier struct {
	llm          llm.Completer
	dates        *DateNormalizer
	model        string
	historyLimit int
	metrics      llmObserver
	logger       *zap.Logger
}

// NewIntentClassifier constructs the classifier.
func NewIntentClassifier(completer llm.Completer, dates *DateNormalizer, model string, historyLimit int, metrics llmObserver, logger *zap.Logger) *IntentClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dates == nil {
		dates = NewDateNormalizer(time.UTC, logger)
	}
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	if metrics == nil {
		metrics = nopLLMObserver{}
	}
	return &IntentClassifier{
		llm:          completer,
		dates:        dates,
		model:        model,
		historyLimit: historyLimit,
		metrics:      metrics,
		logger:       logger,
	}
}

type rawIntentResult struct {
	Intent     string                 `json:"intent"`
	Parameters map[string]interface{} `json:"parameters"`
	Response   string                 `json:"response"`
	Confidence *float64               `json:"confidence"`
}

// Classify never fails: transport errors yield the error intent and unusable output a clarification.
func (c *IntentClassifier) Classify(ctx context.Context, in ClassifyInput) models.IntentResult {
	history := in.History
	if len(history) > c.historyLimit {
		history = history[len(history)-c.historyLimit:]
	}

	raw, err := c.llm.Complete(ctx, llm.Request{
		Model:       c.model,
		Messages:    c.buildMessages(in.Message, history, in.Context),
		Temperature: intentTemperature,
		MaxTokens:   intentMaxTokens,
		JSON:        true,
	})
	if err != nil {
		c.metrics.ObserveLLMRequest("intent", "error")
		c.logger.Error("intent classification failed", zap.Error(err))
		return models.IntentResult{
			Intent:     models.IntentError,
			Parameters: models.Params{},
			Response:   classifierErrorReply,
			Confidence: 0,
		}
	}

	result, ok := parseIntentResult(raw)
	if !ok {
		c.metrics.ObserveLLMRequest("intent", "unparseable")
		c.logger.Warn("intent response was not valid JSON, using keyword fallback", zap.String("raw", truncate(raw, 300)))
		return c.keywordFallback(in.Message, history)
	}
	c.metrics.ObserveLLMRequest("intent", "ok")

	c.postProcess(&result, history)
	c.logger.Info("message classified",
		zap.String("intent", string(result.Intent)),
		zap.Float64("confidence", result.Confidence),
	)
	return result
}

func (c *IntentClassifier) buildMessages(message string, history []models.ChatMessage, reqCtx map[string]interface{}) []llm.Message {
	today := c.dates.now().In(c.dates.Location())
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: intentSystemPrompt},
		{Role: llm.RoleSystem, Content: fmt.Sprintf("Today is %s, %s.", today.Weekday(), today.Format("2006-01-02"))},
	}
	for _, turn := range history {
		if turn.Message != "" {
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: "Teacher request: " + turn.Message})
		}
		if turn.Response != "" {
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: turn.Response})
		}
	}
	if len(reqCtx) > 0 {
		if encoded, err := json.Marshal(reqCtx); err == nil {
			messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: "Current context: " + string(encoded)})
		}
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: "Teacher request: " + message})
}

func parseIntentResult(raw string) (models.IntentResult, bool) {
	var parsed rawIntentResult
	if err := json.Unmarshal([]byte(llm.StripCodeFence(raw)), &parsed); err != nil || strings.TrimSpace(parsed.Intent) == "" {
		return models.IntentResult{}, false
	}

	result := models.IntentResult{
		Parameters: models.Params(parsed.Parameters),
		Response:   strings.TrimSpace(parsed.Response),
		Confidence: 0.5,
	}
	if result.Parameters == nil {
		result.Parameters = models.Params{}
	}
	if parsed.Confidence != nil {
		result.Confidence = clamp(*parsed.Confidence, 0, 1)
	}

	intent, known := models.ParseIntent(parsed.Intent)
	switch {
	case !known, intent == models.IntentError:
		result.Intent = models.IntentConversation
		result.Parameters = models.Params{}
		if result.Response == "" {
			result.Response = unsupportedReply
		}
	default:
		result.Intent = intent
	}
	return result, true
}

func (c *IntentClassifier) postProcess(result *models.IntentResult, history []models.ChatMessage) {
	params := result.Parameters

	switch result.Intent {
	case models.IntentUpdateAssignment, models.IntentDeleteAssignment, models.IntentUpdateRubric,
		models.IntentPublishAssignment, models.IntentGetSubmissionCount:
		c.resolvePronoun(params, history, assignmentRefKeys)
	case models.IntentGetInfo:
		if strings.EqualFold(params.String("type"), "assignment") {
			c.resolvePronoun(params, history, []string{"name", "id"})
		}
	}

	if result.Intent == models.IntentCreateAssignment || result.Intent == models.IntentUpdateAssignment {
		if raw := params.String("due_date"); raw != "" {
			params["due_date"] = c.dates.Normalize(raw)
		}
	}
}

// resolvePronoun swaps a pronoun identifier for the assignment most recently named in history.
func (c *IntentClassifier) resolvePronoun(params models.Params, history []models.ChatMessage, keys []string) {
	for _, key := range keys {
		value, ok := params[key].(string)
		if !ok {
			continue
		}
		if _, pronoun := pronounReferences[strings.ToLower(strings.TrimSpace(value))]; !pronoun {
			return
		}
		name := lastQuotedName(history)
		if name == "" {
			return
		}
		delete(params, key)
		target := "assignment_name"
		if key == "name" || key == "id" {
			target = "name"
		}
		params[target] = name
		c.logger.Debug("resolved pronoun reference", zap.String("pronoun", value), zap.String("assignment", name))
		return
	}
}

func lastQuotedName(history []models.ChatMessage) string {
	for i := len(history) - 1; i >= 0; i-- {
		for _, text := range []string{history[i].Response, history[i].Message} {
			matches := quotedNamePattern.FindAllStringSubmatch(text, -1)
			if len(matches) > 0 {
				return matches[len(matches)-1][1]
			}
		}
	}
	return ""
}

// keywordFallback handles a course code sent in reply to a "which course" question.
func (c *IntentClassifier) keywordFallback(message string, history []models.ChatMessage) models.IntentResult {
	clarify := models.IntentResult{
		Intent:     models.IntentConversation,
		Parameters: models.Params{},
		Response:   clarificationReply,
		Confidence: 0,
		Fallback:   true,
	}
	if len(history) == 0 {
		return clarify
	}
	last := history[len(history)-1]
	if !strings.Contains(strings.ToLower(last.Response), "which course") {
		return clarify
	}
	m := courseCodePattern.FindStringSubmatch(strings.TrimSpace(message))
	if m == nil {
		return clarify
	}
	title := lastQuotedName(history[len(history)-1:])
	if title == "" {
		return clarify
	}

	course := strings.ToUpper(strings.Join(strings.Fields(m[1]), ""))
	return models.IntentResult{
		Intent:     models.IntentCreateAssignment,
		Parameters: models.Params{"title": title, "course": course},
		Response:   fmt.Sprintf("Creating the assignment '%s' in %s.", title, course),
		Confidence: 0.5,
		Fallback:   true,
	}
}

// GenerateThreadTitle names a conversation from its first exchange. Failures fall back to the first three words.
func (c *IntentClassifier) GenerateThreadTitle(ctx context.Context, firstMessage, firstResponse string) (string, error) {
	fallback := fallbackThreadTitle(firstMessage)
	raw, err := c.llm.Complete(ctx, llm.Request{
		Model: c.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: threadTitlePrompt},
			{Role: llm.RoleUser, Content: fmt.Sprintf("Teacher: %s\nAssistant: %s", truncate(firstMessage, 500), truncate(firstResponse, 500))},
		},
		Temperature: 0.3,
		MaxTokens:   20,
	})
	if err != nil {
		c.metrics.ObserveLLMRequest("thread_title", "error")
		return fallback, err
	}
	c.metrics.ObserveLLMRequest("thread_title", "ok")

	title := strings.Trim(strings.TrimSpace(raw), "\"'“”.")
	if title == "" {
		return fallback, nil
	}
	if words := strings.Fields(title); len(words) > 8 {
		title = strings.Join(words[:8], " ")
	}
	return title, nil
}

func fallbackThreadTitle(message string) string {
	words := strings.Fields(message)
	if len(words) > 3 {
		words = words[:3]
	}
	if len(words) == 0 {
		return "New conversation"
	}
	return strings.Join(words, " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
