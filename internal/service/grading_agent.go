package service

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/mylo-ta-api/internal/models"
	"github.com/noah-isme/mylo-ta-api/pkg/llm"
)

const (
	gradingTemperature      = 0.3
	gradingMaxTokens        = 2000
	defaultGradeConfidence  = 0.8
	fallbackGradeConfidence = 0.6
	defaultOverallFeedback  = "Grade provided without detailed feedback."
	defaultQualityNote      = "Assessment not provided"
	gradingErrorFeedback    = "Sorry, I encountered an error while grading this submission. Please try again or grade manually."
)

var (
	gradeLinePattern = regexp.MustCompile(`(?i)grade|score`)
	numberPattern    = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// GradingInput is the assignment context and extracted text of one submission.
type GradingInput struct {
	Title       string
	Description string
	Rubric      string
	Content     string
	MaxPoints   float64
}

// GradingAgent asks the LLM for a rubric-based verdict and repairs what it returns.
type GradingAgent struct {
	llm              llm.Completer
	model            string
	defaultMaxPoints float64
	metrics          llmObserver
	logger           *zap.Logger
}

// NewGradingAgent constructs the agent.
func NewGradingAgent(completer llm.Completer, model string, defaultMaxPoints float64, metrics llmObserver, logger *zap.Logger) *GradingAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopLLMObserver{}
	}
	if defaultMaxPoints <= 0 {
		defaultMaxPoints = defaultAssignmentPoints
	}
	return &GradingAgent{llm: completer, model: model, defaultMaxPoints: defaultMaxPoints, metrics: metrics, logger: logger}
}

// Grade evaluates a submission. It reports failures in the outcome instead of returning an error.
func (a *GradingAgent) Grade(ctx context.Context, in GradingInput) models.GradingOutcome {
	maxPoints := in.MaxPoints
	if maxPoints <= 0 {
		maxPoints = a.defaultMaxPoints
	}

	raw, err := a.llm.Complete(ctx, llm.Request{
		Model: a.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: gradingSystemPrompt},
			{Role: llm.RoleUser, Content: buildGradingPrompt(in, maxPoints)},
		},
		Temperature: gradingTemperature,
		MaxTokens:   gradingMaxTokens,
		JSON:        true,
	})
	if err != nil {
		a.metrics.ObserveLLMRequest("grading", "error")
		a.logger.Error("grading request failed", zap.String("assignment", in.Title), zap.Error(err))
		return models.GradingOutcome{Success: false, Grade: 0, Feedback: gradingErrorFeedback, Error: err.Error()}
	}

	result, ok := ParseGradingResult(raw, maxPoints)
	if !ok {
		a.metrics.ObserveLLMRequest("grading", "unparseable")
		a.logger.Warn("grading response was not valid JSON, scanning text for a grade")
		result = TextGradingFallback(raw, maxPoints)
	} else {
		a.metrics.ObserveLLMRequest("grading", "ok")
	}

	return models.GradingOutcome{
		Success:        true,
		Grade:          result.Grade,
		Feedback:       result.Feedback.Overall,
		DetailedResult: result,
	}
}

// flexFloat accepts JSON numbers and numeric strings.
type flexFloat struct {
	value float64
	set   bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	var number float64
	if err := json.Unmarshal(data, &number); err == nil {
		f.value, f.set = number, true
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return nil
	}
	if m := numberPattern.FindString(text); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			f.value, f.set = v, true
		}
	}
	return nil
}

type rawGradingResult struct {
	Grade           flexFloat        `json:"grade"`
	Feedback        json.RawMessage  `json:"feedback"`
	RubricBreakdown []rawRubricEntry `json:"rubric_breakdown"`
	ConfidenceLevel flexFloat        `json:"confidence_level"`
	Recommendations []interface{}    `json:"recommendations"`
}

type rawFeedback struct {
	Overall             string          `json:"overall"`
	Strengths           []interface{}   `json:"strengths"`
	AreasForImprovement []interface{}   `json:"areas_for_improvement"`
	MissingElements     []interface{}   `json:"missing_elements"`
	SpecificComments    json.RawMessage `json:"specific_comments"`
}

type rawComment struct {
	Section        string    `json:"section"`
	Comment        string    `json:"comment"`
	PointsAwarded  flexFloat `json:"points_awarded"`
	PointsPossible flexFloat `json:"points_possible"`
}

type rawRubricEntry struct {
	Criteria          string    `json:"criteria"`
	Criterion         string    `json:"criterion"`
	PointsEarned      flexFloat `json:"points_earned"`
	MaxPoints         flexFloat `json:"max_points"`
	PointsPossible    flexFloat `json:"points_possible"`
	Justification     string    `json:"justification"`
	FoundInSubmission *bool     `json:"found_in_submission"`
	QualityAssessment string    `json:"quality_assessment"`
}

// ParseGradingResult decodes and repairs a JSON verdict. ok is false when raw is not a JSON object.
func ParseGradingResult(raw string, maxPoints float64) (*models.GradingResult, bool) {
	var parsed rawGradingResult
	if err := json.Unmarshal([]byte(llm.StripCodeFence(raw)), &parsed); err != nil {
		return nil, false
	}

	result := &models.GradingResult{
		Grade:           parsed.Grade.value,
		MaxPoints:       maxPoints,
		Feedback:        decodeFeedback(parsed.Feedback),
		RubricBreakdown: make([]models.RubricItem, 0, len(parsed.RubricBreakdown)),
		ConfidenceLevel: defaultGradeConfidence,
		Recommendations: stringList(parsed.Recommendations),
	}
	if parsed.ConfidenceLevel.set && parsed.ConfidenceLevel.value >= 0 && parsed.ConfidenceLevel.value <= 1 {
		result.ConfidenceLevel = parsed.ConfidenceLevel.value
	}

	for _, entry := range parsed.RubricBreakdown {
		item := models.RubricItem{
			Criteria:          firstNonEmpty(entry.Criteria, entry.Criterion),
			PointsEarned:      entry.PointsEarned.value,
			MaxPoints:         entry.MaxPoints.value,
			Justification:     entry.Justification,
			FoundInSubmission: true,
			QualityAssessment: entry.QualityAssessment,
		}
		if !entry.MaxPoints.set {
			item.MaxPoints = entry.PointsPossible.value
		}
		if entry.FoundInSubmission != nil {
			item.FoundInSubmission = *entry.FoundInSubmission
		}
		if strings.TrimSpace(item.QualityAssessment) == "" {
			item.QualityAssessment = defaultQualityNote
		}
		result.RubricBreakdown = append(result.RubricBreakdown, item)
	}

	finalizeGrade(result)
	return result, true
}

// TextGradingFallback scans free text for the first grade or score line with a number within range.
func TextGradingFallback(text string, maxPoints float64) *models.GradingResult {
	grade := 0.0
	for _, line := range strings.Split(text, "\n") {
		if !gradeLinePattern.MatchString(line) {
			continue
		}
		m := numberPattern.FindString(line)
		if m == "" {
			continue
		}
		if v, err := strconv.ParseFloat(m, 64); err == nil && v <= maxPoints {
			grade = v
			break
		}
	}

	overall := strings.TrimSpace(text)
	if overall == "" {
		overall = defaultOverallFeedback
	}
	result := &models.GradingResult{
		Grade:           grade,
		MaxPoints:       maxPoints,
		Feedback:        emptyFeedback(overall),
		RubricBreakdown: []models.RubricItem{},
		ConfidenceLevel: fallbackGradeConfidence,
		Recommendations: []string{},
	}
	finalizeGrade(result)
	return result
}

func finalizeGrade(result *models.GradingResult) {
	result.Grade = clamp(result.Grade, 0, result.MaxPoints)
	result.Percentage = roundTo(result.Grade/result.MaxPoints*100, 1)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func emptyFeedback(overall string) models.GradingFeedback {
	return models.GradingFeedback{
		Overall:             overall,
		Strengths:           []string{},
		AreasForImprovement: []string{},
		MissingElements:     []string{},
		SpecificComments:    []models.SpecificComment{},
	}
}

func decodeFeedback(raw json.RawMessage) models.GradingFeedback {
	feedback := emptyFeedback(defaultOverallFeedback)
	if len(raw) == 0 {
		return feedback
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if strings.TrimSpace(text) != "" {
			feedback.Overall = text
		}
		return feedback
	}

	var parsed rawFeedback
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return feedback
	}
	if strings.TrimSpace(parsed.Overall) != "" {
		feedback.Overall = parsed.Overall
	}
	feedback.Strengths = stringList(parsed.Strengths)
	feedback.AreasForImprovement = stringList(parsed.AreasForImprovement)
	feedback.MissingElements = stringList(parsed.MissingElements)
	feedback.SpecificComments = decodeComments(parsed.SpecificComments)
	return feedback
}

func decodeComments(raw json.RawMessage) []models.SpecificComment {
	comments := []models.SpecificComment{}
	if len(raw) == 0 {
		return comments
	}
	var list []rawComment
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, c := range list {
			comments = append(comments, models.SpecificComment{
				Section:        c.Section,
				Comment:        c.Comment,
				PointsAwarded:  c.PointsAwarded.value,
				PointsPossible: c.PointsPossible.value,
			})
		}
		return comments
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil && strings.TrimSpace(text) != "" {
		comments = append(comments, models.SpecificComment{Comment: text})
	}
	return comments
}

func stringList(values []interface{}) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
