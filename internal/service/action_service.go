package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mylo-ta-api/internal/models"
)

type actionCourseStore interface {
	resolverCourseStore
	ListByTeacher(ctx context.Context, teacherID string, limit int) ([]models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, id string, patch models.CoursePatch) error
}

type actionAssignmentStore interface {
	resolverAssignmentStore
	CountByTeacher(ctx context.Context, teacherID string) (int, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Update(ctx context.Context, id string, patch models.AssignmentPatch) error
	Delete(ctx context.Context, id string) error
}

type actionSubmissionCounter interface {
	CountByAssignment(ctx context.Context, assignmentID string) (int, error)
	CountByCourse(ctx context.Context, courseID string) ([]models.SubmissionCount, error)
}

// ActionService executes classified teacher intents against the datastore.
type ActionService struct {
	resolver    *EntityResolver
	courses     actionCourseStore
	assignments actionAssignmentStore
	submissions actionSubmissionCounter
	dates       *DateNormalizer
	logger      *zap.Logger
	now         func() time.Time
}

// NewActionService wires the action handlers.
func NewActionService(
	courses actionCourseStore,
	assignments actionAssignmentStore,
	submissions actionSubmissionCounter,
	dates *DateNormalizer,
	logger *zap.Logger,
) *ActionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dates == nil {
		dates = NewDateNormalizer(time.UTC, logger)
	}
	return &ActionService{
		resolver:    NewEntityResolver(courses, assignments, logger),
		courses:     courses,
		assignments: assignments,
		submissions: submissions,
		dates:       dates,
		logger:      logger,
		now:         time.Now,
	}
}

// Resolver exposes the entity resolver used by the handlers.
func (s *ActionService) Resolver() *EntityResolver {
	return s.resolver
}

// Execute dispatches intent to its handler. Panics and datastore errors become failed results.
func (s *ActionService) Execute(ctx context.Context, intent models.Intent, params models.Params, teacherID string) (result models.ActionResult) {
	if params == nil {
		params = models.Params{}
	}
	logger := s.logger.With(zap.String("intent", string(intent)), zap.String("teacher_id", teacherID))

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("action handler panicked", zap.Any("panic", rec), zap.Stack("stack"))
			result = models.ActionFail(fmt.Sprintf("I encountered an error while trying to %s.", intent.Verb()))
		}
	}()

	var err error
	switch intent {
	case models.IntentCreateCourse:
		result, err = s.createCourse(ctx, params, teacherID)
	case models.IntentUpdateCourse:
		result, err = s.updateCourse(ctx, params, teacherID)
	case models.IntentCreateAssignment:
		result, err = s.createAssignment(ctx, params, teacherID)
	case models.IntentUpdateAssignment:
		result, err = s.updateAssignment(ctx, params, teacherID)
	case models.IntentDeleteAssignment:
		result, err = s.deleteAssignment(ctx, params, teacherID)
	case models.IntentUpdateRubric:
		result, err = s.updateRubric(ctx, params, teacherID)
	case models.IntentPublishAssignment:
		result, err = s.publishAssignment(ctx, params, teacherID)
	case models.IntentGetSubmissionCount:
		result, err = s.getSubmissionCount(ctx, params, teacherID)
	case models.IntentGetInfo:
		result, err = s.getInfo(ctx, params, teacherID)
	case models.IntentConversation:
		return models.ActionOK("", nil)
	default:
		return models.ActionFail(fmt.Sprintf("I don't know how to handle '%s' yet.", intent))
	}

	if err != nil {
		logger.Error("action failed", zap.Error(err))
		return models.ActionFail(fmt.Sprintf("I encountered an error while trying to %s.", intent.Verb()))
	}
	if result.Success {
		logger.Info("action completed")
	} else {
		logger.Info("action declined", zap.String("reason", result.Message))
	}
	return result
}

func assignmentIdentifier(params models.Params) string {
	return params.String("assignment_id", "assignment_name", "assignment", "title")
}

func courseIdentifier(params models.Params) string {
	return params.String("course_id", "course_name", "course", "course_code")
}

func formatPoints(points float64) string {
	return strconv.FormatFloat(points, 'f', -1, 64)
}

func quotedTitles(assignments []models.AssignmentDetail) string {
	titles := make([]string, 0, len(assignments))
	for _, a := range assignments {
		titles = append(titles, "'"+a.Title+"'")
	}
	return strings.Join(titles, ", ")
}

func candidateList(assignments []models.AssignmentDetail) []map[string]string {
	out := make([]map[string]string, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, map[string]string{"id": a.ID, "title": a.Title})
	}
	return out
}

// resolveAssignmentForMutation finds a single owned assignment or explains why it cannot.
func (s *ActionService) resolveAssignmentForMutation(ctx context.Context, identifier, teacherID string) (*models.AssignmentDetail, *models.ActionResult, error) {
	match, err := s.resolver.FindAssignment(ctx, identifier, teacherID)
	if err != nil {
		return nil, nil, err
	}
	if fail := unresolvedAssignment(match, identifier); fail != nil {
		return nil, fail, nil
	}
	if match.Ambiguous() {
		fail := models.ActionResult{
			Success: false,
			Message: fmt.Sprintf("I found %d assignments in '%s': %s. Which one did you mean?",
				len(match.Candidates), match.Course.Title, quotedTitles(match.Candidates)),
			Data: map[string]interface{}{
				"course_title": match.Course.Title,
				"candidates":   candidateList(match.Candidates),
			},
		}
		return nil, &fail, nil
	}
	if teacherID != "" && match.Assignment.TeacherID != teacherID {
		fail := models.ActionFail(fmt.Sprintf("Assignment '%s' belongs to a course you don't teach.", match.Assignment.Title))
		return nil, &fail, nil
	}
	return match.Assignment, nil, nil
}

func unresolvedAssignment(match *AssignmentMatch, identifier string) *models.ActionResult {
	if match == nil {
		fail := models.ActionFail(fmt.Sprintf("I couldn't find assignment '%s'.", identifier))
		return &fail
	}
	if match.Assignment == nil {
		fail := models.ActionFail(fmt.Sprintf("I found course '%s' but it has no assignments yet.", match.Course.Title))
		return &fail
	}
	return nil
}
