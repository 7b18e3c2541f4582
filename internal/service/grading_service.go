package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/mylo-ta-api/internal/models"
	appErrors "github.com/noah-isme/mylo-ta-api/pkg/errors"
)

// Text sources reported by GradeSubmission.
const (
	SourceContent = "content"
	SourceFile    = "file"
	SourceURL     = "url"
)

type gradingSubmissionStore interface {
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	SaveGrade(ctx context.Context, id string, grade float64, feedback string, gradedAt time.Time) error
}

type gradingAssignmentReader interface {
	FindByID(ctx context.Context, id, teacherID string) (*models.AssignmentDetail, error)
}

type submissionFileReader interface {
	ReadFile(filename string) ([]byte, error)
}

type pdfTextExtractor interface {
	FromBytes(data []byte) (string, error)
	FromURL(ctx context.Context, fileURL string) (string, error)
}

type submissionGrader interface {
	Grade(ctx context.Context, in GradingInput) models.GradingOutcome
}

// GradeSubmissionRequest selects the submission to grade.
type GradeSubmissionRequest struct {
	SubmissionID string  `json:"submission_id" validate:"required"`
	MaxPoints    float64 `json:"max_points" validate:"omitempty,gt=0"`
	DryRun       bool    `json:"dry_run"`
}

// GradingService runs the grading workflow for one submission.
type GradingService struct {
	submissions gradingSubmissionStore
	assignments gradingAssignmentReader
	files       submissionFileReader
	pdf         pdfTextExtractor
	grader      submissionGrader
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewGradingService wires the workflow. files may be nil when no local storage is configured.
func NewGradingService(
	submissions gradingSubmissionStore,
	assignments gradingAssignmentReader,
	files submissionFileReader,
	pdf pdfTextExtractor,
	grader submissionGrader,
	validate *validator.Validate,
	logger *zap.Logger,
) *GradingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradingService{
		submissions: submissions,
		assignments: assignments,
		files:       files,
		pdf:         pdf,
		grader:      grader,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// GradeSubmission grades a submission of an assignment owned by teacherID and stores the verdict.
func (s *GradingService) GradeSubmission(ctx context.Context, teacherID string, req GradeSubmissionRequest) (*models.GradeSubmissionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grading payload")
	}

	submission, err := s.submissions.FindByID(ctx, req.SubmissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	assignment, err := s.assignments.FindByID(ctx, submission.AssignmentID, "")
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if assignment.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only grade submissions for your own courses")
	}

	text, source, err := s.submissionText(ctx, submission)
	if err != nil {
		return nil, err
	}

	maxPoints := req.MaxPoints
	if maxPoints <= 0 {
		maxPoints = assignment.TotalPoints
	}
	outcome := s.grader.Grade(ctx, GradingInput{
		Title:       assignment.Title,
		Description: derefString(assignment.Description),
		Rubric:      derefString(assignment.Rubric),
		Content:     text,
		MaxPoints:   maxPoints,
	})

	result := &models.GradeSubmissionResult{
		SubmissionID: submission.ID,
		AssignmentID: submission.AssignmentID,
		StudentID:    submission.StudentID,
		Source:       source,
		Outcome:      outcome,
	}
	if !outcome.Success || req.DryRun {
		return result, nil
	}

	if err := s.submissions.SaveGrade(ctx, submission.ID, outcome.Grade, outcome.Feedback, s.now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grade")
	}
	result.Saved = true
	s.logger.Info("submission graded",
		zap.String("submission_id", submission.ID),
		zap.String("source", source),
		zap.Float64("grade", outcome.Grade),
	)
	return result, nil
}

func (s *GradingService) submissionText(ctx context.Context, submission *models.Submission) (string, string, error) {
	if content := strings.TrimSpace(derefString(submission.Content)); content != "" {
		return content, SourceContent, nil
	}

	if path := strings.TrimSpace(derefString(submission.FilePath)); path != "" && s.files != nil {
		data, err := s.files.ReadFile(path)
		if err == nil {
			text, err := s.pdf.FromBytes(data)
			if err != nil {
				return "", "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not extract text from the submitted PDF")
			}
			return text, SourceFile, nil
		}
		s.logger.Warn("submission file unavailable", zap.String("path", path), zap.Error(err))
	}

	if fileURL := strings.TrimSpace(derefString(submission.FileURL)); fileURL != "" {
		text, err := s.pdf.FromURL(ctx, fileURL)
		if err != nil {
			return "", "", appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "could not download the submitted PDF")
		}
		return text, SourceURL, nil
	}

	return "", "", appErrors.Clone(appErrors.ErrValidation, "submission has no gradable content")
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
