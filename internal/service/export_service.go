package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mylo-ta-api/internal/models"
	appErrors "github.com/noah-isme/mylo-ta-api/pkg/errors"
	"github.com/noah-isme/mylo-ta-api/pkg/export"
)

// ExportFormat selects the gradebook rendering.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

var gradebookHeaders = []string{"Student", "Email", "Status", "Grade", "Max Points", "Percentage", "Submitted At", "Graded At", "Feedback"}

type exportAssignmentReader interface {
	FindByID(ctx context.Context, id, teacherID string) (*models.AssignmentDetail, error)
}

type exportSubmissionLister interface {
	ListByAssignment(ctx context.Context, assignmentID string) ([]models.SubmissionDetail, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFile is a rendered gradebook ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders an assignment gradebook as CSV or PDF.
type ExportService struct {
	assignments exportAssignmentReader
	submissions exportSubmissionLister
	csv         csvRenderer
	pdf         pdfRenderer
	logger      *zap.Logger
	now         func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(assignments exportAssignmentReader, submissions exportSubmissionLister, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		assignments: assignments,
		submissions: submissions,
		csv:         csv,
		pdf:         pdf,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ParseExportFormat accepts "csv" or "pdf", defaulting to csv.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ExportFormatCSV:
		return ExportFormatCSV, nil
	case ExportFormatPDF:
		return ExportFormatPDF, nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
}

// Gradebook renders the submissions of an assignment the teacher owns.
func (s *ExportService) Gradebook(ctx context.Context, teacherID, assignmentID string, format ExportFormat) (*ExportFile, error) {
	assignment, err := s.assignments.FindByID(ctx, assignmentID, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	submissions, err := s.submissions.ListByAssignment(ctx, assignment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submissions")
	}

	dataset := s.gradebookDataset(assignment, submissions)
	base := sanitizeFilename(assignment.Title)
	if base == "" {
		base = "assignment"
	}
	stamp := s.now().Format("20060102")

	file := &ExportFile{}
	switch format {
	case ExportFormatPDF:
		file.Data, err = s.pdf.Render(dataset, "Gradebook: "+assignment.Title)
		file.ContentType = "application/pdf"
	default:
		format = ExportFormatCSV
		file.Data, err = s.csv.Render(dataset)
		file.ContentType = "text/csv"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render gradebook")
	}
	file.Filename = fmt.Sprintf("%s_grades_%s.%s", base, stamp, format)

	s.logger.Info("gradebook exported",
		zap.String("assignment_id", assignment.ID),
		zap.String("format", string(format)),
		zap.Int("rows", len(submissions)),
	)
	return file, nil
}

func (s *ExportService) gradebookDataset(assignment *models.AssignmentDetail, submissions []models.SubmissionDetail) export.Dataset {
	rows := make([]map[string]string, 0, len(submissions))
	var graded int
	var total float64
	for _, sub := range submissions {
		row := map[string]string{
			"Student":      sub.StudentName,
			"Email":        sub.StudentEmail,
			"Status":       string(sub.Status),
			"Max Points":   formatPoints(assignment.TotalPoints),
			"Submitted At": sub.CreatedAt.UTC().Format(time.RFC3339),
			"Feedback":     derefString(sub.Feedback),
		}
		if row["Student"] == "" {
			row["Student"] = sub.StudentID
		}
		if sub.Grade != nil {
			graded++
			total += *sub.Grade
			row["Grade"] = formatPoints(*sub.Grade)
			if assignment.TotalPoints > 0 {
				row["Percentage"] = strconv.FormatFloat(roundTo(*sub.Grade/assignment.TotalPoints*100, 1), 'f', 1, 64)
			}
		}
		if sub.GradedAt != nil {
			row["Graded At"] = sub.GradedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, row)
	}

	meta := []string{
		"Course: " + assignment.CourseTitle,
		fmt.Sprintf("Submissions: %d (graded %d)", len(submissions), graded),
	}
	if graded > 0 {
		meta = append(meta, "Average grade: "+formatPoints(roundTo(total/float64(graded), 1)))
	}
	return export.Dataset{Headers: gradebookHeaders, Rows: rows, Meta: meta}
}

func sanitizeFilename(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
