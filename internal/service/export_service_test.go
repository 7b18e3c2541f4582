package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mylo-ta-api/internal/models"
	appErrors "github.com/noah-isme/mylo-ta-api/pkg/errors"
	"github.com/noah-isme/mylo-ta-api/pkg/export"
)

type gradebookStore struct {
	assignment  *models.AssignmentDetail
	submissions []models.SubmissionDetail
	owner       string
}

func (g *gradebookStore) FindByID(ctx context.Context, id, teacherID string) (*models.AssignmentDetail, error) {
	if g.assignment == nil || g.assignment.ID != id || (teacherID != "" && teacherID != g.owner) {
		return nil, sql.ErrNoRows
	}
	return g.assignment, nil
}

func (g *gradebookStore) ListByAssignment(ctx context.Context, assignmentID string) ([]models.SubmissionDetail, error) {
	return g.submissions, nil
}

type capturingPDF struct {
	title   string
	dataset export.Dataset
}

func (c *capturingPDF) Render(data export.Dataset, title string) ([]byte, error) {
	c.title = title
	c.dataset = data
	return []byte("%PDF-1.4"), nil
}

func newGradebookStore() *gradebookStore {
	graded := fakeEpoch.Add(2 * time.Hour)
	return &gradebookStore{
		owner: fixtureTeacher,
		assignment: &models.AssignmentDetail{
			Assignment:  models.Assignment{ID: "a-1", Title: "Essay #1: Origins", TotalPoints: 30},
			CourseTitle: "History 101",
		},
		submissions: []models.SubmissionDetail{
			{
				Submission: models.Submission{
					ID: "s-1", StudentID: "stu-1", Status: models.SubmissionStatusGraded,
					Grade: ptr(17.0), Feedback: ptr("=good start"), GradedAt: &graded, CreatedAt: fakeEpoch,
				},
				StudentName: "Ada", StudentEmail: "ada@example.com",
			},
			{
				Submission:  models.Submission{ID: "s-2", StudentID: "stu-2", Status: models.SubmissionStatusSubmitted, CreatedAt: fakeEpoch},
				StudentName: "",
			},
		},
	}
}

func TestGradebookCSV(t *testing.T) {
	store := newGradebookStore()
	svc := NewExportService(store, store, nil, nil, nil)
	svc.now = func() time.Time { return fakeEpoch }

	file, err := svc.Gradebook(context.Background(), fixtureTeacher, "a-1", ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, "essay_1_origins_grades_"+fakeEpoch.Format("20060102")+".csv", file.Filename)

	records, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, gradebookHeaders, records[0])
	assert.Equal(t, "Ada", records[1][0])
	assert.Equal(t, "17", records[1][3])
	assert.Equal(t, "56.7", records[1][5])
	assert.Equal(t, "'=good start", records[1][8])
	assert.Equal(t, "stu-2", records[2][0])
	assert.Empty(t, records[2][3])
}

func TestGradebookPDFSummarizes(t *testing.T) {
	store := newGradebookStore()
	pdf := &capturingPDF{}
	svc := NewExportService(store, store, nil, pdf, nil)

	file, err := svc.Gradebook(context.Background(), fixtureTeacher, "a-1", ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.Equal(t, "Gradebook: Essay #1: Origins", pdf.title)
	assert.Contains(t, pdf.dataset.Meta, "Course: History 101")
	assert.Contains(t, pdf.dataset.Meta, "Submissions: 2 (graded 1)")
	assert.Contains(t, pdf.dataset.Meta, "Average grade: 17")
}

func TestGradebookRequiresOwnership(t *testing.T) {
	store := newGradebookStore()
	svc := NewExportService(store, store, nil, nil, nil)

	_, err := svc.Gradebook(context.Background(), otherTeacher, "a-1", ExportFormatCSV)
	require.Error(t, err)
	assert.True(t, appErrors.IsStatus(err, 404))
}

func TestParseExportFormat(t *testing.T) {
	format, err := ParseExportFormat("")
	require.NoError(t, err)
	assert.Equal(t, ExportFormatCSV, format)

	format, err = ParseExportFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, ExportFormatPDF, format)

	_, err = ParseExportFormat("xlsx")
	assert.True(t, appErrors.IsStatus(err, 400))
}
