package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mylo-ta-api/internal/models"
	"github.com/noah-isme/mylo-ta-api/internal/service"
	appErrors "github.com/noah-isme/mylo-ta-api/pkg/errors"
	"github.com/noah-isme/mylo-ta-api/pkg/response"
)

type gradingService interface {
	GradeSubmission(ctx context.Context, teacherID string, req service.GradeSubmissionRequest) (*models.GradeSubmissionResult, error)
}

type gradebookExporter interface {
	Gradebook(ctx context.Context, teacherID, assignmentID string, format service.ExportFormat) (*service.ExportFile, error)
}

// GradingHandler exposes LLM grading and gradebook downloads.
type GradingHandler struct {
	grading gradingService
	export  gradebookExporter
}

// NewGradingHandler constructs the handler.
func NewGradingHandler(grading gradingService, export gradebookExporter) *GradingHandler {
	return &GradingHandler{grading: grading, export: export}
}

// Grade godoc
// @Summary Grade a submission with the LLM
// @Description Extracts the submission text (inline content or PDF), grades it against the assignment rubric and stores the result.
// @Tags Grading
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.GradeSubmissionRequest true "Submission to grade"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /agent/grade-submission [post]
func (h *GradingHandler) Grade(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req service.GradeSubmissionRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.grading.GradeSubmission(c.Request.Context(), user.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// ExportGradebook godoc
// @Summary Download an assignment gradebook
// @Tags Grading
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /agent/assignments/{id}/grades/export [get]
func (h *GradingHandler) ExportGradebook(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	assignmentID := strings.TrimSpace(c.Param("id"))
	if assignmentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "assignment id is required"))
		return
	}
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.export.Gradebook(c.Request.Context(), user.ID, assignmentID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
