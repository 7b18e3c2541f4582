package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/mylo-ta-api/internal/models"
)

const defaultAssignmentPoints = 100

func parseAssignmentStatus(raw string) (models.AssignmentStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "published", "publish", "live", "visible":
		return models.AssignmentStatusPublished, true
	case "draft", "unpublished", "unpublish", "hidden":
		return models.AssignmentStatusDraft, true
	}
	return "", false
}

func (s *ActionService) createAssignment(ctx context.Context, params models.Params, teacherID string) (models.ActionResult, error) {
	title := params.String("title", "assignment_name", "name")
	if title == "" {
		return models.ActionFail("I need a title for the new assignment."), nil
	}
	courseRef := params.String("course", "course_code", "course_name", "course_id")
	if courseRef == "" {
		return models.ActionResult{
			Success: false,
			Message: fmt.Sprintf("Which course should the assignment '%s' be created in? Please give me the course code.", title),
			Data:    map[string]interface{}{"missing": "course", "title": title},
		}, nil
	}

	points := float64(defaultAssignmentPoints)
	if p, ok := params.Float("points", "total_points"); ok {
		if p <= 0 {
			return models.ActionFail("Assignment points must be greater than zero."), nil
		}
		points = p
	}

	course, created, err := s.findOrCreateCourse(ctx, courseRef, teacherID)
	if err != nil {
		return models.ActionResult{}, err
	}
	if course == nil {
		return models.ActionFail(fmt.Sprintf("I couldn't find or create course '%s'.", courseRef)), nil
	}

	dueDate := s.dates.Resolve("in 7 days")
	if raw := params.String("due_date", "due"); raw != "" {
		dueDate = s.dates.Resolve(raw)
	}

	status := models.AssignmentStatusDraft
	if params.Bool("publish") {
		status = models.AssignmentStatusPublished
	} else if st, ok := parseAssignmentStatus(params.String("status")); ok {
		status = st
	}

	assignment := &models.Assignment{
		CourseID:    course.ID,
		Title:       title,
		DueDate:     &dueDate,
		TotalPoints: points,
		Status:      status,
	}
	if description := params.String("description"); description != "" {
		assignment.Description = &description
	}
	if rubric := params.String("rubric", "rubric_text"); rubric != "" {
		assignment.Rubric = &rubric
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		return models.ActionResult{}, err
	}

	statusMsg := "saved as draft"
	if status == models.AssignmentStatusPublished {
		statusMsg = "published and visible to students"
	}
	return models.ActionOK(
		fmt.Sprintf("✅ Created assignment '%s' for %s worth %s points and %s!", title, course.Title, formatPoints(points), statusMsg),
		map[string]interface{}{
			"assignment_id":  assignment.ID,
			"title":          assignment.Title,
			"course":         course.Title,
			"course_id":      course.ID,
			"course_created": created,
			"points":         points,
			"status":         assignment.Status,
			"due_date":       dueDate.Format(DueDateLayout),
		},
	), nil
}

// buildAssignmentPatch collects the requested changes. Titles are skipped for bulk updates.
func (s *ActionService) buildAssignmentPatch(params models.Params, bulk bool) (models.AssignmentPatch, []string, *models.ActionResult) {
	var patch models.AssignmentPatch
	var changes []string

	if !bulk {
		newTitle := params.String("new_title")
		if newTitle == "" && params.Has("assignment_name", "assignment_id", "assignment") {
			newTitle = params.String("title")
		}
		if newTitle != "" {
			patch.Title = &newTitle
			changes = append(changes, fmt.Sprintf("title to '%s'", newTitle))
		}
	}
	if description := params.String("description"); description != "" {
		patch.Description = &description
		changes = append(changes, "description")
	}
	if points, ok := params.Float("points", "total_points"); ok {
		if points <= 0 {
			fail := models.ActionFail("Assignment points must be greater than zero.")
			return patch, nil, &fail
		}
		patch.TotalPoints = &points
		changes = append(changes, fmt.Sprintf("points to %s", formatPoints(points)))
	}
	if raw := params.String("due_date", "due"); raw != "" {
		due := s.dates.Resolve(raw)
		patch.DueDate = &due
		changes = append(changes, fmt.Sprintf("due date to %s", due.Format(DueDateLayout)))
	}
	if raw := params.String("status"); raw != "" {
		status, ok := parseAssignmentStatus(raw)
		if !ok {
			fail := models.ActionFail(fmt.Sprintf("'%s' is not a valid status. Use draft or published.", raw))
			return patch, nil, &fail
		}
		patch.Status = &status
		changes = append(changes, fmt.Sprintf("status to %s", status))
	}
	return patch, changes, nil
}

func (s *ActionService) updateAssignment(ctx context.Context, params models.Params, teacherID string) (models.ActionResult, error) {
	if params.Bool("apply_to_all") && courseIdentifier(params) != "" {
		return s.bulkUpdateAssignments(ctx, params, teacherID)
	}

	identifier := assignmentIdentifier(params)
	if identifier == "" {
		return models.ActionFail("I need an assignment name or ID to update it."), nil
	}

	patch, changes, fail := s.buildAssignmentPatch(params, false)
	if fail != nil {
		return *fail, nil
	}
	if patch.Empty() {
		return models.ActionFail("I need to know what you want to update about the assignment."), nil
	}

	assignment, fail, err := s.resolveAssignmentForMutation(ctx, identifier, teacherID)
	if err != nil || fail != nil {
		return derefResult(fail), err
	}

	if err := s.assignments.Update(ctx, assignment.ID, patch); err != nil {
		return models.ActionResult{}, err
	}

	return models.ActionOK(
		fmt.Sprintf("✅ Updated assignment '%s' - changed %s!", assignment.Title, strings.Join(changes, ", ")),
		map[string]interface{}{
			"assignment_id": assignment.ID,
			"changes":       changes,
		},
	), nil
}

func (s *ActionService) bulkUpdateAssignments(ctx context.Context, params models.Params, teacherID string) (models.ActionResult, error) {
	courseRef := courseIdentifier(params)
	course, err := s.resolver.FindCourse(ctx, courseRef, teacherID)
	if err != nil {
		return models.ActionResult{}, err
	}
	if course == nil {
		return models.ActionFail(fmt.Sprintf("I couldn't find course '%s'.", courseRef)), nil
	}
	if teacherID != "" && course.TeacherID != teacherID {
		return models.ActionFail(fmt.Sprintf("Course '%s' belongs to another teacher.", course.Title)), nil
	}

	patch, changes, fail := s.buildAssignmentPatch(params, true)
	if fail != nil {
		return *fail, nil
	}
	if patch.Empty() {
		return models.ActionFail("I need to know what you want to change on every assignment."), nil
	}

	assignments, err := s.assignments.ListByCourse(ctx, course.ID)
	if err != nil {
		return models.ActionResult{}, err
	}
	if len(assignments) == 0 {
		return models.ActionFail(fmt.Sprintf("I found course '%s' but it has no assignments yet.", course.Title)), nil
	}

	items := make([]models.BulkItemResult, 0, len(assignments))
	updated := 0
	for _, a := range assignments {
		item := models.BulkItemResult{ID: a.ID, Title: a.Title, Success: true}
		if err := s.assignments.Update(ctx, a.ID, patch); err != nil {
			s.logger.Warn("bulk assignment update failed", zap.String("assignment_id", a.ID), zap.Error(err))
			item.Success = false
			item.Error = "update failed"
		} else {
			updated++
		}
		items = append(items, item)
	}

	data := map[string]interface{}{
		"course_id": course.ID,
		"changes":   changes,
		"results":   items,
		"updated":   updated,
		"failed":    len(items) - updated,
	}
	if updated == len(items) {
		return models.ActionOK(fmt.Sprintf("✅ Updated all %d assignments in '%s' - changed %s!",
			updated, course.Title, strings.Join(changes, ", ")), data), nil
	}
	return models.ActionResult{
		Success: updated > 0,
		Message: fmt.Sprintf("⚠️ Updated %d of %d assignments in '%s'; %d could not be updated.",
			updated, len(items), course.Title, len(items)-updated),
		Data: data,
	}, nil
}

func (s *ActionService) deleteAssignment(ctx context.Context, params models.Params, teacherID string) (models.ActionResult, error) {
	identifier := assignmentIdentifier(params)
	if identifier == "" {
		return models.ActionFail("I need an assignment name or ID to delete it."), nil
	}

	assignment, fail, err := s.resolveAssignmentForMutation(ctx, identifier, teacherID)
	if err != nil || fail != nil {
		return derefResult(fail), err
	}

	if err := s.assignments.Delete(ctx, assignment.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ActionFail(fmt.Sprintf("I couldn't find assignment '%s'.", identifier)), nil
		}
		return models.ActionResult{}, err
	}

	return models.ActionOK(fmt.Sprintf("✅ Deleted assignment '%s'!", assignment.Title), map[string]interface{}{
		"deleted_assignment": assignment.Title,
		"assignment_id":      assignment.ID,
	}), nil
}

func (s *ActionService) updateRubric(ctx context.Context, params models.Params, teacherID string) (models.ActionResult, error) {
	identifier := assignmentIdentifier(params)
	rubric := params.String("rubric_text", "rubric")
	if identifier == "" || rubric == "" {
		return models.ActionFail("I need both an assignment name and the new rubric content."), nil
	}

	assignment, fail, err := s.resolveAssignmentForMutation(ctx, identifier, teacherID)
	if err != nil || fail != nil {
		return derefResult(fail), err
	}

	if err := s.assignments.Update(ctx, assignment.ID, models.AssignmentPatch{Rubric: &rubric}); err != nil {
		return models.ActionResult{}, err
	}

	return models.ActionOK(fmt.Sprintf("✅ Updated rubric for assignment '%s'!", assignment.Title), map[string]interface{}{
		"assignment_id":    assignment.ID,
		"assignment_title": assignment.Title,
		"new_rubric":       rubric,
	}), nil
}

func (s *ActionService) publishAssignment(ctx context.Context, params models.Params, teacherID string) (models.ActionResult, error) {
	identifier := assignmentIdentifier(params)
	if identifier == "" {
		return models.ActionFail("I need an assignment name or ID to publish or unpublish it."), nil
	}

	status := models.AssignmentStatusPublished
	if action := params.String("action"); action != "" {
		parsed, ok := parseAssignmentStatus(action)
		if !ok {
			return models.ActionFail(fmt.Sprintf("I can only publish or unpublish an assignment, not '%s'.", action)), nil
		}
		status = parsed
	}

	assignment, fail, err := s.resolveAssignmentForMutation(ctx, identifier, teacherID)
	if err != nil || fail != nil {
		return derefResult(fail), err
	}

	if err := s.assignments.Update(ctx, assignment.ID, models.AssignmentPatch{Status: &status}); err != nil {
		return models.ActionResult{}, err
	}

	actionMsg := "unpublished and hidden from students"
	if status == models.AssignmentStatusPublished {
		actionMsg = "published and visible to students"
	}
	return models.ActionOK(fmt.Sprintf("✅ Assignment '%s' has been %s!", assignment.Title, actionMsg), map[string]interface{}{
		"assignment_id":    assignment.ID,
		"assignment_title": assignment.Title,
		"new_status":       status,
	}), nil
}

func derefResult(r *models.ActionResult) models.ActionResult {
	if r == nil {
		return models.ActionResult{}
	}
	return *r
}
