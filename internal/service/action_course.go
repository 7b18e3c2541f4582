package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/mylo-ta-api/internal/models"
)

func (s *ActionService) createCourse(ctx context.Context, params models.Params, teacherID string) (models.ActionResult, error) {
	title := params.String("title", "course_code", "course_name", "course", "name")
	if title == "" {
		return models.ActionFail("I need a title or course code to create a course."), nil
	}

	course := &models.Course{Title: title, TeacherID: teacherID}
	if description := params.String("description"); description != "" {
		course.Description = &description
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return models.ActionResult{}, err
	}

	return models.ActionOK(fmt.Sprintf("✅ Created course '%s'!", course.Title), map[string]interface{}{
		"course_id":   course.ID,
		"title":       course.Title,
		"description": params.String("description"),
	}), nil
}

func (s *ActionService) updateCourse(ctx context.Context, params models.Params, teacherID string) (models.ActionResult, error) {
	identifier := params.String("course_id", "course_name", "course", "course_code")
	if identifier == "" {
		return models.ActionFail("I need a course name or ID to update it."), nil
	}

	course, err := s.resolver.FindCourse(ctx, identifier, teacherID)
	if err != nil {
		return models.ActionResult{}, err
	}
	if course == nil {
		return models.ActionFail(fmt.Sprintf("I couldn't find course '%s'.", identifier)), nil
	}
	if teacherID != "" && course.TeacherID != teacherID {
		return models.ActionFail(fmt.Sprintf("Course '%s' belongs to another teacher.", course.Title)), nil
	}

	var patch models.CoursePatch
	var changes []string
	if title := params.String("new_title", "title"); title != "" && title != identifier {
		patch.Title = &title
		changes = append(changes, fmt.Sprintf("title to '%s'", title))
	}
	if description := params.String("description", "new_description"); description != "" {
		patch.Description = &description
		changes = append(changes, "description")
	}
	if patch.Empty() {
		return models.ActionFail("I need to know what you want to update about the course."), nil
	}

	if err := s.courses.Update(ctx, course.ID, patch); err != nil {
		return models.ActionResult{}, err
	}

	return models.ActionOK(
		fmt.Sprintf("✅ Updated course '%s' - changed %s!", course.Title, strings.Join(changes, ", ")),
		map[string]interface{}{
			"course_id": course.ID,
			"changes":   changes,
		},
	), nil
}

// findOrCreateCourse returns the caller's course named code, creating it when absent.
func (s *ActionService) findOrCreateCourse(ctx context.Context, reference, teacherID string) (*models.Course, bool, error) {
	if IsUUID(reference) {
		course, err := s.resolver.FindCourse(ctx, reference, teacherID)
		if err != nil || course != nil {
			return course, false, err
		}
	}

	code := strings.ToUpper(strings.TrimSpace(reference))
	course, err := s.resolver.FindCourseExact(ctx, code, teacherID)
	if err != nil {
		return nil, false, err
	}
	if course != nil {
		return course, false, nil
	}

	description := "Course " + code
	course = &models.Course{Title: code, Description: &description, TeacherID: teacherID}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, false, err
	}
	s.logger.Info("course created for new assignment", zap.String("course_id", course.ID), zap.String("title", code))
	return course, true, nil
}
