package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/mylo-ta-api/internal/models"
)

func (s *ActionService) getSubmissionCount(ctx context.Context, params models.Params, teacherID string) (models.ActionResult, error) {
	identifier := assignmentIdentifier(params)
	if identifier == "" {
		return models.ActionFail("I need an assignment name or ID to count submissions."), nil
	}

	match, err := s.resolver.FindAssignment(ctx, identifier, teacherID)
	if err != nil {
		return models.ActionResult{}, err
	}
	if fail := unresolvedAssignment(match, identifier); fail != nil {
		return *fail, nil
	}

	if match.Ambiguous() {
		counts, err := s.submissions.CountByCourse(ctx, match.Course.ID)
		if err != nil {
			return models.ActionResult{}, err
		}
		lines := make([]string, 0, len(counts))
		for _, c := range counts {
			lines = append(lines, fmt.Sprintf("• %s: %d submission(s)", c.Title, c.Count))
		}
		return models.ActionOK(
			fmt.Sprintf("📚 Found %d assignment(s) in '%s' course. Here's the submission summary:\n%s",
				len(counts), match.Course.Title, strings.Join(lines, "\n")),
			map[string]interface{}{
				"course_title":        match.Course.Title,
				"course_id":           match.Course.ID,
				"assignments_summary": counts,
			},
		), nil
	}

	assignment := match.Assignment
	count, err := s.submissions.CountByAssignment(ctx, assignment.ID)
	if err != nil {
		return models.ActionResult{}, err
	}

	message := fmt.Sprintf("📊 Assignment '%s' has %d submission(s).", assignment.Title, count)
	if match.ViaCourse {
		message = fmt.Sprintf("📊 Found assignment '%s' in '%s' course - %d student(s) have submitted their work.",
			assignment.Title, assignment.CourseTitle, count)
	}
	return models.ActionOK(message, map[string]interface{}{
		"assignment_title":        assignment.Title,
		"assignment_id":           assignment.ID,
		"submission_count":        count,
		"found_via_course_lookup": match.ViaCourse,
	}), nil
}

func (s *ActionService) getInfo(ctx context.Context, params models.Params, teacherID string) (models.ActionResult, error) {
	infoType := strings.ToLower(params.String("type"))
	identifier := params.String("name", "id", "identifier", "title")

	switch {
	case infoType == "course" && identifier != "":
		return s.courseInfo(ctx, identifier, teacherID)
	case infoType == "assignment" && identifier != "":
		return s.assignmentInfo(ctx, identifier, teacherID)
	default:
		return s.generalInfo(ctx, teacherID)
	}
}

func (s *ActionService) courseInfo(ctx context.Context, identifier, teacherID string) (models.ActionResult, error) {
	course, err := s.resolver.FindCourse(ctx, identifier, teacherID)
	if err != nil {
		return models.ActionResult{}, err
	}
	if course == nil {
		return models.ActionFail(fmt.Sprintf("I couldn't find course '%s'.", identifier)), nil
	}
	assignments, err := s.assignments.ListByCourse(ctx, course.ID)
	if err != nil {
		return models.ActionResult{}, err
	}

	summary := make([]map[string]interface{}, 0, len(assignments))
	for _, a := range assignments {
		summary = append(summary, map[string]interface{}{
			"id":           a.ID,
			"title":        a.Title,
			"status":       a.Status,
			"total_points": a.TotalPoints,
		})
	}
	description := ""
	if course.Description != nil {
		description = *course.Description
	}
	return models.ActionOK(fmt.Sprintf("📚 Course '%s' has %d assignment(s).", course.Title, len(assignments)), map[string]interface{}{
		"course_id":        course.ID,
		"course_title":     course.Title,
		"description":      description,
		"assignment_count": len(assignments),
		"assignments":      summary,
	}), nil
}

func (s *ActionService) assignmentInfo(ctx context.Context, identifier, teacherID string) (models.ActionResult, error) {
	match, err := s.resolver.FindAssignment(ctx, identifier, teacherID)
	if err != nil {
		return models.ActionResult{}, err
	}
	if fail := unresolvedAssignment(match, identifier); fail != nil {
		return *fail, nil
	}
	assignment := match.Assignment
	count, err := s.submissions.CountByAssignment(ctx, assignment.ID)
	if err != nil {
		return models.ActionResult{}, err
	}

	data := map[string]interface{}{
		"assignment_id":    assignment.ID,
		"assignment_title": assignment.Title,
		"course_title":     assignment.CourseTitle,
		"total_points":     assignment.TotalPoints,
		"status":           assignment.Status,
		"submission_count": count,
	}
	if assignment.Description != nil {
		data["description"] = *assignment.Description
	}
	if assignment.DueDate != nil {
		data["due_date"] = assignment.DueDate.In(s.dates.Location()).Format(DueDateLayout)
	}
	return models.ActionOK(fmt.Sprintf("📝 Assignment '%s' worth %s points has %d submission(s).",
		assignment.Title, formatPoints(assignment.TotalPoints), count), data), nil
}

func (s *ActionService) generalInfo(ctx context.Context, teacherID string) (models.ActionResult, error) {
	courses, err := s.courses.ListByTeacher(ctx, teacherID, 0)
	if err != nil {
		return models.ActionResult{}, err
	}
	total, err := s.assignments.CountByTeacher(ctx, teacherID)
	if err != nil {
		return models.ActionResult{}, err
	}

	list := make([]map[string]string, 0, len(courses))
	for _, c := range courses {
		list = append(list, map[string]string{"id": c.ID, "title": c.Title})
	}
	return models.ActionOK(fmt.Sprintf("📊 You have %d course(s) and %d assignment(s) total.", len(courses), total), map[string]interface{}{
		"total_courses":     len(courses),
		"total_assignments": total,
		"courses":           list,
	}), nil
}
