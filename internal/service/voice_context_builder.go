package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mylo-ta-api/internal/models"
	appErrors "github.com/noah-isme/mylo-ta-api/pkg/errors"
)

const contextDocumentPrefix = "course_context_"

type voiceStudentReader interface {
	FindStudent(ctx context.Context, id string) (*models.User, error)
}

type voiceCourseReader interface {
	FindByID(ctx context.Context, id, teacherID string) (*models.Course, error)
}

type voiceEnrollmentReader interface {
	IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
	ListStudentsByCourse(ctx context.Context, courseID string) ([]models.User, error)
}

type voiceAssignmentReader interface {
	ListByCourseChronological(ctx context.Context, courseID string) ([]models.Assignment, error)
}

type voiceSubmissionReader interface {
	FindByAssignmentAndStudent(ctx context.Context, assignmentID, studentID string) (*models.Submission, error)
	ListByAssignment(ctx context.Context, assignmentID string) ([]models.SubmissionDetail, error)
}

// VoiceContextBuilder assembles course snapshots for the voice agent knowledge base.
type VoiceContextBuilder struct {
	students    voiceStudentReader
	courses     voiceCourseReader
	enrollments voiceEnrollmentReader
	assignments voiceAssignmentReader
	submissions voiceSubmissionReader
	logger      *zap.Logger
	now         func() time.Time
}

// NewVoiceContextBuilder constructs the builder.
func NewVoiceContextBuilder(
	students voiceStudentReader,
	courses voiceCourseReader,
	enrollments voiceEnrollmentReader,
	assignments voiceAssignmentReader,
	submissions voiceSubmissionReader,
	logger *zap.Logger,
) *VoiceContextBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VoiceContextBuilder{
		students:    students,
		courses:     courses,
		enrollments: enrollments,
		assignments: assignments,
		submissions: submissions,
		logger:      logger,
		now:         time.Now,
	}
}

// StudentDocumentName names the knowledge base document of one student in a course.
func StudentDocumentName(courseID, studentID string) string {
	return contextDocumentPrefix + courseID + "_" + studentID
}

// CourseDocumentName names the all-students knowledge base document of a course.
func CourseDocumentName(courseID string) string {
	return contextDocumentPrefix + courseID + "_all_students"
}

// BuildStudentContext snapshots one enrolled student's assignments, submissions and grades.
func (b *VoiceContextBuilder) BuildStudentContext(ctx context.Context, studentID, courseID string) (*models.VoiceAgentContext, error) {
	student, err := b.students.FindStudent(ctx, studentID)
	if err != nil {
		return nil, notFoundOr(err, "student not found", "failed to load student")
	}
	course, err := b.courses.FindByID(ctx, courseID, "")
	if err != nil {
		return nil, notFoundOr(err, "course not found", "failed to load course")
	}
	enrolled, err := b.enrollments.IsEnrolled(ctx, studentID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Course context not found. Please ensure the student is enrolled in this course.")
	}

	assignments, err := b.assignments.ListByCourseChronological(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}

	items := make([]models.AssignmentContext, 0, len(assignments))
	for _, a := range assignments {
		item := assignmentContext(a)
		submission, err := b.submissions.FindByAssignmentAndStudent(ctx, a.ID, studentID)
		switch {
		case err == nil:
			applySubmission(&item, submission)
		case errors.Is(err, sql.ErrNoRows):
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
		}
		items = append(items, item)
	}

	b.logger.Debug("built student voice context",
		zap.String("student_id", studentID),
		zap.String("course_id", courseID),
		zap.Int("assignments", len(items)),
	)
	return &models.VoiceAgentContext{
		Student:          models.StudentInfo{ID: student.ID, Name: student.FullName, Email: student.Email},
		Course:           courseContext(course, items),
		ContextUpdatedAt: b.now().UTC(),
	}, nil
}

// BuildCourseContext snapshots every enrolled student of a course.
func (b *VoiceContextBuilder) BuildCourseContext(ctx context.Context, courseID string) (*models.CourseRosterContext, error) {
	course, err := b.courses.FindByID(ctx, courseID, "")
	if err != nil {
		return nil, notFoundOr(err, "course not found", "failed to load course")
	}
	students, err := b.enrollments.ListStudentsByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrolled students")
	}
	assignments, err := b.assignments.ListByCourseChronological(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}

	base := make([]models.AssignmentContext, 0, len(assignments))
	byAssignment := make(map[string]map[string]*models.Submission, len(assignments))
	for _, a := range assignments {
		base = append(base, assignmentContext(a))
		rows, err := b.submissions.ListByAssignment(ctx, a.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submissions")
		}
		latest := make(map[string]*models.Submission, len(rows))
		for i := range rows {
			sub := &rows[i].Submission
			if prev, ok := latest[sub.StudentID]; !ok || sub.CreatedAt.After(prev.CreatedAt) {
				latest[sub.StudentID] = sub
			}
		}
		byAssignment[a.ID] = latest
	}

	roster := make([]models.StudentProgress, 0, len(students))
	for _, s := range students {
		progress := models.StudentProgress{
			Student:     models.StudentInfo{ID: s.ID, Name: s.FullName, Email: s.Email},
			Assignments: make([]models.AssignmentContext, 0, len(base)),
		}
		for _, item := range base {
			if sub, ok := byAssignment[item.ID][s.ID]; ok {
				applySubmission(&item, sub)
			}
			progress.Assignments = append(progress.Assignments, item)
		}
		roster = append(roster, progress)
	}

	return &models.CourseRosterContext{
		Course:           courseContext(course, base),
		Students:         roster,
		ContextUpdatedAt: b.now().UTC(),
	}, nil
}

// StudentDocument renders a student snapshot as a knowledge base text document.
func StudentDocument(vc *models.VoiceAgentContext) (string, error) {
	payload, err := json.MarshalIndent(vc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode voice context: %w", err)
	}
	name := vc.Student.Name
	var b strings.Builder
	writeDocumentHeader(&b, vc.ContextUpdatedAt)
	fmt.Fprintf(&b, "Student: %s (%s)\n", name, vc.Student.ID)
	fmt.Fprintf(&b, "Course: %s (%s)\n", vc.Course.Title, vc.Course.ID)
	fmt.Fprintf(&b, "Assignments: %d\n\n", len(vc.Course.Assignments))
	b.WriteString("=== INSTRUCTIONS FOR THE ASSISTANT ===\n")
	fmt.Fprintf(&b, "You are helping %s with %s. This document belongs to %s only.\n", name, vc.Course.Title, name)
	b.WriteString("1. Only discuss this student's own work and progress.\n")
	b.WriteString("2. Explain assignment requirements and rubrics when asked.\n")
	b.WriteString("3. Answer grade and feedback questions from the data below.\n")
	b.WriteString("4. Encourage the student to complete missing assignments before their due dates.\n")
	b.WriteString("5. When the data does not answer a question, suggest contacting the instructor.\n")
	b.WriteString("PRIVACY: never mention other students' work or performance.\n\n")
	b.WriteString("=== CONTEXT DATA (JSON) ===\n")
	b.Write(payload)
	b.WriteString("\n")
	return b.String(), nil
}

// CourseDocument renders an all-students snapshot as a knowledge base text document.
func CourseDocument(rc *models.CourseRosterContext) (string, error) {
	payload, err := json.MarshalIndent(rc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode course roster context: %w", err)
	}
	var b strings.Builder
	writeDocumentHeader(&b, rc.ContextUpdatedAt)
	fmt.Fprintf(&b, "Course: %s (%s)\n", rc.Course.Title, rc.Course.ID)
	fmt.Fprintf(&b, "Enrolled students: %d\n", len(rc.Students))
	fmt.Fprintf(&b, "Assignments: %d\n\n", len(rc.Course.Assignments))
	b.WriteString("=== INSTRUCTIONS FOR THE ASSISTANT ===\n")
	b.WriteString("1. Identify the student you are talking to before discussing any grades or submissions.\n")
	b.WriteString("2. Only share a student's own entry from the students list with that student.\n")
	b.WriteString("3. Explain assignment requirements and rubrics when asked.\n")
	b.WriteString("4. Encourage students to complete missing assignments before their due dates.\n")
	b.WriteString("5. When the data does not answer a question, suggest contacting the instructor.\n")
	b.WriteString("PRIVACY: never reveal one student's work or performance to another student.\n\n")
	b.WriteString("=== CONTEXT DATA (JSON) ===\n")
	b.Write(payload)
	b.WriteString("\n")
	return b.String(), nil
}

func writeDocumentHeader(b *strings.Builder, generated time.Time) {
	b.WriteString("COURSE CONTEXT FOR AI TEACHING ASSISTANT\n")
	fmt.Fprintf(b, "Generated: %s\n\n", generated.UTC().Format(time.RFC3339))
}

func assignmentContext(a models.Assignment) models.AssignmentContext {
	return models.AssignmentContext{
		ID:          a.ID,
		Title:       a.Title,
		Description: derefString(a.Description),
		DueDate:     a.DueDate,
		TotalPoints: a.TotalPoints,
		Status:      string(a.Status),
		Rubric:      derefString(a.Rubric),
	}
}

func applySubmission(item *models.AssignmentContext, s *models.Submission) {
	item.HasSubmission = true
	item.SubmissionStatus = string(s.Status)
	item.SubmissionContent = derefString(s.Content)
	item.Grade = s.Grade
	item.Feedback = derefString(s.Feedback)
}

func courseContext(course *models.Course, assignments []models.AssignmentContext) models.CourseContext {
	return models.CourseContext{
		ID:          course.ID,
		Title:       course.Title,
		Description: derefString(course.Description),
		Assignments: assignments,
	}
}

func notFoundOr(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}
