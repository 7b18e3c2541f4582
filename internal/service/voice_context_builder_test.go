package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mylo-ta-api/internal/models"
	appErrors "github.com/noah-isme/mylo-ta-api/pkg/errors"
)

// voiceStore backs every reader the context builder needs.
type voiceStore struct {
	users       []models.User
	courses     memCourses
	enrolled    map[string][]string
	assignments []models.Assignment
	submissions []models.Submission
}

func (v *voiceStore) FindStudent(ctx context.Context, id string) (*models.User, error) {
	for i := range v.users {
		if v.users[i].ID == id && v.users[i].Role == models.RoleStudent {
			u := v.users[i]
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (v *voiceStore) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	for _, id := range v.enrolled[courseID] {
		if id == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (v *voiceStore) ListStudentsByCourse(ctx context.Context, courseID string) ([]models.User, error) {
	var out []models.User
	for _, id := range v.enrolled[courseID] {
		u, err := v.FindStudent(ctx, id)
		if err == nil {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (v *voiceStore) ListByCourseChronological(ctx context.Context, courseID string) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, a := range v.assignments {
		if a.CourseID == courseID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (v *voiceStore) FindByAssignmentAndStudent(ctx context.Context, assignmentID, studentID string) (*models.Submission, error) {
	var latest *models.Submission
	for i := range v.submissions {
		s := v.submissions[i]
		if s.AssignmentID == assignmentID && s.StudentID == studentID && (latest == nil || s.CreatedAt.After(latest.CreatedAt)) {
			latest = &s
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	return latest, nil
}

func (v *voiceStore) ListByAssignment(ctx context.Context, assignmentID string) ([]models.SubmissionDetail, error) {
	var out []models.SubmissionDetail
	for _, s := range v.submissions {
		if s.AssignmentID == assignmentID {
			out = append(out, models.SubmissionDetail{Submission: s})
		}
	}
	return out, nil
}

func newVoiceStore() *voiceStore {
	return &voiceStore{
		users: []models.User{
			{ID: "stu-1", FullName: "Ada Lovelace", Email: "ada@example.com", Role: models.RoleStudent},
			{ID: "stu-2", FullName: "Alan Turing", Email: "alan@example.com", Role: models.RoleStudent},
			{ID: "stu-3", FullName: "Grace Hopper", Email: "grace@example.com", Role: models.RoleStudent},
		},
		courses: memCourses{rows: []models.Course{
			{ID: "course-ml", Title: "Machine Learning", TeacherID: "teacher-1", Description: ptr("Intro to ML")},
		}},
		enrolled: map[string][]string{"course-ml": {"stu-1", "stu-2"}},
		assignments: []models.Assignment{
			{ID: "asg-1", CourseID: "course-ml", Title: "Linear Regression", TotalPoints: 100, Status: models.AssignmentStatusPublished, Rubric: ptr("Derivation 50\nCode 50")},
			{ID: "asg-2", CourseID: "course-ml", Title: "Midterm", TotalPoints: 50, Status: models.AssignmentStatusDraft},
		},
		submissions: []models.Submission{
			{ID: "sub-old", AssignmentID: "asg-1", StudentID: "stu-1", Status: models.SubmissionStatusSubmitted, Content: ptr("draft"), CreatedAt: fakeEpoch},
			{ID: "sub-new", AssignmentID: "asg-1", StudentID: "stu-1", Status: models.SubmissionStatusGraded, Content: ptr("final"), Grade: ptr(88.0), Feedback: ptr("Nice"), CreatedAt: fakeEpoch.Add(time.Hour)},
			{ID: "sub-2", AssignmentID: "asg-2", StudentID: "stu-2", Status: models.SubmissionStatusSubmitted, Content: ptr("answers"), CreatedAt: fakeEpoch},
		},
	}
}

func newTestBuilder(store *voiceStore) *VoiceContextBuilder {
	b := NewVoiceContextBuilder(store, &store.courses, store, store, store, nil)
	b.now = func() time.Time { return fakeEpoch }
	return b
}

func TestBuildStudentContext(t *testing.T) {
	b := newTestBuilder(newVoiceStore())

	vc, err := b.BuildStudentContext(context.Background(), "stu-1", "course-ml")
	require.NoError(t, err)

	assert.Equal(t, "Ada Lovelace", vc.Student.Name)
	assert.Equal(t, "Intro to ML", vc.Course.Description)
	require.Len(t, vc.Course.Assignments, 2)
	first := vc.Course.Assignments[0]
	assert.True(t, first.HasSubmission)
	assert.Equal(t, "final", first.SubmissionContent)
	assert.Equal(t, "graded", first.SubmissionStatus)
	require.NotNil(t, first.Grade)
	assert.Equal(t, 88.0, *first.Grade)
	assert.Equal(t, "Derivation 50\nCode 50", first.Rubric)
	assert.False(t, vc.Course.Assignments[1].HasSubmission)
	assert.Equal(t, fakeEpoch, vc.ContextUpdatedAt)
}

func TestBuildStudentContextRequiresEnrollment(t *testing.T) {
	b := newTestBuilder(newVoiceStore())

	_, err := b.BuildStudentContext(context.Background(), "stu-3", "course-ml")
	assert.True(t, appErrors.IsStatus(err, http.StatusNotFound))

	_, err = b.BuildStudentContext(context.Background(), "missing", "course-ml")
	assert.True(t, appErrors.IsStatus(err, http.StatusNotFound))

	_, err = b.BuildStudentContext(context.Background(), "stu-1", "missing")
	assert.True(t, appErrors.IsStatus(err, http.StatusNotFound))
}

func TestBuildCourseContextCoversEveryStudent(t *testing.T) {
	b := newTestBuilder(newVoiceStore())

	rc, err := b.BuildCourseContext(context.Background(), "course-ml")
	require.NoError(t, err)

	require.Len(t, rc.Students, 2)
	assert.Len(t, rc.Course.Assignments, 2)
	for _, a := range rc.Course.Assignments {
		assert.False(t, a.HasSubmission)
	}
	ada := rc.Students[0]
	assert.Equal(t, "stu-1", ada.Student.ID)
	assert.Equal(t, "final", ada.Assignments[0].SubmissionContent)
	assert.False(t, ada.Assignments[1].HasSubmission)
	alan := rc.Students[1]
	assert.False(t, alan.Assignments[0].HasSubmission)
	assert.Equal(t, "answers", alan.Assignments[1].SubmissionContent)
}

func TestStudentDocumentEmbedsJSON(t *testing.T) {
	b := newTestBuilder(newVoiceStore())
	vc, err := b.BuildStudentContext(context.Background(), "stu-1", "course-ml")
	require.NoError(t, err)

	doc, err := StudentDocument(vc)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(doc, "COURSE CONTEXT FOR AI TEACHING ASSISTANT\n"))
	assert.Contains(t, doc, "This document belongs to Ada Lovelace only.")
	idx := strings.Index(doc, "=== CONTEXT DATA (JSON) ===\n")
	require.Positive(t, idx)
	var decoded models.VoiceAgentContext
	require.NoError(t, json.Unmarshal([]byte(doc[idx+len("=== CONTEXT DATA (JSON) ===\n"):]), &decoded))
	assert.Equal(t, "course-ml", decoded.Course.ID)
	assert.Equal(t, "course_context_course-ml_stu-1", StudentDocumentName("course-ml", "stu-1"))
}

func TestCourseDocumentSummarisesRoster(t *testing.T) {
	b := newTestBuilder(newVoiceStore())
	rc, err := b.BuildCourseContext(context.Background(), "course-ml")
	require.NoError(t, err)

	doc, err := CourseDocument(rc)
	require.NoError(t, err)

	assert.Contains(t, doc, "Enrolled students: 2\n")
	assert.Contains(t, doc, `"Alan Turing"`)
	assert.Equal(t, "course_context_course-ml_all_students", CourseDocumentName("course-ml"))
}
