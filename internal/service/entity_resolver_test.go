package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mylo-ta-api/internal/models"
)

func TestIsUUID(t *testing.T) {
	assert.True(t, IsUUID("6f1c2d3e-4b5a-4c6d-8e7f-0a1b2c3d4e5f"))
	assert.False(t, IsUUID("{6f1c2d3e-4b5a-4c6d-8e7f-0a1b2c3d4e5f}"))
	assert.False(t, IsUUID("midterm"))
	assert.False(t, IsUUID("6f1c2d3e4b5a4c6d8e7f0a1b2c3d4e5f"))
}

func TestCourseKeywords(t *testing.T) {
	assert.Equal(t, "machine learning", CourseKeywords("the Machine Learning assignment"))
	assert.Equal(t, "history 101", CourseKeywords("assignment for History 101 course"))
	assert.Equal(t, "", CourseKeywords("the assignment"))
}

func TestFindAssignmentByUUID(t *testing.T) {
	f := newActionFixture()
	id := "6f1c2d3e-4b5a-4c6d-8e7f-0a1b2c3d4e5f"
	f.addAssignment(id, "course-ml", "Homework 1", fakeEpoch)

	match, err := f.service.Resolver().FindAssignment(context.Background(), id, fixtureTeacher)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, id, match.Assignment.ID)
	assert.False(t, match.ViaCourse)
}

func TestFindAssignmentPrefersExactTitle(t *testing.T) {
	f := newActionFixture()
	f.addAssignment("a1", "course-ml", "Midterm Exam Review", fakeEpoch.Add(2*time.Hour))
	f.addAssignment("a2", "course-ml", "Midterm Exam", fakeEpoch)

	match, err := f.service.Resolver().FindAssignment(context.Background(), "midterm exam", fixtureTeacher)
	require.NoError(t, err)
	assert.Equal(t, "a2", match.Assignment.ID)
	assert.Len(t, match.Candidates, 2)

	match, err = f.service.Resolver().FindAssignment(context.Background(), "midterm", fixtureTeacher)
	require.NoError(t, err)
	assert.Equal(t, "a1", match.Assignment.ID, "most recently created wins")
}

func TestFindAssignmentCourseFallbackSingle(t *testing.T) {
	f := newActionFixture()
	f.addAssignment("a1", "course-ml", "Neural Nets Lab", fakeEpoch)

	match, err := f.service.Resolver().FindAssignment(context.Background(), "machine learning assignment", fixtureTeacher)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "a1", match.Assignment.ID)
	assert.True(t, match.ViaCourse)
	assert.False(t, match.Ambiguous())
	assert.Equal(t, "course-ml", match.Course.ID)
}

func TestFindAssignmentCourseFallbackIsDeterministic(t *testing.T) {
	f := newActionFixture()
	f.addAssignment("a-older", "course-ml", "Neural Nets Lab", fakeEpoch)
	f.addAssignment("a-newer", "course-ml", "Regression Quiz", fakeEpoch.Add(time.Hour))
	f.addAssignment("a-tied", "course-ml", "Clustering Quiz", fakeEpoch.Add(time.Hour))

	resolver := f.service.Resolver()
	for i := 0; i < 5; i++ {
		match, err := resolver.FindAssignment(context.Background(), "machine learning assignment", fixtureTeacher)
		require.NoError(t, err)
		assert.Equal(t, "a-newer", match.Assignment.ID)
		assert.True(t, match.Ambiguous())
		assert.Len(t, match.Candidates, 3)
	}
}

func TestFindAssignmentRespectsOwner(t *testing.T) {
	f := newActionFixture()
	f.addAssignment("a-chem", "course-other", "Titration Lab", fakeEpoch)

	match, err := f.service.Resolver().FindAssignment(context.Background(), "Titration Lab", fixtureTeacher)
	require.NoError(t, err)
	assert.Nil(t, match)

	match, err = f.service.Resolver().FindAssignment(context.Background(), "chemistry assignment", fixtureTeacher)
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestFindAssignmentCourseWithoutAssignments(t *testing.T) {
	f := newActionFixture()

	match, err := f.service.Resolver().FindAssignment(context.Background(), "history assignment", fixtureTeacher)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Nil(t, match.Assignment)
	assert.Equal(t, "History 101", match.Course.Title)
}

func TestFindAssignmentExactTitleBeyondSearchLimit(t *testing.T) {
	f := newActionFixture()
	f.addAssignment("quiz-old", "course-ml", "Quiz", fakeEpoch)
	for i := 0; i < resolverSearchLimit+2; i++ {
		f.addAssignment(fmt.Sprintf("quiz-%02d", i), "course-ml", fmt.Sprintf("Quiz %d", i), fakeEpoch.Add(time.Duration(i+1)*time.Hour))
	}

	match, err := f.service.Resolver().FindAssignment(context.Background(), "quiz", fixtureTeacher)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "quiz-old", match.Assignment.ID)
	assert.Equal(t, "quiz-old", match.Candidates[0].ID)
	assert.Len(t, match.Candidates, resolverSearchLimit+1)
}

func TestFindCourseExact(t *testing.T) {
	f := newActionFixture()
	f.courses.rows = append(f.courses.rows, models.Course{ID: "cs5000", Title: "CS5000", TeacherID: fixtureTeacher, CreatedAt: fakeEpoch})

	course, err := f.service.Resolver().FindCourseExact(context.Background(), "CS500", fixtureTeacher)
	require.NoError(t, err)
	assert.Nil(t, course)

	course, err = f.service.Resolver().FindCourseExact(context.Background(), "cs5000", fixtureTeacher)
	require.NoError(t, err)
	require.NotNil(t, course)
	assert.Equal(t, "cs5000", course.ID)
}
