package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mylo-ta-api/internal/models"
)

var assignmentDetailColumns = []string{"id", "course_id", "title", "description", "due_date", "total_points", "status", "rubric", "created_at", "updated_at", "course_title", "teacher_id"}

func TestAssignmentSearchOrdersMostRecentFirst(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(assignmentDetailColumns).
		AddRow("a2", "c1", "Homework 1 (redo)", nil, nil, 100, "draft", nil, now, now, "CS500", "t1").
		AddRow("a1", "c1", "Homework 1", nil, nil, 100, "published", "Rubric", now.Add(-time.Hour), now, "CS500", "t1")
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE a.title ILIKE $1 ESCAPE '\' AND c.teacher_id = $2 ORDER BY a.created_at DESC, a.id ASC LIMIT 10`)).
		WithArgs("%homework 1%", "t1").
		WillReturnRows(rows)

	got, err := repo.SearchByTitle(context.Background(), "homework 1", "t1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a2", got[0].ID)
	assert.Equal(t, "CS500", got[1].CourseTitle)
	assert.Equal(t, "Rubric", *got[1].Rubric)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentFindByIDScopedToOwner(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.id = $1 AND c.teacher_id = $2")).
		WithArgs("a1", "t2").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "a1", "t2")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentFindByExactTitle(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE lower(a.title) = lower($1) AND c.teacher_id = $2 ORDER BY a.created_at DESC, a.id ASC LIMIT 1`)).
		WithArgs("Homework 1", "t1").
		WillReturnRows(sqlmock.NewRows(assignmentDetailColumns).
			AddRow("a1", "c1", "Homework 1", nil, nil, 100, "published", nil, now, now, "CS500", "t1"))

	got, err := repo.FindByExactTitle(context.Background(), "Homework 1", "t1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentCreateDefaultsDraft(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO assignments")).
		WithArgs(sqlmock.AnyArg(), "c1", "Essay", nil, sqlmock.AnyArg(), 100.0, models.AssignmentStatusDraft, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	due := time.Date(2025, 3, 1, 23, 59, 59, 0, time.UTC)
	a := &models.Assignment{CourseID: "c1", Title: "Essay", TotalPoints: 100, DueDate: &due}
	require.NoError(t, repo.Create(context.Background(), a))
	assert.Equal(t, models.AssignmentStatusDraft, a.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentUpdatePatch(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	points := 50.0
	status := models.AssignmentStatusPublished
	mock.ExpectExec(regexp.QuoteMeta("UPDATE assignments SET total_points = $1, status = $2, updated_at = $3 WHERE id = $4")).
		WithArgs(points, status, sqlmock.AnyArg(), "a1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "a1", models.AssignmentPatch{TotalPoints: &points, Status: &status})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assignments WHERE id = $1")).
		WithArgs("a9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "a9"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentCountByTeacher(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM assignments a JOIN courses c")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	total, err := repo.CountByTeacher(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 7, total)
}
