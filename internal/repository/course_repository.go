package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/mylo-ta-api/internal/models"
)

const courseColumns = `id, title, description, teacher_id, created_at, updated_at`

// CourseRepository handles persistence of courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a course by id. A non-empty teacherID restricts the lookup to that owner.
func (r *CourseRepository) FindByID(ctx context.Context, id, teacherID string) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	args := []interface{}{id}
	if teacherID != "" {
		query += " AND teacher_id = $2"
		args = append(args, teacherID)
	}
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// SearchByTitle returns courses whose title contains term, most recent first.
func (r *CourseRepository) SearchByTitle(ctx context.Context, term, teacherID string, limit int) ([]models.Course, error) {
	builder := psql.Select(courseColumns).From("courses").Where(titleContains("title", term))
	if teacherID != "" {
		builder = builder.Where(squirrel.Eq{"teacher_id": teacherID})
	}
	query, args, err := builder.OrderBy("created_at DESC", "id ASC").Limit(searchLimit(limit)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build course search: %w", err)
	}

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("search courses: %w", err)
	}
	return courses, nil
}

// FindByExactTitle returns the most recent course titled title, ignoring case.
// It returns sql.ErrNoRows when none exists.
func (r *CourseRepository) FindByExactTitle(ctx context.Context, title, teacherID string) (*models.Course, error) {
	builder := psql.Select(courseColumns).From("courses").Where(titleEquals("title", title))
	if teacherID != "" {
		builder = builder.Where(squirrel.Eq{"teacher_id": teacherID})
	}
	query, args, err := builder.OrderBy("created_at DESC", "id ASC").Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build exact course lookup: %w", err)
	}
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find course by title: %w", err)
	}
	return &course, nil
}

// ListByTeacher returns the teacher's courses, most recent first.
func (r *CourseRepository) ListByTeacher(ctx context.Context, teacherID string, limit int) ([]models.Course, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := `SELECT ` + courseColumns + ` FROM courses WHERE teacher_id = $1 ORDER BY created_at DESC, id ASC LIMIT $2`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, teacherID, limit); err != nil {
		return nil, fmt.Errorf("list teacher courses: %w", err)
	}
	return courses, nil
}

// Create persists a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, title, description, teacher_id, created_at, updated_at)
        VALUES (:id, :title, :description, :teacher_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update applies the non-nil fields of patch and bumps updated_at.
func (r *CourseRepository) Update(ctx context.Context, id string, patch models.CoursePatch) error {
	if patch.Title == nil && patch.Description == nil {
		return nil
	}
	builder := psql.Update("courses")
	if patch.Title != nil {
		builder = builder.Set("title", *patch.Title)
	}
	if patch.Description != nil {
		builder = builder.Set("description", *patch.Description)
	}
	query, args, err := builder.Set("updated_at", time.Now().UTC()).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build course update: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
