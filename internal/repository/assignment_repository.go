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

const assignmentColumns = `a.id, a.course_id, a.title, a.description, a.due_date, a.total_points, a.status, a.rubric, a.created_at, a.updated_at`

const assignmentDetailSelect = `SELECT ` + assignmentColumns + `, c.title AS course_title, c.teacher_id
        FROM assignments a
        JOIN courses c ON c.id = a.course_id`

// AssignmentRepository handles persistence of assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// FindByID returns an assignment with its course. A non-empty teacherID restricts to that owner.
func (r *AssignmentRepository) FindByID(ctx context.Context, id, teacherID string) (*models.AssignmentDetail, error) {
	query := assignmentDetailSelect + ` WHERE a.id = $1`
	args := []interface{}{id}
	if teacherID != "" {
		query += " AND c.teacher_id = $2"
		args = append(args, teacherID)
	}
	var detail models.AssignmentDetail
	if err := r.db.GetContext(ctx, &detail, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return &detail, nil
}

// SearchByTitle returns assignments whose title contains term, most recent first.
func (r *AssignmentRepository) SearchByTitle(ctx context.Context, term, teacherID string, limit int) ([]models.AssignmentDetail, error) {
	builder := psql.Select(assignmentColumns, "c.title AS course_title", "c.teacher_id").
		From("assignments a").
		Join("courses c ON c.id = a.course_id").
		Where(titleContains("a.title", term))
	if teacherID != "" {
		builder = builder.Where(squirrel.Eq{"c.teacher_id": teacherID})
	}
	query, args, err := builder.OrderBy("a.created_at DESC", "a.id ASC").Limit(searchLimit(limit)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build assignment search: %w", err)
	}

	var assignments []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, fmt.Errorf("search assignments: %w", err)
	}
	return assignments, nil
}

// FindByExactTitle returns the most recent assignment titled title, ignoring case.
// It returns sql.ErrNoRows when none exists.
func (r *AssignmentRepository) FindByExactTitle(ctx context.Context, title, teacherID string) (*models.AssignmentDetail, error) {
	builder := psql.Select(assignmentColumns, "c.title AS course_title", "c.teacher_id").
		From("assignments a").
		Join("courses c ON c.id = a.course_id").
		Where(titleEquals("a.title", title))
	if teacherID != "" {
		builder = builder.Where(squirrel.Eq{"c.teacher_id": teacherID})
	}
	query, args, err := builder.OrderBy("a.created_at DESC", "a.id ASC").Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build exact assignment lookup: %w", err)
	}
	var detail models.AssignmentDetail
	if err := r.db.GetContext(ctx, &detail, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment by title: %w", err)
	}
	return &detail, nil
}

// ListByCourse returns a course's assignments, most recent first.
func (r *AssignmentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.AssignmentDetail, error) {
	query := assignmentDetailSelect + ` WHERE a.course_id = $1 ORDER BY a.created_at DESC, a.id ASC`
	var assignments []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, query, courseID); err != nil {
		return nil, fmt.Errorf("list course assignments: %w", err)
	}
	return assignments, nil
}

// ListByCourseChronological returns a course's assignments in creation order.
func (r *AssignmentRepository) ListByCourseChronological(ctx context.Context, courseID string) ([]models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments a WHERE a.course_id = $1 ORDER BY a.created_at ASC, a.id ASC`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, courseID); err != nil {
		return nil, fmt.Errorf("list course assignments: %w", err)
	}
	return assignments, nil
}

// CountByTeacher returns how many assignments the teacher owns.
func (r *AssignmentRepository) CountByTeacher(ctx context.Context, teacherID string) (int, error) {
	const query = `SELECT COUNT(*) FROM assignments a JOIN courses c ON c.id = a.course_id WHERE c.teacher_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, teacherID); err != nil {
		return 0, fmt.Errorf("count assignments: %w", err)
	}
	return total, nil
}

// Create persists a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.Status == "" {
		assignment.Status = models.AssignmentStatusDraft
	}
	now := time.Now().UTC()
	assignment.CreatedAt = now
	assignment.UpdatedAt = now
	const query = `INSERT INTO assignments (id, course_id, title, description, due_date, total_points, status, rubric, created_at, updated_at)
        VALUES (:id, :course_id, :title, :description, :due_date, :total_points, :status, :rubric, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// Update applies the non-nil fields of patch and bumps updated_at.
func (r *AssignmentRepository) Update(ctx context.Context, id string, patch models.AssignmentPatch) error {
	builder := psql.Update("assignments")
	changed := false
	set := func(column string, value interface{}) {
		builder = builder.Set(column, value)
		changed = true
	}
	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.TotalPoints != nil {
		set("total_points", *patch.TotalPoints)
	}
	if patch.DueDate != nil {
		set("due_date", *patch.DueDate)
	}
	if patch.Status != nil {
		set("status", *patch.Status)
	}
	if patch.Rubric != nil {
		set("rubric", *patch.Rubric)
	}
	if !changed {
		return nil
	}
	query, args, err := builder.Set("updated_at", time.Now().UTC()).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build assignment update: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete hard-deletes an assignment.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
