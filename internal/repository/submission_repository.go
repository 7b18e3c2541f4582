package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/mylo-ta-api/internal/models"
)

const submissionColumns = `s.id, s.assignment_id, s.student_id, s.content, s.file_path, s.file_url, s.status, s.grade, s.feedback, s.graded_at, s.created_at, s.updated_at`

// SubmissionRepository handles persistence of submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// FindByID returns a submission by id.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions s WHERE s.id = $1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return &submission, nil
}

// FindByAssignmentAndStudent returns the student's latest submission for an assignment.
func (r *SubmissionRepository) FindByAssignmentAndStudent(ctx context.Context, assignmentID, studentID string) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions s
        WHERE s.assignment_id = $1 AND s.student_id = $2
        ORDER BY s.created_at DESC, s.id ASC LIMIT 1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, assignmentID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student submission: %w", err)
	}
	return &submission, nil
}

// ListByAssignment returns submissions with student identity, ordered by student name.
func (r *SubmissionRepository) ListByAssignment(ctx context.Context, assignmentID string) ([]models.SubmissionDetail, error) {
	query := `SELECT ` + submissionColumns + `, COALESCE(u.full_name, '') AS student_name, COALESCE(u.email, '') AS student_email
        FROM submissions s
        LEFT JOIN users u ON u.id = s.student_id
        WHERE s.assignment_id = $1
        ORDER BY student_name ASC, s.created_at ASC`
	var submissions []models.SubmissionDetail
	if err := r.db.SelectContext(ctx, &submissions, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list assignment submissions: %w", err)
	}
	return submissions, nil
}

// CountByAssignment counts submissions for an assignment.
func (r *SubmissionRepository) CountByAssignment(ctx context.Context, assignmentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM submissions WHERE assignment_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, assignmentID); err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return total, nil
}

// CountByCourse tallies submissions per assignment of a course, most recent assignment first.
func (r *SubmissionRepository) CountByCourse(ctx context.Context, courseID string) ([]models.SubmissionCount, error) {
	const query = `SELECT a.id AS assignment_id, a.title, COUNT(s.id) AS count
        FROM assignments a
        LEFT JOIN submissions s ON s.assignment_id = a.id
        WHERE a.course_id = $1
        GROUP BY a.id, a.title, a.created_at
        ORDER BY a.created_at DESC, a.id ASC`
	var counts []models.SubmissionCount
	if err := r.db.SelectContext(ctx, &counts, query, courseID); err != nil {
		return nil, fmt.Errorf("count course submissions: %w", err)
	}
	return counts, nil
}

// SaveGrade records a grade and feedback and marks the submission graded.
func (r *SubmissionRepository) SaveGrade(ctx context.Context, id string, grade float64, feedback string, gradedAt time.Time) error {
	const query = `UPDATE submissions SET grade = $2, feedback = $3, status = $4, graded_at = $5, updated_at = $5 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, grade, feedback, models.SubmissionStatusGraded, gradedAt)
	if err != nil {
		return fmt.Errorf("save grade: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
