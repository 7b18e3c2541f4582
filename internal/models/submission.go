package models

import "time"

// SubmissionStatus tracks grading progress.
type SubmissionStatus string

const (
	SubmissionStatusSubmitted SubmissionStatus = "submitted"
	SubmissionStatusGraded    SubmissionStatus = "graded"
)

// Submission references exactly one assignment and one student.
type Submission struct {
	ID           string           `db:"id" json:"id"`
	AssignmentID string           `db:"assignment_id" json:"assignment_id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	Content      *string          `db:"content" json:"content,omitempty"`
	FilePath     *string          `db:"file_path" json:"file_path,omitempty"`
	FileURL      *string          `db:"file_url" json:"file_url,omitempty"`
	Status       SubmissionStatus `db:"status" json:"status"`
	Grade        *float64         `db:"grade" json:"grade,omitempty"`
	Feedback     *string          `db:"feedback" json:"feedback,omitempty"`
	GradedAt     *time.Time       `db:"graded_at" json:"graded_at,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// SubmissionDetail enriches a submission with the student's identity.
type SubmissionDetail struct {
	Submission
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
}

// SubmissionCount is a per-assignment submission tally.
type SubmissionCount struct {
	AssignmentID string `db:"assignment_id" json:"assignment_id"`
	Title        string `db:"title" json:"title"`
	Count        int    `db:"count" json:"count"`
}
