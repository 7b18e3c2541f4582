package models

import "time"

// AssignmentStatus is the publication state of an assignment.
type AssignmentStatus string

const (
	AssignmentStatusDraft     AssignmentStatus = "draft"
	AssignmentStatusPublished AssignmentStatus = "published"
)

// Valid reports whether the status is a known value.
func (s AssignmentStatus) Valid() bool {
	return s == AssignmentStatusDraft || s == AssignmentStatusPublished
}

// Assignment belongs to a course.
type Assignment struct {
	ID          string           `db:"id" json:"id"`
	CourseID    string           `db:"course_id" json:"course_id"`
	Title       string           `db:"title" json:"title"`
	Description *string          `db:"description" json:"description,omitempty"`
	DueDate     *time.Time       `db:"due_date" json:"due_date,omitempty"`
	TotalPoints float64          `db:"total_points" json:"total_points"`
	Status      AssignmentStatus `db:"status" json:"status"`
	Rubric      *string          `db:"rubric" json:"rubric,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// AssignmentDetail joins the owning course.
type AssignmentDetail struct {
	Assignment
	CourseTitle string `db:"course_title" json:"course_title"`
	TeacherID   string `db:"teacher_id" json:"teacher_id"`
}

// AssignmentPatch carries optional assignment updates.
type AssignmentPatch struct {
	Title       *string
	Description *string
	TotalPoints *float64
	DueDate     *time.Time
	Status      *AssignmentStatus
	Rubric      *string
}

// Empty reports whether the patch changes nothing.
func (p AssignmentPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.TotalPoints == nil &&
		p.DueDate == nil && p.Status == nil && p.Rubric == nil
}
