package models

import "time"

// StudentInfo identifies the student a voice context is built for.
type StudentInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AssignmentContext is an assignment joined with one student's submission.
type AssignmentContext struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	DueDate           *time.Time `json:"due_date,omitempty"`
	TotalPoints       float64    `json:"total_points"`
	Status            string     `json:"status"`
	Rubric            string     `json:"rubric,omitempty"`
	HasSubmission     bool       `json:"has_submission"`
	SubmissionStatus  string     `json:"submission_status,omitempty"`
	SubmissionContent string     `json:"submission_content,omitempty"`
	Grade             *float64   `json:"grade,omitempty"`
	Feedback          string     `json:"feedback,omitempty"`
}

// CourseContext is a course with its assignments.
type CourseContext struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Assignments []AssignmentContext `json:"assignments"`
}

// VoiceAgentContext is the per-student snapshot pushed to the voice agent.
type VoiceAgentContext struct {
	Student          StudentInfo   `json:"student"`
	Course           CourseContext `json:"course"`
	ContextUpdatedAt time.Time     `json:"context_updated_at"`
}

// StudentProgress is one enrolled student's view of every course assignment.
type StudentProgress struct {
	Student     StudentInfo         `json:"student"`
	Assignments []AssignmentContext `json:"assignments"`
}

// CourseRosterContext is the all-students snapshot of a course.
type CourseRosterContext struct {
	Course           CourseContext     `json:"course"`
	Students         []StudentProgress `json:"students"`
	ContextUpdatedAt time.Time         `json:"context_updated_at"`
}

// VoicePushResult reports what a knowledge base push achieved.
type VoicePushResult struct {
	DocumentID       string   `json:"document_id,omitempty"`
	DocumentName     string   `json:"document_name"`
	Attached         bool     `json:"attached"`
	RAGIndexQueued   bool     `json:"rag_index_queued"`
	ReplacedDocs     []string `json:"replaced_documents,omitempty"`
	PendingAttach    bool     `json:"pending_attachment"`
	AttachError      string   `json:"attach_error,omitempty"`
	StudentsIncluded int      `json:"students_included,omitempty"`
}

// PendingAttachment records a document that exists but is not yet on the agent.
type PendingAttachment struct {
	AgentID      string    `json:"agent_id"`
	DocumentID   string    `json:"document_id"`
	DocumentName string    `json:"document_name"`
	LastError    string    `json:"last_error"`
	RecordedAt   time.Time `json:"recorded_at"`
}
