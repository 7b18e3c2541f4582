package models

// SpecificComment scores one section of a submission.
type SpecificComment struct {
	Section        string  `json:"section"`
	Comment        string  `json:"comment"`
	PointsAwarded  float64 `json:"points_awarded"`
	PointsPossible float64 `json:"points_possible"`
}

// GradingFeedback is the structured written feedback for a submission.
type GradingFeedback struct {
	Overall             string            `json:"overall"`
	Strengths           []string          `json:"strengths"`
	AreasForImprovement []string          `json:"areas_for_improvement"`
	MissingElements     []string          `json:"missing_elements"`
	SpecificComments    []SpecificComment `json:"specific_comments"`
}

// RubricItem scores one rubric criterion.
type RubricItem struct {
	Criteria          string  `json:"criteria"`
	PointsEarned      float64 `json:"points_earned"`
	MaxPoints         float64 `json:"max_points"`
	Justification     string  `json:"justification"`
	FoundInSubmission bool    `json:"found_in_submission"`
	QualityAssessment string  `json:"quality_assessment"`
}

// GradingResult is the validated model verdict.
type GradingResult struct {
	Grade           float64         `json:"grade"`
	MaxPoints       float64         `json:"max_points"`
	Percentage      float64         `json:"percentage"`
	Feedback        GradingFeedback `json:"feedback"`
	RubricBreakdown []RubricItem    `json:"rubric_breakdown"`
	ConfidenceLevel float64         `json:"confidence_level"`
	Recommendations []string        `json:"recommendations"`
}

// GradingOutcome is returned to API callers. Grade, Feedback and DetailedResult are always serialized.
type GradingOutcome struct {
	Success        bool           `json:"success"`
	Grade          float64        `json:"grade"`
	Feedback       string         `json:"feedback"`
	DetailedResult *GradingResult `json:"detailed_result"`
	Error          string         `json:"error,omitempty"`
}

// GradeSubmissionResult reports a persisted grading run.
type GradeSubmissionResult struct {
	SubmissionID string         `json:"submission_id"`
	AssignmentID string         `json:"assignment_id"`
	StudentID    string         `json:"student_id"`
	Source       string         `json:"source"`
	Saved        bool           `json:"saved"`
	Outcome      GradingOutcome `json:"grading_result"`
}
