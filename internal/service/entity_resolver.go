package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/mylo-ta-api/internal/models"
)

const resolverSearchLimit = 10

var resolverStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "my": {}, "our": {}, "for": {}, "in": {}, "of": {}, "on": {},
	"from": {}, "to": {}, "this": {}, "that": {}, "assignment": {}, "assignments": {},
	"course": {}, "class": {}, "homework": {},
}

type resolverCourseStore interface {
	FindByID(ctx context.Context, id, teacherID string) (*models.Course, error)
	FindByExactTitle(ctx context.Context, title, teacherID string) (*models.Course, error)
	SearchByTitle(ctx context.Context, term, teacherID string, limit int) ([]models.Course, error)
}

type resolverAssignmentStore interface {
	FindByID(ctx context.Context, id, teacherID string) (*models.AssignmentDetail, error)
	FindByExactTitle(ctx context.Context, title, teacherID string) (*models.AssignmentDetail, error)
	SearchByTitle(ctx context.Context, term, teacherID string, limit int) ([]models.AssignmentDetail, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.AssignmentDetail, error)
}

// AssignmentMatch is the resolver's answer for an assignment reference.
type AssignmentMatch struct {
	Assignment *models.AssignmentDetail
	// Candidates holds every row that matched, in tie-break order.
	Candidates []models.AssignmentDetail
	// ViaCourse is set when the identifier only matched a course name.
	ViaCourse bool
	Course    *models.Course
}

// Ambiguous reports whether the course fallback produced more than one assignment.
func (m *AssignmentMatch) Ambiguous() bool {
	return m != nil && m.ViaCourse && len(m.Candidates) > 1
}

// EntityResolver maps free-text references to courses and assignments.
type EntityResolver struct {
	courses     resolverCourseStore
	assignments resolverAssignmentStore
	logger      *zap.Logger
}

// NewEntityResolver constructs the resolver.
func NewEntityResolver(courses resolverCourseStore, assignments resolverAssignmentStore, logger *zap.Logger) *EntityResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntityResolver{courses: courses, assignments: assignments, logger: logger}
}

// IsUUID reports whether s is a canonical hyphenated UUID.
func IsUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// FindCourse returns the best course for identifier, or nil when nothing matches.
func (r *EntityResolver) FindCourse(ctx context.Context, identifier, teacherID string) (*models.Course, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, nil
	}

	if IsUUID(identifier) {
		course, err := r.courses.FindByID(ctx, identifier, teacherID)
		if err == nil {
			return course, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}

	exact, err := r.FindCourseExact(ctx, identifier, teacherID)
	if err != nil || exact != nil {
		return exact, err
	}

	courses, err := r.courses.SearchByTitle(ctx, identifier, teacherID, resolverSearchLimit)
	if err != nil {
		return nil, err
	}
	if len(courses) == 0 {
		return nil, nil
	}
	if len(courses) > 1 {
		r.logger.Info("course reference matched several courses, using most recent",
			zap.String("identifier", identifier),
			zap.Int("matches", len(courses)),
			zap.String("course_id", courses[0].ID),
		)
	}
	return &courses[0], nil
}

// FindCourseExact returns the caller's course whose title equals title ignoring case.
func (r *EntityResolver) FindCourseExact(ctx context.Context, title, teacherID string) (*models.Course, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, nil
	}
	course, err := r.courses.FindByExactTitle(ctx, title, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return course, nil
}

// FindAssignment resolves identifier by id, then title substring, then course name fallback.
// It returns nil when nothing matches.
func (r *EntityResolver) FindAssignment(ctx context.Context, identifier, teacherID string) (*AssignmentMatch, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, nil
	}

	if IsUUID(identifier) {
		assignment, err := r.assignments.FindByID(ctx, identifier, teacherID)
		if err == nil {
			return &AssignmentMatch{Assignment: assignment, Candidates: []models.AssignmentDetail{*assignment}}, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}

	exact, err := r.assignments.FindByExactTitle(ctx, identifier, teacherID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	matches, err := r.assignments.SearchByTitle(ctx, identifier, teacherID, resolverSearchLimit)
	if err != nil {
		return nil, err
	}
	if exact != nil {
		return &AssignmentMatch{Assignment: exact, Candidates: withFirst(*exact, matches)}, nil
	}
	if len(matches) > 0 {
		return &AssignmentMatch{Assignment: &matches[0], Candidates: matches}, nil
	}

	if !strings.Contains(strings.ToLower(identifier), "assignment") {
		return nil, nil
	}
	keywords := CourseKeywords(identifier)
	if keywords == "" {
		return nil, nil
	}

	course, err := r.FindCourse(ctx, keywords, teacherID)
	if err != nil || course == nil {
		return nil, err
	}
	assignments, err := r.assignments.ListByCourse(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return &AssignmentMatch{ViaCourse: true, Course: course}, nil
	}
	if len(assignments) > 1 {
		r.logger.Info("assignment reference resolved through course with several assignments",
			zap.String("identifier", identifier),
			zap.String("course_id", course.ID),
			zap.Int("assignments", len(assignments)),
		)
	}
	return &AssignmentMatch{
		Assignment: &assignments[0],
		Candidates: assignments,
		ViaCourse:  true,
		Course:     course,
	}, nil
}

// withFirst puts chosen at the head of candidates, dropping its other copy.
func withFirst(chosen models.AssignmentDetail, candidates []models.AssignmentDetail) []models.AssignmentDetail {
	out := make([]models.AssignmentDetail, 0, len(candidates)+1)
	out = append(out, chosen)
	for _, c := range candidates {
		if c.ID != chosen.ID {
			out = append(out, c)
		}
	}
	return out
}

// CourseKeywords strips stop words and entity nouns from an assignment reference.
func CourseKeywords(identifier string) string {
	var kept []string
	for _, word := range strings.Fields(strings.ToLower(identifier)) {
		word = strings.Trim(word, ".,!?'\"")
		if _, stop := resolverStopWords[word]; stop || word == "" {
			continue
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, " ")
}
