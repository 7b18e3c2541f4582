package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/mylo-ta-api/internal/models"
)

var fakeEpoch = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

func capRows[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

func sortRecentFirst[T any](rows []T, created func(T) time.Time, id func(T) string) {
	sort.SliceStable(rows, func(i, j int) bool {
		ci, cj := created(rows[i]), created(rows[j])
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return id(rows[i]) < id(rows[j])
	})
}

type memCourses struct {
	rows      []models.Course
	createErr error
	updates   map[string]models.CoursePatch
	seq       int
}

func (m *memCourses) FindByID(ctx context.Context, id, teacherID string) (*models.Course, error) {
	for i := range m.rows {
		if m.rows[i].ID == id && (teacherID == "" || m.rows[i].TeacherID == teacherID) {
			c := m.rows[i]
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memCourses) SearchByTitle(ctx context.Context, term, teacherID string, limit int) ([]models.Course, error) {
	var out []models.Course
	for _, c := range m.rows {
		if strings.Contains(strings.ToLower(c.Title), strings.ToLower(term)) && (teacherID == "" || c.TeacherID == teacherID) {
			out = append(out, c)
		}
	}
	sortRecentFirst(out, func(c models.Course) time.Time { return c.CreatedAt }, func(c models.Course) string { return c.ID })
	return capRows(out, limit), nil
}

func (m *memCourses) FindByExactTitle(ctx context.Context, title, teacherID string) (*models.Course, error) {
	var out []models.Course
	for _, c := range m.rows {
		if strings.EqualFold(c.Title, strings.TrimSpace(title)) && (teacherID == "" || c.TeacherID == teacherID) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, sql.ErrNoRows
	}
	sortRecentFirst(out, func(c models.Course) time.Time { return c.CreatedAt }, func(c models.Course) string { return c.ID })
	return &out[0], nil
}

func (m *memCourses) ListByTeacher(ctx context.Context, teacherID string, limit int) ([]models.Course, error) {
	var out []models.Course
	for _, c := range m.rows {
		if c.TeacherID == teacherID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCourses) Create(ctx context.Context, course *models.Course) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.seq++
	if course.ID == "" {
		course.ID = fmt.Sprintf("new-course-%d", m.seq)
	}
	course.CreatedAt = fakeEpoch.Add(time.Duration(100+m.seq) * time.Hour)
	m.rows = append(m.rows, *course)
	return nil
}

func (m *memCourses) Update(ctx context.Context, id string, patch models.CoursePatch) error {
	if m.updates == nil {
		m.updates = map[string]models.CoursePatch{}
	}
	m.updates[id] = patch
	return nil
}

type memAssignments struct {
	rows      []models.AssignmentDetail
	courses   *memCourses
	created   []models.Assignment
	updates   map[string]models.AssignmentPatch
	deleted   []string
	updateErr map[string]error
	createErr error
	seq       int
}

func (m *memAssignments) detail(a models.Assignment) models.AssignmentDetail {
	d := models.AssignmentDetail{Assignment: a}
	if m.courses != nil {
		for _, c := range m.courses.rows {
			if c.ID == a.CourseID {
				d.CourseTitle = c.Title
				d.TeacherID = c.TeacherID
			}
		}
	}
	return d
}

func (m *memAssignments) FindByID(ctx context.Context, id, teacherID string) (*models.AssignmentDetail, error) {
	for i := range m.rows {
		if m.rows[i].ID == id && (teacherID == "" || m.rows[i].TeacherID == teacherID) {
			a := m.rows[i]
			return &a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memAssignments) SearchByTitle(ctx context.Context, term, teacherID string, limit int) ([]models.AssignmentDetail, error) {
	var out []models.AssignmentDetail
	for _, a := range m.rows {
		if strings.Contains(strings.ToLower(a.Title), strings.ToLower(term)) && (teacherID == "" || a.TeacherID == teacherID) {
			out = append(out, a)
		}
	}
	sortRecentFirst(out, func(a models.AssignmentDetail) time.Time { return a.CreatedAt }, func(a models.AssignmentDetail) string { return a.ID })
	return capRows(out, limit), nil
}

func (m *memAssignments) FindByExactTitle(ctx context.Context, title, teacherID string) (*models.AssignmentDetail, error) {
	var out []models.AssignmentDetail
	for _, a := range m.rows {
		if strings.EqualFold(a.Title, strings.TrimSpace(title)) && (teacherID == "" || a.TeacherID == teacherID) {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return nil, sql.ErrNoRows
	}
	sortRecentFirst(out, func(a models.AssignmentDetail) time.Time { return a.CreatedAt }, func(a models.AssignmentDetail) string { return a.ID })
	return &out[0], nil
}

func (m *memAssignments) ListByCourse(ctx context.Context, courseID string) ([]models.AssignmentDetail, error) {
	var out []models.AssignmentDetail
	for _, a := range m.rows {
		if a.CourseID == courseID {
			out = append(out, a)
		}
	}
	sortRecentFirst(out, func(a models.AssignmentDetail) time.Time { return a.CreatedAt }, func(a models.AssignmentDetail) string { return a.ID })
	return out, nil
}

func (m *memAssignments) CountByTeacher(ctx context.Context, teacherID string) (int, error) {
	total := 0
	for _, a := range m.rows {
		if a.TeacherID == teacherID {
			total++
		}
	}
	return total, nil
}

func (m *memAssignments) Create(ctx context.Context, assignment *models.Assignment) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.seq++
	if assignment.ID == "" {
		assignment.ID = fmt.Sprintf("new-assignment-%d", m.seq)
	}
	m.created = append(m.created, *assignment)
	m.rows = append(m.rows, m.detail(*assignment))
	return nil
}

func (m *memAssignments) Update(ctx context.Context, id string, patch models.AssignmentPatch) error {
	if err := m.updateErr[id]; err != nil {
		return err
	}
	if m.updates == nil {
		m.updates = map[string]models.AssignmentPatch{}
	}
	m.updates[id] = patch
	return nil
}

func (m *memAssignments) Delete(ctx context.Context, id string) error {
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			m.deleted = append(m.deleted, id)
			return nil
		}
	}
	return sql.ErrNoRows
}

type memSubmissionCounts struct {
	byAssignment map[string]int
	byCourse     map[string][]models.SubmissionCount
	err          error
}

func (m *memSubmissionCounts) CountByAssignment(ctx context.Context, assignmentID string) (int, error) {
	return m.byAssignment[assignmentID], m.err
}

func (m *memSubmissionCounts) CountByCourse(ctx context.Context, courseID string) ([]models.SubmissionCount, error) {
	counts, ok := m.byCourse[courseID]
	if !ok {
		return nil, errors.New("course counts not seeded")
	}
	return counts, m.err
}

// actionFixture seeds one teacher with a Machine Learning course and a History course.
type actionFixture struct {
	courses     *memCourses
	assignments *memAssignments
	submissions *memSubmissionCounts
	service     *ActionService
}

const (
	fixtureTeacher = "teacher-1"
	otherTeacher   = "teacher-2"
)

func newActionFixture() *actionFixture {
	courses := &memCourses{rows: []models.Course{
		{ID: "course-ml", Title: "Machine Learning", TeacherID: fixtureTeacher, CreatedAt: fakeEpoch},
		{ID: "course-hist", Title: "History 101", TeacherID: fixtureTeacher, CreatedAt: fakeEpoch.Add(time.Hour)},
		{ID: "course-other", Title: "Chemistry", TeacherID: otherTeacher, CreatedAt: fakeEpoch},
	}}
	assignments := &memAssignments{courses: courses}
	fixture := &actionFixture{
		courses:     courses,
		assignments: assignments,
		submissions: &memSubmissionCounts{byAssignment: map[string]int{}},
	}
	normalizer := NewDateNormalizer(time.UTC, nil)
	normalizer.now = func() time.Time { return normalizerNow }
	fixture.service = NewActionService(courses, assignments, fixture.submissions, normalizer, nil)
	return fixture
}

func (f *actionFixture) addAssignment(id, courseID, title string, created time.Time) {
	f.assignments.rows = append(f.assignments.rows, f.assignments.detail(models.Assignment{
		ID: id, CourseID: courseID, Title: title, TotalPoints: 100, Status: models.AssignmentStatusDraft, CreatedAt: created,
	}))
}
