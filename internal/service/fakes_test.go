package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-progress-api/internal/models"
	"github.com/noah-isme/course-progress-api/internal/repository"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

// memoryStore backs every repository interface the services consume. The exec
// argument is ignored; transactional behaviour is asserted through sqlmock.
type memoryStore struct {
	mu          sync.Mutex
	seq         int
	courses     map[string]models.Course
	lectures    []models.Lecture
	quizzes     map[string]models.Quiz
	questions   map[string][]models.Question
	enrollments []models.Enrollment
	progress    map[string]models.LectureProgress

	createErr error
	expireErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		courses:   map[string]models.Course{},
		quizzes:   map[string]models.Quiz{},
		questions: map[string][]models.Question{},
		progress:  map[string]models.LectureProgress{},
	}
}

func (m *memoryStore) addCourse(id string, published bool, lectures ...models.Lecture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courses[id] = models.Course{ID: id, Title: "Course " + id, IsPublished: published}
	for _, lecture := range lectures {
		lecture.CourseID = id
		m.lectures = append(m.lectures, lecture)
	}
}

func (m *memoryStore) addEnrollment(e models.Enrollment) *models.Enrollment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		m.seq++
		e.ID = fmt.Sprintf("enr-%d", m.seq)
	}
	m.enrollments = append(m.enrollments, e)
	return &m.enrollments[len(m.enrollments)-1]
}

func (m *memoryStore) enrollment(id string) models.Enrollment {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.enrollments {
		if e.ID == id {
			return e
		}
	}
	return models.Enrollment{}
}

func (m *memoryStore) lectureRow(studentID, lectureID string) (models.LectureProgress, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.progress[studentID+":"+lectureID]
	return row, ok
}

func (m *memoryStore) FindCourse(_ context.Context, id string) (*models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	course, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &course, nil
}

func (m *memoryStore) AdjustEnrollmentCount(_ context.Context, _ sqlx.ExtContext, courseID string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	course, ok := m.courses[courseID]
	if !ok {
		return sql.ErrNoRows
	}
	course.EnrollmentCount += delta
	if course.EnrollmentCount < 0 {
		course.EnrollmentCount = 0
	}
	m.courses[courseID] = course
	return nil
}

func (m *memoryStore) FindLecture(_ context.Context, id string) (*models.Lecture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, lecture := range m.lectures {
		if lecture.ID == id {
			l := lecture
			return &l, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryStore) ListPublishedLectures(_ context.Context, _ sqlx.ExtContext, courseID string) ([]models.Lecture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Lecture
	for _, lecture := range m.lectures {
		if lecture.CourseID == courseID && lecture.IsPublished {
			out = append(out, lecture)
		}
	}
	return out, nil
}

func (m *memoryStore) FindQuiz(_ context.Context, id string) (*models.Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	quiz, ok := m.quizzes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &quiz, nil
}

func (m *memoryStore) ListQuestions(_ context.Context, quizID string) ([]models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Question(nil), m.questions[quizID]...), nil
}

func (m *memoryStore) latest(studentID, courseID string) (*models.Enrollment, error) {
	var matches []models.Enrollment
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			matches = append(matches, e)
		}
	}
	if len(matches) == 0 {
		return nil, sql.ErrNoRows
	}
	sort.SliceStable(matches, func(i, j int) bool {
		li, lj := matches[i].Status.BlocksReenrollment(), matches[j].Status.BlocksReenrollment()
		if li != lj {
			return li
		}
		return matches[i].EnrolledAt.After(matches[j].EnrolledAt)
	})
	e := matches[0]
	return &e, nil
}

func (m *memoryStore) FindByID(_ context.Context, id string) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.enrollments {
		if e.ID == id {
			found := e
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryStore) FindLatest(_ context.Context, _ sqlx.ExtContext, studentID, courseID string) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest(studentID, courseID)
}

func (m *memoryStore) LockLatest(_ context.Context, _ sqlx.ExtContext, studentID, courseID string) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest(studentID, courseID)
}

func (m *memoryStore) ExistsLive(_ context.Context, _ sqlx.ExtContext, studentID, courseID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID && e.Status.BlocksReenrollment() {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) Create(_ context.Context, _ sqlx.ExtContext, enrollment *models.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, e := range m.enrollments {
		if e.StudentID == enrollment.StudentID && e.CourseID == enrollment.CourseID && e.Status.BlocksReenrollment() {
			return &pq.Error{Code: "23505", Constraint: repository.LivePairConstraint}
		}
	}
	m.seq++
	enrollment.ID = fmt.Sprintf("enr-%d", m.seq)
	m.enrollments = append(m.enrollments, *enrollment)
	return nil
}

func (m *memoryStore) UpdateState(_ context.Context, _ sqlx.ExtContext, enrollment *models.Enrollment, from models.EnrollmentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.enrollments {
		if e.ID != enrollment.ID {
			continue
		}
		if e.Status != from {
			return sql.ErrNoRows
		}
		m.enrollments[i] = *enrollment
		return nil
	}
	return sql.ErrNoRows
}

func (m *memoryStore) SetCertificate(_ context.Context, _ sqlx.ExtContext, id, url string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.enrollments {
		if e.ID != id {
			continue
		}
		if e.Status != models.EnrollmentStatusCompleted || e.CertificateURL != nil {
			return sql.ErrNoRows
		}
		stored := url
		m.enrollments[i].CertificateURL = &stored
		m.enrollments[i].UpdatedAt = at
		return nil
	}
	return sql.ErrNoRows
}

func (m *memoryStore) List(_ context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matches []models.Enrollment
	for _, e := range m.enrollments {
		if e.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		matches = append(matches, e)
	}
	start := (filter.Page - 1) * filter.PageSize
	if start >= len(matches) {
		return []models.Enrollment{}, len(matches), nil
	}
	end := start + filter.PageSize
	if end > len(matches) {
		end = len(matches)
	}
	return matches[start:end], len(matches), nil
}

func (m *memoryStore) ListExpiredActive(_ context.Context, now time.Time, limit int) ([]models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Enrollment
	for _, e := range m.enrollments {
		if e.Status == models.EnrollmentStatusActive && e.ExpiresAt != nil && e.ExpiresAt.Before(now) {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memoryStore) Expire(_ context.Context, id string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expireErr != nil {
		return false, m.expireErr
	}
	for i, e := range m.enrollments {
		if e.ID != id {
			continue
		}
		if e.Status != models.EnrollmentStatusActive || e.ExpiresAt == nil || !e.ExpiresAt.Before(now) {
			return false, nil
		}
		m.enrollments[i].Status = models.EnrollmentStatusExpired
		m.enrollments[i].UpdatedAt = now
		return true, nil
	}
	return false, nil
}

func (m *memoryStore) Get(_ context.Context, _ sqlx.ExtContext, studentID, lectureID string) (*models.LectureProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.progress[studentID+":"+lectureID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &row, nil
}

func (m *memoryStore) Upsert(_ context.Context, _ sqlx.ExtContext, row *models.LectureProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := row.StudentID + ":" + row.LectureID
	if existing, ok := m.progress[key]; ok {
		row.ID = existing.ID
	} else if row.ID == "" {
		m.seq++
		row.ID = fmt.Sprintf("lp-%d", m.seq)
	}
	m.progress[key] = *row
	return nil
}

func (m *memoryStore) ListByCourse(_ context.Context, _ sqlx.ExtContext, studentID, courseID string) ([]models.LectureProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LectureProgress
	for _, row := range m.progress {
		if row.StudentID == studentID && row.CourseID == courseID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LectureID < out[j].LectureID })
	return out, nil
}

func (m *memoryStore) ResetForCourse(_ context.Context, _ sqlx.ExtContext, studentID, courseID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key, row := range m.progress {
		if row.StudentID != studentID || row.CourseID != courseID {
			continue
		}
		row.Progress = 0
		row.IsCompleted = false
		row.CompletedAt = nil
		row.LastPosition = 0
		row.UpdatedAt = at
		m.progress[key] = row
		n++
	}
	return n, nil
}

type publisherStub struct {
	mu     sync.Mutex
	events []models.EnrollmentEvent
	err    error
}

func (p *publisherStub) Publish(_ context.Context, event models.EnrollmentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *publisherStub) types() []models.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type schedulerStub struct {
	mu        sync.Mutex
	scheduled []string
}

func (s *schedulerStub) ScheduleIssue(enrollment models.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, enrollment.ID)
	return nil
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
