package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-progress-api/internal/dto"
	"github.com/noah-isme/course-progress-api/internal/models"
	"github.com/noah-isme/course-progress-api/internal/repository"
	appErrors "github.com/noah-isme/course-progress-api/pkg/errors"
)

var progressNow = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type progressFixture struct {
	svc        *ProgressService
	store      *memoryStore
	mock       sqlmock.Sqlmock
	publisher  *publisherStub
	scheduler  *schedulerStub
	enrollment *models.Enrollment
}

func newProgressFixture(t *testing.T, cache *CacheService) *progressFixture {
	t.Helper()
	store := newMemoryStore()
	store.addCourse("course-1", true,
		models.Lecture{ID: "lec-1", Position: 1, IsPublished: true},
		models.Lecture{ID: "lec-2", Position: 2, IsPublished: true},
		models.Lecture{ID: "lec-draft", Position: 3, IsPublished: false},
	)
	enrollment := store.addEnrollment(models.Enrollment{
		StudentID:  "stu-1",
		CourseID:   "course-1",
		Status:     models.EnrollmentStatusActive,
		EnrolledAt: progressNow.Add(-time.Hour),
	})
	tx, mock := newTxProviderMock(t)
	publisher := &publisherStub{}
	scheduler := &schedulerStub{}
	svc := NewProgressService(ProgressServiceDeps{
		Catalog:      store,
		Enrollments:  store,
		Progress:     store,
		Tx:           tx,
		Cache:        cache,
		Publisher:    publisher,
		Certificates: scheduler,
		Metrics:      NewMetricsService(),
	})
	svc.now = fixedClock(progressNow)
	return &progressFixture{svc: svc, store: store, mock: mock, publisher: publisher, scheduler: scheduler, enrollment: enrollment}
}

func (f *progressFixture) track(t *testing.T, lectureID string, progress int) *models.LectureProgress {
	t.Helper()
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	row, err := f.svc.TrackLectureProgress(context.Background(), "stu-1", lectureID, dto.TrackProgressRequest{Progress: intPtr(progress)})
	require.NoError(t, err)
	return row
}

func TestTrackLectureProgressAggregatesIntoEnrollment(t *testing.T) {
	f := newProgressFixture(t, nil)

	f.track(t, "lec-1", 100)
	assert.Equal(t, 50, f.store.enrollment(f.enrollment.ID).Progress)

	row := f.track(t, "lec-2", 50)
	assert.Equal(t, 50, row.Progress)
	assert.False(t, row.IsCompleted)

	enrollment := f.store.enrollment(f.enrollment.ID)
	assert.Equal(t, 75, enrollment.Progress)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.Empty(t, f.publisher.types())
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestTrackLectureProgressCompletesEnrollmentAtHundred(t *testing.T) {
	f := newProgressFixture(t, nil)
	f.track(t, "lec-1", 100)
	f.track(t, "lec-2", 50)

	row := f.track(t, "lec-2", 100)
	assert.True(t, row.IsCompleted)

	enrollment := f.store.enrollment(f.enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusCompleted, enrollment.Status)
	assert.Equal(t, 100, enrollment.Progress)
	require.NotNil(t, enrollment.CompletedAt)
	assert.Equal(t, progressNow, *enrollment.CompletedAt)
	assert.Equal(t, []models.EventType{models.EventEnrollmentCompleted}, f.publisher.types())
	assert.Equal(t, []string{f.enrollment.ID}, f.scheduler.scheduled)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestTrackLectureProgressWithoutEnrollmentIsForbidden(t *testing.T) {
	f := newProgressFixture(t, nil)
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.TrackLectureProgress(context.Background(), "stu-2", "lec-1", dto.TrackProgressRequest{Progress: intPtr(40)})
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	_, exists := f.store.lectureRow("stu-2", "lec-1")
	assert.False(t, exists)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestTrackLectureProgressRejectsTerminalEnrollment(t *testing.T) {
	f := newProgressFixture(t, nil)
	f.store.mu.Lock()
	f.store.enrollments[0].Status = models.EnrollmentStatusCancelled
	f.store.mu.Unlock()
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.TrackLectureProgress(context.Background(), "stu-1", "lec-1", dto.TrackProgressRequest{Progress: intPtr(40)})
	require.ErrorIs(t, err, appErrors.ErrForbidden)
	_, exists := f.store.lectureRow("stu-1", "lec-1")
	assert.False(t, exists)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestTrackLectureProgressValidatesInput(t *testing.T) {
	f := newProgressFixture(t, nil)

	_, err := f.svc.TrackLectureProgress(context.Background(), "stu-1", "lec-1", dto.TrackProgressRequest{})
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.TrackLectureProgress(context.Background(), "stu-1", "lec-1", dto.TrackProgressRequest{Progress: intPtr(150)})
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.TrackLectureProgress(context.Background(), "stu-1", "lec-draft", dto.TrackProgressRequest{Progress: intPtr(10)})
	require.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = f.svc.TrackLectureProgress(context.Background(), "stu-1", "lec-missing", dto.TrackProgressRequest{Progress: intPtr(10)})
	require.ErrorIs(t, err, appErrors.ErrNotFound)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestTrackLectureProgressNeverDecreases(t *testing.T) {
	f := newProgressFixture(t, nil)
	f.track(t, "lec-1", 80)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	row, err := f.svc.TrackLectureProgress(context.Background(), "stu-1", "lec-1", dto.TrackProgressRequest{Progress: intPtr(30), LastPosition: intPtr(12)})
	require.NoError(t, err)
	assert.Equal(t, 80, row.Progress)
	assert.Equal(t, 12, row.LastPosition)
	assert.Equal(t, 40, f.store.enrollment(f.enrollment.ID).Progress)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestMarkLectureAsCompletedIsIdempotent(t *testing.T) {
	f := newProgressFixture(t, nil)
	f.track(t, "lec-1", 100)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	require.NoError(t, f.svc.MarkLectureAsCompleted(context.Background(), "stu-1", "lec-2"))
	completed := f.store.enrollment(f.enrollment.ID)
	require.Equal(t, models.EnrollmentStatusCompleted, completed.Status)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	require.NoError(t, f.svc.MarkLectureAsCompleted(context.Background(), "stu-1", "lec-2"))

	assert.Equal(t, completed, f.store.enrollment(f.enrollment.ID))
	assert.Len(t, f.publisher.types(), 1)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestProgressHundredIffCompleted(t *testing.T) {
	f := newProgressFixture(t, nil)
	for _, step := range []struct {
		lecture  string
		progress int
	}{{"lec-1", 30}, {"lec-2", 99}, {"lec-1", 100}, {"lec-2", 100}} {
		f.track(t, step.lecture, step.progress)
		enrollment := f.store.enrollment(f.enrollment.ID)
		assert.Equal(t, enrollment.Progress == 100, enrollment.Status == models.EnrollmentStatusCompleted)
	}
	assert.Equal(t, models.EnrollmentStatusCompleted, f.store.enrollment(f.enrollment.ID).Status)
}

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string][]byte{}}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, ok := c.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = payload
	return nil
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.data, key)
	}
	return nil
}

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

func TestGetCourseProgressCachesAndInvalidates(t *testing.T) {
	backend := newMemoryCache()
	f := newProgressFixture(t, NewCacheService(backend, nil, time.Minute, nil, true))
	f.track(t, "lec-1", 60)

	view, err := f.svc.GetCourseProgress(context.Background(), "stu-1", "course-1")
	require.NoError(t, err)
	assert.Equal(t, 30, view.Aggregate)
	assert.Equal(t, 2, view.Total)
	assert.Equal(t, 0, view.Completed)
	require.Len(t, view.Lectures, 1)
	assert.True(t, backend.has(CourseProgressKey("stu-1", "course-1")))

	f.track(t, "lec-2", 100)
	assert.False(t, backend.has(CourseProgressKey("stu-1", "course-1")))

	view, err = f.svc.GetCourseProgress(context.Background(), "stu-1", "course-1")
	require.NoError(t, err)
	assert.Equal(t, 80, view.Aggregate)
	assert.Equal(t, 1, view.Completed)
	assert.Equal(t, 80, view.Enrollment.Progress)
}

func TestGetCourseProgressWithoutEnrollment(t *testing.T) {
	f := newProgressFixture(t, nil)
	_, err := f.svc.GetCourseProgress(context.Background(), "stu-9", "course-1")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

var (
	lectureColumns         = []string{"id", "course_id", "title", "position", "duration_sec", "is_published"}
	enrollmentColumns      = []string{"id", "student_id", "course_id", "status", "progress", "payment_ref", "stake_amount", "stake_ref", "enrolled_at", "completed_at", "cancelled_at", "expires_at", "certificate_url", "updated_at"}
	lectureProgressColumns = []string{"id", "student_id", "lecture_id", "course_id", "progress", "last_position", "notes", "is_completed", "completed_at", "created_at", "updated_at"}
)

// newSQLProgressService wires the coordinator to the real repositories over one sqlmock connection.
func newSQLProgressService(t *testing.T) (*ProgressService, sqlmock.Sqlmock, *publisherStub) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	publisher := &publisherStub{}
	svc := NewProgressService(ProgressServiceDeps{
		Catalog:      repository.NewCatalogRepository(sqlxdb),
		Enrollments:  repository.NewEnrollmentRepository(sqlxdb),
		Progress:     repository.NewLectureProgressRepository(sqlxdb),
		Tx:           sqlxdb,
		Publisher:    publisher,
		Certificates: &schedulerStub{},
		Metrics:      NewMetricsService(),
	})
	svc.now = fixedClock(progressNow)
	return svc, mock, publisher
}

func TestTrackLectureProgressRollsBackWhenEnrollmentUpdateFails(t *testing.T) {
	svc, mock, publisher := newSQLProgressService(t)
	enrolledAt := progressNow.Add(-time.Hour)

	mock.ExpectQuery(`FROM lectures WHERE id = \$1`).
		WithArgs("lec-1").
		WillReturnRows(sqlmock.NewRows(lectureColumns).AddRow("lec-1", "course-1", "Intro", 1, 300, true))
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM enrollments .* FOR UPDATE`).
		WithArgs("stu-1", "course-1").
		WillReturnRows(sqlmock.NewRows(enrollmentColumns).
			AddRow("enr-1", "stu-1", "course-1", "ACTIVE", 0, nil, nil, nil, enrolledAt, nil, nil, nil, nil, enrolledAt))
	mock.ExpectQuery(`FROM lecture_progress WHERE student_id = \$1 AND lecture_id = \$2`).
		WithArgs("stu-1", "lec-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO lecture_progress`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM lectures WHERE course_id = \$1`).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows(lectureColumns).
			AddRow("lec-1", "course-1", "Intro", 1, 300, true).
			AddRow("lec-2", "course-1", "Next", 2, 300, true))
	mock.ExpectQuery(`FROM lecture_progress WHERE student_id = \$1 AND course_id = \$2`).
		WithArgs("stu-1", "course-1").
		WillReturnRows(sqlmock.NewRows(lectureProgressColumns).
			AddRow("lp-1", "stu-1", "lec-1", "course-1", 40, 0, "", false, nil, progressNow, progressNow))
	mock.ExpectExec(`UPDATE enrollments SET status = \$3`).
		WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()

	_, err := svc.TrackLectureProgress(context.Background(), "stu-1", "lec-1", dto.TrackProgressRequest{Progress: intPtr(40)})
	require.ErrorIs(t, err, appErrors.ErrStorage)
	assert.Empty(t, publisher.types())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackLectureProgressMalformedLectureIDIsNotFound(t *testing.T) {
	svc, mock, _ := newSQLProgressService(t)
	mock.ExpectQuery(`FROM lectures WHERE id = \$1`).
		WithArgs("not-a-uuid").
		WillReturnError(&pq.Error{Code: "22P02", Message: `invalid input syntax for type uuid: "not-a-uuid"`})

	_, err := svc.TrackLectureProgress(context.Background(), "stu-1", "not-a-uuid", dto.TrackProgressRequest{Progress: intPtr(10)})
	require.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.False(t, errors.Is(err, appErrors.ErrStorage))
	assert.NoError(t, mock.ExpectationsWereMet())
}

