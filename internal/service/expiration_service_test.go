package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-progress-api/internal/models"
	appErrors "github.com/noah-isme/course-progress-api/pkg/errors"
)

func newExpirationFixture(batchSize int) (*ExpirationService, *memoryStore, *publisherStub) {
	store := newMemoryStore()
	publisher := &publisherStub{}
	svc := NewExpirationService(store, nil, nil, publisher, NewMetricsService(), ExpirationConfig{BatchSize: batchSize, Parallelism: 2}, nil)
	svc.now = fixedClock(progressNow)
	return svc, store, publisher
}

func TestProcessExpiredEnrollments(t *testing.T) {
	svc, store, publisher := newExpirationFixture(10)
	past := progressNow.Add(-time.Hour)
	future := progressNow.Add(time.Hour)
	expired := store.addEnrollment(models.Enrollment{StudentID: "stu-1", CourseID: "course-1", Status: models.EnrollmentStatusActive, ExpiresAt: &past})
	live := store.addEnrollment(models.Enrollment{StudentID: "stu-2", CourseID: "course-1", Status: models.EnrollmentStatusActive, ExpiresAt: &future})
	done := store.addEnrollment(models.Enrollment{StudentID: "stu-3", CourseID: "course-1", Status: models.EnrollmentStatusCompleted, Progress: 100, ExpiresAt: &past})
	open := store.addEnrollment(models.Enrollment{StudentID: "stu-4", CourseID: "course-1", Status: models.EnrollmentStatusActive})

	count, err := svc.ProcessExpiredEnrollments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, models.EnrollmentStatusExpired, store.enrollment(expired.ID).Status)
	assert.Equal(t, models.EnrollmentStatusActive, store.enrollment(live.ID).Status)
	assert.Equal(t, models.EnrollmentStatusCompleted, store.enrollment(done.ID).Status)
	assert.Equal(t, models.EnrollmentStatusActive, store.enrollment(open.ID).Status)
	assert.Equal(t, []models.EventType{models.EventEnrollmentExpired}, publisher.types())

	count, err = svc.ProcessExpiredEnrollments(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Len(t, publisher.types(), 1)
}

func TestProcessExpiredEnrollmentsWalksBatches(t *testing.T) {
	svc, store, _ := newExpirationFixture(2)
	past := progressNow.Add(-time.Minute)
	for i := 0; i < 5; i++ {
		store.addEnrollment(models.Enrollment{StudentID: fmt.Sprintf("stu-%d", i), CourseID: "course-1", Status: models.EnrollmentStatusActive, ExpiresAt: &past})
	}

	count, err := svc.ProcessExpiredEnrollments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestProcessExpiredEnrollmentsStopsOnStorageError(t *testing.T) {
	svc, store, _ := newExpirationFixture(10)
	past := progressNow.Add(-time.Minute)
	store.addEnrollment(models.Enrollment{StudentID: "stu-1", CourseID: "course-1", Status: models.EnrollmentStatusActive, ExpiresAt: &past})
	store.expireErr = errors.New("connection reset")

	count, err := svc.ProcessExpiredEnrollments(context.Background())
	require.ErrorIs(t, err, appErrors.ErrStorage)
	assert.Zero(t, count)
}

type lockerStub struct {
	mu       sync.Mutex
	held     bool
	acquired int
	released int
}

func (l *lockerStub) AcquireLock(_ context.Context, _, _ string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false, nil
	}
	l.held = true
	l.acquired++
	return true, nil
}

func (l *lockerStub) ReleaseLock(_ context.Context, _, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	l.released++
	return nil
}

func TestSweepOnceHonoursLock(t *testing.T) {
	store := newMemoryStore()
	past := progressNow.Add(-time.Minute)
	enrollment := store.addEnrollment(models.Enrollment{StudentID: "stu-1", CourseID: "course-1", Status: models.EnrollmentStatusActive, ExpiresAt: &past})
	locker := &lockerStub{held: true}
	svc := NewExpirationService(store, locker, nil, nil, nil, ExpirationConfig{}, nil)
	svc.now = fixedClock(progressNow)

	svc.sweepOnce(context.Background())
	assert.Equal(t, models.EnrollmentStatusActive, store.enrollment(enrollment.ID).Status)

	locker.held = false
	svc.sweepOnce(context.Background())
	assert.Equal(t, models.EnrollmentStatusExpired, store.enrollment(enrollment.ID).Status)
	assert.Equal(t, 1, locker.acquired)
	assert.Equal(t, 1, locker.released)
}

func TestExpireBatchSkipsRowsTheStateMachineRejects(t *testing.T) {
	svc, store, publisher := newExpirationFixture(10)
	future := progressNow.Add(time.Hour)
	early := store.addEnrollment(models.Enrollment{StudentID: "stu-1", CourseID: "course-1", Status: models.EnrollmentStatusActive, ExpiresAt: &future})
	done := store.addEnrollment(models.Enrollment{StudentID: "stu-2", CourseID: "course-1", Status: models.EnrollmentStatusCompleted, Progress: 100})
	// Any write reaching the store would fail the batch.
	store.expireErr = errors.New("unexpected write")

	count, err := svc.expireBatch(context.Background(), []models.Enrollment{*early, *done}, progressNow)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, models.EnrollmentStatusActive, store.enrollment(early.ID).Status)
	assert.Empty(t, publisher.types())
}
