package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/course-progress-api/internal/dto"
	"github.com/noah-isme/course-progress-api/internal/models"
	appErrors "github.com/noah-isme/course-progress-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type lectureCatalog interface {
	FindLecture(ctx context.Context, id string) (*models.Lecture, error)
	ListPublishedLectures(ctx context.Context, exec sqlx.ExtContext, courseID string) ([]models.Lecture, error)
}

type enrollmentStore interface {
	FindLatest(ctx context.Context, exec sqlx.ExtContext, studentID, courseID string) (*models.Enrollment, error)
	LockLatest(ctx context.Context, exec sqlx.ExtContext, studentID, courseID string) (*models.Enrollment, error)
	UpdateState(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment, from models.EnrollmentStatus) error
}

type lectureProgressStore interface {
	Get(ctx context.Context, exec sqlx.ExtContext, studentID, lectureID string) (*models.LectureProgress, error)
	Upsert(ctx context.Context, exec sqlx.ExtContext, row *models.LectureProgress) error
	ListByCourse(ctx context.Context, exec sqlx.ExtContext, studentID, courseID string) ([]models.LectureProgress, error)
}

const (
	operationTrack    = "track"
	operationComplete = "complete"
)

// ProgressService is the only writer coupling lecture progress with enrollment
// state. Every operation runs in one transaction holding the enrollment row lock.
type ProgressService struct {
	catalog     lectureCatalog
	enrollments enrollmentStore
	progress    lectureProgressStore
	tx          txProvider
	cache       *CacheService
	notifier    *lifecycleNotifier
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// ProgressServiceDeps groups the collaborators of ProgressService.
type ProgressServiceDeps struct {
	Catalog      lectureCatalog
	Enrollments  enrollmentStore
	Progress     lectureProgressStore
	Tx           txProvider
	Cache        *CacheService
	Publisher    eventPublisher
	Certificates certificateScheduler
	Metrics      *MetricsService
	Validator    *validator.Validate
	Logger       *zap.Logger
}

// NewProgressService wires the coordinator.
func NewProgressService(deps ProgressServiceDeps) *ProgressService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &ProgressService{
		catalog:     deps.Catalog,
		enrollments: deps.Enrollments,
		progress:    deps.Progress,
		tx:          deps.Tx,
		cache:       deps.Cache,
		notifier:    newLifecycleNotifier(deps.Publisher, deps.Certificates, deps.Metrics, deps.Logger),
		metrics:     deps.Metrics,
		validator:   deps.Validator,
		logger:      deps.Logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// TrackLectureProgress records one progress event and pushes the recomputed
// course aggregate into the enrollment, completing it at 100.
func (s *ProgressService) TrackLectureProgress(ctx context.Context, studentID, lectureID string, req dto.TrackProgressRequest) (*models.LectureProgress, error) {
	if studentID == "" || lectureID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId and lectureId are required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid progress payload")
	}
	input := models.LectureProgressInput{Progress: *req.Progress, LastPosition: req.LastPosition, Notes: req.Notes}

	row, err := s.apply(ctx, operationTrack, studentID, lectureID, input)
	s.metrics.RecordProgressUpdate(operationTrack, err)
	return row, err
}

// MarkLectureAsCompleted forces the lecture to 100 and re-runs the aggregate.
// Repeating the call on a completed lecture changes nothing.
func (s *ProgressService) MarkLectureAsCompleted(ctx context.Context, studentID, lectureID string) error {
	if studentID == "" || lectureID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "studentId and lectureId are required")
	}
	_, err := s.apply(ctx, operationComplete, studentID, lectureID, models.LectureProgressInput{Progress: fullProgress})
	s.metrics.RecordProgressUpdate(operationComplete, err)
	return err
}

func (s *ProgressService) apply(ctx context.Context, operation, studentID, lectureID string, input models.LectureProgressInput) (*models.LectureProgress, error) {
	lecture, err := s.catalog.FindLecture(ctx, lectureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecture not found")
		}
		return nil, appErrors.Storage(err, "failed to load lecture")
	}
	if !lecture.IsPublished {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "lecture not found")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	enrollment, err := s.enrollments.LockLatest(ctx, tx, studentID, lecture.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrForbidden, "student is not enrolled in this course")
			return nil, err
		}
		err = appErrors.Storage(err, "failed to load enrollment")
		return nil, err
	}

	current, err := s.progress.Get(ctx, tx, studentID, lectureID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		err = appErrors.Storage(err, "failed to load lecture progress")
		return nil, err
	}
	if errors.Is(err, sql.ErrNoRows) {
		current, err = nil, nil
	}

	alreadyDone := operation == operationComplete && current != nil && current.IsCompleted
	if enrollment.Status != models.EnrollmentStatusActive {
		if alreadyDone && enrollment.Status == models.EnrollmentStatusCompleted {
			_ = tx.Rollback()
			return current, nil
		}
		err = appErrors.Clone(appErrors.ErrForbidden, "enrollment is not active")
		return nil, err
	}

	now := s.now()
	row := current
	if !alreadyDone {
		next := ApplyLectureProgress(current, studentID, *lecture, input, now)
		if err = s.progress.Upsert(ctx, tx, &next); err != nil {
			err = appErrors.Storage(err, "failed to save lecture progress")
			return nil, err
		}
		row = &next
	}

	lectures, err := s.catalog.ListPublishedLectures(ctx, tx, lecture.CourseID)
	if err != nil {
		err = appErrors.Storage(err, "failed to load course lectures")
		return nil, err
	}
	rows, err := s.progress.ListByCourse(ctx, tx, studentID, lecture.CourseID)
	if err != nil {
		err = appErrors.Storage(err, "failed to load course progress")
		return nil, err
	}
	aggregate := AggregateCourseProgress(lectures, rows)

	completed := false
	if aggregate != enrollment.Progress || aggregate == fullProgress {
		completed, err = ApplyAggregate(enrollment, aggregate, now)
		if err != nil {
			return nil, err
		}
		if err = s.enrollments.UpdateState(ctx, tx, enrollment, models.EnrollmentStatusActive); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				err = appErrors.Clone(appErrors.ErrConflict, "enrollment changed concurrently")
				return nil, err
			}
			err = appErrors.Storage(err, "failed to update enrollment")
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Storage(err, "failed to commit progress transaction")
		return nil, err
	}

	s.cache.Invalidate(ctx, CourseProgressKey(studentID, lecture.CourseID))
	if completed {
		s.logger.Info("enrollment completed",
			zap.String("enrollment_id", enrollment.ID),
			zap.String("student_id", studentID),
			zap.String("course_id", lecture.CourseID))
		s.notifier.notify(ctx, models.EventEnrollmentCompleted, enrollment, "progress", now)
	}
	return row, nil
}

// GetCourseProgress returns the student's enrollment together with per-lecture rows.
func (s *ProgressService) GetCourseProgress(ctx context.Context, studentID, courseID string) (*models.CourseProgress, error) {
	if studentID == "" || courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId and courseId are required")
	}
	key := CourseProgressKey(studentID, courseID)
	var cached models.CourseProgress
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	enrollment, err := s.enrollments.FindLatest(ctx, nil, studentID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Storage(err, "failed to load enrollment")
	}
	lectures, err := s.catalog.ListPublishedLectures(ctx, nil, courseID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load course lectures")
	}
	rows, err := s.progress.ListByCourse(ctx, nil, studentID, courseID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load course progress")
	}

	published := make(map[string]struct{}, len(lectures))
	for _, lecture := range lectures {
		published[lecture.ID] = struct{}{}
	}
	view := &models.CourseProgress{
		Enrollment: *enrollment,
		Aggregate:  AggregateCourseProgress(lectures, rows),
		Lectures:   make([]models.LectureProgress, 0, len(rows)),
		Total:      len(lectures),
	}
	for _, row := range rows {
		if _, ok := published[row.LectureID]; !ok {
			continue
		}
		view.Lectures = append(view.Lectures, row)
		if row.IsCompleted {
			view.Completed++
		}
	}

	s.cache.Set(ctx, key, view, 0)
	return view, nil
}
