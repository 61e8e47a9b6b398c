package service

import (
	"context"
	"database/sql"
	"errors"
	"math/big"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/course-progress-api/internal/dto"
	"github.com/noah-isme/course-progress-api/internal/models"
	"github.com/noah-isme/course-progress-api/internal/repository"
	appErrors "github.com/noah-isme/course-progress-api/pkg/errors"
)

type courseCatalog interface {
	FindCourse(ctx context.Context, id string) (*models.Course, error)
	AdjustEnrollmentCount(ctx context.Context, exec sqlx.ExtContext, courseID string, delta int) error
}

type enrollmentRepository interface {
	enrollmentStore
	ExistsLive(ctx context.Context, exec sqlx.ExtContext, studentID, courseID string) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
}

type progressResetter interface {
	ResetForCourse(ctx context.Context, exec sqlx.ExtContext, studentID, courseID string, at time.Time) (int64, error)
}

// EnrollmentService owns enrollment creation and the explicit lifecycle requests.
type EnrollmentService struct {
	courses     courseCatalog
	enrollments enrollmentRepository
	progress    progressResetter
	tx          txProvider
	cache       *CacheService
	notifier    *lifecycleNotifier
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// EnrollmentServiceDeps groups the collaborators of EnrollmentService.
type EnrollmentServiceDeps struct {
	Courses      courseCatalog
	Enrollments  enrollmentRepository
	Progress     progressResetter
	Tx           txProvider
	Cache        *CacheService
	Publisher    eventPublisher
	Certificates certificateScheduler
	Metrics      *MetricsService
	Validator    *validator.Validate
	Logger       *zap.Logger
}

// NewEnrollmentService constructs the service.
func NewEnrollmentService(deps EnrollmentServiceDeps) *EnrollmentService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	deps.Validator.RegisterValidation("positive_amount", func(fl validator.FieldLevel) bool {
		amount, ok := new(big.Rat).SetString(fl.Field().String())
		return ok && amount.Sign() > 0
	})
	return &EnrollmentService{
		courses:     deps.Courses,
		enrollments: deps.Enrollments,
		progress:    deps.Progress,
		tx:          deps.Tx,
		cache:       deps.Cache,
		notifier:    newLifecycleNotifier(deps.Publisher, deps.Certificates, deps.Metrics, deps.Logger),
		validator:   deps.Validator,
		logger:      deps.Logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Enroll creates an Active enrollment. Re-enrolling after Cancelled or Expired
// starts from zeroed lecture progress.
func (s *EnrollmentService) Enroll(ctx context.Context, req dto.EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid enrollment payload")
	}
	now := s.now()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "expiresAt must be in the future")
	}

	course, err := s.courses.FindCourse(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Storage(err, "failed to load course")
	}
	if !course.IsPublished {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}

	exists, err := s.enrollments.ExistsLive(ctx, nil, req.StudentID, req.CourseID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to check enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this course")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	enrollment := NewEnrollment(req.StudentID, req.CourseID, req.PaymentRef, req.ExpiresAt, now)
	if req.Stake != nil {
		amount, ref := req.Stake.Amount, req.Stake.Reference
		enrollment.StakeAmount = &amount
		enrollment.StakeRef = &ref
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

	if _, err = s.progress.ResetForCourse(ctx, tx, req.StudentID, req.CourseID, now); err != nil {
		err = appErrors.Storage(err, "failed to reset course progress")
		return nil, err
	}
	if err = s.enrollments.Create(ctx, tx, enrollment); err != nil {
		if repository.IsUniqueViolation(err, repository.LivePairConstraint) {
			err = appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "student is already enrolled in this course")
			return nil, err
		}
		err = appErrors.Storage(err, "failed to create enrollment")
		return nil, err
	}
	if err = s.courses.AdjustEnrollmentCount(ctx, tx, req.CourseID, 1); err != nil {
		err = appErrors.Storage(err, "failed to update course enrollment count")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		if repository.IsUniqueViolation(err, repository.LivePairConstraint) {
			err = appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "student is already enrolled in this course")
			return nil, err
		}
		err = appErrors.Storage(err, "failed to commit enrollment")
		return nil, err
	}

	s.cache.Invalidate(ctx, CourseProgressKey(req.StudentID, req.CourseID))
	s.notifier.notify(ctx, models.EventEnrollmentCreated, enrollment, "enroll", now)
	return enrollment, nil
}

// Cancel moves the student's Active enrollment to Cancelled.
func (s *EnrollmentService) Cancel(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	return s.transition(ctx, studentID, courseID, "cancel", func(e *models.Enrollment, now time.Time) error {
		return CancelEnrollment(e, now)
	})
}

// Complete marks the student's Active enrollment as Completed regardless of lecture progress.
func (s *EnrollmentService) Complete(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	return s.transition(ctx, studentID, courseID, "explicit", func(e *models.Enrollment, now time.Time) error {
		return CompleteEnrollment(e, now)
	})
}

func (s *EnrollmentService) transition(ctx context.Context, studentID, courseID, trigger string, apply func(*models.Enrollment, time.Time) error) (*models.Enrollment, error) {
	if studentID == "" || courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId and courseId are required")
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

	enrollment, err := s.enrollments.LockLatest(ctx, tx, studentID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
			return nil, err
		}
		err = appErrors.Storage(err, "failed to load enrollment")
		return nil, err
	}

	now := s.now()
	from := enrollment.Status
	if err = apply(enrollment, now); err != nil {
		return nil, err
	}
	if err = s.enrollments.UpdateState(ctx, tx, enrollment, from); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrConflict, "enrollment changed concurrently")
			return nil, err
		}
		err = appErrors.Storage(err, "failed to update enrollment")
		return nil, err
	}
	if enrollment.Status == models.EnrollmentStatusCancelled {
		if err = s.courses.AdjustEnrollmentCount(ctx, tx, courseID, -1); err != nil {
			err = appErrors.Storage(err, "failed to update course enrollment count")
			return nil, err
		}
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Storage(err, "failed to commit enrollment transition")
		return nil, err
	}

	s.cache.Invalidate(ctx, CourseProgressKey(studentID, courseID))
	s.notifier.notify(ctx, eventFor(enrollment.Status), enrollment, trigger, now)
	return enrollment, nil
}

func eventFor(status models.EnrollmentStatus) models.EventType {
	switch status {
	case models.EnrollmentStatusCompleted:
		return models.EventEnrollmentCompleted
	case models.EnrollmentStatusCancelled:
		return models.EventEnrollmentCancelled
	case models.EnrollmentStatusExpired:
		return models.EventEnrollmentExpired
	default:
		return models.EventEnrollmentCreated
	}
}

// Get returns the student's current enrollment for the course.
func (s *EnrollmentService) Get(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindLatest(ctx, nil, studentID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Storage(err, "failed to load enrollment")
	}
	return enrollment, nil
}

// List returns a page of the student's enrollments.
func (s *EnrollmentService) List(ctx context.Context, studentID string, query dto.EnrollmentQuery) ([]models.Enrollment, *models.Pagination, error) {
	if studentID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "studentId is required")
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Validation(err, "invalid enrollment filter")
	}
	filter := models.EnrollmentFilter{StudentID: studentID, Status: query.Status, Page: query.Page, PageSize: query.PageSize}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	enrollments, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Storage(err, "failed to list enrollments")
	}
	return enrollments, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}
