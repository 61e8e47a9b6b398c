package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/course-progress-api/internal/models"
	appErrors "github.com/noah-isme/course-progress-api/pkg/errors"
	"github.com/noah-isme/course-progress-api/pkg/certificate"
	"github.com/noah-isme/course-progress-api/pkg/jobs"
	"github.com/noah-isme/course-progress-api/pkg/storage"
)

// JobTypeIssueCertificate is the queue job type for automatic issuance.
const JobTypeIssueCertificate = "certificate.issue"

type certificateEnrollments interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindLatest(ctx context.Context, exec sqlx.ExtContext, studentID, courseID string) (*models.Enrollment, error)
	SetCertificate(ctx context.Context, exec sqlx.ExtContext, id, url string, at time.Time) error
}

type certificateCourses interface {
	FindCourse(ctx context.Context, id string) (*models.Course, error)
}

type certificateRenderer interface {
	Render(doc certificate.Document) ([]byte, error)
}

type downloadSigner interface {
	Sign(subject, key string) (storage.SignedToken, error)
	Verify(token string) (storage.SignedToken, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// CertificateConfig configures issuance.
type CertificateConfig struct {
	// DownloadURL is the public endpoint that redeems signed tokens.
	DownloadURL string
	Issuer      string
}

// CertificateService issues completion certificates. The enrollment's
// certificate_url column stores the object key; download links are signed per request.
type CertificateService struct {
	enrollments certificateEnrollments
	courses     certificateCourses
	renderer    certificateRenderer
	store       storage.ObjectStore
	signer      downloadSigner
	queue       jobEnqueuer
	notifier    *lifecycleNotifier
	metrics     *MetricsService
	cfg         CertificateConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewCertificateService wires the certificate pipeline.
func NewCertificateService(
	enrollments certificateEnrollments,
	courses certificateCourses,
	renderer certificateRenderer,
	store storage.ObjectStore,
	signer downloadSigner,
	publisher eventPublisher,
	metrics *MetricsService,
	cfg CertificateConfig,
	logger *zap.Logger,
) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DownloadURL == "" {
		cfg.DownloadURL = "/api/v1/certificates/download"
	}
	return &CertificateService{
		enrollments: enrollments,
		courses:     courses,
		renderer:    renderer,
		store:       store,
		signer:      signer,
		notifier:    newLifecycleNotifier(publisher, nil, metrics, logger),
		metrics:     metrics,
		cfg:         cfg,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// UseQueue attaches the background queue used by ScheduleIssue.
func (s *CertificateService) UseQueue(queue jobEnqueuer) {
	s.queue = queue
}

// Issue returns the certificate for the student's Completed enrollment,
// rendering and storing it on first request.
func (s *CertificateService) Issue(ctx context.Context, studentID, courseID string) (*models.Certificate, error) {
	if studentID == "" || courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId and courseId are required")
	}
	enrollment, err := s.enrollments.FindLatest(ctx, nil, studentID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Storage(err, "failed to load enrollment")
	}
	return s.issue(ctx, enrollment)
}

func (s *CertificateService) issue(ctx context.Context, enrollment *models.Enrollment) (*models.Certificate, error) {
	if err := CanIssueCertificate(enrollment); err != nil {
		s.metrics.RecordCertificate("rejected")
		return nil, err
	}
	course, err := s.courses.FindCourse(ctx, enrollment.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Storage(err, "failed to load course")
	}
	if enrollment.CertificateURL != nil {
		s.metrics.RecordCertificate("existing")
		return s.describe(enrollment, course, *enrollment.CertificateURL)
	}

	now := s.now()
	key := fmt.Sprintf("certificates/%s/%s.pdf", enrollment.CourseID, enrollment.ID)
	completedAt := now
	if enrollment.CompletedAt != nil {
		completedAt = *enrollment.CompletedAt
	}
	pdf, err := s.renderer.Render(certificate.Document{
		CertificateID: enrollment.ID,
		StudentName:   enrollment.StudentID,
		CourseTitle:   course.Title,
		Issuer:        s.cfg.Issuer,
		CompletedAt:   completedAt,
		IssuedAt:      now,
	})
	if err != nil {
		s.metrics.RecordCertificate("error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate")
	}
	if err := s.store.Put(ctx, key, pdf, certificate.ContentType); err != nil {
		s.metrics.RecordCertificate("error")
		return nil, appErrors.Storage(err, "failed to store certificate")
	}

	if err := s.enrollments.SetCertificate(ctx, nil, enrollment.ID, key, now); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordCertificate("error")
			return nil, appErrors.Storage(err, "failed to record certificate")
		}
		// Lost a race with another issuer, or the enrollment left Completed.
		current, findErr := s.enrollments.FindByID(ctx, enrollment.ID)
		if findErr != nil {
			return nil, appErrors.Storage(findErr, "failed to reload enrollment")
		}
		if current.Status != models.EnrollmentStatusCompleted || current.CertificateURL == nil {
			s.metrics.RecordCertificate("rejected")
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "certificates are only issued for completed enrollments")
		}
		s.metrics.RecordCertificate("existing")
		return s.describe(current, course, *current.CertificateURL)
	}

	enrollment.CertificateURL = &key
	enrollment.UpdatedAt = now
	s.metrics.RecordCertificate("issued")
	s.logger.Info("certificate issued", zap.String("enrollment_id", enrollment.ID), zap.String("key", key))
	s.notifier.notify(ctx, models.EventCertificateIssued, enrollment, "certificate", now)
	return s.describe(enrollment, course, key)
}

func (s *CertificateService) describe(enrollment *models.Enrollment, course *models.Course, key string) (*models.Certificate, error) {
	grant, err := s.signer.Sign(enrollment.ID, key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign certificate link")
	}
	issuedAt := enrollment.UpdatedAt
	if enrollment.CompletedAt != nil && issuedAt.Before(*enrollment.CompletedAt) {
		issuedAt = *enrollment.CompletedAt
	}
	return &models.Certificate{
		EnrollmentID: enrollment.ID,
		StudentID:    enrollment.StudentID,
		CourseID:     enrollment.CourseID,
		CourseTitle:  course.Title,
		URL:          s.cfg.DownloadURL + "?token=" + url.QueryEscape(grant.Token),
		ObjectKey:    key,
		IssuedAt:     issuedAt,
		ExpiresAt:    grant.ExpiresAt,
	}, nil
}

// ScheduleIssue queues automatic issuance for a freshly completed enrollment.
func (s *CertificateService) ScheduleIssue(enrollment models.Enrollment) error {
	if s.queue == nil {
		return nil
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Key:     enrollment.ID,
		Type:    JobTypeIssueCertificate,
		Payload: enrollment.ID,
	})
	if errors.Is(err, jobs.ErrDuplicate) {
		return nil
	}
	return err
}

// HandleJob is the queue handler for JobTypeIssueCertificate.
func (s *CertificateService) HandleJob(ctx context.Context, job jobs.Job) error {
	enrollmentID, ok := job.Payload.(string)
	if !ok || enrollmentID == "" {
		s.logger.Error("certificate job without enrollment id", zap.String("job_id", job.ID))
		return nil
	}
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	if enrollment.Status != models.EnrollmentStatusCompleted || enrollment.CertificateURL != nil {
		return nil
	}
	if _, err := s.issue(ctx, enrollment); err != nil {
		if errors.Is(err, appErrors.ErrInvalidTransition) {
			return nil
		}
		return err
	}
	return nil
}

// ResolveDownload redeems a signed token and opens the stored certificate.
func (s *CertificateService) ResolveDownload(ctx context.Context, token string) (io.ReadCloser, string, error) {
	if token == "" {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "token is required")
	}
	grant, err := s.signer.Verify(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	body, err := s.store.Get(ctx, grant.Key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, "", appErrors.Storage(err, "failed to open certificate")
	}
	return body, "certificate-" + grant.Subject + ".pdf", nil
}
