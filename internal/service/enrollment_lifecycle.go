package service

import (
	"time"

	"github.com/noah-isme/course-progress-api/internal/models"
	appErrors "github.com/noah-isme/course-progress-api/pkg/errors"
)

// Enrollment transitions operate on in-memory values only. Callers persist the
// result with a write guarded by the status they observed.

// NewEnrollment builds a fresh Active enrollment.
func NewEnrollment(studentID, courseID string, paymentRef *string, expiresAt *time.Time, now time.Time) *models.Enrollment {
	return &models.Enrollment{
		StudentID:  studentID,
		CourseID:   courseID,
		Status:     models.EnrollmentStatusActive,
		PaymentRef: paymentRef,
		ExpiresAt:  expiresAt,
		EnrolledAt: now,
		UpdatedAt:  now,
	}
}

func requireActive(e *models.Enrollment, action string) error {
	if e.Status.Terminal() {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "cannot "+action+" a "+string(e.Status)+" enrollment")
	}
	return nil
}

// CompleteEnrollment moves an Active enrollment to Completed and forces progress to 100.
func CompleteEnrollment(e *models.Enrollment, now time.Time) error {
	if err := requireActive(e, "complete"); err != nil {
		return err
	}
	stamp := now
	e.Status = models.EnrollmentStatusCompleted
	e.Progress = fullProgress
	e.CompletedAt = &stamp
	e.UpdatedAt = now
	return nil
}

// CancelEnrollment moves an Active enrollment to Cancelled.
func CancelEnrollment(e *models.Enrollment, now time.Time) error {
	if err := requireActive(e, "cancel"); err != nil {
		return err
	}
	stamp := now
	e.Status = models.EnrollmentStatusCancelled
	e.CancelledAt = &stamp
	e.UpdatedAt = now
	return nil
}

// ExpireEnrollment moves an Active enrollment past its expiry to Expired.
func ExpireEnrollment(e *models.Enrollment, now time.Time) error {
	if err := requireActive(e, "expire"); err != nil {
		return err
	}
	if e.ExpiresAt == nil || !now.After(*e.ExpiresAt) {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "enrollment has not expired")
	}
	e.Status = models.EnrollmentStatusExpired
	e.UpdatedAt = now
	return nil
}

// ApplyAggregate pushes a recomputed course aggregate into an Active enrollment,
// completing it when the aggregate reaches 100. It reports whether the call
// performed the completion.
func ApplyAggregate(e *models.Enrollment, aggregate int, now time.Time) (bool, error) {
	if err := requireActive(e, "record progress on"); err != nil {
		return false, err
	}
	aggregate = ClampProgress(aggregate)
	if aggregate == fullProgress {
		return true, CompleteEnrollment(e, now)
	}
	e.Progress = aggregate
	e.UpdatedAt = now
	return false, nil
}

// CanIssueCertificate guards certificate issuance.
func CanIssueCertificate(e *models.Enrollment) error {
	if e.Status != models.EnrollmentStatusCompleted {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "certificates are only issued for completed enrollments")
	}
	return nil
}
