package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-progress-api/internal/models"
)

// LivePairConstraint is the partial unique index allowing a single Active or Completed enrollment per pair.
const LivePairConstraint = "uq_enrollments_live_pair"

const enrollmentColumns = `id, student_id, course_id, status, progress, payment_ref, stake_amount, stake_ref,
        enrolled_at, completed_at, cancelled_at, expires_at, certificate_url, updated_at`

// Live enrollments sort first, then the most recent.
const latestPairClause = `WHERE student_id = $1 AND course_id = $2
        ORDER BY (status IN ('ACTIVE', 'COMPLETED')) DESC, enrolled_at DESC LIMIT 1`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, lookupErr(err)
	}
	return &enrollment, nil
}

// FindLatest returns the live enrollment for the pair, or the most recent terminal one.
func (r *EnrollmentRepository) FindLatest(ctx context.Context, exec sqlx.ExtContext, studentID, courseID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments ` + latestPairClause
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &enrollment, query, studentID, courseID); err != nil {
		return nil, lookupErr(err)
	}
	return &enrollment, nil
}

// LockLatest behaves like FindLatest but holds a row lock until the surrounding transaction ends.
func (r *EnrollmentRepository) LockLatest(ctx context.Context, exec sqlx.ExtContext, studentID, courseID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments ` + latestPairClause + ` FOR UPDATE`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &enrollment, query, studentID, courseID); err != nil {
		return nil, lookupErr(err)
	}
	return &enrollment, nil
}

// ExistsLive checks whether an Active or Completed enrollment exists for the pair.
func (r *EnrollmentRepository) ExistsLive(ctx context.Context, exec sqlx.ExtContext, studentID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND status IN ($3, $4) LIMIT 1`
	var exists int
	err := sqlx.GetContext(ctx, pick(r.db, exec), &exists, query, studentID, courseID,
		models.EnrollmentStatusActive, models.EnrollmentStatusCompleted)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check live enrollment: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment record. A concurrent insert for the same
// pair surfaces as a unique violation on LivePairConstraint.
func (r *EnrollmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, student_id, course_id, status, progress, payment_ref, stake_amount, stake_ref,
        enrolled_at, completed_at, cancelled_at, expires_at, certificate_url, updated_at)
        VALUES (:id, :student_id, :course_id, :status, :progress, :payment_ref, :stake_amount, :stake_ref,
        :enrolled_at, :completed_at, :cancelled_at, :expires_at, :certificate_url, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateState writes status, progress and lifecycle timestamps, but only when
// the stored status still equals from. Returns sql.ErrNoRows otherwise.
func (r *EnrollmentRepository) UpdateState(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment, from models.EnrollmentStatus) error {
	const query = `UPDATE enrollments SET status = $3, progress = $4, completed_at = $5, cancelled_at = $6, updated_at = $7
        WHERE id = $1 AND status = $2`
	result, err := pick(r.db, exec).ExecContext(ctx, query, enrollment.ID, from, enrollment.Status, enrollment.Progress,
		enrollment.CompletedAt, enrollment.CancelledAt, enrollment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update enrollment state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("enrollment state rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetCertificate attaches the certificate URL once. Returns sql.ErrNoRows when
// the enrollment is not Completed or already carries a certificate.
func (r *EnrollmentRepository) SetCertificate(ctx context.Context, exec sqlx.ExtContext, id, url string, at time.Time) error {
	const query = `UPDATE enrollments SET certificate_url = $2, updated_at = $3
        WHERE id = $1 AND status = 'COMPLETED' AND certificate_url IS NULL`
	result, err := pick(r.db, exec).ExecContext(ctx, query, id, url, at)
	if err != nil {
		return fmt.Errorf("set certificate url: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("certificate rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListExpiredActive returns Active enrollments whose expiry lies before now.
func (r *EnrollmentRepository) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]models.Enrollment, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments
        WHERE status = 'ACTIVE' AND expires_at IS NOT NULL AND expires_at < $1
        ORDER BY expires_at ASC LIMIT $2`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, now, limit); err != nil {
		return nil, fmt.Errorf("list expired enrollments: %w", err)
	}
	return enrollments, nil
}

// Expire transitions one enrollment to Expired in a single guarded statement.
// It reports false when the row was no longer Active-and-expired.
func (r *EnrollmentRepository) Expire(ctx context.Context, id string, now time.Time) (bool, error) {
	const query = `UPDATE enrollments SET status = 'EXPIRED', updated_at = $2
        WHERE id = $1 AND status = 'ACTIVE' AND expires_at IS NOT NULL AND expires_at < $2`
	result, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("expire enrollment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("expire rows affected: %w", err)
	}
	return affected > 0, nil
}

// List returns a student's enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	conditions := []string{"student_id = $1"}
	args := []interface{}{filter.StudentID}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	clause := " WHERE " + strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM enrollments%s ORDER BY enrolled_at DESC LIMIT %d OFFSET %d`,
		enrollmentColumns, clause, size, offset)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM enrollments"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}
