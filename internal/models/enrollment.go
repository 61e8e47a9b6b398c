package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. Everything but Active is terminal.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
	EnrollmentStatusExpired   EnrollmentStatus = "EXPIRED"
)

// Terminal reports whether no further progress-driven transition is accepted.
func (s EnrollmentStatus) Terminal() bool {
	return s != EnrollmentStatusActive
}

// BlocksReenrollment reports whether an enrollment in this status prevents a new one for the same pair.
func (s EnrollmentStatus) BlocksReenrollment() bool {
	return s == EnrollmentStatusActive || s == EnrollmentStatusCompleted
}

// Enrollment ties one student to one course and carries the aggregate progress.
type Enrollment struct {
	ID             string           `db:"id" json:"id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	CourseID       string           `db:"course_id" json:"course_id"`
	Status         EnrollmentStatus `db:"status" json:"status"`
	Progress       int              `db:"progress" json:"progress"`
	PaymentRef     *string          `db:"payment_ref" json:"payment_ref,omitempty"`
	StakeAmount    *string          `db:"stake_amount" json:"stake_amount,omitempty"`
	StakeRef       *string          `db:"stake_ref" json:"stake_ref,omitempty"`
	EnrolledAt     time.Time        `db:"enrolled_at" json:"enrolled_at"`
	CompletedAt    *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt    *time.Time       `db:"cancelled_at" json:"cancelled_at,omitempty"`
	ExpiresAt      *time.Time       `db:"expires_at" json:"expires_at,omitempty"`
	CertificateURL *string          `db:"certificate_url" json:"certificate_url,omitempty"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// Staked reports whether the enrollment carries stake metadata for the external staking collaborator.
func (e *Enrollment) Staked() bool {
	return e.StakeRef != nil && *e.StakeRef != ""
}

// EnrollmentFilter provides filters for listing a student's enrollments.
type EnrollmentFilter struct {
	StudentID string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
