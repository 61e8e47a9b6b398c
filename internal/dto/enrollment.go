package dto

import (
	"time"

	"github.com/noah-isme/course-progress-api/internal/models"
)

// EnrollRequest opens an enrollment for the authenticated student.
type EnrollRequest struct {
	StudentID  string        `json:"-" validate:"required"`
	CourseID   string        `json:"courseId" validate:"required"`
	PaymentRef *string       `json:"paymentRef" validate:"omitempty,max=128"`
	ExpiresAt  *time.Time    `json:"expiresAt"`
	Stake      *StakeRequest `json:"stake" validate:"omitempty"`
}

// StakeRequest carries the stake placed with the external staking collaborator.
type StakeRequest struct {
	Amount    string `json:"amount" validate:"required,numeric,positive_amount"`
	Reference string `json:"reference" validate:"required,max=128"`
}

// EnrollmentQuery mirrors supported listing filters.
type EnrollmentQuery struct {
	Status   models.EnrollmentStatus `form:"status" validate:"omitempty,oneof=ACTIVE COMPLETED CANCELLED EXPIRED"`
	Page     int                     `form:"page" validate:"omitempty,min=1"`
	PageSize int                     `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// ExpireEnrollmentsResponse reports the outcome of a sweep.
type ExpireEnrollmentsResponse struct {
	Expired int `json:"expired"`
}
