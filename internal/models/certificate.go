package models

import "time"

// Certificate describes an issued completion certificate.
type Certificate struct {
	EnrollmentID string    `json:"enrollment_id"`
	StudentID    string    `json:"student_id"`
	CourseID     string    `json:"course_id"`
	CourseTitle  string    `json:"course_title"`
	URL          string    `json:"url"`
	ObjectKey    string    `json:"-"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"link_expires_at"`
}
