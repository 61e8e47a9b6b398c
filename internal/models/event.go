package models

import "time"

// EventType names an enrollment lifecycle event routed through the message broker.
type EventType string

const (
	EventEnrollmentCreated   EventType = "enrollment.created"
	EventEnrollmentCompleted EventType = "enrollment.completed"
	EventEnrollmentCancelled EventType = "enrollment.cancelled"
	EventEnrollmentExpired   EventType = "enrollment.expired"
	EventCertificateIssued   EventType = "certificate.issued"
)

// EnrollmentEvent is published after the transition it describes has committed.
type EnrollmentEvent struct {
	Type           EventType        `json:"type"`
	EnrollmentID   string           `json:"enrollment_id"`
	StudentID      string           `json:"student_id"`
	CourseID       string           `json:"course_id"`
	Status         EnrollmentStatus `json:"status"`
	Progress       int              `json:"progress"`
	StakeRef       *string          `json:"stake_ref,omitempty"`
	CertificateURL *string          `json:"certificate_url,omitempty"`
	OccurredAt     time.Time        `json:"occurred_at"`
}

// NewEnrollmentEvent snapshots an enrollment into an event payload.
func NewEnrollmentEvent(eventType EventType, e *Enrollment, at time.Time) EnrollmentEvent {
	event := EnrollmentEvent{
		Type:           eventType,
		EnrollmentID:   e.ID,
		StudentID:      e.StudentID,
		CourseID:       e.CourseID,
		Status:         e.Status,
		Progress:       e.Progress,
		CertificateURL: e.CertificateURL,
		OccurredAt:     at.UTC(),
	}
	if e.Staked() {
		ref := *e.StakeRef
		event.StakeRef = &ref
	}
	return event
}
