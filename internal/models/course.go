package models

import "time"

// Course is the read-only catalog view consumed by the enrollment workflows.
type Course struct {
	ID              string    `db:"id" json:"id"`
	InstructorID    string    `db:"instructor_id" json:"instructor_id"`
	Title           string    `db:"title" json:"title"`
	IsPublished     bool      `db:"is_published" json:"is_published"`
	EnrollmentCount int       `db:"enrollment_count" json:"enrollment_count"`
	Rating          float64   `db:"rating" json:"rating"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Lecture belongs to exactly one course and is ordered by Position.
type Lecture struct {
	ID          string `db:"id" json:"id"`
	CourseID    string `db:"course_id" json:"course_id"`
	Title       string `db:"title" json:"title"`
	Position    int    `db:"position" json:"position"`
	DurationSec int    `db:"duration_sec" json:"duration_sec"`
	IsPublished bool   `db:"is_published" json:"is_published"`
}
