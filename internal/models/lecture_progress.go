package models

import "time"

// LectureProgress is the per-student, per-lecture record.
type LectureProgress struct {
	ID           string     `db:"id" json:"id"`
	StudentID    string     `db:"student_id" json:"student_id"`
	LectureID    string     `db:"lecture_id" json:"lecture_id"`
	CourseID     string     `db:"course_id" json:"course_id"`
	Progress     int        `db:"progress" json:"progress"`
	LastPosition int        `db:"last_position" json:"last_position"`
	Notes        string     `db:"notes" json:"notes"`
	IsCompleted  bool       `db:"is_completed" json:"is_completed"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// LectureProgressInput is one progress event for a lecture.
type LectureProgressInput struct {
	Progress     int
	LastPosition *int
	Notes        *string
}

// CourseProgress is the read view of a student's progress through one course.
type CourseProgress struct {
	Enrollment Enrollment        `json:"enrollment"`
	Aggregate  int               `json:"aggregate"`
	Lectures   []LectureProgress `json:"lectures"`
	Completed  int               `json:"completed_lectures"`
	Total      int               `json:"total_lectures"`
}
