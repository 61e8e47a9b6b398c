package service

import (
	"time"

	"github.com/noah-isme/course-progress-api/internal/models"
)

const fullProgress = 100

// ClampProgress bounds a progress value to [0,100].
func ClampProgress(value int) int {
	switch {
	case value < 0:
		return 0
	case value > fullProgress:
		return fullProgress
	default:
		return value
	}
}

// ApplyLectureProgress folds one progress event into the current row, creating
// it on first touch. Stored progress never decreases, and completion is stamped
// the first time the lecture reaches 100.
func ApplyLectureProgress(current *models.LectureProgress, studentID string, lecture models.Lecture, input models.LectureProgressInput, now time.Time) models.LectureProgress {
	var next models.LectureProgress
	if current != nil {
		next = *current
	} else {
		next = models.LectureProgress{
			StudentID: studentID,
			LectureID: lecture.ID,
			CourseID:  lecture.CourseID,
			CreatedAt: now,
		}
	}

	incoming := ClampProgress(input.Progress)
	if incoming > next.Progress {
		next.Progress = incoming
	}
	if input.LastPosition != nil && *input.LastPosition >= 0 {
		next.LastPosition = *input.LastPosition
	}
	if input.Notes != nil {
		next.Notes = *input.Notes
	}
	if next.Progress == fullProgress && !next.IsCompleted {
		stamp := now
		next.IsCompleted = true
		next.CompletedAt = &stamp
	}
	next.UpdatedAt = now
	return next
}

// AggregateCourseProgress averages per-lecture progress over the published
// lectures, treating missing rows as zero. Rows for lectures outside the list
// are ignored.
func AggregateCourseProgress(lectures []models.Lecture, rows []models.LectureProgress) int {
	if len(lectures) == 0 {
		return 0
	}
	byLecture := make(map[string]int, len(rows))
	for _, row := range rows {
		byLecture[row.LectureID] = ClampProgress(row.Progress)
	}
	sum := 0
	for _, lecture := range lectures {
		sum += byLecture[lecture.ID]
	}
	return ClampProgress(sum / len(lectures))
}
