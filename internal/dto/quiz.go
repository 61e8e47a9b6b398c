package dto

import "github.com/noah-isme/course-progress-api/internal/models"

// SubmitQuizRequest holds a student's answers. When ApplyToProgress is set and
// the quiz belongs to a lecture, a passing result completes that lecture.
type SubmitQuizRequest struct {
	Answers         []models.QuestionAnswer `json:"answers" validate:"dive"`
	ApplyToProgress bool                    `json:"applyToProgress"`
}

// SubmitQuizResponse wraps the graded result.
type SubmitQuizResponse struct {
	models.QuizResult
	LectureCompleted bool `json:"lecture_completed"`
}
