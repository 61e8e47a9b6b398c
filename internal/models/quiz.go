package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// QuestionType decides how a question's stored answer is interpreted.
type QuestionType string

// Supported question types.
const (
	QuestionTypeTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionTypeFillBlank      QuestionType = "FILL_BLANK"
	QuestionTypeShortAnswer    QuestionType = "SHORT_ANSWER"
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeMatching       QuestionType = "MATCHING"
)

// MultiValued reports whether answers to this type are ordered lists.
func (t QuestionType) MultiValued() bool {
	return t == QuestionTypeMultipleChoice || t == QuestionTypeMatching
}

// Quiz aggregates questions, their point total and the passing threshold (percent).
type Quiz struct {
	ID           string  `db:"id" json:"id"`
	CourseID     string  `db:"course_id" json:"course_id"`
	LectureID    *string `db:"lecture_id" json:"lecture_id,omitempty"`
	Title        string  `db:"title" json:"title"`
	TotalPoints  int     `db:"total_points" json:"total_points"`
	PassingScore int     `db:"passing_score" json:"passing_score"`
	IsPublished  bool    `db:"is_published" json:"is_published"`
}

// Question is immutable once its quiz is published. CorrectAnswer holds the raw
// stored payload: a bare string, or a JSON array for multi-valued types.
type Question struct {
	ID            string       `db:"id" json:"id"`
	QuizID        string       `db:"quiz_id" json:"quiz_id"`
	Type          QuestionType `db:"type" json:"type"`
	Prompt        string       `db:"prompt" json:"prompt"`
	CorrectAnswer string       `db:"correct_answer" json:"-"`
	Points        int          `db:"points" json:"points"`
	Position      int          `db:"position" json:"position"`
}

// AnswerKey is either a single expected string or an ordered list of strings.
// Valid is false when the stored payload could not be decoded.
type AnswerKey struct {
	Multi  bool
	Single string
	Values []string
	Valid  bool
}

// SingleAnswer builds a single-valued key.
func SingleAnswer(value string) AnswerKey {
	return AnswerKey{Single: value, Valid: true}
}

// MultiAnswer builds a multi-valued key.
func MultiAnswer(values []string) AnswerKey {
	return AnswerKey{Multi: true, Values: values, Valid: true}
}

// Key resolves the stored answer according to the question type.
func (q Question) Key() AnswerKey {
	if !q.Type.MultiValued() {
		return SingleAnswer(q.CorrectAnswer)
	}
	var values []string
	if err := json.Unmarshal([]byte(q.CorrectAnswer), &values); err != nil {
		return AnswerKey{Multi: true}
	}
	return MultiAnswer(values)
}

// ErrMalformedAnswer is returned when a submitted answer is neither a string nor a list of strings.
var ErrMalformedAnswer = errors.New("answer must be a string or an array of strings")

// SubmittedAnswer is a candidate answer: a single string or an ordered list.
type SubmittedAnswer struct {
	Multi  bool
	Single string
	Values []string
}

// UnmarshalJSON accepts `"text"` or `["a","b"]`.
func (a *SubmittedAnswer) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return ErrMalformedAnswer
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedAnswer, err)
		}
		*a = SubmittedAnswer{Single: s}
		return nil
	case '[':
		var values []string
		if err := json.Unmarshal(trimmed, &values); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedAnswer, err)
		}
		*a = SubmittedAnswer{Multi: true, Values: values}
		return nil
	default:
		return ErrMalformedAnswer
	}
}

// MarshalJSON mirrors UnmarshalJSON.
func (a SubmittedAnswer) MarshalJSON() ([]byte, error) {
	if a.Multi {
		if a.Values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.Values)
	}
	return json.Marshal(a.Single)
}

// QuestionAnswer pairs a question id with the candidate answer.
type QuestionAnswer struct {
	QuestionID string          `json:"question_id" validate:"required"`
	Answer     SubmittedAnswer `json:"answer"`
}

// QuestionResult is the per-question verdict of a graded submission.
type QuestionResult struct {
	QuestionID string `json:"question_id"`
	Correct    bool   `json:"correct"`
	Awarded    int    `json:"awarded"`
	Points     int    `json:"points"`
	Known      bool   `json:"known"`
}

// QuizResult is produced per submission and is not persisted.
type QuizResult struct {
	QuizID      string           `json:"quiz_id"`
	Score       int              `json:"score"`
	TotalPoints int              `json:"total_points"`
	Percentage  float64          `json:"percentage"`
	Passing     bool             `json:"passing"`
	PerQuestion []QuestionResult `json:"per_question"`
}
