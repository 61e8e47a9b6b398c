package service

import (
	"sort"
	"strings"

	"github.com/noah-isme/course-progress-api/internal/models"
)

// GradeAnswer returns the verdict for one question and the points awarded.
// There is no partial credit.
func GradeAnswer(question models.Question, answer models.SubmittedAnswer) (bool, int) {
	key := question.Key()
	if !key.Valid {
		return false, 0
	}

	var correct bool
	if key.Multi {
		correct = answer.Multi && sameValues(key.Values, answer.Values)
	} else {
		correct = !answer.Multi && strings.EqualFold(key.Single, answer.Single)
	}
	if !correct {
		return false, 0
	}
	return true, question.Points
}

// sameValues compares two lists ignoring order and case.
func sameValues(expected, candidate []string) bool {
	if len(expected) != len(candidate) {
		return false
	}
	a := normalizeValues(expected)
	b := normalizeValues(candidate)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func normalizeValues(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	sort.Strings(out)
	return out
}

// GradeSubmission scores a full answer set. Answers that reference unknown
// questions score zero and are reported incorrect; when a question is answered
// more than once only the first answer counts.
func GradeSubmission(quiz models.Quiz, questions []models.Question, answers []models.QuestionAnswer) models.QuizResult {
	index := make(map[string]models.Question, len(questions))
	total := 0
	for _, q := range questions {
		index[q.ID] = q
		total += q.Points
	}
	if len(questions) == 0 {
		total = quiz.TotalPoints
	}

	result := models.QuizResult{
		QuizID:      quiz.ID,
		TotalPoints: total,
		PerQuestion: make([]models.QuestionResult, 0, len(answers)),
	}

	seen := make(map[string]struct{}, len(answers))
	for _, answer := range answers {
		question, known := index[answer.QuestionID]
		verdict := models.QuestionResult{QuestionID: answer.QuestionID, Known: known}
		if known {
			verdict.Points = question.Points
		}
		if _, dup := seen[answer.QuestionID]; known && !dup {
			seen[answer.QuestionID] = struct{}{}
			verdict.Correct, verdict.Awarded = GradeAnswer(question, answer.Answer)
			result.Score += verdict.Awarded
		}
		result.PerQuestion = append(result.PerQuestion, verdict)
	}

	if total > 0 {
		result.Percentage = float64(result.Score) / float64(total) * 100
	}
	result.Passing = result.Percentage >= float64(quiz.PassingScore)
	return result
}
