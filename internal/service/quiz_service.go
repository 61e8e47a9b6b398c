package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-progress-api/internal/dto"
	"github.com/noah-isme/course-progress-api/internal/models"
	appErrors "github.com/noah-isme/course-progress-api/pkg/errors"
)

type quizCatalog interface {
	FindQuiz(ctx context.Context, id string) (*models.Quiz, error)
	ListQuestions(ctx context.Context, quizID string) ([]models.Question, error)
}

type lectureCompleter interface {
	MarkLectureAsCompleted(ctx context.Context, studentID, lectureID string) error
}

// QuizService grades submissions and optionally feeds passing results into progress.
type QuizService struct {
	catalog   quizCatalog
	lectures  lectureCompleter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewQuizService constructs the service.
func NewQuizService(catalog quizCatalog, lectures lectureCompleter, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *QuizService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizService{catalog: catalog, lectures: lectures, metrics: metrics, validator: validate, logger: logger}
}

// Submit grades the answers. Only a missing quiz fails the call; unknown
// questions and undecodable answer keys grade as incorrect. A passing result
// that cannot be applied to progress is still returned, with LectureCompleted unset.
func (s *QuizService) Submit(ctx context.Context, studentID, quizID string, req dto.SubmitQuizRequest) (*dto.SubmitQuizResponse, error) {
	if studentID == "" || quizID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId and quizId are required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid quiz submission")
	}

	quiz, err := s.catalog.FindQuiz(ctx, quizID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Storage(err, "failed to load quiz")
	}
	if !quiz.IsPublished {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
	}
	questions, err := s.catalog.ListQuestions(ctx, quizID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load questions")
	}

	result := GradeSubmission(*quiz, questions, req.Answers)
	s.metrics.RecordQuizSubmission(result.Passing)
	resp := &dto.SubmitQuizResponse{QuizResult: result}

	if req.ApplyToProgress && result.Passing && quiz.LectureID != nil && s.lectures != nil {
		err := s.lectures.MarkLectureAsCompleted(ctx, studentID, *quiz.LectureID)
		switch {
		case err == nil:
			resp.LectureCompleted = true
		case errors.Is(err, appErrors.ErrForbidden), errors.Is(err, appErrors.ErrNotFound):
			// Not enrolled, enrollment closed or lecture withdrawn: the grade still stands.
			s.logger.Warn("quiz result not applied to progress",
				zap.String("quiz_id", quizID),
				zap.String("student_id", studentID),
				zap.Error(err))
		default:
			return nil, err
		}
	}
	return resp, nil
}
