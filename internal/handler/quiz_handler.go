package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-progress-api/internal/dto"
	"github.com/noah-isme/course-progress-api/pkg/response"
)

type quizService interface {
	Submit(ctx context.Context, studentID, quizID string, req dto.SubmitQuizRequest) (*dto.SubmitQuizResponse, error)
}

// QuizHandler grades quiz submissions.
type QuizHandler struct {
	quizzes quizService
}

// NewQuizHandler constructs QuizHandler.
func NewQuizHandler(quizzes quizService) *QuizHandler {
	return &QuizHandler{quizzes: quizzes}
}

// Submit godoc
// @Summary Submit quiz answers
// @Description Answers are strings or arrays of strings depending on the question type.
// @Tags Quizzes
// @Accept json
// @Produce json
// @Param quizId path string true "Quiz ID"
// @Param payload body dto.SubmitQuizRequest true "Answers"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /quizzes/{quizId}/submissions [post]
func (h *QuizHandler) Submit(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.SubmitQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.quizzes.Submit(c.Request.Context(), studentID, c.Param("quizId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
