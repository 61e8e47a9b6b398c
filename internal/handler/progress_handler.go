package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-progress-api/internal/dto"
	"github.com/noah-isme/course-progress-api/internal/models"
	"github.com/noah-isme/course-progress-api/pkg/response"
)

type progressService interface {
	TrackLectureProgress(ctx context.Context, studentID, lectureID string, req dto.TrackProgressRequest) (*models.LectureProgress, error)
	MarkLectureAsCompleted(ctx context.Context, studentID, lectureID string) error
	GetCourseProgress(ctx context.Context, studentID, courseID string) (*models.CourseProgress, error)
}

// ProgressHandler exposes lecture progress endpoints.
type ProgressHandler struct {
	progress progressService
}

// NewProgressHandler constructs ProgressHandler.
func NewProgressHandler(progress progressService) *ProgressHandler {
	return &ProgressHandler{progress: progress}
}

// Track godoc
// @Summary Record lecture progress
// @Tags Progress
// @Accept json
// @Produce json
// @Param lectureId path string true "Lecture ID"
// @Param payload body dto.TrackProgressRequest true "Progress payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /lectures/{lectureId}/progress [put]
func (h *ProgressHandler) Track(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.TrackProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	row, err := h.progress.TrackLectureProgress(c.Request.Context(), studentID, c.Param("lectureId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, row, nil)
}

// Complete godoc
// @Summary Mark a lecture as completed
// @Tags Progress
// @Param lectureId path string true "Lecture ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /lectures/{lectureId}/complete [post]
func (h *ProgressHandler) Complete(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.progress.MarkLectureAsCompleted(c.Request.Context(), studentID, c.Param("lectureId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Course godoc
// @Summary Get my progress through a course
// @Tags Progress
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/progress [get]
func (h *ProgressHandler) Course(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.progress.GetCourseProgress(c.Request.Context(), studentID, c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}
