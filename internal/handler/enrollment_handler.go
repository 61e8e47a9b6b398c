package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-progress-api/internal/dto"
	"github.com/noah-isme/course-progress-api/internal/models"
	"github.com/noah-isme/course-progress-api/pkg/response"
)

type enrollmentService interface {
	Enroll(ctx context.Context, req dto.EnrollRequest) (*models.Enrollment, error)
	Cancel(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	Complete(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	Get(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	List(ctx context.Context, studentID string, query dto.EnrollmentQuery) ([]models.Enrollment, *models.Pagination, error)
}

// EnrollmentHandler exposes enrollment endpoints for the authenticated student.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// List godoc
// @Summary List my enrollments
// @Tags Enrollments
// @Produce json
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var query dto.EnrollmentQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), studentID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Create godoc
// @Summary Enroll in a course
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	req.StudentID = studentID
	enrollment, err := h.enrollments.Enroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Get godoc
// @Summary Get my enrollment in a course
// @Tags Enrollments
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/enrollment [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	h.respond(c, h.enrollments.Get)
}

// Cancel godoc
// @Summary Cancel my enrollment
// @Tags Enrollments
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{courseId}/enrollment/cancel [post]
func (h *EnrollmentHandler) Cancel(c *gin.Context) {
	h.respond(c, h.enrollments.Cancel)
}

// Complete godoc
// @Summary Mark my enrollment as completed
// @Tags Enrollments
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/enrollment/complete [post]
func (h *EnrollmentHandler) Complete(c *gin.Context) {
	h.respond(c, h.enrollments.Complete)
}

func (h *EnrollmentHandler) respond(c *gin.Context, fn func(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	enrollment, err := fn(c.Request.Context(), studentID, c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}
