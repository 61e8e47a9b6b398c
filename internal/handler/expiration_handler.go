package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-progress-api/internal/dto"
	"github.com/noah-isme/course-progress-api/pkg/response"
)

type expirationService interface {
	ProcessExpiredEnrollments(ctx context.Context) (int, error)
}

// ExpirationHandler lets operators trigger the expiration sweep on demand.
type ExpirationHandler struct {
	sweeper expirationService
}

// NewExpirationHandler constructs ExpirationHandler.
func NewExpirationHandler(sweeper expirationService) *ExpirationHandler {
	return &ExpirationHandler{sweeper: sweeper}
}

// Run godoc
// @Summary Expire overdue enrollments
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/enrollments/expire [post]
func (h *ExpirationHandler) Run(c *gin.Context) {
	expired, err := h.sweeper.ProcessExpiredEnrollments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ExpireEnrollmentsResponse{Expired: expired}, nil)
}
