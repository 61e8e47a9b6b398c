package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-progress-api/internal/models"
	"github.com/noah-isme/course-progress-api/pkg/certificate"
	"github.com/noah-isme/course-progress-api/pkg/response"
)

type certificateService interface {
	Issue(ctx context.Context, studentID, courseID string) (*models.Certificate, error)
	ResolveDownload(ctx context.Context, token string) (io.ReadCloser, string, error)
}

// CertificateHandler issues and serves completion certificates.
type CertificateHandler struct {
	certificates certificateService
}

// NewCertificateHandler constructs CertificateHandler.
func NewCertificateHandler(certificates certificateService) *CertificateHandler {
	return &CertificateHandler{certificates: certificates}
}

// Issue godoc
// @Summary Issue my certificate for a completed course
// @Tags Certificates
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{courseId}/certificate [post]
func (h *CertificateHandler) Issue(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	cert, err := h.certificates.Issue(c.Request.Context(), studentID, c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cert, nil)
}

// Download godoc
// @Summary Download a certificate through a signed link
// @Tags Certificates
// @Produce application/pdf
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /certificates/download [get]
func (h *CertificateHandler) Download(c *gin.Context) {
	body, filename, err := h.certificates.ResolveDownload(c.Request.Context(), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer body.Close()
	response.Attachment(c, filename, certificate.ContentType, body)
}
