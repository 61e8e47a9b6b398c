package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-progress-api/internal/middleware"
	"github.com/noah-isme/course-progress-api/internal/models"
	appErrors "github.com/noah-isme/course-progress-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// studentIDFromContext returns the authenticated caller, who acts as the student.
func studentIDFromContext(c *gin.Context) (string, error) {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		return "", appErrors.ErrUnauthorized
	}
	return claims.UserID, nil
}

func invalidPayload(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload")
}
