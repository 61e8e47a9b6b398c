package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-progress-api/internal/models"
	appErrors "github.com/noah-isme/course-progress-api/pkg/errors"
	"github.com/noah-isme/course-progress-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// contextUserIDKey is read by the request logger.
const contextUserIDKey = "user_id"

var errMalformedHeader = appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")

// TokenValidator turns a bearer token into caller claims.
type TokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// bearerToken extracts the credential from "Bearer <token>".
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// JWT resolves the calling student or operator from the Authorization header.
// Downstream handlers read the claims under ContextUserKey.
func JWT(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, appErrors.ErrUnauthorized)
			return
		}
		token, ok := bearerToken(header)
		if !ok {
			abort(c, errMalformedHeader)
			return
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(ContextUserKey, claims)
		c.Set(contextUserIDKey, claims.UserID)
		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	response.Error(c, err)
	c.Abort()
}
