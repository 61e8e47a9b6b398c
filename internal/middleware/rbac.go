package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-progress-api/internal/models"
	appErrors "github.com/noah-isme/course-progress-api/pkg/errors"
)

// RequireRoles only lets callers holding one of roles through. It must run after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		value, _ := c.Get(ContextUserKey)
		claims, ok := value.(*models.JWTClaims)
		if !ok || claims == nil {
			abort(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			abort(c, appErrors.Clone(appErrors.ErrForbidden, "role "+string(claims.Role)+" may not perform this action"))
			return
		}
		c.Next()
	}
}
