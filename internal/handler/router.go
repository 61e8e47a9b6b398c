package handler

import (
	"github.com/gin-gonic/gin"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes.
type Handlers struct {
	Enrollments  *EnrollmentHandler
	Progress     *ProgressHandler
	Quizzes      *QuizHandler
	Certificates *CertificateHandler
	Expiration   *ExpirationHandler
	Metrics      *MetricsHandler
}

// RegisterRoutes mounts the API under prefix. auth resolves the caller; admin
// additionally restricts operator endpoints.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, auth, admin gin.HandlerFunc) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)
	// Signed links carry their own authorization.
	api.GET("/certificates/download", h.Certificates.Download)

	secured := api.Group("")
	secured.Use(auth)

	secured.GET("/enrollments", h.Enrollments.List)
	secured.POST("/enrollments", h.Enrollments.Create)

	courses := secured.Group("/courses/:courseId")
	courses.GET("/enrollment", h.Enrollments.Get)
	courses.POST("/enrollment/cancel", h.Enrollments.Cancel)
	courses.POST("/enrollment/complete", h.Enrollments.Complete)
	courses.GET("/progress", h.Progress.Course)
	courses.POST("/certificate", h.Certificates.Issue)

	secured.PUT("/lectures/:lectureId/progress", h.Progress.Track)
	secured.POST("/lectures/:lectureId/complete", h.Progress.Complete)
	secured.POST("/quizzes/:quizId/submissions", h.Quizzes.Submit)

	operators := secured.Group("/admin")
	operators.Use(admin)
	operators.POST("/enrollments/expire", h.Expiration.Run)
}
