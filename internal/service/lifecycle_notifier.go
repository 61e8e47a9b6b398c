package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-progress-api/internal/models"
)

type eventPublisher interface {
	Publish(ctx context.Context, event models.EnrollmentEvent) error
}

type certificateScheduler interface {
	ScheduleIssue(enrollment models.Enrollment) error
}

// lifecycleNotifier runs the side effects of a committed enrollment change.
// Nothing here can undo the change; failures are logged and counted.
type lifecycleNotifier struct {
	publisher    eventPublisher
	certificates certificateScheduler
	metrics      *MetricsService
	logger       *zap.Logger
}

func newLifecycleNotifier(publisher eventPublisher, certificates certificateScheduler, metrics *MetricsService, logger *zap.Logger) *lifecycleNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &lifecycleNotifier{publisher: publisher, certificates: certificates, metrics: metrics, logger: logger}
}

func (n *lifecycleNotifier) notify(ctx context.Context, eventType models.EventType, enrollment *models.Enrollment, trigger string, at time.Time) {
	if n == nil || enrollment == nil {
		return
	}
	if eventType != models.EventEnrollmentCreated && eventType != models.EventCertificateIssued {
		n.metrics.RecordTransition(enrollment.Status, trigger)
	}

	if n.publisher != nil {
		// The request may be gone by now; the event still belongs to a committed change.
		err := n.publisher.Publish(context.WithoutCancel(ctx), models.NewEnrollmentEvent(eventType, enrollment, at))
		n.metrics.RecordEvent(eventType, err)
		if err != nil {
			n.logger.Error("publish lifecycle event failed",
				zap.String("type", string(eventType)),
				zap.String("enrollment_id", enrollment.ID),
				zap.Error(err))
		}
	}

	if eventType == models.EventEnrollmentCompleted && n.certificates != nil {
		if err := n.certificates.ScheduleIssue(*enrollment); err != nil {
			n.logger.Warn("schedule certificate issuance failed",
				zap.String("enrollment_id", enrollment.ID),
				zap.Error(err))
		}
	}
}
