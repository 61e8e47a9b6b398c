package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/course-progress-api/internal/models"
	appErrors "github.com/noah-isme/course-progress-api/pkg/errors"
)

const expirationLockKey = "locks:expiration-sweep"

type expirationStore interface {
	ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]models.Enrollment, error)
	Expire(ctx context.Context, id string, now time.Time) (bool, error)
}

type sweepLocker interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// ExpirationConfig governs the sweep.
type ExpirationConfig struct {
	Interval    time.Duration
	BatchSize   int
	Parallelism int
	LockTTL     time.Duration
}

// ExpirationService moves Active enrollments past their expiry to Expired.
type ExpirationService struct {
	repo     expirationStore
	locker   sweepLocker
	cache    *CacheService
	notifier *lifecycleNotifier
	metrics  *MetricsService
	cfg      ExpirationConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewExpirationService constructs the sweeper.
func NewExpirationService(repo expirationStore, locker sweepLocker, cache *CacheService, publisher eventPublisher, metrics *MetricsService, cfg ExpirationConfig, logger *zap.Logger) *ExpirationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	return &ExpirationService{
		repo:     repo,
		locker:   locker,
		cache:    cache,
		notifier: newLifecycleNotifier(publisher, nil, metrics, logger),
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ProcessExpiredEnrollments expires every Active enrollment whose expiry has
// passed and returns how many it transitioned. Each transition is a single
// guarded statement, so reruns only touch enrollments still Active-and-expired.
func (s *ExpirationService) ProcessExpiredEnrollments(ctx context.Context) (int, error) {
	start := time.Now()
	now := s.now()
	total := 0
	defer func() { s.metrics.ObserveSweep(total, time.Since(start)) }()

	for {
		batch, err := s.repo.ListExpiredActive(ctx, now, s.cfg.BatchSize)
		if err != nil {
			return total, appErrors.Storage(err, "failed to list expired enrollments")
		}
		if len(batch) == 0 {
			return total, nil
		}

		expired, err := s.expireBatch(ctx, batch, now)
		total += expired
		if err != nil {
			return total, appErrors.Storage(err, "failed to expire enrollments")
		}
		if len(batch) < s.cfg.BatchSize {
			return total, nil
		}
	}
}

func (s *ExpirationService) expireBatch(ctx context.Context, batch []models.Enrollment, now time.Time) (int, error) {
	var (
		mu      sync.Mutex
		expired int
		g       errgroup.Group
	)
	g.SetLimit(s.cfg.Parallelism)

	for i := range batch {
		enrollment := batch[i]
		if err := ExpireEnrollment(&enrollment, now); err != nil {
			s.logger.Debug("skip enrollment not eligible for expiry", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
			continue
		}
		g.Go(func() error {
			ok, err := s.repo.Expire(ctx, enrollment.ID, now)
			if err != nil {
				s.logger.Warn("expire enrollment failed", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
				return err
			}
			if !ok {
				return nil
			}
			mu.Lock()
			expired++
			mu.Unlock()

			s.cache.Invalidate(ctx, CourseProgressKey(enrollment.StudentID, enrollment.CourseID))
			s.notifier.notify(ctx, models.EventEnrollmentExpired, &enrollment, "sweep", now)
			return nil
		})
	}
	err := g.Wait()
	return expired, err
}

// Start runs the sweep on every interval tick until ctx is cancelled. Only the
// instance holding the redis lock sweeps on a given tick.
func (s *ExpirationService) Start(ctx context.Context) {
	if s.cfg.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweepOnce(ctx)
			}
		}
	}()
}

func (s *ExpirationService) sweepOnce(ctx context.Context) {
	token := uuid.NewString()
	if s.locker != nil {
		ok, err := s.locker.AcquireLock(ctx, expirationLockKey, token, s.cfg.LockTTL)
		if err != nil {
			s.logger.Warn("acquire sweep lock failed", zap.Error(err))
			return
		}
		if !ok {
			return
		}
		defer func() {
			if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), expirationLockKey, token); err != nil {
				s.logger.Warn("release sweep lock failed", zap.Error(err))
			}
		}()
	}

	count, err := s.ProcessExpiredEnrollments(ctx)
	if err != nil {
		s.logger.Error("expiration sweep failed", zap.Int("expired", count), zap.Error(err))
		return
	}
	if count > 0 {
		s.logger.Info("expiration sweep finished", zap.Int("expired", count))
	}
}
