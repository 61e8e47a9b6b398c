package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/course-progress-api/api/swagger"
	"github.com/noah-isme/course-progress-api/internal/handler"
	"github.com/noah-isme/course-progress-api/internal/middleware"
	"github.com/noah-isme/course-progress-api/internal/models"
	"github.com/noah-isme/course-progress-api/internal/repository"
	"github.com/noah-isme/course-progress-api/internal/service"
	"github.com/noah-isme/course-progress-api/pkg/cache"
	"github.com/noah-isme/course-progress-api/pkg/certificate"
	"github.com/noah-isme/course-progress-api/pkg/config"
	"github.com/noah-isme/course-progress-api/pkg/database"
	"github.com/noah-isme/course-progress-api/pkg/events"
	"github.com/noah-isme/course-progress-api/pkg/jobs"
	"github.com/noah-isme/course-progress-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-progress-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-progress-api/pkg/middleware/requestid"
	"github.com/noah-isme/course-progress-api/pkg/storage"
)

// @title Course Progress API
// @version 1.0.0
// @description Enrollment, lecture progress, quiz grading and certificates for the course marketplace.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			return err
		}
		version, dirty, err := database.Version(db)
		if err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		logr.Info("schema ready", zap.Uint("version", version), zap.Bool("dirty", dirty))
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis, logr)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Redis.CacheTTL, logr, cfg.Redis.Enabled)

	var publisher events.Publisher = events.Noop{}
	if cfg.Events.Enabled {
		rabbit, err := events.Dial(cfg.Events.RabbitMQURL, cfg.Events.Exchange, logr)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		publisher = rabbit
	}
	defer publisher.Close() //nolint:errcheck

	objects, err := newObjectStore(cfg, logr)
	if err != nil {
		return err
	}

	catalogRepo := repository.NewCatalogRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	progressRepo := repository.NewLectureProgressRepository(db)
	validate := validator.New()

	certificateSvc := service.NewCertificateService(
		enrollmentRepo,
		catalogRepo,
		certificate.NewRenderer(cfg.Certificates.Issuer),
		objects,
		storage.NewSignedURLSigner(cfg.Certificates.SignedURLSecret, cfg.Certificates.SignedURLTTL),
		publisher,
		metrics,
		service.CertificateConfig{DownloadURL: cfg.APIPrefix + "/certificates/download", Issuer: cfg.Certificates.Issuer},
		logr,
	)
	certificateQueue := jobs.NewQueue("certificates", certificateSvc.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Certificates.Workers,
		MaxRetries: cfg.Certificates.Retries,
		Logger:     logr,
		OnGiveUp: func(job jobs.Job, err error) {
			metrics.RecordCertificate("abandoned")
		},
	})
	certificateQueue.Start(ctx)
	defer certificateQueue.Stop()
	certificateSvc.UseQueue(certificateQueue)

	progressSvc := service.NewProgressService(service.ProgressServiceDeps{
		Catalog:      catalogRepo,
		Enrollments:  enrollmentRepo,
		Progress:     progressRepo,
		Tx:           db,
		Cache:        cacheSvc,
		Publisher:    publisher,
		Certificates: certificateSvc,
		Metrics:      metrics,
		Validator:    validate,
		Logger:       logr,
	})
	enrollmentSvc := service.NewEnrollmentService(service.EnrollmentServiceDeps{
		Courses:      catalogRepo,
		Enrollments:  enrollmentRepo,
		Progress:     progressRepo,
		Tx:           db,
		Cache:        cacheSvc,
		Publisher:    publisher,
		Certificates: certificateSvc,
		Metrics:      metrics,
		Validator:    validate,
		Logger:       logr,
	})
	quizSvc := service.NewQuizService(catalogRepo, progressSvc, metrics, validate, logr)
	expirationSvc := service.NewExpirationService(enrollmentRepo, cacheRepo, cacheSvc, publisher, metrics, service.ExpirationConfig{
		Interval:    cfg.Expiration.Interval,
		BatchSize:   cfg.Expiration.BatchSize,
		Parallelism: cfg.Expiration.Parallelism,
		LockTTL:     cfg.Expiration.LockTTL,
	}, logr)
	if cfg.Expiration.Enabled {
		expirationSvc.Start(ctx)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Enrollments:  handler.NewEnrollmentHandler(enrollmentSvc),
		Progress:     handler.NewProgressHandler(progressSvc),
		Quizzes:      handler.NewQuizHandler(quizSvc),
		Certificates: handler.NewCertificateHandler(certificateSvc),
		Expiration:   handler.NewExpirationHandler(expirationSvc),
		Metrics: handler.NewMetricsHandler(metrics, map[string]handler.ReadinessCheck{
			"postgres": db.PingContext,
			"redis":    cacheRepo.Ping,
		}),
	}, middleware.JWT(service.NewTokenVerifier(cfg.JWT.Secret)), middleware.RequireRoles(models.RoleAdmin))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newObjectStore(cfg *config.Config, logr *zap.Logger) (storage.ObjectStore, error) {
	switch cfg.Certificates.Storage {
	case config.StorageMinIO:
		store, err := storage.NewMinIOStorage(storage.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			Region:    cfg.MinIO.Region,
			UseSSL:    cfg.MinIO.UseSSL,
		}, logr)
		if err != nil {
			return nil, fmt.Errorf("init minio storage: %w", err)
		}
		return store, nil
	default:
		store, err := storage.NewLocalStorage(cfg.Certificates.StorageDir)
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		return store, nil
	}
}
