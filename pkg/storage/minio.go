package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinIOConfig describes the bucket certificates are written to.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// MinIOStorage stores objects in an S3-compatible bucket.
type MinIOStorage struct {
	client *minio.Client
	bucket string
	region string
	logger *zap.Logger

	ensureMu      sync.Mutex
	bucketEnsured bool
}

// NewMinIOStorage builds the client. The bucket is created lazily on first write.
func NewMinIOStorage(cfg MinIOConfig, logger *zap.Logger) (*MinIOStorage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIOStorage{client: client, bucket: cfg.Bucket, region: cfg.Region, logger: logger}, nil
}

func (s *MinIOStorage) ensureBucket(ctx context.Context) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	if s.bucketEnsured {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
		s.logger.Info("created certificate bucket", zap.String("bucket", s.bucket))
	}
	s.bucketEnsured = true
	return nil
}

// Put uploads data under key.
func (s *MinIOStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	cleaned, err := CleanKey(key)
	if err != nil {
		return err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	info, err := s.client.PutObject(ctx, s.bucket, cleaned, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload object %s: %w", cleaned, err)
	}
	s.logger.Debug("object uploaded", zap.String("key", cleaned), zap.String("etag", info.ETag), zap.Int64("size", info.Size))
	return nil
}

// Get streams the object stored under key.
func (s *MinIOStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	if _, err := s.client.StatObject(ctx, s.bucket, cleaned, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("stat object %s: %w", cleaned, err)
	}
	object, err := s.client.GetObject(ctx, s.bucket, cleaned, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", cleaned, err)
	}
	return object, nil
}

// Delete removes the object stored under key.
func (s *MinIOStorage) Delete(ctx context.Context, key string) error {
	cleaned, err := CleanKey(key)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, cleaned, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object %s: %w", cleaned, err)
	}
	return nil
}
