package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/cenkalti/backoff/v4"
	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/mikeyg42/otgcam/internal/config"
)

// MinIOStore implements ObjectStore on MinIO or any S3-compatible endpoint.
type MinIOStore struct {
	client *minio.Client
	bucket string
	cfg    config.MinIOConfig
	logger *zap.Logger

	uploads     atomic.Uint64
	uploadBytes atomic.Uint64
	errors      atomic.Uint64
}

// NewMinIOStore connects to cfg.Endpoint and creates the bucket if it is missing.
func NewMinIOStore(ctx context.Context, cfg config.MinIOConfig) (*MinIOStore, error) {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	s := &MinIOStore{
		client: client,
		bucket: cfg.Bucket,
		cfg:    cfg,
		logger: zap.L().Named("minio-store"),
	}

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, &StorageError{Op: "bucket_exists", Key: cfg.Bucket, Err: err, StatusCode: statusCode(err)}
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, &StorageError{Op: "make_bucket", Key: cfg.Bucket, Err: err, StatusCode: statusCode(err)}
		}
		s.logger.Info("created bucket", zap.String("bucket", cfg.Bucket))
	}
	return s, nil
}

func (s *MinIOStore) newBackOff() backoff.BackOff {
	ebo := backoff.NewExponentialBackOff()
	if s.cfg.RetryBackoff > 0 {
		ebo.InitialInterval = s.cfg.RetryBackoff
	}
	ebo.Reset()
	return backoff.WithMaxRetries(ebo, uint64(s.cfg.MaxRetries))
}

// Put uploads r under key, retrying transient failures. Only seekable readers
// are retried.
func (s *MinIOStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	opts := minio.PutObjectOptions{ContentType: contentType}

	attempt := 0
	op := func() error {
		attempt++
		if attempt > 1 {
			rs, ok := r.(io.Seeker)
			if !ok {
				return backoff.Permanent(errors.New("reader not seekable; not retrying"))
			}
			if _, err := rs.Seek(0, io.SeekStart); err != nil {
				return backoff.Permanent(fmt.Errorf("seek reset failed: %w", err))
			}
		}

		info, err := s.client.PutObject(ctx, s.bucket, key, r, size, opts)
		if err != nil {
			s.errors.Add(1)
			if code := statusCode(err); code == 403 || code == 400 {
				return backoff.Permanent(err)
			}
			return err
		}
		s.uploads.Add(1)
		s.uploadBytes.Add(uint64(info.Size))
		s.logger.Debug("object uploaded",
			zap.String("key", key),
			zap.Int64("size", info.Size),
			zap.String("etag", info.ETag))
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(s.newBackOff(), ctx)); err != nil {
		code := statusCode(err)
		return &StorageError{Op: "put", Key: key, Err: err, StatusCode: code, Retryable: code >= 500}
	}
	return nil
}

// HealthCheck verifies the bucket is reachable.
func (s *MinIOStore) HealthCheck(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return &StorageError{Op: "health_check", Err: err, StatusCode: statusCode(err)}
	}
	if !exists {
		return &StorageError{Op: "health_check", Err: fmt.Errorf("bucket %s does not exist", s.bucket), StatusCode: 404}
	}
	return nil
}

// Stats returns upload counters.
func (s *MinIOStore) Stats() (uploads, bytes, failed uint64) {
	return s.uploads.Load(), s.uploadBytes.Load(), s.errors.Load()
}

func statusCode(err error) int {
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode != 0 {
		return resp.StatusCode
	}
	switch resp.Code {
	case "":
		return 0
	case "NoSuchKey", "NoSuchBucket":
		return 404
	case "AccessDenied":
		return 403
	case "InvalidArgument":
		return 400
	default:
		return 500
	}
}
