// Package storage persists content bodies in a MinIO bucket. Object names
// are chosen by the caller (the pipeline writes them under
// <source>/<content_uuid>.txt); this package treats them as opaque keys.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/leobrain/crawler/internal/logger"
)

const contentTypeText = "text/plain; charset=utf-8"

// noSuchKeyCode is the S3 error code for a missing object.
const noSuchKeyCode = "NoSuchKey"

// Service wraps a MinIO client scoped to a single bucket.
type Service struct {
	client *miniogo.Client
	bucket string
	region string
	log    logger.Interface
}

// New creates a Service from cfg. The client connects lazily; the endpoint
// is not contacted until the first operation.
func New(cfg Config, log logger.Interface) (*Service, error) {
	if log == nil {
		log = logger.NewNoOp()
	}
	if validateErr := cfg.validate(); validateErr != nil {
		return nil, fmt.Errorf("storage config: %w", validateErr)
	}

	client, clientErr := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if clientErr != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", clientErr)
	}

	return &Service{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		log:    log,
	}, nil
}

// Bucket returns the configured bucket name.
func (s *Service) Bucket() string {
	return s.bucket
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *Service) EnsureBucket(ctx context.Context) error {
	exists, checkErr := s.client.BucketExists(ctx, s.bucket)
	if checkErr != nil {
		return fmt.Errorf("failed to check bucket %q: %w", s.bucket, checkErr)
	}
	if exists {
		return nil
	}

	if makeErr := s.client.MakeBucket(ctx, s.bucket, miniogo.MakeBucketOptions{Region: s.region}); makeErr != nil {
		return fmt.Errorf("failed to create bucket %q: %w", s.bucket, makeErr)
	}

	s.log.Info("Created bucket", "bucket", s.bucket)
	return nil
}

// Put stores body under objectName with a text/plain content type.
func (s *Service) Put(ctx context.Context, objectName string, body []byte) error {
	_, putErr := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(body), int64(len(body)),
		miniogo.PutObjectOptions{ContentType: contentTypeText})
	if putErr != nil {
		return fmt.Errorf("failed to put object %q: %w", objectName, putErr)
	}

	s.log.Debug("Stored object",
		"bucket", s.bucket,
		"object", objectName,
		"size", len(body))
	return nil
}

// Get reads the body stored under objectName. A missing object is reported
// as ErrObjectNotFound.
func (s *Service) Get(ctx context.Context, objectName string) ([]byte, error) {
	obj, getErr := s.client.GetObject(ctx, s.bucket, objectName, miniogo.GetObjectOptions{})
	if getErr != nil {
		return nil, fmt.Errorf("failed to get object %q: %w", objectName, getErr)
	}
	defer obj.Close()

	data, readErr := io.ReadAll(obj)
	if readErr != nil {
		if miniogo.ToErrorResponse(readErr).Code == noSuchKeyCode {
			return nil, fmt.Errorf("object %q: %w", objectName, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to read object %q: %w", objectName, readErr)
	}

	return data, nil
}

// Remove deletes the object stored under objectName. Removing an object
// that is already gone succeeds.
func (s *Service) Remove(ctx context.Context, objectName string) error {
	if removeErr := s.client.RemoveObject(ctx, s.bucket, objectName, miniogo.RemoveObjectOptions{}); removeErr != nil {
		return fmt.Errorf("failed to remove object %q: %w", objectName, removeErr)
	}
	return nil
}

// Exists reports whether objectName is present in the bucket.
func (s *Service) Exists(ctx context.Context, objectName string) (bool, error) {
	_, statErr := s.client.StatObject(ctx, s.bucket, objectName, miniogo.StatObjectOptions{})
	if statErr != nil {
		if miniogo.ToErrorResponse(statErr).Code == noSuchKeyCode {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object %q: %w", objectName, statErr)
	}
	return true, nil
}

// HealthCheck verifies the bucket is reachable.
func (s *Service) HealthCheck(ctx context.Context) error {
	exists, checkErr := s.client.BucketExists(ctx, s.bucket)
	if checkErr != nil {
		return fmt.Errorf("failed to check bucket %q: %w", s.bucket, checkErr)
	}
	if !exists {
		return fmt.Errorf("bucket %q: %w", s.bucket, ErrBucketNotFound)
	}
	return nil
}
