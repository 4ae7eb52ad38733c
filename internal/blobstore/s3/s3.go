// Package s3 stores attachments in a MinIO or S3 bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/vbonduro/renocheck/internal/blobstore"
	"github.com/vbonduro/renocheck/internal/config"
)

type Store struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// New creates a MinIO client from the Config. Public URLs default to
// path-style addresses on the endpoint unless S3_PUBLIC_URL is set.
func New(cfg *config.Config) (*Store, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init minio: %w", err)
	}

	public := cfg.S3PublicURL
	if public == "" {
		public = strings.TrimRight(client.EndpointURL().String(), "/") + "/" + cfg.S3Bucket
	}
	return &Store{
		client:    client,
		bucket:    cfg.S3Bucket,
		publicURL: strings.TrimRight(public, "/"),
	}, nil
}

// CheckBucket reports blobstore.ErrBucketNotFound when the bucket is missing.
// The bucket is never created here; provisioning belongs to the deployment.
func (s *Store) CheckBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		return fmt.Errorf("bucket %s: %w", s.bucket, blobstore.ErrBucketNotFound)
	}
	return nil
}

func (s *Store) Upload(ctx context.Context, objectPath, contentType string, r io.Reader, size int64) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	_, err := s.client.PutObject(ctx, s.bucket, objectPath, r, size, opts)
	if err != nil {
		if isNoSuchBucket(err) {
			return fmt.Errorf("failed to upload %s: %w", objectPath, blobstore.ErrBucketNotFound)
		}
		return fmt.Errorf("failed to upload %s: %w", objectPath, err)
	}
	return nil
}

func (s *Store) PublicURL(_ context.Context, objectPath string) (string, error) {
	if objectPath == "" {
		return "", errors.New("empty object path")
	}
	return s.publicURL + "/" + strings.TrimLeft(objectPath, "/"), nil
}

func isNoSuchBucket(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchBucket"
}
