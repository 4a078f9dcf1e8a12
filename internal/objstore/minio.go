package objstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/erazemk/omara/internal/storagepath"
)

// MaxPresignExpiry is the longest expiry S3 accepts for a presigned URL.
const MaxPresignExpiry = 7 * 24 * time.Hour

// MinioConfig configures a MinioStorage.
type MinioConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	UseSSL        bool
	Public        bool
	MaxObjectSize int64
	Logger        *slog.Logger
}

// MinioStorage implements Storage using a MinIO (or any S3-compatible) backend.
type MinioStorage struct {
	client     *minio.Client
	bucket     string
	publicBase string
	maxSize    int64
	log        *slog.Logger
}

// NewMinioStorage creates a MinIO client, ensures the bucket exists and, for
// public buckets, sets a public-read policy.
func NewMinioStorage(ctx context.Context, cfg MinioConfig) (*MinioStorage, error) {
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}
	if cfg.MaxObjectSize <= 0 {
		cfg.MaxObjectSize = DefaultMaxObjectSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client, err := newMinioClient(cfg)
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
		cfg.Logger.Info("created bucket", "bucket", cfg.Bucket)
	}

	if cfg.Public {
		if err := client.SetBucketPolicy(ctx, cfg.Bucket, publicReadPolicy(cfg.Bucket)); err != nil {
			return nil, fmt.Errorf("set bucket policy: %w", err)
		}
	}

	return &MinioStorage{
		client:     client,
		bucket:     cfg.Bucket,
		publicBase: strings.TrimRight(client.EndpointURL().String(), "/") + "/" + cfg.Bucket,
		maxSize:    cfg.MaxObjectSize,
		log:        cfg.Logger,
	}, nil
}

// newMinioClient returns a client that always addresses objects path-style
// (host/<bucket>/<key>), so stored URLs parse back to their keys. With a
// region set, presigning needs no bucket location lookup.
func newMinioClient(cfg MinioConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return client, nil
}

// Bucket returns the bucket name.
func (s *MinioStorage) Bucket() string { return s.bucket }

// Upload streams reader to MinIO under key. An existing key is reported as
// ErrExists instead of being overwritten.
func (s *MinioStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if size > s.maxSize {
		return fmt.Errorf("put object %q: %w", key, ErrTooLarge)
	}

	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return fmt.Errorf("put object %q: %w", key, ErrExists)
	}
	if !isNoSuchKey(err) {
		return fmt.Errorf("stat object %q: %w", key, err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "private, max-age=3600",
	})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "EntityTooLarge" {
			return fmt.Errorf("put object %q: %w", key, ErrTooLarge)
		}
		return fmt.Errorf("put object %q: %w", key, err)
	}
	return nil
}

// SignedURL returns a presigned GET URL. Expiries beyond MaxPresignExpiry are
// clamped.
func (s *MinioStorage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return "", fmt.Errorf("signing %q: %w", key, ErrNotFound)
		}
		return "", fmt.Errorf("signing %q: %w", key, err)
	}

	if ttl > MaxPresignExpiry {
		ttl = MaxPresignExpiry
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("signing %q: %w", key, err)
	}
	return u.String(), nil
}

// PublicURL returns the path-style URL for key.
func (s *MinioStorage) PublicURL(key string) string {
	return s.publicBase + "/" + storagepath.Escape(key)
}

// Remove deletes keys from the bucket.
func (s *MinioStorage) Remove(ctx context.Context, keys ...string) error {
	objects := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objects <- minio.ObjectInfo{Key: key}
	}
	close(objects)

	var errs []error
	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
		errs = append(errs, fmt.Errorf("remove object %q: %w", rerr.ObjectName, rerr.Err))
	}
	return errors.Join(errs...)
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

// publicReadPolicy returns an S3 bucket policy JSON that allows anonymous GET on all objects.
func publicReadPolicy(bucket string) string {
	policy := map[string]any{
		"Version": "2012-10-17",
		"Statement": []map[string]any{
			{
				"Effect":    "Allow",
				"Principal": "*",
				"Action":    "s3:GetObject",
				"Resource":  fmt.Sprintf("arn:aws:s3:::%s/*", bucket),
			},
		},
	}
	b, _ := json.Marshal(policy)
	return string(b)
}
