// Package objstore holds image objects and hands out time-limited URLs for
// them. Swap backends by changing the concrete type injected at startup.
package objstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// DefaultBucket is the bucket clothing images are stored in.
const DefaultBucket = "clothing-images"

// DefaultMaxObjectSize matches the upload limit enforced by validation.
const DefaultMaxObjectSize = 10 << 20

var (
	// ErrExists is returned by Upload when the key is already taken.
	ErrExists = errors.New("object already exists")
	// ErrTooLarge is returned by Upload when the payload exceeds the backend limit.
	ErrTooLarge = errors.New("payload too large")
	// ErrNotFound is returned when no object is stored under a key.
	ErrNotFound = errors.New("object not found")
)

// Storage is the interface for uploading objects and resolving their URLs.
type Storage interface {
	// Upload stores data under key. Existing objects are never overwritten.
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// SignedURL returns a URL granting read access to key for ttl.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// PublicURL returns the unsigned URL for key. It only works for public buckets.
	PublicURL(key string) string
	// Remove deletes the given keys. Missing keys are not an error.
	Remove(ctx context.Context, keys ...string) error
	// Bucket returns the bucket name.
	Bucket() string
}
