package objstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/erazemk/omara/internal/storagepath"
	"github.com/erazemk/omara/internal/store"
)

// BlobConfig configures a BlobStorage.
type BlobConfig struct {
	Bucket        string
	BaseURL       string
	Secret        string
	Public        bool
	MaxObjectSize int64
	Logger        *slog.Logger
}

// BlobStorage keeps objects as BLOBs in the SQLite database and serves them
// through signed URLs of the form <base>/object/sign/<bucket>/<key>?token=.
type BlobStorage struct {
	db      *sql.DB
	bucket  string
	baseURL string
	secret  []byte
	public  bool
	maxSize int64
	log     *slog.Logger
}

type urlClaims struct {
	URL string `json:"url"`
	jwt.RegisteredClaims
}

// NewBlobStorage returns a BlobStorage over db.
func NewBlobStorage(db *sql.DB, cfg BlobConfig) *BlobStorage {
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}
	if cfg.MaxObjectSize <= 0 {
		cfg.MaxObjectSize = DefaultMaxObjectSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &BlobStorage{
		db:      db,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		secret:  []byte(cfg.Secret),
		public:  cfg.Public,
		maxSize: cfg.MaxObjectSize,
		log:     cfg.Logger,
	}
}

// Bucket returns the bucket name.
func (s *BlobStorage) Bucket() string { return s.bucket }

// Public reports whether objects may be read without a token.
func (s *BlobStorage) Public() bool { return s.public }

// Upload stores the reader's content under key.
func (s *BlobStorage) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if size > s.maxSize {
		return fmt.Errorf("put object %q: %w", key, ErrTooLarge)
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return fmt.Errorf("reading object %q: %w", key, err)
	}
	if int64(len(data)) > s.maxSize {
		return fmt.Errorf("put object %q: %w", key, ErrTooLarge)
	}

	err = store.PutObject(ctx, s.db, store.Object{
		Bucket:      s.bucket,
		Key:         key,
		Data:        data,
		ContentType: contentType,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return fmt.Errorf("put object %q: %w", key, ErrExists)
	}
	if err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}

	s.log.Info("object stored", "bucket", s.bucket, "key", key, "size", len(data))
	return nil
}

// SignedURL returns a download URL for key valid for ttl. The object must exist.
func (s *BlobStorage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	ok, err := store.ObjectExists(ctx, s.db, s.bucket, key)
	if err != nil {
		return "", fmt.Errorf("signing %q: %w", key, err)
	}
	if !ok {
		return "", fmt.Errorf("signing %q: %w", key, ErrNotFound)
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, urlClaims{
		URL: s.bucket + "/" + key,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing %q: %w", key, err)
	}

	return s.baseURL + "/object/sign/" + s.bucket + "/" + storagepath.Escape(key) + "?token=" + signed, nil
}

// Verify checks that token grants access to key.
func (s *BlobStorage) Verify(key, token string) error {
	claims := &urlClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("parsing url token: %w", err)
	}
	if claims.URL != s.bucket+"/"+key {
		return fmt.Errorf("url token is for %q, not %q", claims.URL, s.bucket+"/"+key)
	}
	return nil
}

// PublicURL returns the unsigned URL for key.
func (s *BlobStorage) PublicURL(key string) string {
	return s.baseURL + "/object/public/" + s.bucket + "/" + storagepath.Escape(key)
}

// Open returns the stored object under key.
func (s *BlobStorage) Open(ctx context.Context, key string) (*store.Object, error) {
	o, err := store.GetObject(ctx, s.db, s.bucket, key)
	if err != nil {
		return nil, fmt.Errorf("get object %q: %w", key, err)
	}
	if o == nil {
		return nil, fmt.Errorf("get object %q: %w", key, ErrNotFound)
	}
	return o, nil
}

// Remove deletes keys from the bucket.
func (s *BlobStorage) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	n, err := store.DeleteObjects(ctx, s.db, s.bucket, keys...)
	if err != nil {
		return fmt.Errorf("remove objects: %w", err)
	}
	s.log.Info("objects removed", "bucket", s.bucket, "requested", len(keys), "removed", n)
	return nil
}
