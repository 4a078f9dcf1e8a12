package wardrobe

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/erazemk/omara/internal/objstore"
	"github.com/erazemk/omara/internal/storagepath"
)

// DefaultSignedURLTTL is how long display URLs stay valid.
const DefaultSignedURLTTL = 30 * 24 * time.Hour

var errEmptyPath = errors.New("empty image path")

// Resolver turns stored image references into display URLs.
type Resolver struct {
	Storage objstore.Storage
	TTL     time.Duration

	// QualifyBareNames prefixes "<ownerId>/" to references that carry no
	// folder at all.
	QualifyBareNames bool
}

// NewResolver returns a Resolver for storage with the default TTL.
func NewResolver(storage objstore.Storage) *Resolver {
	return &Resolver{Storage: storage, TTL: DefaultSignedURLTTL}
}

func (r *Resolver) parser() storagepath.Parser {
	return storagepath.Parser{Bucket: r.Storage.Bucket()}
}

// Canonical returns the bucket-relative path of raw.
func (r *Resolver) Canonical(raw, ownerID string) string {
	ref := r.parser().Parse(strings.TrimSpace(raw))
	path := strings.TrimPrefix(ref.Path, "/")
	if r.QualifyBareNames && ref.Kind == storagepath.Bare && ownerID != "" &&
		path != "" && !strings.Contains(path, "/") {
		path = ownerID + "/" + path
	}
	return path
}

// DisplayURL returns a fresh signed URL for raw. On failure it returns the
// canonical path together with a *ResolutionError.
func (r *Resolver) DisplayURL(ctx context.Context, raw, ownerID string) (string, error) {
	path := r.Canonical(raw, ownerID)
	if path == "" {
		return "", &ResolutionError{Path: raw, Err: errEmptyPath}
	}

	ttl := r.TTL
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}

	url, err := r.Storage.SignedURL(ctx, path, ttl)
	if err != nil {
		return path, &ResolutionError{Path: path, Err: err}
	}
	return url, nil
}
