// Package wardrobe orchestrates uploading clothing photos, saving catalog
// records and resolving their display URLs.
package wardrobe

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"path"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/erazemk/omara/internal/imaging"
	"github.com/erazemk/omara/internal/model"
	"github.com/erazemk/omara/internal/objstore"
	"github.com/erazemk/omara/internal/sanitize"
	"github.com/erazemk/omara/internal/storagepath"
	"github.com/erazemk/omara/internal/store"
	"github.com/erazemk/omara/internal/validate"
)

// DefaultResolveConcurrency bounds parallel URL signing in List.
const DefaultResolveConcurrency = 8

// File is an image ready to upload.
type File struct {
	Name string
	MIME string
	Data []byte
}

// Item is the input to Save.
type Item struct {
	validate.Fields
	ImagePath string `json:"image_path"`
}

// Service is the stateless upload/fetch orchestrator. Every call is scoped
// to the owner passed in.
type Service struct {
	DB       *sql.DB
	Storage  objstore.Storage
	Resolver *Resolver
	Logger   *slog.Logger

	// Concurrency bounds parallel URL signing in List.
	Concurrency int

	// Now is the clock used for storage keys and timestamps.
	Now func() time.Time
}

// NewService returns a Service with a default Resolver over storage.
func NewService(db *sql.DB, storage objstore.Storage, logger *slog.Logger) *Service {
	return &Service{
		DB:       db,
		Storage:  storage,
		Resolver: NewResolver(storage),
		Logger:   logger,
	}
}

// Upload validates f and stores it under "<ownerID>/<epochMillis>.<ext>".
// It returns the canonical path.
func (s *Service) Upload(ctx context.Context, ownerID string, f File) (string, error) {
	if ownerID == "" {
		return "", ErrUnauthenticated
	}

	res := validate.ImageFile(validate.File{Name: f.Name, MIME: f.MIME, Size: int64(len(f.Data))})
	if !res.Valid {
		return "", res.Err()
	}
	if detected := imaging.Sniff(f.Data); !imaging.AllowedMIME[detected] {
		return "", &validate.Error{Errors: []string{"File content is not a JPEG, PNG, or WebP image"}}
	}

	key := storagepath.NewKey(ownerID, s.now(), path.Ext(f.Name))
	err := s.Storage.Upload(ctx, key, bytes.NewReader(f.Data), int64(len(f.Data)), f.MIME)
	if err != nil {
		s.logger().Error("upload failed", "owner", ownerID, "key", key, "error", err)
		return "", &UploadError{Key: key, Err: err}
	}

	s.logger().Info("image uploaded", "owner", ownerID, "key", key, "size", len(f.Data))
	return key, nil
}

// Save sanitizes and then validates in, inserts the catalog record and
// returns it with a freshly resolved display URL.
func (s *Service) Save(ctx context.Context, ownerID string, in Item) (*model.ClothingItem, error) {
	if ownerID == "" {
		return nil, ErrUnauthenticated
	}

	fields := in.Fields
	fields.Name = sanitize.Text(fields.Name)
	fields.Color = sanitize.Text(fields.Color)

	res := validate.ClothingItem(fields)
	imagePath := s.Resolver.Canonical(in.ImagePath, ownerID)
	switch owner := storagepath.Owner(imagePath); {
	case imagePath == "":
		res.Errors = append(res.Errors, "Image is required")
	case owner != "" && owner != ownerID:
		res.Errors = append(res.Errors, "Image does not belong to this account")
	}
	if len(res.Errors) > 0 {
		return nil, &validate.Error{Errors: res.Errors}
	}

	item, err := store.CreateClothing(ctx, s.DB, store.NewClothing{
		OwnerID:   ownerID,
		ImagePath: imagePath,
		Category:  fields.Category,
		Occasion:  fields.Occasion,
		Name:      fields.Name,
		Color:     fields.Color,
		CreatedAt: s.now(),
	})
	if err != nil {
		s.logger().Error("saving clothing item failed", "owner", ownerID, "error", err)
		return nil, &PersistenceError{
			Op:         "saving clothing item",
			Constraint: errors.Is(err, store.ErrConstraint),
			Err:        err,
		}
	}

	s.resolve(ctx, item)
	s.logger().Info("clothing item saved", "owner", ownerID, "id", item.ID)
	return item, nil
}

// List returns the owner's items newest first, each with a fresh display URL.
// Items whose URL cannot be signed keep their canonical path as DisplayURL.
func (s *Service) List(ctx context.Context, ownerID string) ([]model.ClothingItem, error) {
	if ownerID == "" {
		return nil, ErrUnauthenticated
	}

	items, err := store.ListClothing(ctx, s.DB, ownerID)
	if err != nil {
		return nil, &PersistenceError{Op: "listing clothing", Err: err}
	}

	limit := s.Concurrency
	if limit <= 0 {
		limit = DefaultResolveConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range items {
		g.Go(func() error {
			s.resolve(gctx, &items[i])
			return nil
		})
	}
	g.Wait()

	return items, nil
}

// Remove deletes the owner's item and then, best effort, its stored image.
func (s *Service) Remove(ctx context.Context, ownerID, id string) error {
	if ownerID == "" {
		return ErrUnauthenticated
	}

	item, err := store.DeleteClothing(ctx, s.DB, ownerID, id)
	if err != nil {
		return &PersistenceError{
			Op:       "deleting clothing item",
			NotFound: errors.Is(err, store.ErrNotFound),
			Err:      err,
		}
	}
	s.logger().Info("clothing item deleted", "owner", ownerID, "id", id)

	key := s.Resolver.Canonical(item.ImagePath, ownerID)
	if storagepath.Owner(key) != ownerID {
		return nil
	}
	if err := s.Storage.Remove(ctx, key); err != nil {
		s.logger().Warn("removing image failed", "owner", ownerID, "key", key, "error", err)
	}
	return nil
}

func (s *Service) resolve(ctx context.Context, item *model.ClothingItem) {
	url, err := s.Resolver.DisplayURL(ctx, item.ImagePath, item.OwnerID)
	if err != nil {
		s.logger().Warn("resolving display url failed", "id", item.ID, "path", item.ImagePath, "error", err)
	}
	item.DisplayURL = url
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
