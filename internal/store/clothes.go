package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/omara/internal/model"
)

const clothingColumns = `id, user_id, image_url, category, color, occasion, name, created_at`

// NewClothing holds the columns written on insert. ImagePath must already be
// canonical.
type NewClothing struct {
	OwnerID   string
	ImagePath string
	Category  string
	Color     string
	Occasion  string
	Name      string
	CreatedAt time.Time
}

// CreateClothing inserts a clothing item and returns it with its new ID.
// Rows rejected by CHECK constraints fail with ErrConstraint.
func CreateClothing(ctx context.Context, db *sql.DB, c NewClothing) (*model.ClothingItem, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	item := &model.ClothingItem{
		ID:        uuid.NewString(),
		OwnerID:   c.OwnerID,
		Category:  c.Category,
		Color:     c.Color,
		Occasion:  c.Occasion,
		Name:      c.Name,
		ImagePath: c.ImagePath,
		CreatedAt: c.CreatedAt.UTC(),
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO clothes (`+clothingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.OwnerID, item.ImagePath, item.Category, item.Color, item.Occasion, item.Name, item.CreatedAt,
	)
	if err != nil {
		return nil, wrap("creating clothing item", err)
	}
	return item, nil
}

// GetClothing returns an owner's clothing item by ID.
func GetClothing(ctx context.Context, db *sql.DB, ownerID, id string) (*model.ClothingItem, error) {
	var item model.ClothingItem
	err := scanClothing(db.QueryRowContext(ctx,
		`SELECT `+clothingColumns+` FROM clothes WHERE id = ? AND user_id = ?`, id, ownerID,
	), &item)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("getting clothing item", err)
	}
	return &item, nil
}

// ListClothing returns an owner's clothing items, newest first.
func ListClothing(ctx context.Context, db *sql.DB, ownerID string) ([]model.ClothingItem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+clothingColumns+` FROM clothes WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC`, ownerID,
	)
	if err != nil {
		return nil, wrap("listing clothing", err)
	}
	defer rows.Close()

	items := []model.ClothingItem{}
	for rows.Next() {
		var item model.ClothingItem
		if err := scanClothing(rows, &item); err != nil {
			return nil, wrap("scanning clothing item", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// DeleteClothing removes an owner's clothing item and returns it so the
// caller can clean up the stored image. A missing item and one owned by
// someone else both fail with ErrNotFound.
func DeleteClothing(ctx context.Context, db *sql.DB, ownerID, id string) (*model.ClothingItem, error) {
	var item model.ClothingItem
	err := scanClothing(db.QueryRowContext(ctx,
		`DELETE FROM clothes WHERE id = ? AND user_id = ? RETURNING `+clothingColumns, id, ownerID,
	), &item)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrap("deleting clothing item", err)
	}
	return &item, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClothing(s scanner, item *model.ClothingItem) error {
	return s.Scan(&item.ID, &item.OwnerID, &item.ImagePath, &item.Category,
		&item.Color, &item.Occasion, &item.Name, &item.CreatedAt)
}
