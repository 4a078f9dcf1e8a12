package model

import "time"

// ClothingItem is a catalog record. ImagePath always holds a canonical storage
// path, never a signed URL; DisplayURL is resolved per fetch and not persisted.
type ClothingItem struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"user_id"`
	Category   string    `json:"category"`
	Color      string    `json:"color"`
	Occasion   string    `json:"occasion"`
	Name       string    `json:"name,omitempty"`
	ImagePath  string    `json:"image_path"`
	CreatedAt  time.Time `json:"created_at"`
	DisplayURL string    `json:"display_url,omitempty"`
}

// Clothing categories.
const (
	CategoryTop       = "top"
	CategoryBottom    = "bottom"
	CategoryShoes     = "shoes"
	CategoryAccessory = "accessory"
	CategoryOuterwear = "outerwear"
)

// Occasions.
const (
	OccasionCasual   = "casual"
	OccasionFormal   = "formal"
	OccasionBusiness = "business"
	OccasionSport    = "sport"
	OccasionParty    = "party"
)

// Categories lists the accepted categories in display order.
var Categories = []string{CategoryTop, CategoryBottom, CategoryShoes, CategoryAccessory, CategoryOuterwear}

// Occasions lists the accepted occasions in display order.
var Occasions = []string{OccasionCasual, OccasionFormal, OccasionBusiness, OccasionSport, OccasionParty}

// ValidCategory reports whether c is one of the fixed categories.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// ValidOccasion reports whether o is one of the fixed occasions.
func ValidOccasion(o string) bool {
	for _, v := range Occasions {
		if v == o {
			return true
		}
	}
	return false
}
