package validate

import (
	"strings"
	"unicode/utf8"

	"github.com/erazemk/omara/internal/model"
)

// Field limits.
const (
	MaxNameLength  = 100
	MaxColorLength = 50
)

// Fields are the user-entered attributes of a clothing item.
type Fields struct {
	Name     string `json:"name"`
	Color    string `json:"color"`
	Category string `json:"category"`
	Occasion string `json:"occasion"`
}

// ClothingItem checks the form fields of a clothing item.
func ClothingItem(f Fields) Result {
	var errs []string

	if utf8.RuneCountInString(f.Name) > MaxNameLength {
		errs = append(errs, "Name must be 100 characters or less")
	}
	if strings.ContainsAny(f.Name, "<>") {
		errs = append(errs, "Name contains invalid characters")
	}

	switch {
	case strings.TrimSpace(f.Color) == "":
		errs = append(errs, "Color is required")
	case utf8.RuneCountInString(f.Color) > MaxColorLength:
		errs = append(errs, "Color must be 50 characters or less")
	}
	if strings.ContainsAny(f.Color, "<>") {
		errs = append(errs, "Color contains invalid characters")
	}

	if !model.ValidCategory(f.Category) {
		errs = append(errs, "Invalid category selected")
	}
	if !model.ValidOccasion(f.Occasion) {
		errs = append(errs, "Invalid occasion selected")
	}

	return newResult(errs)
}
