package validate

import (
	"errors"
	"strings"
	"testing"
)

func TestImageFileAcceptsJPEG(t *testing.T) {
	r := ImageFile(File{Name: "shirt.jpg", MIME: "image/jpeg", Size: 2 << 20})
	if !r.Valid {
		t.Fatalf("expected valid, got errors %v", r.Errors)
	}
	if r.Err() != nil {
		t.Errorf("expected nil error, got %v", r.Err())
	}
}

func TestImageFileRejects(t *testing.T) {
	tests := []struct {
		name string
		file File
	}{
		{"too large", File{Name: "a.jpg", MIME: "image/jpeg", Size: MaxImageSize + 1}},
		{"too small", File{Name: "a.jpg", MIME: "image/jpeg", Size: 99}},
		{"gif mime", File{Name: "a.jpg", MIME: "image/gif", Size: 1000}},
		{"bad extension", File{Name: "a.gif", MIME: "image/jpeg", Size: 1000}},
		{"no extension", File{Name: "photo", MIME: "image/png", Size: 1000}},
		{"forbidden chars", File{Name: "a<b>.png", MIME: "image/png", Size: 1000}},
		{"pipe", File{Name: "a|b.png", MIME: "image/png", Size: 1000}},
		{"double dot", File{Name: "a.tar.png", MIME: "image/png", Size: 1000}},
	}

	for _, tt := range tests {
		r := ImageFile(tt.file)
		if r.Valid {
			t.Errorf("%s: expected invalid", tt.name)
		}
	}
}

func TestImageFileCollectsAllErrors(t *testing.T) {
	r := ImageFile(File{Name: "a?.b.gif", MIME: "image/gif", Size: MaxImageSize + 1})
	// size, mime, extension, chars, dots
	if len(r.Errors) != 5 {
		t.Errorf("expected 5 errors, got %d: %v", len(r.Errors), r.Errors)
	}

	var verr *Error
	if !errors.As(r.Err(), &verr) {
		t.Fatalf("expected *Error, got %T", r.Err())
	}
	if len(verr.Errors) != 5 {
		t.Errorf("expected 5 wrapped errors, got %d", len(verr.Errors))
	}
}

func TestImageFileAcceptedTypes(t *testing.T) {
	for _, f := range []File{
		{Name: "a.jpeg", MIME: "image/jpg", Size: 500},
		{Name: "a.PNG", MIME: "image/png", Size: 500},
		{Name: "a.webp", MIME: "image/webp", Size: MaxImageSize},
	} {
		if r := ImageFile(f); !r.Valid {
			t.Errorf("ImageFile(%+v): unexpected errors %v", f, r.Errors)
		}
	}
}

func TestClothingItem(t *testing.T) {
	valid := Fields{Name: "Blue shirt", Color: "Blue", Category: "top", Occasion: "casual"}
	if r := ClothingItem(valid); !r.Valid {
		t.Fatalf("expected valid, got %v", r.Errors)
	}

	tests := []struct {
		name   string
		fields Fields
	}{
		{"long name", Fields{Name: strings.Repeat("a", 101), Color: "Blue", Category: "top", Occasion: "casual"}},
		{"html name", Fields{Name: "<b>", Color: "Blue", Category: "top", Occasion: "casual"}},
		{"empty color", Fields{Color: "  ", Category: "top", Occasion: "casual"}},
		{"long color", Fields{Color: strings.Repeat("c", 51), Category: "top", Occasion: "casual"}},
		{"html color", Fields{Color: "red>", Category: "top", Occasion: "casual"}},
		{"bad category", Fields{Color: "Red", Category: "hat", Occasion: "casual"}},
		{"bad occasion", Fields{Color: "Red", Category: "top", Occasion: "wedding"}},
	}

	for _, tt := range tests {
		if r := ClothingItem(tt.fields); r.Valid {
			t.Errorf("%s: expected invalid", tt.name)
		}
	}
}

func TestClothingItemNameOptional(t *testing.T) {
	r := ClothingItem(Fields{Color: "Black", Category: "shoes", Occasion: "formal"})
	if !r.Valid {
		t.Errorf("expected valid without name, got %v", r.Errors)
	}
}

func TestAuthInput(t *testing.T) {
	tests := []struct {
		email    string
		password string
		wantErr  bool
	}{
		{"alice@example.com", "secret1", false},
		{"  alice@example.com ", "secret1", false},
		{"", "secret1", true},
		{"not-an-email", "secret1", true},
		{"alice@example.com", "", true},
		{"alice@example.com", "12345", true},
		{"alice@example.com", strings.Repeat("p", 129), true},
	}

	for _, tt := range tests {
		err := AuthInput(tt.email, tt.password).Err()
		if (err != nil) != tt.wantErr {
			t.Errorf("AuthInput(%q, %q) error = %v, wantErr %v", tt.email, tt.password, err, tt.wantErr)
		}
	}
}
