package validate

import (
	"path"
	"strings"
)

// Image limits.
const (
	MaxImageSize = 10 << 20
	MinImageSize = 100
)

// AllowedImageMIME lists the accepted upload MIME types.
var AllowedImageMIME = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// AllowedImageExt lists the accepted upload file extensions.
var AllowedImageExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

const forbiddenNameChars = `<>:"\|?*`

// File describes an upload candidate.
type File struct {
	Name string
	MIME string
	Size int64
}

// ImageFile checks size, type and name of an image upload.
func ImageFile(f File) Result {
	var errs []string

	if f.Size > MaxImageSize {
		errs = append(errs, "File size must be less than 10MB")
	}
	if f.Size < MinImageSize {
		errs = append(errs, "File is too small to be a valid image")
	}
	if !AllowedImageMIME[strings.ToLower(f.MIME)] {
		errs = append(errs, "Only JPEG, PNG, and WebP images are allowed")
	}
	if !AllowedImageExt[strings.ToLower(path.Ext(f.Name))] {
		errs = append(errs, "Invalid file extension")
	}
	if strings.ContainsAny(f.Name, forbiddenNameChars) {
		errs = append(errs, "File name contains invalid characters")
	}
	if strings.Count(f.Name, ".") > 1 {
		errs = append(errs, "File name must not contain multiple dots")
	}

	return newResult(errs)
}
