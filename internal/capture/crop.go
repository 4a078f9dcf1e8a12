package capture

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/erazemk/omara/internal/imaging"
)

// Unit is the unit of a crop selection.
type Unit string

// Selection units.
const (
	UnitPercent Unit = "%"
	UnitPixel   Unit = "px"
)

// Region is a crop selection over the displayed image. With UnitPercent the
// values are percentages of the image; with UnitPixel they are pixels of the
// displayed (possibly scaled) image.
type Region struct {
	Unit   Unit    `json:"unit"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DefaultRegion is the selection offered when the crop step opens.
var DefaultRegion = Region{Unit: UnitPercent, X: 10, Y: 10, Width: 80, Height: 80}

// Size is a width/height pair in pixels.
type Size struct {
	W int `json:"width"`
	H int `json:"height"`
}

// ErrEmptyCrop is returned when a selection covers no source pixels.
var ErrEmptyCrop = errors.New("crop selection is empty")

// SourceRect converts a selection into source-pixel coordinates using the
// ratio of natural to displayed size. The result is clamped to the image.
func SourceRect(r Region, natural, displayed Size) (image.Rectangle, error) {
	var x, y, w, h float64

	switch r.Unit {
	case UnitPercent, "":
		x = r.X / 100 * float64(natural.W)
		y = r.Y / 100 * float64(natural.H)
		w = r.Width / 100 * float64(natural.W)
		h = r.Height / 100 * float64(natural.H)
	case UnitPixel:
		if displayed.W <= 0 || displayed.H <= 0 {
			return image.Rectangle{}, fmt.Errorf("displayed size %dx%d is invalid", displayed.W, displayed.H)
		}
		scaleX := float64(natural.W) / float64(displayed.W)
		scaleY := float64(natural.H) / float64(displayed.H)
		x = r.X * scaleX
		y = r.Y * scaleY
		w = r.Width * scaleX
		h = r.Height * scaleY
	default:
		return image.Rectangle{}, fmt.Errorf("unknown crop unit %q", r.Unit)
	}

	rect := image.Rect(
		int(math.Round(x)),
		int(math.Round(y)),
		int(math.Round(x+w)),
		int(math.Round(y+h)),
	).Intersect(image.Rect(0, 0, natural.W, natural.H))

	if rect.Empty() {
		return image.Rectangle{}, ErrEmptyCrop
	}
	return rect, nil
}

// Rasterize crops img to the selection and encodes the result as JPEG. The
// canvas has the pixel size of the source rectangle, which is returned along
// with the encoded bytes.
func Rasterize(img image.Image, r Region, displayed Size) ([]byte, image.Rectangle, error) {
	b := img.Bounds()
	natural := Size{W: b.Dx(), H: b.Dy()}

	rect, err := SourceRect(r, natural, displayed)
	if err != nil {
		return nil, image.Rectangle{}, err
	}

	data, err := imaging.EncodeJPEG(imaging.Crop(img, rect.Add(b.Min)), imaging.JPEGQuality)
	if err != nil {
		return nil, image.Rectangle{}, err
	}
	return data, rect, nil
}
