package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/erazemk/omara/internal/capture"
	"github.com/erazemk/omara/internal/imaging"
	"github.com/erazemk/omara/internal/objstore"
	"github.com/erazemk/omara/internal/validate"
	"github.com/erazemk/omara/internal/wardrobe"
)

// multipartOverhead is allowed on top of the image size for form fields and
// boundaries.
const multipartOverhead = 1 << 20

// ClothesHandler handles the wardrobe endpoints. Every request is scoped to
// the session's owner; no per-owner state outlives the request.
type ClothesHandler struct {
	Wardrobe *wardrobe.Service
}

// UploadImage handles POST /api/clothes/image. When crop fields are present
// the image is cropped and re-encoded as JPEG before upload.
func (h *ClothesHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	const limit = validate.MaxImageSize + multipartOverhead
	if r.ContentLength > limit {
		writeError(w, &wardrobe.UploadError{Err: objstore.ErrTooLarge})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, &wardrobe.UploadError{Err: objstore.ErrTooLarge})
			return
		}
		jsonError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to read image")
		return
	}

	mime := header.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = imaging.Sniff(data)
	}
	upload := wardrobe.File{Name: header.Filename, MIME: mime, Data: data}

	region, displayed, crop, err := parseCrop(r)
	if err != nil {
		writeError(w, &validate.Error{Errors: []string{err.Error()}})
		return
	}
	if crop {
		// The original is validated before decoding; the crop is validated on upload.
		if res := validate.ImageFile(validate.File{Name: upload.Name, MIME: mime, Size: int64(len(data))}); !res.Valid {
			writeError(w, res.Err())
			return
		}
		upload, err = cropUpload(data, region, displayed)
		if err != nil {
			writeError(w, &validate.Error{Errors: []string{"Could not crop image: " + err.Error()}})
			return
		}
	}

	path, err := h.Wardrobe.Upload(r.Context(), ownerID(r), upload)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, map[string]string{"path": path})
}

func cropUpload(data []byte, region capture.Region, displayed capture.Size) (wardrobe.File, error) {
	sess := capture.NewSession()
	defer sess.Close()

	if err := sess.LoadFile(data); err != nil {
		return wardrobe.File{}, err
	}
	if err := sess.ApplyCrop(region, displayed); err != nil {
		return wardrobe.File{}, err
	}
	res, err := sess.Submit()
	if err != nil {
		return wardrobe.File{}, err
	}
	return wardrobe.File{Name: res.Name, MIME: res.MIME, Data: res.Image}, nil
}

// parseCrop reads the optional crop_* and display_* form fields. crop is
// false when no crop was requested.
func parseCrop(r *http.Request) (region capture.Region, displayed capture.Size, crop bool, err error) {
	unit := r.FormValue("crop_unit")
	if unit == "" && r.FormValue("crop_width") == "" {
		return region, displayed, false, nil
	}
	if unit == "default" {
		return capture.DefaultRegion, displayed, true, nil
	}

	region.Unit = capture.UnitPercent
	switch strings.TrimSpace(unit) {
	case "", "%", "percent":
	case "px", "pixel":
		region.Unit = capture.UnitPixel
	default:
		return region, displayed, false, errors.New("crop_unit must be % or px")
	}

	fields := []struct {
		name string
		dst  *float64
	}{
		{"crop_x", &region.X},
		{"crop_y", &region.Y},
		{"crop_width", &region.Width},
		{"crop_height", &region.Height},
	}
	for _, f := range fields {
		v := r.FormValue(f.name)
		if v == "" {
			continue
		}
		n, perr := strconv.ParseFloat(v, 64)
		if perr != nil || n < 0 {
			return region, displayed, false, errors.New(f.name + " must be a non-negative number")
		}
		*f.dst = n
	}

	if region.Unit == capture.UnitPixel {
		displayed.W, err = strconv.Atoi(r.FormValue("display_width"))
		if err != nil || displayed.W <= 0 {
			return region, displayed, false, errors.New("display_width is required for pixel crops")
		}
		displayed.H, err = strconv.Atoi(r.FormValue("display_height"))
		if err != nil || displayed.H <= 0 {
			return region, displayed, false, errors.New("display_height is required for pixel crops")
		}
	}
	return region, displayed, true, nil
}

// Create handles POST /api/clothes.
func (h *ClothesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req wardrobe.Item
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Wardrobe.Save(r.Context(), ownerID(r), req)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// List handles GET /api/clothes.
func (h *ClothesHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Wardrobe.List(r.Context(), ownerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, items)
}

// Delete handles DELETE /api/clothes/{id}.
func (h *ClothesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := h.Wardrobe.Remove(r.Context(), ownerID(r), id); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}
