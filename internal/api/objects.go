package api

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/erazemk/omara/internal/objstore"
)

// ObjectsHandler serves objects of the SQLite blob bucket.
type ObjectsHandler struct {
	Blob *objstore.BlobStorage
}

// Signed handles GET /object/sign/{bucket}/{key...}?token=.
func (h *ObjectsHandler) Signed(w http.ResponseWriter, r *http.Request) {
	key, ok := h.key(w, r)
	if !ok {
		return
	}

	if err := h.Blob.Verify(key, r.URL.Query().Get("token")); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid or expired signature")
		return
	}
	h.serve(w, r, key, "private, max-age=3600")
}

// Public handles GET /object/public/{bucket}/{key...}.
func (h *ObjectsHandler) Public(w http.ResponseWriter, r *http.Request) {
	if !h.Blob.Public() {
		jsonError(w, http.StatusNotFound, "bucket not found")
		return
	}
	key, ok := h.key(w, r)
	if !ok {
		return
	}
	h.serve(w, r, key, "public, max-age=3600")
}

func (h *ObjectsHandler) key(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.PathValue("bucket") != h.Blob.Bucket() {
		jsonError(w, http.StatusNotFound, "bucket not found")
		return "", false
	}
	key := r.PathValue("key")
	if key == "" {
		jsonError(w, http.StatusBadRequest, "object key required")
		return "", false
	}
	return key, true
}

func (h *ObjectsHandler) serve(w http.ResponseWriter, r *http.Request, key, cacheControl string) {
	o, err := h.Blob.Open(r.Context(), key)
	if errors.Is(err, objstore.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "object not found")
		return
	}
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to read object")
		return
	}

	w.Header().Set("Content-Type", o.ContentType)
	w.Header().Set("Cache-Control", cacheControl)
	http.ServeContent(w, r, "", o.CreatedAt, bytes.NewReader(o.Data))
}
