package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erazemk/omara/internal/auth"
	"github.com/erazemk/omara/internal/db"
	"github.com/erazemk/omara/internal/imaging"
	"github.com/erazemk/omara/internal/model"
	"github.com/erazemk/omara/internal/objstore"
	"github.com/erazemk/omara/internal/ratelimit"
	"github.com/erazemk/omara/internal/storagepath"
	"github.com/erazemk/omara/internal/wardrobe"
)

type testServer struct {
	*httptest.Server
	blob    *objstore.BlobStorage
	storage *countingStorage
}

// countingStorage counts the URLs signed through it.
type countingStorage struct {
	objstore.Storage
	signed atomic.Int64
}

func (s *countingStorage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	s.signed.Add(1)
	return s.Storage.SignedURL(ctx, key, ttl)
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	database := db.NewTestDB(t)

	var handler http.Handler
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)

	blob := objstore.NewBlobStorage(database, objstore.BlobConfig{BaseURL: server.URL, Secret: "url-secret"})
	authSvc := &auth.Service{
		DB:      database,
		Secret:  "test-secret",
		Limiter: ratelimit.New(ratelimit.DefaultMax, ratelimit.DefaultWindow),
	}
	storage := &countingStorage{Storage: blob}

	handler = NewRouter(Config{
		DB:       database,
		Auth:     authSvc,
		Wardrobe: wardrobe.NewService(database, storage, nil),
		Blob:     blob,
	})
	return &testServer{Server: server, blob: blob, storage: storage}
}

func (s *testServer) signUp(t *testing.T, email string) string {
	t.Helper()
	resp := s.do(t, "POST", "/api/auth/signup", "", map[string]string{"email": email, "password": "secret1"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup failed: %d", resp.StatusCode)
	}

	var sess auth.Session
	json.NewDecoder(resp.Body).Decode(&sess)
	if sess.Token == "" {
		t.Fatal("empty token from signup")
	}
	return sess.Token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (s *testServer) upload(t *testing.T, token, filename, contentType string, data []byte, fields map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, _ := mw.CreatePart(h)
	part.Write(data)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	req, _ := http.NewRequest("POST", s.URL+"/api/clothes/image", &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return resp
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 80, 255})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func TestAuthFlow(t *testing.T) {
	s := setupTestServer(t)
	token := s.signUp(t, "ana@example.com")

	resp := s.do(t, "GET", "/api/auth/session", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for session, got %d", resp.StatusCode)
	}
	sess := decode[map[string]any](t, resp)
	if user, _ := sess["user"].(map[string]any); user["email"] != "ana@example.com" {
		t.Errorf("unexpected session %v", sess)
	}

	resp = s.do(t, "POST", "/api/auth/login", "", map[string]string{"email": "ana@example.com", "password": "wrong1"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}

	resp = s.do(t, "POST", "/api/auth/signup", "", map[string]string{"email": "ana@example.com", "password": "secret1"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate signup, got %d", resp.StatusCode)
	}

	resp = s.do(t, "POST", "/api/auth/signup", "", map[string]string{"email": "bad", "password": "1"})
	body := decode[map[string]any](t, resp)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid input, got %d", resp.StatusCode)
	}
	if errs, _ := body["errors"].([]any); len(errs) != 2 {
		t.Errorf("expected 2 validation errors, got %v", body["errors"])
	}

	resp = s.do(t, "POST", "/api/auth/logout", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for logout, got %d", resp.StatusCode)
	}

	resp = s.do(t, "GET", "/api/clothes", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", resp.StatusCode)
	}
}

func TestLoginRateLimited(t *testing.T) {
	s := setupTestServer(t)

	var last *http.Response
	for i := 0; i <= ratelimit.DefaultMax; i++ {
		if last != nil {
			last.Body.Close()
		}
		last = s.do(t, "POST", "/api/auth/login", "", map[string]string{"email": "zed@example.com", "password": "secret1"})
	}
	defer last.Body.Close()

	if last.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", last.StatusCode)
	}
	if last.Header.Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestClothesFlow(t *testing.T) {
	s := setupTestServer(t)
	token := s.signUp(t, "ana@example.com")

	// Crop the middle of a 200x200 picture shown at 100x100.
	resp := s.upload(t, token, "photo.png", "image/png", testPNG(t, 200, 200), map[string]string{
		"crop_unit": "px", "crop_x": "25", "crop_y": "25", "crop_width": "50", "crop_height": "50",
		"display_width": "100", "display_height": "100",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for upload, got %d", resp.StatusCode)
	}
	path := decode[map[string]string](t, resp)["path"]
	if !strings.HasSuffix(path, ".jpg") {
		t.Errorf("expected cropped upload to be stored as jpg, got %q", path)
	}

	resp = s.do(t, "POST", "/api/clothes", token, map[string]string{
		"category": model.CategoryTop, "color": "Navy", "occasion": model.OccasionBusiness,
		"name": "Blazer", "image_path": path,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for create, got %d", resp.StatusCode)
	}
	created := decode[model.ClothingItem](t, resp)

	resp = s.do(t, "GET", "/api/clothes", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for list, got %d", resp.StatusCode)
	}
	items := decode[[]model.ClothingItem](t, resp)
	if len(items) != 1 || items[0].ID != created.ID {
		t.Fatalf("expected the created item, got %v", items)
	}
	if storagepath.Canonical(items[0].DisplayURL) != path {
		t.Errorf("display url %q does not resolve to %q", items[0].DisplayURL, path)
	}

	// The display URL downloads the cropped JPEG.
	img, err := http.Get(items[0].DisplayURL)
	if err != nil {
		t.Fatalf("fetching display url: %v", err)
	}
	data, _ := io.ReadAll(img.Body)
	img.Body.Close()
	if img.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for signed download, got %d", img.StatusCode)
	}
	decoded, mime, err := imaging.Decode(bytes.NewReader(data))
	if err != nil || mime != "image/jpeg" {
		t.Fatalf("expected jpeg download, got %s (%v)", mime, err)
	}
	if decoded.Bounds().Dx() != 100 || decoded.Bounds().Dy() != 100 {
		t.Errorf("expected 100x100 crop, got %v", decoded.Bounds())
	}

	// Another user cannot delete it.
	other := s.signUp(t, "bo@example.com")
	resp = s.do(t, "DELETE", "/api/clothes/"+created.ID, other, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for foreign delete, got %d", resp.StatusCode)
	}

	resp = s.do(t, "DELETE", "/api/clothes/"+created.ID, token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for delete, got %d", resp.StatusCode)
	}

	resp = s.do(t, "GET", "/api/clothes", token, nil)
	if items := decode[[]model.ClothingItem](t, resp); len(items) != 0 {
		t.Errorf("expected empty list after delete, got %d", len(items))
	}
}

func TestUploadWithoutCropKeepsFormat(t *testing.T) {
	s := setupTestServer(t)
	token := s.signUp(t, "ana@example.com")

	resp := s.upload(t, token, "photo.png", "image/png", testPNG(t, 20, 20), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if path := decode[map[string]string](t, resp)["path"]; !strings.HasSuffix(path, ".png") {
		t.Errorf("expected png key, got %q", path)
	}
}

func TestUploadErrors(t *testing.T) {
	s := setupTestServer(t)
	token := s.signUp(t, "ana@example.com")

	resp := s.upload(t, token, "notes.txt", "text/plain", []byte(strings.Repeat("hello ", 50)), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for text file, got %d", resp.StatusCode)
	}

	big := bytes.Repeat([]byte{0xff}, 12<<20)
	resp = s.upload(t, token, "big.jpg", "image/jpeg", big, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 for oversized upload, got %d", resp.StatusCode)
	}

	resp = s.upload(t, token, "photo.png", "image/png", testPNG(t, 20, 20), map[string]string{"crop_unit": "em", "crop_width": "1"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad crop unit, got %d", resp.StatusCode)
	}
}

func TestCreateErrors(t *testing.T) {
	s := setupTestServer(t)
	token := s.signUp(t, "ana@example.com")

	resp := s.do(t, "POST", "/api/clothes", token, map[string]string{
		"category": "hat", "color": "", "occasion": "casual", "image_path": "x/1.jpg",
	})
	body := decode[map[string]any](t, resp)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	if body["error"] == "" {
		t.Error("expected error message")
	}

	// Sanitizes to an empty color, which is reported inline.
	resp = s.do(t, "POST", "/api/clothes", token, map[string]string{
		"category": "top", "color": "vbscript:", "occasion": "casual", "image_path": "1.jpg",
	})
	body = decode[map[string]any](t, resp)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	if errs, _ := body["errors"].([]any); len(errs) != 1 || errs[0] != "Color is required" {
		t.Errorf("expected color error, got %v", body["errors"])
	}
}

func TestObjectDownloadAuth(t *testing.T) {
	s := setupTestServer(t)
	token := s.signUp(t, "ana@example.com")

	resp := s.upload(t, token, "photo.png", "image/png", testPNG(t, 20, 20), nil)
	path := decode[map[string]string](t, resp)["path"]

	signed, err := s.blob.SignedURL(t.Context(), path, time.Minute)
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}

	tampered := strings.Replace(signed, "token=", "token=x", 1)
	r, _ := http.Get(tampered)
	r.Body.Close()
	if r.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for tampered token, got %d", r.StatusCode)
	}

	r, _ = http.Get(s.blob.PublicURL(path))
	r.Body.Close()
	if r.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for private bucket public url, got %d", r.StatusCode)
	}

	r, _ = http.Get(s.URL + "/object/sign/other-bucket/" + path + "?token=x")
	r.Body.Close()
	if r.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown bucket, got %d", r.StatusCode)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	s := setupTestServer(t)

	for _, path := range []string{"/api/clothes", "/api/auth/session"} {
		resp := s.do(t, "GET", path, "", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401 for %s, got %d", path, resp.StatusCode)
		}
	}

	resp := s.do(t, "GET", "/api/clothes", "not-a-token", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad token, got %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	s := setupTestServer(t)

	resp, err := http.Get(s.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestSaveSignsOnlyItsOwnURL(t *testing.T) {
	s := setupTestServer(t)
	token := s.signUp(t, "ana@example.com")

	create := func() {
		t.Helper()
		resp := s.upload(t, token, "photo.png", "image/png", testPNG(t, 20, 20), nil)
		path := decode[map[string]string](t, resp)["path"]
		resp = s.do(t, "POST", "/api/clothes", token, map[string]string{
			"category": "top", "color": "red", "occasion": "casual", "image_path": path,
		})
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("expected 201 for create, got %d", resp.StatusCode)
		}
	}

	create()
	create()
	s.storage.signed.Store(0)
	create()

	// A background refetch would sign every item again.
	time.Sleep(50 * time.Millisecond)
	if got := s.storage.signed.Load(); got != 1 {
		t.Errorf("expected 1 signed url for one save, got %d", got)
	}

	resp := s.do(t, "GET", "/api/clothes", token, nil)
	if items := decode[[]model.ClothingItem](t, resp); len(items) != 3 {
		t.Errorf("expected 3 items, got %d", len(items))
	}
	if got := s.storage.signed.Load(); got != 4 {
		t.Errorf("expected list to sign 3 more urls, got %d", got-1)
	}
}
