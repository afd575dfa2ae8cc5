package handlers_test

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"fielduploads-api/internal/config"
	apperrors "fielduploads-api/internal/errors"
	"fielduploads-api/internal/handlers"
	"fielduploads-api/internal/router"
	"fielduploads-api/internal/services"
)

// memStorage is an in-memory StorageGateway for exercising the HTTP surface.
type memStorage struct {
	objects map[string][]byte
	pingErr error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (m *memStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *memStorage) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrNotFound, key)
	}
	return data, nil
}

func (m *memStorage) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys, nil
}

func (m *memStorage) PublicURL(key string) string { return "" }

func (m *memStorage) Ping(ctx context.Context) error { return m.pingErr }

func newTestRouter(t *testing.T, storage services.StorageGateway) http.Handler {
	t.Helper()

	cfg := &config.Config{
		Port:                 "0",
		BaseURL:              "http://uploads.test",
		AllowedOrigins:       []string{"*"},
		StorageBackend:       config.BackendMinio,
		ImagesPrefix:         "images/",
		LedgerKey:            "TaskLog.xlsx",
		LedgerSheet:          "TaskLog",
		WorkDir:              t.TempDir(),
		MaxUploadBytes:       1 << 20,
		EnableExif:           true,
		StampOnSave:          true,
		StampScale:           2,
		CacheTTL:             time.Minute,
		CacheCleanupInterval: time.Minute,
	}

	ledger := services.NewLedgerService(storage, cfg)
	uploads := services.NewUploadService(cfg, storage, ledger)
	cache := services.NewCacheService(cfg.CacheTTL, cfg.CacheCleanupInterval)

	return router.Setup(handlers.New(cfg, uploads, storage, cache))
}

func pngPayload(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 80, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 80; x++ {
			img.Set(x, y, color.RGBA{R: 30, G: 140, B: 220, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func multipartUpload(t *testing.T, fields map[string]string, fileName string, fileData []byte) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("image", fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(fileData); err != nil {
			t.Fatalf("write file part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &body, mw.FormDataContentType()
}

func TestHandleUpload(t *testing.T) {
	storage := newMemStorage()
	h := newTestRouter(t, storage)

	fields := map[string]string{
		"task_id":    "T1",
		"station_id": "S9",
		"note":       "ok",
		"latitude":   "24.7136",
		"longitude":  "46.6753",
	}
	body, contentType := multipartUpload(t, fields, "photo.png", pngPayload(t))

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	resp := rec.Body.String()
	if !strings.Contains(resp, `"ok":true`) {
		t.Errorf("response missing ok flag: %s", resp)
	}
	if !strings.Contains(resp, `"exif_gps_written":true`) {
		t.Errorf("response missing exif flag: %s", resp)
	}

	if len(storage.objects) == 0 {
		t.Error("nothing stored")
	}
	if _, ok := storage.objects["TaskLog.xlsx"]; !ok {
		t.Error("ledger not uploaded")
	}
}

func TestHandleUploadMissingTaskID(t *testing.T) {
	h := newTestRouter(t, newMemStorage())

	body, contentType := multipartUpload(t, map[string]string{}, "photo.png", pngPayload(t))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleUploadMissingImage(t *testing.T) {
	h := newTestRouter(t, newMemStorage())

	body, contentType := multipartUpload(t, map[string]string{"task_id": "T1"}, "", nil)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleUploadPayloadTooLarge(t *testing.T) {
	h := newTestRouter(t, newMemStorage()) // MaxUploadBytes is 1 MiB

	big := make([]byte, 2<<20)
	body, contentType := multipartUpload(t, map[string]string{"task_id": "T1"}, "big.bin", big)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestHandleImage(t *testing.T) {
	storage := newMemStorage()
	storage.objects["images/T1_20250314092653_photo.jpg"] = []byte("jpegbytes")
	h := newTestRouter(t, storage)

	req := httptest.NewRequest(http.MethodGet, "/images/T1_20250314092653_photo.jpg", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/jpeg" {
		t.Errorf("content type = %q", got)
	}
	if rec.Body.String() != "jpegbytes" {
		t.Errorf("body = %q", rec.Body.String())
	}

	// Second hit should come from cache and return the same bytes.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "jpegbytes" {
		t.Errorf("cached hit: status=%d body=%q", rec.Code, rec.Body.String())
	}
}

func TestHandleImageNotFound(t *testing.T) {
	h := newTestRouter(t, newMemStorage())

	req := httptest.NewRequest(http.MethodGet, "/images/missing.jpg", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleImageRejectsTraversal(t *testing.T) {
	h := newTestRouter(t, newMemStorage())

	for _, name := range []string{"..%2fsecret", "a%5cb.jpg", "x..y.jpg"} {
		req := httptest.NewRequest(http.MethodGet, "/images/"+name, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, rec.Code)
		}
	}
}

func TestHandleGallery(t *testing.T) {
	storage := newMemStorage()
	storage.objects["images/T1_20250314092653_photo.jpg"] = []byte("x")
	storage.objects["images/T2_20250314100000_photo.jpg"] = []byte("y")
	h := newTestRouter(t, storage)

	req := httptest.NewRequest(http.MethodGet, "/gallery", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "T1_20250314092653_photo.jpg") || !strings.Contains(body, "T2_20250314100000_photo.jpg") {
		t.Errorf("gallery missing images: %s", body)
	}
}

func TestHandlePing(t *testing.T) {
	storage := newMemStorage()
	h := newTestRouter(t, storage)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	storage.pingErr = fmt.Errorf("unreachable")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status with storage down = %d, want 500", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	h := newTestRouter(t, newMemStorage())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("body = %s", rec.Body.String())
	}
}
