package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"fielduploads-api/internal/config"
	apperrors "fielduploads-api/internal/errors"
)

// fakeStorage is an in-memory StorageGateway. The onGet hook fires after the
// returned bytes are captured, which lets tests interleave a second writer
// between a fetch and its persist.
type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte

	publicBase string
	putErr     error
	onGet      func(key string)
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeStorage) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	data, ok := f.objects[key]
	if ok {
		data = append([]byte(nil), data...)
	}
	hook := f.onGet
	f.onGet = nil
	f.mu.Unlock()

	if hook != nil {
		hook(key)
	}

	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrNotFound, key)
	}
	return data, nil
}

func (f *fakeStorage) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.objects {
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

func (f *fakeStorage) PublicURL(key string) string {
	if f.publicBase == "" {
		return ""
	}
	return f.publicBase + "/" + key
}

func (f *fakeStorage) Ping(ctx context.Context) error {
	return nil
}

func (f *fakeStorage) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:                 "0",
		BaseURL:              "http://uploads.test",
		AllowedOrigins:       []string{"*"},
		StorageBackend:       config.BackendMinio,
		ImagesPrefix:         "images/",
		LedgerKey:            "TaskLog.xlsx",
		LedgerSheet:          "TaskLog",
		WorkDir:              t.TempDir(),
		MaxUploadBytes:       50 << 20,
		EnableExif:           true,
		StampOnSave:          true,
		StampScale:           2,
		CacheTTL:             time.Minute,
		CacheCleanupInterval: time.Minute,
		RateLimitRPS:         100,
		RateLimitBurst:       100,
	}
}
