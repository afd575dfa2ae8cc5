package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"fielduploads-api/internal/config"
	apperrors "fielduploads-api/internal/errors"
)

// GCSStorage talks to Google Cloud Storage.
type GCSStorage struct {
	cfg *config.Config

	once       sync.Once
	client     *storage.Client
	connectErr error
}

func NewGCSStorage(cfg *config.Config) *GCSStorage {
	return &GCSStorage{cfg: cfg}
}

// Connects once on first use and reuses the client thereafter.
func (s *GCSStorage) connect(ctx context.Context) (*storage.Client, error) {
	s.once.Do(func() {
		if s.cfg.GCSBucket == "" {
			s.connectErr = fmt.Errorf("missing GCS configuration: set GCS_BUCKET")
			return
		}

		var opts []option.ClientOption
		if s.cfg.GCSCredentialsJSON != "" {
			opts = append(opts, option.WithCredentialsJSON([]byte(s.cfg.GCSCredentialsJSON)))
		} else if s.cfg.GCSCredentialsPath != "" {
			opts = append(opts, option.WithCredentialsFile(s.cfg.GCSCredentialsPath))
		}

		s.client, s.connectErr = storage.NewClient(ctx, opts...)
	})

	return s.client, s.connectErr
}

func (s *GCSStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	client, err := s.connect(ctx)
	if err != nil {
		return err
	}

	w := client.Bucket(s.cfg.GCSBucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}

	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", key, err)
	}

	return nil
}

func (s *GCSStorage) Get(ctx context.Context, key string) ([]byte, error) {
	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	r, err := client.Bucket(s.cfg.GCSBucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to fetch %s: %w", key, err)
	}
	defer r.Close()

	return io.ReadAll(r)
}

func (s *GCSStorage) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	it := client.Bucket(s.cfg.GCSBucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var keys []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		keys = append(keys, attrs.Name)
	}

	// File names carry a timestamp, so reverse-lexical puts newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	return keys, nil
}

func (s *GCSStorage) PublicURL(key string) string {
	if !s.cfg.GCSPublicRead {
		return ""
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.cfg.GCSBucket, key)
}

func (s *GCSStorage) Ping(ctx context.Context) error {
	client, err := s.connect(ctx)
	if err != nil {
		return err
	}

	if _, err := client.Bucket(s.cfg.GCSBucket).Attrs(ctx); err != nil {
		return fmt.Errorf("failed to reach bucket %s: %w", s.cfg.GCSBucket, err)
	}

	return nil
}
