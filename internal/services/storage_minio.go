package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"fielduploads-api/internal/config"
	apperrors "fielduploads-api/internal/errors"
)

// MinioStorage talks to a MinIO or any S3-compatible endpoint.
type MinioStorage struct {
	cfg *config.Config

	once       sync.Once
	client     *minio.Client
	connectErr error
}

func NewMinioStorage(cfg *config.Config) *MinioStorage {
	return &MinioStorage{cfg: cfg}
}

// Connects once on first use and reuses the client thereafter.
func (s *MinioStorage) connect() (*minio.Client, error) {
	s.once.Do(func() {
		if s.cfg.MinioEndpoint == "" || s.cfg.MinioAccessKey == "" || s.cfg.MinioSecretKey == "" || s.cfg.MinioBucket == "" {
			s.connectErr = fmt.Errorf("missing MinIO configuration: set MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY and MINIO_BUCKET")
			return
		}

		s.client, s.connectErr = minio.New(s.cfg.MinioEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(s.cfg.MinioAccessKey, s.cfg.MinioSecretKey, ""),
			Secure: s.cfg.MinioUseSSL,
		})
	})

	return s.client, s.connectErr
}

func (s *MinioStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	client, err := s.connect()
	if err != nil {
		return err
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = client.PutObject(ctx, s.cfg.MinioBucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return nil
}

func (s *MinioStorage) Get(ctx context.Context, key string) ([]byte, error) {
	client, err := s.connect()
	if err != nil {
		return nil, err
	}

	obj, err := client.GetObject(ctx, s.cfg.MinioBucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		// GetObject is lazy; missing keys surface on first read.
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	return data, nil
}

func (s *MinioStorage) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	client, err := s.connect()
	if err != nil {
		return nil, err
	}

	var keys []string
	for obj := range client.ListObjects(ctx, s.cfg.MinioBucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}

	// File names carry a timestamp, so reverse-lexical puts newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	return keys, nil
}

func (s *MinioStorage) PublicURL(key string) string {
	if s.cfg.MinioPublicURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s", s.cfg.MinioPublicURL, s.cfg.MinioBucket, key)
}

func (s *MinioStorage) Ping(ctx context.Context) error {
	client, err := s.connect()
	if err != nil {
		return err
	}

	ok, err := client.BucketExists(ctx, s.cfg.MinioBucket)
	if err != nil {
		return fmt.Errorf("failed to reach bucket %s: %w", s.cfg.MinioBucket, err)
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", s.cfg.MinioBucket)
	}

	return nil
}
