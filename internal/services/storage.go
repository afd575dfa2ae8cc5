package services

import (
	"context"
	"fmt"

	"fielduploads-api/internal/config"
)

// StorageGateway is the durable object store the pipeline persists images
// and the ledger document to. Absence surfaces as apperrors.ErrNotFound,
// never as a panic or a vendor-specific error the pipeline would have to
// understand.
type StorageGateway interface {
	// Put uploads data under key with the given content type.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get retrieves the object bytes, or apperrors.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns up to limit object keys under prefix, newest name first.
	List(ctx context.Context, prefix string, limit int) ([]string, error)

	// PublicURL returns a direct URL for key when the backend is configured
	// for public access, or "" when the server should proxy the bytes itself.
	PublicURL(key string) string

	// Ping verifies the backend is reachable and the bucket exists.
	Ping(ctx context.Context) error
}

// NewStorageGateway selects the vendor adapter for the configured backend.
// Adapters connect lazily on first use, so a misconfigured backend degrades
// at request time rather than failing startup.
func NewStorageGateway(cfg *config.Config) (StorageGateway, error) {
	switch cfg.StorageBackend {
	case config.BackendMinio:
		return NewMinioStorage(cfg), nil
	case config.BackendGCS:
		return NewGCSStorage(cfg), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
