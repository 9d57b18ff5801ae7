package client

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/estudioia/timeline-render/internal/config"
)

// StorageClient defines the interface for object storage operations
type StorageClient interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	GetPublicURL(key string) string
}

// NewStorageClient picks the storage backend named by storage.provider
func NewStorageClient(ctx context.Context, cfg *config.Config) (StorageClient, error) {
	switch strings.ToLower(cfg.Storage.Provider) {
	case "", "local":
		return NewLocalStorage(cfg.Storage.LocalRoot, cfg.Storage.PublicURL)
	case "r2":
		return NewR2Client(&cfg.R2)
	case "minio":
		return NewMinIOClient(ctx, &cfg.MinIO)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
