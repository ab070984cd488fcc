package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/dunamismax/iconforge/internal/config"
)

// Open builds the object store selected by cfg.Backend ("local" or "minio").
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "local":
		ls, err := NewLocalStore(cfg.LocalDir)
		if err != nil {
			return nil, err
		}
		return ls, nil
	case "minio", "s3":
		ms, err := NewMinioStore(MinioConfig{
			Endpoint: cfg.Endpoint,
			Access:   cfg.AccessKey,
			Secret:   cfg.SecretKey,
			Bucket:   cfg.Bucket,
			UseSSL:   cfg.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		if err := ms.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return ms, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}
