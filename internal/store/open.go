package store

import (
	"context"
	"strings"
)

// Repository is the combined job and asset catalog a process works with.
type Repository interface {
	JobStore
	AssetCatalog
	Close() error
}

// Open connects to Postgres when dsn is set and falls back to an in-memory
// repository otherwise.
func Open(ctx context.Context, dsn string) (Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return NewMemoryStore(), nil
	}
	pg, err := NewPostgresStore(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return pg, nil
}
