package store

import (
	"context"

	"github.com/dunamismax/iconforge/internal/domain"
)

// AssetCatalog records every derived asset written for a request token.
type AssetCatalog interface {
	RecordAsset(ctx context.Context, asset domain.DerivedAsset) error
	ListAssets(ctx context.Context, token string) ([]domain.DerivedAsset, error)
}

type JobStore interface {
	Create(ctx context.Context, job domain.Job) error
	Get(ctx context.Context, id string) (domain.Job, bool, error)
	Update(ctx context.Context, id string, update domain.JobUpdate) (domain.Job, error)
}

func applyUpdate(job domain.Job, update domain.JobUpdate) domain.Job {
	if update.Status != "" {
		job.Status = update.Status
	}
	if update.ArchiveKey != "" {
		job.ArchiveKey = update.ArchiveKey
	}
	if update.Error != "" {
		job.Error = update.Error
	}
	return job
}
