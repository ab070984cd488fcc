package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dunamismax/iconforge/internal/domain"
)

// MemoryStore is a process local AssetCatalog and JobStore.
type MemoryStore struct {
	mu     sync.RWMutex
	jobs   map[string]domain.Job
	assets map[string][]domain.DerivedAsset
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:   make(map[string]domain.Job),
		assets: make(map[string][]domain.DerivedAsset),
	}
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) Create(_ context.Context, job domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (domain.Job, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, update domain.JobUpdate) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, domain.ErrJobNotFound
	}

	job = applyUpdate(job, update)
	job.UpdatedAt = time.Now().UTC()
	s.jobs[id] = job
	return job, nil
}

// RecordAsset replaces an earlier record with the same filename, mirroring
// the overwrite semantics of the object store.
func (s *MemoryStore) RecordAsset(_ context.Context, asset domain.DerivedAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.assets[asset.Token]
	for i := range list {
		if list[i].Filename == asset.Filename {
			list[i] = asset
			return nil
		}
	}
	s.assets[asset.Token] = append(list, asset)
	return nil
}

func (s *MemoryStore) ListAssets(_ context.Context, token string) ([]domain.DerivedAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]domain.DerivedAsset(nil), s.assets[token]...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
