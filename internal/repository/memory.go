package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docintake/internal/common"
	"github.com/joseph-ayodele/docintake/internal/entity"
)

// MemoryRepository is a concurrent in-memory JobRepository. Snapshots go
// in and out as deep copies so callers never share mutable state with the
// store.
type MemoryRepository struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*entity.Job
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{jobs: make(map[uuid.UUID]*entity.Job)}
}

func (m *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*entity.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, common.NewAppError("JOB_NOT_FOUND", id.String(), common.ErrJobNotFound)
	}
	return job.Clone(), nil
}

func (m *MemoryRepository) Put(_ context.Context, job *entity.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job.Clone()
	return nil
}

func (m *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	return nil
}

func (m *MemoryRepository) ListByOwner(_ context.Context, ownerID string) ([]*entity.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*entity.Job
	for _, job := range m.jobs {
		if job.OwnerID == ownerID {
			out = append(out, job.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepository) ListCompletedBefore(_ context.Context, cutoff time.Time) ([]*entity.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*entity.Job
	for _, job := range m.jobs {
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			out = append(out, job.Clone())
		}
	}
	return out, nil
}
