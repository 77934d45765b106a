// Package repository persists batch jobs. The orchestrator is written
// against JobRepository so the in-memory map used in tests and the durable
// stores are interchangeable.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docintake/internal/entity"
)

// JobRepository stores Job records keyed by id, queryable by owner.
type JobRepository interface {
	// Get returns the job or common.ErrJobNotFound.
	Get(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	// Put inserts or replaces the job record.
	Put(ctx context.Context, job *entity.Job) error
	// Delete removes the job. Deleting a missing job is not an error.
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByOwner returns the owner's jobs, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*entity.Job, error)
	// ListCompletedBefore returns jobs whose completedAt is set and older
	// than the cutoff. Jobs without a completedAt never appear.
	ListCompletedBefore(ctx context.Context, cutoff time.Time) ([]*entity.Job, error)
}
