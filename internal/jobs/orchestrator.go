// Package jobs drives batches of files through the document pipeline. The
// orchestrator owns every write to a job record: worker results merge back
// through one update path, files fail independently, and cancellation is
// cooperative at chunk boundaries.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docintake/constants"
	"github.com/joseph-ayodele/docintake/internal/common"
	"github.com/joseph-ayodele/docintake/internal/entity"
	"github.com/joseph-ayodele/docintake/internal/repository"
	"github.com/joseph-ayodele/docintake/internal/telemetry"
)

// FileProcessor runs one file through the pipeline. Implemented by
// pipeline.Processor; stubbed in tests.
type FileProcessor interface {
	Process(ctx context.Context, file entity.InputFile, opts entity.ProcessingOptions) (*entity.ProcessedDocument, error)
}

// jobControl tracks one running job's cancellation flag and completion.
type jobControl struct {
	mu       sync.Mutex
	canceled bool
	done     chan struct{}
}

func (c *jobControl) cancel() {
	c.mu.Lock()
	c.canceled = true
	c.mu.Unlock()
}

func (c *jobControl) isCanceled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canceled
}

// Orchestrator accepts batches, runs them asynchronously and answers
// status queries.
type Orchestrator struct {
	repo      repository.JobRepository
	processor FileProcessor
	logger    *slog.Logger

	// updateMu serializes every read-modify-write of a job record so the
	// orchestrator stays the record's single writer.
	updateMu sync.Mutex

	ctlMu    sync.Mutex
	controls map[uuid.UUID]*jobControl
}

// NewOrchestrator builds an orchestrator over the given store and
// processor.
func NewOrchestrator(repo repository.JobRepository, processor FileProcessor, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		repo:      repo,
		processor: processor,
		logger:    logger,
		controls:  make(map[uuid.UUID]*jobControl),
	}
}

// StartJob creates the job in Pending, kicks off orchestration in the
// background and returns a snapshot immediately.
func (o *Orchestrator) StartJob(ctx context.Context, files []entity.InputFile, ownerID string, opts entity.ProcessingOptions) (*entity.Job, error) {
	if len(files) == 0 {
		return nil, common.NewAppError("EMPTY_BATCH", "a job needs at least one file", common.ErrInvalidInput)
	}
	opts = opts.Normalize()

	job := &entity.Job{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Status:     constants.JobStatusPending,
		TotalFiles: len(files),
		CreatedAt:  time.Now().UTC(),
		Options:    opts,
		Results:    make([]entity.FileOutcome, len(files)),
	}
	for i := range files {
		if files[i].ID == uuid.Nil {
			files[i].ID = uuid.New()
		}
		job.Results[i] = entity.FileOutcome{
			FileID:   files[i].ID,
			FileName: files[i].Name,
			Status:   constants.FileStatusPending,
		}
	}
	if err := o.repo.Put(ctx, job); err != nil {
		return nil, fmt.Errorf("store job: %w", err)
	}

	ctl := &jobControl{done: make(chan struct{})}
	o.ctlMu.Lock()
	o.controls[job.ID] = ctl
	o.ctlMu.Unlock()

	telemetry.JobsStarted.Inc()
	o.logger.Info("jobs.start",
		"job_id", job.ID,
		"owner_id", ownerID,
		"files", len(files),
		"parallel", opts.ParallelProcessing,
		"max_concurrent", opts.MaxConcurrent)

	// Detach from the caller's context: the batch outlives the request.
	go o.run(context.WithoutCancel(ctx), job.ID, files, opts, ctl)

	return job.Clone(), nil
}

// run drives the whole batch. Orchestration errors, not per-file
// failures, fail the job.
func (o *Orchestrator) run(ctx context.Context, jobID uuid.UUID, files []entity.InputFile, opts entity.ProcessingOptions, ctl *jobControl) {
	defer close(ctl.done)
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("jobs.run.panic", "job_id", jobID, "panic", r)
			o.failJob(ctx, jobID, fmt.Sprintf("orchestration panic: %v", r))
		}
		o.ctlMu.Lock()
		delete(o.controls, jobID)
		o.ctlMu.Unlock()
	}()

	if err := o.updateJob(ctx, jobID, func(j *entity.Job) {
		j.Status = constants.JobStatusProcessing
	}); err != nil {
		o.logger.Error("jobs.run.start.failed", "job_id", jobID, "error", err)
		o.failJob(ctx, jobID, err.Error())
		return
	}

	chunkSize := opts.MaxConcurrent
	if !opts.ParallelProcessing {
		chunkSize = 1
	}

	for start := 0; start < len(files); start += chunkSize {
		if ctl.isCanceled() {
			o.logger.Info("jobs.run.canceled", "job_id", jobID, "processed_through", start)
			return
		}
		end := start + chunkSize
		if end > len(files) {
			end = len(files)
		}
		chunk := files[start:end]

		// The whole chunk settles before the next one starts.
		var wg sync.WaitGroup
		for i := range chunk {
			wg.Add(1)
			go func(file entity.InputFile, idx int) {
				defer wg.Done()
				o.processOne(ctx, jobID, file, idx, opts)
			}(chunk[i], start+i)
		}
		wg.Wait()
	}

	// The status recheck happens inside the single-writer path: a cancel
	// that already marked the job Failed must not be overwritten.
	now := time.Now().UTC()
	completed := false
	if err := o.updateJob(ctx, jobID, func(j *entity.Job) {
		if j.Status != constants.JobStatusProcessing {
			return
		}
		j.Status = constants.JobStatusCompleted
		j.CompletedAt = &now
		completed = true
	}); err != nil {
		o.logger.Error("jobs.run.finish.failed", "job_id", jobID, "error", err)
		o.failJob(ctx, jobID, err.Error())
		return
	}
	if !completed {
		o.logger.Info("jobs.run.canceled", "job_id", jobID, "processed_through", len(files))
		return
	}
	telemetry.JobsCompleted.Inc()
	o.logger.Info("jobs.done", "job_id", jobID)
}

// processOne runs a single file and merges its terminal outcome into the
// job record. A failure here never touches other files.
func (o *Orchestrator) processOne(ctx context.Context, jobID uuid.UUID, file entity.InputFile, idx int, opts entity.ProcessingOptions) {
	if err := o.updateJob(ctx, jobID, func(j *entity.Job) {
		j.Results[idx].Status = constants.FileStatusProcessing
	}); err != nil {
		o.logger.Error("jobs.file.start.failed", "job_id", jobID, "file", file.Name, "error", err)
	}

	fileCtx, cancel := common.WithTimeout(ctx, opts.FileTimeout)
	defer cancel()

	doc, err := o.processor.Process(fileCtx, file, opts)
	if err == nil && fileCtx.Err() != nil {
		err = fmt.Errorf("file processing timed out after %s", opts.FileTimeout)
	}

	mergeErr := o.updateJob(ctx, jobID, func(j *entity.Job) {
		out := &j.Results[idx]
		if err != nil {
			out.Status = constants.FileStatusFailed
			out.Error = err.Error()
			out.Result = nil
			j.FailedCount++
			return
		}
		out.Status = constants.FileStatusCompleted
		out.Result = doc
		out.Error = ""
		j.ProcessedCount++
	})
	if mergeErr != nil {
		o.logger.Error("jobs.file.merge.failed", "job_id", jobID, "file", file.Name, "error", mergeErr)
		return
	}

	if err != nil {
		telemetry.FilesFailed.Inc()
		o.logger.Warn("jobs.file.failed", "job_id", jobID, "file", file.Name, "error", err)
	} else {
		telemetry.FilesProcessed.Inc()
		o.logger.Debug("jobs.file.ok", "job_id", jobID, "file", file.Name, "type", doc.DocumentType)
	}
}

// GetJobStatus returns a snapshot of the job, or ErrJobNotFound. When the
// context carries an owner identity, a mismatch is ErrUnauthorized.
func (o *Orchestrator) GetJobStatus(ctx context.Context, jobID uuid.UUID) (*entity.Job, error) {
	job, err := o.repo.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// GetBatchResult returns the derived summary for the job.
func (o *Orchestrator) GetBatchResult(ctx context.Context, jobID uuid.UUID) (entity.BatchResult, error) {
	job, err := o.GetJobStatus(ctx, jobID)
	if err != nil {
		return entity.BatchResult{}, err
	}
	return job.Summarize(), nil
}

// GetUserJobs lists the owner's jobs, newest first.
func (o *Orchestrator) GetUserJobs(ctx context.Context, ownerID string) ([]*entity.Job, error) {
	return o.repo.ListByOwner(ctx, ownerID)
}

// CancelJob cancels a Processing job: the job transitions to Failed and no
// further chunk starts. In-flight files finish. Reports false for jobs in
// any other state.
func (o *Orchestrator) CancelJob(ctx context.Context, jobID uuid.UUID) (bool, error) {
	o.ctlMu.Lock()
	ctl := o.controls[jobID]
	o.ctlMu.Unlock()

	canceled, err := o.tryCancel(ctx, jobID, ctl)
	if err != nil || !canceled {
		return false, err
	}
	telemetry.JobsFailed.Inc()
	o.logger.Info("jobs.cancel", "job_id", jobID)
	return true, nil
}

// tryCancel performs the Processing check and the Failed transition as one
// step under the single-writer lock. Checking outside it would race the
// runner's final Completed write and could flip a terminal job back.
func (o *Orchestrator) tryCancel(ctx context.Context, jobID uuid.UUID, ctl *jobControl) (bool, error) {
	o.updateMu.Lock()
	defer o.updateMu.Unlock()

	job, err := o.repo.Get(ctx, jobID)
	if err != nil {
		return false, err
	}
	if err := authorize(ctx, job); err != nil {
		return false, err
	}
	if job.Status != constants.JobStatusProcessing {
		return false, nil
	}
	if ctl != nil {
		ctl.cancel()
	}
	now := time.Now().UTC()
	job.Status = constants.JobStatusFailed
	job.ErrorMessage = "canceled by caller"
	job.CompletedAt = &now
	if err := o.repo.Put(ctx, job); err != nil {
		return false, err
	}
	return true, nil
}

// CleanupOldJobs deletes jobs whose completedAt is older than the
// retention cutoff. Jobs still Pending or Processing are never touched,
// regardless of age.
func (o *Orchestrator) CleanupOldJobs(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays < 1 {
		return 0, common.NewAppError("BAD_RETENTION", "retentionDays must be >= 1", common.ErrInvalidInput)
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	stale, err := o.repo.ListCompletedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale jobs: %w", err)
	}
	deleted := 0
	for _, job := range stale {
		if err := o.repo.Delete(ctx, job.ID); err != nil {
			o.logger.Error("jobs.cleanup.delete.failed", "job_id", job.ID, "error", err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		telemetry.CleanupDeletedJobs.Add(float64(deleted))
	}
	o.logger.Info("jobs.cleanup", "cutoff", cutoff, "deleted", deleted)
	return deleted, nil
}

// Wait blocks until the job's orchestration finishes or the context ends.
// Jobs unknown to this process (already finished, or started elsewhere)
// return immediately.
func (o *Orchestrator) Wait(ctx context.Context, jobID uuid.UUID) error {
	o.ctlMu.Lock()
	ctl := o.controls[jobID]
	o.ctlMu.Unlock()
	if ctl == nil {
		return nil
	}
	select {
	case <-ctl.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// updateJob is the single write path for job records.
func (o *Orchestrator) updateJob(ctx context.Context, jobID uuid.UUID, mutate func(*entity.Job)) error {
	o.updateMu.Lock()
	defer o.updateMu.Unlock()
	job, err := o.repo.Get(ctx, jobID)
	if err != nil {
		return err
	}
	mutate(job)
	return o.repo.Put(ctx, job)
}

func (o *Orchestrator) failJob(ctx context.Context, jobID uuid.UUID, msg string) {
	now := time.Now().UTC()
	if err := o.updateJob(ctx, jobID, func(j *entity.Job) {
		j.Status = constants.JobStatusFailed
		j.ErrorMessage = msg
		j.CompletedAt = &now
	}); err != nil {
		o.logger.Error("jobs.fail.update.failed", "job_id", jobID, "error", err)
		return
	}
	telemetry.JobsFailed.Inc()
}

func authorize(ctx context.Context, job *entity.Job) error {
	owner := common.OwnerIDFromContext(ctx)
	if owner != "" && owner != job.OwnerID {
		return common.NewAppError("FORBIDDEN", "job belongs to another owner", common.ErrUnauthorized)
	}
	return nil
}
