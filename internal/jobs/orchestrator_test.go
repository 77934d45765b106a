package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docintake/constants"
	"github.com/joseph-ayodele/docintake/internal/common"
	"github.com/joseph-ayodele/docintake/internal/entity"
	"github.com/joseph-ayodele/docintake/internal/repository"
)

// stubProcessor completes after a fixed delay and tracks concurrency.
type stubProcessor struct {
	delay     time.Duration
	failNames map[string]bool

	mu          sync.Mutex
	inFlight    int
	maxInFlight int
}

func (s *stubProcessor) Process(ctx context.Context, file entity.InputFile, opts entity.ProcessingOptions) (*entity.ProcessedDocument, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.failNames[file.Name] {
		return nil, errors.New("synthetic failure")
	}
	return &entity.ProcessedDocument{
		FileID:       file.ID,
		FileName:     file.Name,
		DocumentType: constants.Receipt,
		Confidence:   90,
		ProcessedAt:  time.Now().UTC(),
	}, nil
}

func makeFiles(n int) []entity.InputFile {
	files := make([]entity.InputFile, n)
	for i := range files {
		files[i] = entity.InputFile{Name: fmt.Sprintf("file-%d.png", i), Data: []byte("x")}
	}
	return files
}

func fastOptions() entity.ProcessingOptions {
	opts := entity.DefaultProcessingOptions()
	opts.FileTimeout = 5 * time.Second
	return opts
}

func TestStartJobRunsToCompletion(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	o := NewOrchestrator(repo, &stubProcessor{}, nil)

	job, err := o.StartJob(ctx, makeFiles(3), "alice", fastOptions())
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	if job.Status != constants.JobStatusPending {
		t.Errorf("initial status = %v, want Pending", job.Status)
	}
	if job.TotalFiles != 3 || len(job.Results) != 3 {
		t.Fatalf("job = %+v", job)
	}

	if err := o.Wait(ctx, job.ID); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	final, err := o.GetJobStatus(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJobStatus: %v", err)
	}
	if final.Status != constants.JobStatusCompleted {
		t.Errorf("status = %v, want Completed", final.Status)
	}
	if final.ProcessedCount != 3 || final.FailedCount != 0 {
		t.Errorf("counts = %d/%d, want 3/0", final.ProcessedCount, final.FailedCount)
	}
	if final.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
	for _, out := range final.Results {
		if out.Status != constants.FileStatusCompleted {
			t.Errorf("outcome %s = %v", out.FileName, out.Status)
		}
		if out.Result == nil || out.Error != "" {
			t.Errorf("terminal outcome must have exactly a result: %+v", out)
		}
	}
}

func TestChunkedBoundedConcurrency(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	proc := &stubProcessor{delay: 40 * time.Millisecond}
	o := NewOrchestrator(repo, proc, nil)

	opts := fastOptions()
	opts.MaxConcurrent = 2

	start := time.Now()
	job, err := o.StartJob(ctx, makeFiles(5), "alice", opts)
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	if err := o.Wait(ctx, job.ID); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	elapsed := time.Since(start)

	// ceil(5/2) = 3 chunks of 40ms each: noticeably more than unbounded
	// (~40ms) and less than sequential (~200ms).
	if elapsed < 110*time.Millisecond {
		t.Errorf("elapsed = %v, looks unbounded", elapsed)
	}
	if elapsed > 190*time.Millisecond {
		t.Errorf("elapsed = %v, looks sequential", elapsed)
	}
	if proc.maxInFlight > 2 {
		t.Errorf("max in flight = %d, want <= 2", proc.maxInFlight)
	}
}

func TestSequentialProcessing(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	proc := &stubProcessor{delay: 10 * time.Millisecond}
	o := NewOrchestrator(repo, proc, nil)

	opts := fastOptions()
	opts.ParallelProcessing = false

	job, err := o.StartJob(ctx, makeFiles(4), "alice", opts)
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	if err := o.Wait(ctx, job.ID); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if proc.maxInFlight != 1 {
		t.Errorf("max in flight = %d, want 1 for sequential mode", proc.maxInFlight)
	}
}

func TestSingleFileFailureDoesNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	proc := &stubProcessor{failNames: map[string]bool{"file-1.png": true}}
	o := NewOrchestrator(repo, proc, nil)

	job, err := o.StartJob(ctx, makeFiles(3), "alice", fastOptions())
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	if err := o.Wait(ctx, job.ID); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	final, _ := o.GetJobStatus(ctx, job.ID)
	if final.Status != constants.JobStatusCompleted {
		t.Errorf("status = %v, want Completed despite one failure", final.Status)
	}
	if final.ProcessedCount != 2 || final.FailedCount != 1 {
		t.Errorf("counts = %d/%d, want 2/1", final.ProcessedCount, final.FailedCount)
	}
	bad := final.Results[1]
	if bad.Status != constants.FileStatusFailed || bad.Error == "" || bad.Result != nil {
		t.Errorf("failed outcome = %+v", bad)
	}
}

func TestCountsNeverExceedTotal(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	proc := &stubProcessor{delay: 15 * time.Millisecond}
	o := NewOrchestrator(repo, proc, nil)

	job, err := o.StartJob(ctx, makeFiles(6), "alice", fastOptions())
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}

	prev := 0
	deadline := time.After(5 * time.Second)
	for {
		snap, err := o.GetJobStatus(ctx, job.ID)
		if err != nil {
			t.Fatalf("GetJobStatus: %v", err)
		}
		sum := snap.ProcessedCount + snap.FailedCount
		if sum > snap.TotalFiles {
			t.Fatalf("processed+failed = %d exceeds total %d", sum, snap.TotalFiles)
		}
		if sum < prev {
			t.Fatalf("progress went backwards: %d -> %d", prev, sum)
		}
		prev = sum
		if snap.Status.Terminal() {
			break
		}
		select {
		case <-deadline:
			t.Fatal("job never finished")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestCancelJobSemantics(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	proc := &stubProcessor{delay: 50 * time.Millisecond}
	o := NewOrchestrator(repo, proc, nil)

	opts := fastOptions()
	opts.ParallelProcessing = false

	job, err := o.StartJob(ctx, makeFiles(5), "alice", opts)
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}

	// Wait for the job to be Processing.
	waitForStatus(t, o, job.ID, constants.JobStatusProcessing)

	ok, err := o.CancelJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
	if !ok {
		t.Fatal("cancel of a Processing job must succeed")
	}

	if err := o.Wait(ctx, job.ID); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	final, _ := o.GetJobStatus(ctx, job.ID)
	if final.Status != constants.JobStatusFailed {
		t.Errorf("status = %v, want Failed after cancel", final.Status)
	}
	var pending int
	for _, out := range final.Results {
		if out.Status == constants.FileStatusPending {
			pending++
		}
	}
	if pending == 0 {
		t.Error("cancel should have stopped later files from starting")
	}

	// A second cancel sees a terminal job and reports false.
	ok, err = o.CancelJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("second CancelJob: %v", err)
	}
	if ok {
		t.Error("cancel of a Failed job must report false")
	}
}

// laggyRepo simulates a remote store: reads take a moment, and every
// status written is recorded in order.
type laggyRepo struct {
	repository.JobRepository
	mu      sync.Mutex
	history []constants.JobStatus
}

func (r *laggyRepo) Get(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	time.Sleep(2 * time.Millisecond)
	return r.JobRepository.Get(ctx, id)
}

func (r *laggyRepo) Put(ctx context.Context, job *entity.Job) error {
	r.mu.Lock()
	if n := len(r.history); n == 0 || r.history[n-1] != job.Status {
		r.history = append(r.history, job.Status)
	}
	r.mu.Unlock()
	return r.JobRepository.Put(ctx, job)
}

func (r *laggyRepo) statuses() []constants.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]constants.JobStatus(nil), r.history...)
}

func TestCancelRacingCompletionKeepsTerminalStatus(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		repo := &laggyRepo{JobRepository: repository.NewMemoryRepository()}
		o := NewOrchestrator(repo, &stubProcessor{}, nil)

		job, err := o.StartJob(ctx, makeFiles(1), "alice", fastOptions())
		if err != nil {
			t.Fatalf("StartJob: %v", err)
		}
		// Cancel while the single file is finishing.
		ok, err := o.CancelJob(ctx, job.ID)
		if err != nil {
			t.Fatalf("CancelJob: %v", err)
		}
		if err := o.Wait(ctx, job.ID); err != nil {
			t.Fatalf("Wait: %v", err)
		}

		final, err := o.GetJobStatus(ctx, job.ID)
		if err != nil {
			t.Fatalf("GetJobStatus: %v", err)
		}
		if ok && final.Status != constants.JobStatusFailed {
			t.Fatalf("iter %d: cancel reported true but job ended %v", i, final.Status)
		}
		if !ok && final.Status != constants.JobStatusCompleted {
			t.Fatalf("iter %d: cancel reported false but job ended %v", i, final.Status)
		}

		// A terminal status is final: nothing may be written after it.
		hist := repo.statuses()
		for j, s := range hist {
			if s.Terminal() && j != len(hist)-1 {
				t.Fatalf("iter %d: terminal %v followed by %v (history %v)", i, s, hist[j+1], hist)
			}
		}
	}
}

func TestCancelNonProcessingJob(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	o := NewOrchestrator(repo, &stubProcessor{}, nil)

	pending := &entity.Job{
		ID:        uuid.New(),
		OwnerID:   "alice",
		Status:    constants.JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.Put(ctx, pending); err != nil {
		t.Fatal(err)
	}
	if ok, err := o.CancelJob(ctx, pending.ID); err != nil || ok {
		t.Errorf("cancel pending = (%v, %v), want (false, nil)", ok, err)
	}

	if _, err := o.CancelJob(ctx, uuid.New()); !errors.Is(err, common.ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}
}

func TestGetJobStatusSnapshotsAreStable(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	o := NewOrchestrator(repo, &stubProcessor{}, nil)

	job, err := o.StartJob(ctx, makeFiles(2), "alice", fastOptions())
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	if err := o.Wait(ctx, job.ID); err != nil {
		t.Fatal(err)
	}

	a, _ := o.GetJobStatus(ctx, job.ID)
	a.Results[0].FileName = "mutated"
	b, _ := o.GetJobStatus(ctx, job.ID)
	if b.Results[0].FileName == "mutated" {
		t.Error("snapshots must not share state")
	}
}

func TestGetBatchResult(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	proc := &stubProcessor{failNames: map[string]bool{"file-2.png": true}}
	o := NewOrchestrator(repo, proc, nil)

	job, err := o.StartJob(ctx, makeFiles(3), "alice", fastOptions())
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	if err := o.Wait(ctx, job.ID); err != nil {
		t.Fatal(err)
	}

	res, err := o.GetBatchResult(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetBatchResult: %v", err)
	}
	if res.SuccessCount != 2 || res.FailedCount != 1 {
		t.Errorf("counts = %d/%d, want 2/1", res.SuccessCount, res.FailedCount)
	}
	if res.ByDocumentType[constants.Receipt] != 2 {
		t.Errorf("histogram = %v", res.ByDocumentType)
	}
	if res.MeanConfidence != 90 {
		t.Errorf("mean confidence = %.1f, want 90", res.MeanConfidence)
	}
	if res.Elapsed <= 0 {
		t.Error("elapsed must be positive")
	}
}

func TestGetUserJobsAndAuthorization(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	o := NewOrchestrator(repo, &stubProcessor{}, nil)

	job, err := o.StartJob(ctx, makeFiles(1), "alice", fastOptions())
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	if err := o.Wait(ctx, job.ID); err != nil {
		t.Fatal(err)
	}

	jobs, err := o.GetUserJobs(ctx, "alice")
	if err != nil || len(jobs) != 1 {
		t.Fatalf("GetUserJobs = (%v, %v)", jobs, err)
	}
	if jobs, _ := o.GetUserJobs(ctx, "bob"); len(jobs) != 0 {
		t.Errorf("bob sees %d jobs, want 0", len(jobs))
	}

	bobCtx := common.WithOwnerID(ctx, "bob")
	if _, err := o.GetJobStatus(bobCtx, job.ID); !errors.Is(err, common.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
	if _, err := o.CancelJob(bobCtx, job.ID); !errors.Is(err, common.ErrUnauthorized) {
		t.Errorf("cancel err = %v, want ErrUnauthorized", err)
	}
}

func TestCleanupOldJobs(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	o := NewOrchestrator(repo, &stubProcessor{}, nil)

	mkJob := func(status constants.JobStatus, completedAgo time.Duration) *entity.Job {
		j := &entity.Job{
			ID:        uuid.New(),
			OwnerID:   "alice",
			Status:    status,
			CreatedAt: time.Now().UTC().Add(-60 * 24 * time.Hour),
		}
		if completedAgo > 0 {
			done := time.Now().UTC().Add(-completedAgo)
			j.CompletedAt = &done
		}
		return j
	}

	stale := mkJob(constants.JobStatusCompleted, 45*24*time.Hour)
	fresh := mkJob(constants.JobStatusCompleted, 2*24*time.Hour)
	ancientButRunning := mkJob(constants.JobStatusProcessing, 0)
	for _, j := range []*entity.Job{stale, fresh, ancientButRunning} {
		if err := repo.Put(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := o.CleanupOldJobs(ctx, 30)
	if err != nil {
		t.Fatalf("CleanupOldJobs: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if _, err := repo.Get(ctx, stale.ID); !errors.Is(err, common.ErrJobNotFound) {
		t.Error("stale job should be gone")
	}
	if _, err := repo.Get(ctx, fresh.ID); err != nil {
		t.Error("fresh job should survive")
	}
	if _, err := repo.Get(ctx, ancientButRunning.ID); err != nil {
		t.Error("running job should survive regardless of age")
	}

	if _, err := o.CleanupOldJobs(ctx, 0); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("retention 0 err = %v, want ErrInvalidInput", err)
	}
}

func TestFileTimeoutBecomesFailedOutcome(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	proc := &stubProcessor{delay: 200 * time.Millisecond}
	o := NewOrchestrator(repo, proc, nil)

	opts := fastOptions()
	opts.FileTimeout = 20 * time.Millisecond

	job, err := o.StartJob(ctx, makeFiles(1), "alice", opts)
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	if err := o.Wait(ctx, job.ID); err != nil {
		t.Fatal(err)
	}

	final, _ := o.GetJobStatus(ctx, job.ID)
	if final.Status != constants.JobStatusCompleted {
		t.Errorf("status = %v, want Completed (timeout is a file-level failure)", final.Status)
	}
	if final.FailedCount != 1 {
		t.Errorf("failed = %d, want 1", final.FailedCount)
	}
	if final.Results[0].Status != constants.FileStatusFailed {
		t.Errorf("outcome = %v, want Failed", final.Results[0].Status)
	}
}

func TestStartJobRejectsEmptyBatch(t *testing.T) {
	o := NewOrchestrator(repository.NewMemoryRepository(), &stubProcessor{}, nil)
	if _, err := o.StartJob(context.Background(), nil, "alice", fastOptions()); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func waitForStatus(t *testing.T, o *Orchestrator, jobID uuid.UUID, want constants.JobStatus) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		snap, err := o.GetJobStatus(context.Background(), jobID)
		if err != nil {
			t.Fatalf("GetJobStatus: %v", err)
		}
		if snap.Status == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("job never reached %v (now %v)", want, snap.Status)
		case <-time.After(2 * time.Millisecond):
		}
	}
}
