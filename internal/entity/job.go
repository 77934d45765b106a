package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docintake/constants"
)

// Job is one batch submission. It is mutated only by the orchestrator;
// everyone else receives snapshots.
type Job struct {
	ID             uuid.UUID
	OwnerID        string
	Status         constants.JobStatus
	TotalFiles     int
	ProcessedCount int
	FailedCount    int
	CreatedAt      time.Time
	CompletedAt    *time.Time
	ErrorMessage   string
	Options        ProcessingOptions
	// Results holds one outcome per submitted file, in submission order.
	// The slice length is fixed at creation.
	Results []FileOutcome
}

// FileOutcome tracks one file's journey within a job. Once the status is
// terminal, exactly one of Result/Error is set.
type FileOutcome struct {
	FileID   uuid.UUID
	FileName string
	Status   constants.FileStatus
	Result   *ProcessedDocument
	Error    string
}

// Clone returns a deep copy so callers can hold a snapshot without racing
// the orchestrator's updates.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	cp.Results = make([]FileOutcome, len(j.Results))
	copy(cp.Results, j.Results)
	for i := range cp.Results {
		if r := cp.Results[i].Result; r != nil {
			rc := *r
			cp.Results[i].Result = &rc
		}
	}
	return &cp
}

// BatchResult is the derived summary of a job's outcomes.
type BatchResult struct {
	JobID          uuid.UUID
	SuccessCount   int
	FailedCount    int
	ByDocumentType map[constants.DocumentType]int
	MeanConfidence float64
	Elapsed        time.Duration
}

// Summarize derives a BatchResult from the job's current outcomes.
func (j *Job) Summarize() BatchResult {
	res := BatchResult{
		JobID:          j.ID,
		ByDocumentType: make(map[constants.DocumentType]int),
	}
	var confSum float64
	var confN int
	for _, out := range j.Results {
		switch out.Status {
		case constants.FileStatusCompleted:
			res.SuccessCount++
			if out.Result != nil {
				res.ByDocumentType[out.Result.DocumentType]++
				confSum += float64(out.Result.Confidence)
				confN++
			}
		case constants.FileStatusFailed:
			res.FailedCount++
		}
	}
	if confN > 0 {
		res.MeanConfidence = confSum / float64(confN)
	}
	end := time.Now()
	if j.CompletedAt != nil {
		end = *j.CompletedAt
	}
	res.Elapsed = end.Sub(j.CreatedAt)
	return res
}
