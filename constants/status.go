package constants

// JobStatus is the canonical status for a batch intake job.
type JobStatus string

// Stable values (store these exact strings).
const (
	JobStatusPending    JobStatus = "PENDING"    // created, orchestration not started
	JobStatusProcessing JobStatus = "PROCESSING" // orchestration in progress
	JobStatusCompleted  JobStatus = "COMPLETED"  // every file outcome is terminal
	JobStatusFailed     JobStatus = "FAILED"     // orchestration error or cancellation
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// FileStatus tracks one file's journey within a job.
type FileStatus string

const (
	FileStatusPending    FileStatus = "PENDING"
	FileStatusProcessing FileStatus = "PROCESSING"
	FileStatusCompleted  FileStatus = "COMPLETED"
	FileStatusFailed     FileStatus = "FAILED"
)

func (s FileStatus) Terminal() bool {
	return s == FileStatusCompleted || s == FileStatusFailed
}
