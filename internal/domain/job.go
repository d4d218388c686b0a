package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the processing state of an extraction job.
type JobStatus string

// Possible job status values. The wire values are uppercase to match the
// status vocabulary exposed to polling clients.
const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusStarted JobStatus = "STARTED"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailure JobStatus = "FAILURE"
	JobStatusRevoked JobStatus = "REVOKED"
)

// Common validation errors for Job
var (
	ErrEmptyJobID           = errors.New("job ID cannot be empty")
	ErrEmptySourceName      = errors.New("job source name cannot be empty")
	ErrEmptyMediaType       = errors.New("job media type cannot be empty")
	ErrInvalidSizeBytes     = errors.New("job size must be positive")
	ErrInvalidJobStatus     = errors.New("invalid job status")
	ErrResultWithoutSuccess = errors.New("result may only be set on a successful job")
	ErrErrorWithoutFailure  = errors.New("error message may only be set on a failed job")
)

// Job represents one upload-to-result unit of asynchronous extraction work.
// It tracks the uploaded file's metadata, the processing state, and exactly
// one terminal payload (Result on success, Error on failure).
type Job struct {
	ID          uuid.UUID         `json:"id"`
	SourceName  string            `json:"source_name"`
	MediaType   string            `json:"media_type"`
	SizeBytes   int64             `json:"size_bytes"`
	Status      JobStatus         `json:"status"`
	SubmittedAt time.Time         `json:"submitted_at"`
	Result      *ExtractionResult `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// NewJob creates a new Job for an accepted upload. It generates a new UUID,
// sets the status to pending, and records the submission timestamp.
// Returns an error if validation fails.
func NewJob(sourceName, mediaType string, sizeBytes int64) (*Job, error) {
	job := &Job{
		ID:          uuid.New(),
		SourceName:  sourceName,
		MediaType:   mediaType,
		SizeBytes:   sizeBytes,
		Status:      JobStatusPending,
		SubmittedAt: time.Now().UTC(),
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the Job has valid data.
// Returns an error if any field fails validation.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}

	if j.SourceName == "" {
		return ErrEmptySourceName
	}

	if j.MediaType == "" {
		return ErrEmptyMediaType
	}

	if j.SizeBytes <= 0 {
		return ErrInvalidSizeBytes
	}

	if !isValidJobStatus(j.Status) {
		return ErrInvalidJobStatus
	}

	if j.Result != nil && j.Status != JobStatusSuccess {
		return ErrResultWithoutSuccess
	}

	if j.Error != "" && j.Status != JobStatusFailure {
		return ErrErrorWithoutFailure
	}

	return nil
}

// IsTerminal reports whether the status permits no further transitions.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSuccess, JobStatusFailure, JobStatusRevoked:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a job may move from one status to another.
// Transitions are monotonic: pending may start or terminate, started may only
// terminate, and terminal states accept nothing.
func CanTransition(from, to JobStatus) bool {
	if !isValidJobStatus(from) || !isValidJobStatus(to) {
		return false
	}
	if from.IsTerminal() {
		return false
	}

	switch from {
	case JobStatusPending:
		return to == JobStatusStarted || to.IsTerminal()
	case JobStatusStarted:
		return to.IsTerminal()
	default:
		return false
	}
}

// Clone returns a deep copy of the job. Stores hand out clones so callers
// can never mutate shared state in place.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}

	clone := *j
	clone.Result = j.Result.clone()
	return &clone
}

// isValidJobStatus checks if the given status is a valid JobStatus.
func isValidJobStatus(status JobStatus) bool {
	switch status {
	case JobStatusPending, JobStatusStarted, JobStatusSuccess,
		JobStatusFailure, JobStatusRevoked:
		return true
	default:
		return false
	}
}
