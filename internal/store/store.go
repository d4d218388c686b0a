package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/docsmith/docex-api/internal/domain"
)

// TaskStore defines the interface for persisting extraction jobs.
// Implementations must make UpdateStatus atomic with respect to concurrent
// readers and writers: a reader never sees a terminal status without its
// payload, and concurrent terminal writes resolve to exactly one winner.
type TaskStore interface {
	// Create persists a new job. Returns ErrAlreadyExists if a job with the
	// same ID is already present.
	Create(ctx context.Context, job *domain.Job) error

	// Get returns a snapshot of the job with the given ID, or ErrNotFound if
	// it does not exist or its retention TTL has elapsed.
	Get(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// UpdateStatus transitions a job to a new status, attaching the terminal
	// payload when the status is terminal. Returns ErrAlreadyTerminal if the
	// job has already terminated and ErrInvalidTransition if the move would
	// violate monotonicity. On success it returns the updated snapshot.
	UpdateStatus(
		ctx context.Context,
		id uuid.UUID,
		status domain.JobStatus,
		result *domain.ExtractionResult,
		errMsg string,
	) (*domain.Job, error)

	// Delete removes a job outright. Used only to roll back a submission
	// whose enqueue failed; missing jobs are not an error.
	Delete(ctx context.Context, id uuid.UUID) error

	// List returns snapshots of all live jobs, ordered by submission time
	// descending.
	List(ctx context.Context) ([]*domain.Job, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// applyUpdate validates a transition against the job's current state and
// mutates the snapshot in place. Shared by both backends so the monotonicity
// rules live in one spot.
func applyUpdate(
	job *domain.Job,
	status domain.JobStatus,
	result *domain.ExtractionResult,
	errMsg string,
) error {
	if job.Status.IsTerminal() {
		return ErrAlreadyTerminal
	}
	if !domain.CanTransition(job.Status, status) {
		return ErrInvalidTransition
	}

	job.Status = status
	switch status {
	case domain.JobStatusSuccess:
		job.Result = result
		job.Error = ""
	case domain.JobStatusFailure:
		job.Result = nil
		job.Error = errMsg
	default:
		job.Result = nil
		job.Error = ""
	}

	return nil
}
