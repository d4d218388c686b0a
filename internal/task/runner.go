package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docsmith/docex-api/internal/domain"
	"github.com/docsmith/docex-api/internal/extraction"
	"github.com/docsmith/docex-api/internal/redact"
	"github.com/docsmith/docex-api/internal/store"
)

// FileRemover deletes a stored upload once its job has been processed.
type FileRemover interface {
	Remove(path string) error
}

// RunnerConfig holds configuration for the runner
type RunnerConfig struct {
	// WorkerCount determines how many concurrent workers process jobs
	WorkerCount int

	// QueueSize determines the buffer size of the submission queue
	QueueSize int

	// ExtractTimeout bounds a single extraction attempt. It is also the
	// upper bound on how long a revoked-but-running job keeps consuming
	// resources before its context deadline forces it out.
	ExtractTimeout time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:    2,
		QueueSize:      100,
		ExtractTimeout: 2 * time.Minute,
	}
}

// Runner manages background extraction processing: it owns the queue, the
// worker pool, and the cancellation registry for in-flight jobs.
type Runner struct {
	store      store.TaskStore
	extractor  extraction.Extractor
	files      FileRemover
	queue      *Queue
	config     RunnerConfig
	logger     *slog.Logger
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	// mu guards the cancellation registry below.
	mu       sync.Mutex
	inflight map[uuid.UUID]context.CancelFunc
	revoked  map[uuid.UUID]bool
}

// NewRunner creates a new Runner.
func NewRunner(
	taskStore store.TaskStore,
	extractor extraction.Extractor,
	files FileRemover,
	config RunnerConfig,
	logger *slog.Logger,
) *Runner {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.ExtractTimeout <= 0 {
		config.ExtractTimeout = DefaultRunnerConfig().ExtractTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		store:      taskStore,
		extractor:  extractor,
		files:      files,
		queue:      NewQueue(config.QueueSize, logger),
		config:     config,
		logger:     logger,
		ctx:        ctx,
		cancelFunc: cancel,
		inflight:   make(map[uuid.UUID]context.CancelFunc),
		revoked:    make(map[uuid.UUID]bool),
	}
}

// Submit persists a new pending job and enqueues it for processing. It
// returns immediately; extraction happens on a worker. If the queue is full
// the job record is rolled back so the caller can reject the upload outright.
func (r *Runner) Submit(ctx context.Context, job *domain.Job, filePath string) error {
	if err := r.store.Create(ctx, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	ticket := Ticket{
		JobID:     job.ID,
		FilePath:  filePath,
		MediaType: job.MediaType,
	}

	if err := r.queue.Enqueue(ticket); err != nil {
		if delErr := r.store.Delete(ctx, job.ID); delErr != nil {
			r.logger.Error("failed to roll back unqueued job",
				"job_id", job.ID,
				"error", delErr)
		}
		return err
	}

	return nil
}

// Cancel requests best-effort cancellation of a job.
//
// A job that has not started is transitioned straight to revoked and will be
// skipped at pickup. A running job has its context cancelled; the worker
// records the revocation when it observes the cancellation, at the latest
// when the attempt timeout fires. Returns store.ErrAlreadyTerminal if the
// job has already finished and store.ErrNotFound if it is unknown or expired.
func (r *Runner) Cancel(ctx context.Context, id uuid.UUID) error {
	job, err := r.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return store.ErrAlreadyTerminal
	}

	r.mu.Lock()
	r.revoked[id] = true
	cancel, running := r.inflight[id]
	r.mu.Unlock()

	if running {
		r.logger.Info("cancelling running job", "job_id", id)
		cancel()
		return nil
	}

	// Not yet picked up: revoke now so the worker skips it.
	if _, err := r.store.UpdateStatus(ctx, id, domain.JobStatusRevoked, nil, ""); err != nil {
		if errors.Is(err, store.ErrAlreadyTerminal) {
			return store.ErrAlreadyTerminal
		}
		// The job may have started between the snapshot and the write; the
		// revoked flag above still makes the worker end it as revoked.
		if errors.Is(err, store.ErrInvalidTransition) {
			return nil
		}
		return err
	}

	r.logger.Info("revoked queued job", "job_id", id)
	return nil
}

// Start launches the worker pool.
func (r *Runner) Start() {
	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.logger.Info("extraction runner started",
		"worker_count", r.config.WorkerCount,
		"queue_size", r.queue.Capacity())
}

// Stop shuts the runner down: the queue stops accepting submissions, queued
// jobs drain, in-flight extraction contexts are cancelled, and all workers
// are awaited.
func (r *Runner) Stop() {
	r.queue.Close()
	r.cancelFunc()
	r.wg.Wait()
	r.logger.Info("extraction runner stopped")
}

// QueueDepth returns the number of jobs waiting for a worker.
func (r *Runner) QueueDepth() int {
	return r.queue.Depth()
}

// QueueCapacity returns the submission queue's capacity.
func (r *Runner) QueueCapacity() int {
	return r.queue.Capacity()
}

// worker consumes tickets until the queue closes or the runner stops.
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case ticket, ok := <-r.queue.GetChannel():
			if !ok {
				r.logger.Debug("queue closed, stopping worker", "worker_id", id)
				return
			}
			r.processTicket(ticket, id)
		}
	}
}

// processTicket handles one job end to end. Whatever happens, the uploaded
// temp file is removed and (unless the job vanished) exactly one terminal
// status is written.
func (r *Runner) processTicket(ticket Ticket, workerID int) {
	ctx := context.Background()
	logger := r.logger.With(
		"job_id", ticket.JobID,
		"worker_id", workerID,
	)

	defer func() {
		if err := r.files.Remove(ticket.FilePath); err != nil {
			logger.Warn("failed to remove upload", "error", err)
		}
		r.clearRevoked(ticket.JobID)
	}()

	job, err := r.store.Get(ctx, ticket.JobID)
	if err != nil {
		logger.Warn("job vanished before processing", "error", err)
		return
	}
	if job.Status.IsTerminal() {
		// Revoked while queued; never start it.
		logger.Info("skipping terminal job", "status", job.Status)
		return
	}

	if _, err := r.store.UpdateStatus(ctx, ticket.JobID, domain.JobStatusStarted, nil, ""); err != nil {
		if errors.Is(err, store.ErrAlreadyTerminal) {
			logger.Info("job revoked at pickup")
		} else {
			logger.Error("failed to mark job started", "error", err)
		}
		return
	}

	logger.Info("processing job", "media_type", ticket.MediaType)
	start := time.Now()

	jobCtx, cancel := context.WithTimeout(r.ctx, r.config.ExtractTimeout)
	r.registerInflight(ticket.JobID, cancel)
	defer func() {
		r.unregisterInflight(ticket.JobID)
		cancel()
	}()

	result, extractErr := r.runExtraction(jobCtx, ticket)
	r.writeTerminal(ctx, jobCtx, logger, ticket.JobID, result, extractErr)

	logger.Info("job processed", "duration_ms", time.Since(start).Milliseconds())
}

// runExtraction invokes the extractor, converting a panic into an error so
// one bad document can never take down a worker.
func (r *Runner) runExtraction(
	ctx context.Context,
	ticket Ticket,
) (result *domain.ExtractionResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("%w: extractor panic: %v", extraction.ErrExtractionFailed, rec)
		}
	}()

	return r.extractor.Extract(ctx, extraction.Request{
		FilePath:  ticket.FilePath,
		MediaType: ticket.MediaType,
	})
}

// writeTerminal records the job's single terminal state. A concurrent
// revocation that already terminated the job wins; the resulting conflict is
// expected and only logged.
func (r *Runner) writeTerminal(
	ctx context.Context,
	jobCtx context.Context,
	logger *slog.Logger,
	id uuid.UUID,
	result *domain.ExtractionResult,
	extractErr error,
) {
	var (
		status domain.JobStatus
		errMsg string
	)

	switch {
	// An accepted stop request always ends in revoked, even if the external
	// call happened to finish before observing the cancellation.
	case r.isRevoked(id):
		status = domain.JobStatusRevoked
		result = nil

	case extractErr == nil:
		status = domain.JobStatusSuccess

	case errors.Is(jobCtx.Err(), context.DeadlineExceeded):
		status = domain.JobStatusFailure
		errMsg = fmt.Sprintf("extraction timed out after %s", r.config.ExtractTimeout)
		result = nil

	default:
		status = domain.JobStatusFailure
		errMsg = redact.Error(extractErr)
		result = nil
	}

	if _, err := r.store.UpdateStatus(ctx, id, status, result, errMsg); err != nil {
		if errors.Is(err, store.ErrAlreadyTerminal) {
			logger.Info("terminal state already recorded", "attempted_status", status)
			return
		}
		logger.Error("failed to record terminal state",
			"attempted_status", status,
			"error", err)
		return
	}

	if extractErr != nil {
		logger.Error("job finished with error",
			"status", status,
			"error", extractErr)
	}
}

func (r *Runner) registerInflight(id uuid.UUID, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inflight[id] = cancel
}

func (r *Runner) unregisterInflight(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, id)
}

func (r *Runner) isRevoked(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revoked[id]
}

func (r *Runner) clearRevoked(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.revoked, id)
}
