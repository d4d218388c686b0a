package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/docsmith/docex-api/internal/api/shared"
	"github.com/docsmith/docex-api/internal/domain"
	"github.com/docsmith/docex-api/internal/store"
	"github.com/docsmith/docex-api/internal/upload"
)

// TaskService is the slice of the runner the handlers need: accepting new
// jobs and cancelling existing ones.
type TaskService interface {
	Submit(ctx context.Context, job *domain.Job, filePath string) error
	Cancel(ctx context.Context, id uuid.UUID) error
}

// UploadStore persists upload payloads on disk for the workers to read.
type UploadStore interface {
	Save(data []byte, mediaType string) (string, error)
	Remove(path string) error
}

// TaskHandler handles document upload and task lifecycle HTTP requests.
type TaskHandler struct {
	store   store.TaskStore
	tasks   TaskService
	uploads UploadStore
	policy  upload.Policy
	logger  *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(
	taskStore store.TaskStore,
	tasks TaskService,
	uploads UploadStore,
	policy upload.Policy,
	logger *slog.Logger,
) *TaskHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}

	return &TaskHandler{
		store:   taskStore,
		tasks:   tasks,
		uploads: uploads,
		policy:  policy,
		logger:  logger.With(slog.String("component", "task_handler")),
	}
}

// UploadFile handles POST /uploadfile/ requests. It validates the multipart
// payload, stages it in the upload sandbox, and submits an extraction job.
// The response is 202 Accepted; extraction happens asynchronously.
func (h *TaskHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	log := h.logger.With(slog.String("trace_id", shared.GetTraceID(r.Context())))

	file, header, err := r.FormFile("file")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing file field in multipart form")
		return
	}
	defer func() { _ = file.Close() }()

	// Read one byte past the ceiling so oversize files are detected without
	// buffering arbitrarily large bodies.
	data, err := io.ReadAll(io.LimitReader(file, h.policy.MaxBytes+1))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest,
			"Failed to read uploaded file", err)
		return
	}

	mediaType, err := h.policy.Check(data)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err),
			GetSafeErrorMessage(err), err)
		return
	}

	filePath, err := h.uploads.Save(data, mediaType)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to store uploaded file", err)
		return
	}

	job, err := domain.NewJob(header.Filename, mediaType, int64(len(data)))
	if err != nil {
		h.discardUpload(filePath)
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest,
			"Invalid upload metadata", err)
		return
	}

	if err := h.tasks.Submit(r.Context(), job, filePath); err != nil {
		h.discardUpload(filePath)
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err),
			GetSafeErrorMessage(err), err)
		return
	}

	log.Info("upload accepted",
		slog.String("task_id", job.ID.String()),
		slog.String("filename", job.SourceName),
		slog.String("media_type", mediaType),
		slog.Int64("size_bytes", job.SizeBytes))

	shared.RespondWithJSON(w, r, http.StatusAccepted, UploadResponse{
		TaskID: job.ID,
		Status: string(job.Status),
	})
}

// ListTasks handles GET /api/tasks requests. It returns all live jobs,
// newest first.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.store.List(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err),
			GetSafeErrorMessage(err), err)
		return
	}

	summaries := make([]TaskSummary, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, newTaskSummary(job))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, summaries)
}

// GetResult handles GET /api/tasks/{id}/result requests. The status code
// encodes the job state: 425 while processing, 410 after revocation, 422 for
// failures, 200 with the extraction payload on success.
func (h *TaskHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	job, ok := h.fetchJob(w, r)
	if !ok {
		return
	}

	switch job.Status {
	case domain.JobStatusPending, domain.JobStatusStarted:
		shared.RespondWithError(w, r, http.StatusTooEarly, "Task has not completed yet")

	case domain.JobStatusRevoked:
		shared.RespondWithError(w, r, http.StatusGone, "Task was cancelled")

	case domain.JobStatusFailure:
		shared.RespondWithJSON(w, r, http.StatusUnprocessableEntity, FailureResponse{
			Status: string(job.Status),
			Error:  job.Error,
		})

	case domain.JobStatusSuccess:
		tables := job.Result.Tables
		if tables == nil {
			tables = []domain.Table{}
		}
		shared.RespondWithJSON(w, r, http.StatusOK, ResultResponse{
			Markdown: job.Result.Markdown,
			Tables:   tables,
		})

	default:
		shared.RespondWithError(w, r, http.StatusInternalServerError,
			"An unexpected error occurred")
	}
}

// StopTask handles POST /tasks/{id}/stop requests. Stops are best-effort:
// an accepted request returns 202, a job that already finished returns 200
// without changing anything.
func (h *TaskHandler) StopTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	err = h.tasks.Cancel(r.Context(), id)
	switch {
	case err == nil:
		h.logger.Info("stop requested", slog.String("task_id", id.String()))
		shared.RespondWithJSON(w, r, http.StatusAccepted, StopResponse{
			Message: "Stop requested",
		})

	case errors.Is(err, store.ErrAlreadyTerminal):
		shared.RespondWithJSON(w, r, http.StatusOK, StopResponse{
			Message: "Task already finished",
		})

	default:
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err),
			GetSafeErrorMessage(err), err)
	}
}

// DownloadMarkdown handles GET /download_markdown/{id} requests. It serves
// the extracted Markdown as a file attachment, with the same state gating as
// GetResult.
func (h *TaskHandler) DownloadMarkdown(w http.ResponseWriter, r *http.Request) {
	job, ok := h.fetchJob(w, r)
	if !ok {
		return
	}

	switch job.Status {
	case domain.JobStatusPending, domain.JobStatusStarted:
		shared.RespondWithError(w, r, http.StatusTooEarly, "Task has not completed yet")

	case domain.JobStatusRevoked:
		shared.RespondWithError(w, r, http.StatusGone, "Task was cancelled")

	case domain.JobStatusFailure:
		shared.RespondWithJSON(w, r, http.StatusUnprocessableEntity, FailureResponse{
			Status: string(job.Status),
			Error:  job.Error,
		})

	case domain.JobStatusSuccess:
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment; filename=extracted_data.md")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(job.Result.Markdown)); err != nil {
			h.logger.Error("failed to write markdown response",
				slog.String("task_id", job.ID.String()),
				slog.String("error", err.Error()))
		}

	default:
		shared.RespondWithError(w, r, http.StatusInternalServerError,
			"An unexpected error occurred")
	}
}

// fetchJob resolves the {id} URL parameter and loads the job snapshot,
// writing the error response itself when either step fails.
func (h *TaskHandler) fetchJob(w http.ResponseWriter, r *http.Request) (*domain.Job, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return nil, false
	}

	job, err := h.store.Get(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err),
			GetSafeErrorMessage(err), err)
		return nil, false
	}

	return job, true
}

func (h *TaskHandler) discardUpload(path string) {
	if err := h.uploads.Remove(path); err != nil {
		h.logger.Warn("failed to remove staged upload",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}
