package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/docsmith/docex-api/internal/domain"
)

// Common request/response structures

// UploadResponse is returned when an upload is accepted for processing.
type UploadResponse struct {
	TaskID uuid.UUID `json:"task_id"`
	Status string    `json:"status"`
}

// TaskSummary describes one job in the task listing.
type TaskSummary struct {
	ID          uuid.UUID `json:"id"`
	Status      string    `json:"status"`
	Filename    string    `json:"filename"`
	SubmittedAt time.Time `json:"submitted_at"`
	Size        int64     `json:"size"`
	MediaType   string    `json:"media_type"`
}

// ResultResponse carries the extraction payload for a successful job.
type ResultResponse struct {
	Markdown string         `json:"markdown"`
	Tables   []domain.Table `json:"tables"`
}

// FailureResponse carries the failure reason for a failed job.
type FailureResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// StopResponse acknowledges a stop request.
type StopResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the liveness probe payload.
type HealthResponse struct {
	Status string `json:"status"`
}

// DetailedHealthResponse reports store reachability and queue pressure.
type DetailedHealthResponse struct {
	Status        string `json:"status"`
	Store         string `json:"store"`
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
}

// newTaskSummary maps a job snapshot onto the listing shape.
func newTaskSummary(job *domain.Job) TaskSummary {
	return TaskSummary{
		ID:          job.ID,
		Status:      string(job.Status),
		Filename:    job.SourceName,
		SubmittedAt: job.SubmittedAt,
		Size:        job.SizeBytes,
		MediaType:   job.MediaType,
	}
}
