package task

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Common errors returned by the Queue
var (
	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")
)

// Ticket references one submitted job waiting for a worker. The queue
// carries only the reference; the uploaded bytes stay on disk in the upload
// sandbox, so a burst of submissions never holds payloads in memory.
type Ticket struct {
	JobID     uuid.UUID
	FilePath  string
	MediaType string
}

// QueueReader provides read-only access to the ticket channel, allowing
// workers to consume tickets without the ability to enqueue.
type QueueReader interface {
	// GetChannel returns a read-only channel for consuming tickets
	GetChannel() <-chan Ticket
}

// QueueWriter provides write access to the queue, allowing the API layer to
// enqueue jobs for processing.
type QueueWriter interface {
	// Enqueue adds a ticket to the queue for processing.
	// Returns an error if the queue is full or closed; it never blocks.
	Enqueue(ticket Ticket) error

	// Close closes the queue, preventing further submission
	Close()
}

// Queue implements a bounded ticket queue that satisfies both QueueReader
// and QueueWriter. The fixed capacity is the backpressure boundary: when it
// is reached, submission fails fast instead of growing without bound.
type Queue struct {
	mu      sync.Mutex
	tickets chan Ticket
	logger  *slog.Logger
	closed  bool
}

// NewQueue creates a new queue with the specified buffer size.
func NewQueue(size int, logger *slog.Logger) *Queue {
	if size <= 0 {
		size = 1
	}

	return &Queue{
		tickets: make(chan Ticket, size),
		logger:  logger,
	}
}

// Enqueue adds a ticket to the queue for processing.
// Returns an error if the queue is full or closed.
func (q *Queue) Enqueue(ticket Ticket) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.tickets <- ticket:
		q.logger.Debug("job enqueued",
			"job_id", ticket.JobID,
			"queue_len", len(q.tickets),
			"queue_cap", cap(q.tickets))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.tickets))
	}
}

// Close closes the queue, preventing further submission.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.tickets)
		q.logger.Info("task queue closed")
	}
}

// GetChannel returns a read-only channel for consuming tickets.
func (q *Queue) GetChannel() <-chan Ticket {
	return q.tickets
}

// Depth returns the number of queued tickets.
func (q *Queue) Depth() int {
	return len(q.tickets)
}

// Capacity returns the queue's fixed capacity.
func (q *Queue) Capacity() int {
	return cap(q.tickets)
}
