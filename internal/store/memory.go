package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docsmith/docex-api/internal/domain"
)

// memoryEntry pairs a job snapshot with its retention deadline.
type memoryEntry struct {
	job       *domain.Job
	expiresAt time.Time
}

// MemoryStore is an in-process TaskStore backed by a mutex-guarded map.
// Entries expire after the retention window; expiry is checked lazily on
// every read and reclaimed physically by a background janitor.
type MemoryStore struct {
	mu        sync.RWMutex
	entries   map[uuid.UUID]memoryEntry
	retention time.Duration
	logger    *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryStore creates a MemoryStore with the given retention TTL and
// janitor sweep interval. If sweepInterval is zero the janitor runs every
// minute.
func NewMemoryStore(retention, sweepInterval time.Duration, logger *slog.Logger) *MemoryStore {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}

	s := &MemoryStore{
		entries:   make(map[uuid.UUID]memoryEntry),
		retention: retention,
		logger:    logger,
		done:      make(chan struct{}),
	}

	go s.janitor(sweepInterval)

	return s
}

// Create persists a new job snapshot.
func (s *MemoryStore) Create(ctx context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[job.ID]; ok && time.Now().Before(entry.expiresAt) {
		return ErrAlreadyExists
	}

	s.entries[job.ID] = memoryEntry{
		job:       job.Clone(),
		expiresAt: time.Now().Add(s.retention),
	}
	return nil
}

// Get returns a snapshot of the job, treating expired entries as not found.
func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ErrNotFound
	}
	return entry.job.Clone(), nil
}

// UpdateStatus transitions a job under the store lock, so concurrent readers
// only ever see the snapshot before or after the complete update.
func (s *MemoryStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.JobStatus,
	result *domain.ExtractionResult,
	errMsg string,
) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ErrNotFound
	}

	updated := entry.job.Clone()
	if err := applyUpdate(updated, status, result, errMsg); err != nil {
		return nil, err
	}

	entry.job = updated
	s.entries[id] = entry
	return updated.Clone(), nil
}

// Delete removes a job outright.
func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, id)
	return nil
}

// List returns all live jobs ordered by submission time descending.
func (s *MemoryStore) List(ctx context.Context) ([]*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	jobs := make([]*domain.Job, 0, len(s.entries))
	for _, entry := range s.entries {
		if now.After(entry.expiresAt) {
			continue
		}
		jobs = append(jobs, entry.job.Clone())
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].SubmittedAt.After(jobs[j].SubmittedAt)
	})

	return jobs, nil
}

// Ping always succeeds for the in-process store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close stops the janitor.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return nil
}

// janitor periodically reclaims expired entries.
func (s *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}

	if removed > 0 && s.logger != nil {
		s.logger.Debug("reclaimed expired jobs", "count", removed)
	}
}
