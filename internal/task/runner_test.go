package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsmith/docex-api/internal/domain"
	"github.com/docsmith/docex-api/internal/extraction"
	"github.com/docsmith/docex-api/internal/store"
)

// stubExtractor lets each test script the external model call.
type stubExtractor struct {
	ExtractFn func(ctx context.Context, req extraction.Request) (*domain.ExtractionResult, error)
}

func (s *stubExtractor) Extract(
	ctx context.Context,
	req extraction.Request,
) (*domain.ExtractionResult, error) {
	return s.ExtractFn(ctx, req)
}

// osFiles removes files directly; tests assert on-disk state afterwards.
type osFiles struct {
	mu      sync.Mutex
	removed []string
}

func (f *osFiles) Remove(path string) error {
	f.mu.Lock()
	f.removed = append(f.removed, path)
	f.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type runnerFixture struct {
	runner *Runner
	store  *store.MemoryStore
	files  *osFiles
	dir    string
}

func newFixture(t *testing.T, extractor extraction.Extractor, config RunnerConfig) *runnerFixture {
	t.Helper()

	memStore := store.NewMemoryStore(time.Hour, time.Hour, testLogger())
	t.Cleanup(func() {
		_ = memStore.Close()
	})

	files := &osFiles{}
	runner := NewRunner(memStore, extractor, files, config, testLogger())

	return &runnerFixture{
		runner: runner,
		store:  memStore,
		files:  files,
		dir:    t.TempDir(),
	}
}

func (f *runnerFixture) submitJob(t *testing.T) (*domain.Job, string) {
	t.Helper()

	path := filepath.Join(f.dir, uuid.New().String()+".pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 test"), 0o640))

	job, err := domain.NewJob("doc.pdf", "application/pdf", 13)
	require.NoError(t, err)
	require.NoError(t, f.runner.Submit(context.Background(), job, path))

	return job, path
}

func (f *runnerFixture) waitForStatus(t *testing.T, id uuid.UUID, want domain.JobStatus) *domain.Job {
	t.Helper()

	var got *domain.Job
	require.Eventually(t, func() bool {
		job, err := f.store.Get(context.Background(), id)
		if err != nil {
			return false
		}
		got = job
		return job.Status == want
	}, 5*time.Second, 5*time.Millisecond, "job never reached status %s", want)

	return got
}

func TestRunner_SuccessfulExtraction(t *testing.T) {
	t.Parallel()

	extractor := &stubExtractor{
		ExtractFn: func(ctx context.Context, req extraction.Request) (*domain.ExtractionResult, error) {
			return &domain.ExtractionResult{Markdown: "# extracted\n"}, nil
		},
	}

	f := newFixture(t, extractor, DefaultRunnerConfig())
	f.runner.Start()
	defer f.runner.Stop()

	job, path := f.submitJob(t)

	got := f.waitForStatus(t, job.ID, domain.JobStatusSuccess)
	require.NotNil(t, got.Result)
	assert.Equal(t, "# extracted\n", got.Result.Markdown)
	assert.Empty(t, got.Error)

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, time.Second, 5*time.Millisecond, "temp file must be removed after success")
}

func TestRunner_ExtractionFailure(t *testing.T) {
	t.Parallel()

	extractor := &stubExtractor{
		ExtractFn: func(ctx context.Context, req extraction.Request) (*domain.ExtractionResult, error) {
			return nil, errors.New("open /var/docex/uploads/x.pdf: quota exceeded")
		},
	}

	f := newFixture(t, extractor, DefaultRunnerConfig())
	f.runner.Start()
	defer f.runner.Stop()

	job, path := f.submitJob(t)

	got := f.waitForStatus(t, job.ID, domain.JobStatusFailure)
	assert.Nil(t, got.Result)
	assert.NotEmpty(t, got.Error)
	assert.NotContains(t, got.Error, "/var/docex", "persisted error must be redacted")

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, time.Second, 5*time.Millisecond, "temp file must be removed after failure")
}

func TestRunner_ExtractorPanicDoesNotKillWorker(t *testing.T) {
	t.Parallel()

	var calls int
	var mu sync.Mutex
	extractor := &stubExtractor{
		ExtractFn: func(ctx context.Context, req extraction.Request) (*domain.ExtractionResult, error) {
			mu.Lock()
			calls++
			first := calls == 1
			mu.Unlock()

			if first {
				panic("corrupt document")
			}
			return &domain.ExtractionResult{Markdown: "ok"}, nil
		},
	}

	config := DefaultRunnerConfig()
	config.WorkerCount = 1

	f := newFixture(t, extractor, config)
	f.runner.Start()
	defer f.runner.Stop()

	first, _ := f.submitJob(t)
	second, _ := f.submitJob(t)

	got := f.waitForStatus(t, first.ID, domain.JobStatusFailure)
	assert.Contains(t, got.Error, "panic")

	// The same worker must still be alive to process the next job.
	f.waitForStatus(t, second.ID, domain.JobStatusSuccess)
}

func TestRunner_CancelBeforeStart(t *testing.T) {
	t.Parallel()

	extractor := &stubExtractor{
		ExtractFn: func(ctx context.Context, req extraction.Request) (*domain.ExtractionResult, error) {
			t.Error("extractor must never run for a job revoked before pickup")
			return nil, nil
		},
	}

	f := newFixture(t, extractor, DefaultRunnerConfig())

	// Submit and revoke before any worker exists.
	job, path := f.submitJob(t)
	require.NoError(t, f.runner.Cancel(context.Background(), job.ID))

	got, err := f.store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusRevoked, got.Status)

	// Workers pick the ticket up, skip it, and still clean the file.
	f.runner.Start()
	defer f.runner.Stop()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, time.Second, 5*time.Millisecond, "revoked job's temp file must be removed")

	got, err = f.store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusRevoked, got.Status)
}

func TestRunner_CancelInFlight(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	extractor := &stubExtractor{
		ExtractFn: func(ctx context.Context, req extraction.Request) (*domain.ExtractionResult, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	f := newFixture(t, extractor, DefaultRunnerConfig())
	f.runner.Start()
	defer f.runner.Stop()

	job, _ := f.submitJob(t)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("extraction never started")
	}

	require.NoError(t, f.runner.Cancel(context.Background(), job.ID))

	got := f.waitForStatus(t, job.ID, domain.JobStatusRevoked)
	assert.Nil(t, got.Result)
	assert.Empty(t, got.Error)
}

func TestRunner_CancelLateStillEndsRevoked(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	extractor := &stubExtractor{
		ExtractFn: func(ctx context.Context, req extraction.Request) (*domain.ExtractionResult, error) {
			close(started)
			<-release
			// The external call "completes" despite the cancellation.
			return &domain.ExtractionResult{Markdown: "late success"}, nil
		},
	}

	f := newFixture(t, extractor, DefaultRunnerConfig())
	f.runner.Start()
	defer f.runner.Stop()

	job, _ := f.submitJob(t)
	<-started

	require.NoError(t, f.runner.Cancel(context.Background(), job.ID))
	close(release)

	got := f.waitForStatus(t, job.ID, domain.JobStatusRevoked)
	assert.Nil(t, got.Result, "a revoked job never exposes a result")
}

func TestRunner_ExtractionTimeout(t *testing.T) {
	t.Parallel()

	extractor := &stubExtractor{
		ExtractFn: func(ctx context.Context, req extraction.Request) (*domain.ExtractionResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	config := DefaultRunnerConfig()
	config.ExtractTimeout = 30 * time.Millisecond

	f := newFixture(t, extractor, config)
	f.runner.Start()
	defer f.runner.Stop()

	job, _ := f.submitJob(t)

	got := f.waitForStatus(t, job.ID, domain.JobStatusFailure)
	assert.Contains(t, got.Error, "timed out")
}

func TestRunner_CancelErrors(t *testing.T) {
	t.Parallel()

	extractor := &stubExtractor{
		ExtractFn: func(ctx context.Context, req extraction.Request) (*domain.ExtractionResult, error) {
			return &domain.ExtractionResult{Markdown: "ok"}, nil
		},
	}

	f := newFixture(t, extractor, DefaultRunnerConfig())
	f.runner.Start()
	defer f.runner.Stop()

	t.Run("unknown job", func(t *testing.T) {
		err := f.runner.Cancel(context.Background(), uuid.New())
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("already terminal is reported", func(t *testing.T) {
		job, _ := f.submitJob(t)
		f.waitForStatus(t, job.ID, domain.JobStatusSuccess)

		err := f.runner.Cancel(context.Background(), job.ID)
		assert.ErrorIs(t, err, store.ErrAlreadyTerminal)

		// The stop request must not disturb the stored result.
		got, getErr := f.store.Get(context.Background(), job.ID)
		require.NoError(t, getErr)
		assert.Equal(t, domain.JobStatusSuccess, got.Status)
		require.NotNil(t, got.Result)
	})
}

func TestRunner_QueueBackpressure(t *testing.T) {
	t.Parallel()

	extractor := &stubExtractor{
		ExtractFn: func(ctx context.Context, req extraction.Request) (*domain.ExtractionResult, error) {
			return nil, nil
		},
	}

	config := DefaultRunnerConfig()
	config.QueueSize = 1

	// Runner deliberately not started so the queue fills.
	f := newFixture(t, extractor, config)

	_, _ = f.submitJob(t)

	path := filepath.Join(f.dir, "second.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o640))
	job, err := domain.NewJob("second.pdf", "application/pdf", 8)
	require.NoError(t, err)

	err = f.runner.Submit(context.Background(), job, path)
	require.ErrorIs(t, err, ErrQueueFull)

	// The rejected job must not linger in the store.
	_, err = f.store.Get(context.Background(), job.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestQueue_EnqueueAfterClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(4, testLogger())
	q.Close()

	err := q.Enqueue(Ticket{JobID: uuid.New()})
	assert.ErrorIs(t, err, ErrQueueClosed)
}
