package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/docsmith/docex-api/internal/domain"
)

const (
	jobKeyPrefix = "docex:job:"
	jobIndexKey  = "docex:jobs"

	// updateRetries bounds the optimistic WATCH/MULTI retry loop.
	updateRetries = 5
)

// RedisStore is a TaskStore backed by Redis. Job snapshots are stored as JSON
// values with the retention TTL applied natively via EXPIRE; a sorted set
// scored by submission time provides the listing order. Status updates use an
// optimistic WATCH transaction so concurrent terminal writes resolve to
// exactly one winner.
type RedisStore struct {
	rdb       *redis.Client
	retention time.Duration
	logger    *slog.Logger
}

// NewRedisStore creates a RedisStore using the given client. The caller owns
// client configuration; Close closes the client.
func NewRedisStore(rdb *redis.Client, retention time.Duration, logger *slog.Logger) *RedisStore {
	return &RedisStore{
		rdb:       rdb,
		retention: retention,
		logger:    logger,
	}
}

func jobKey(id uuid.UUID) string {
	return jobKeyPrefix + id.String()
}

// Create persists a new job snapshot with the retention TTL.
func (s *RedisStore) Create(ctx context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	ok, err := s.rdb.SetNX(ctx, jobKey(job.ID), payload, s.retention).Result()
	if err != nil {
		return wrapUnavailable("create", err)
	}
	if !ok {
		return ErrAlreadyExists
	}

	err = s.rdb.ZAdd(ctx, jobIndexKey, redis.Z{
		Score:  float64(job.SubmittedAt.UnixNano()),
		Member: job.ID.String(),
	}).Err()
	if err != nil {
		return wrapUnavailable("index job", err)
	}

	return nil
}

// Get returns a snapshot of the job. Expired keys vanish from Redis, so they
// surface as ErrNotFound like never-created ids.
func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	data, err := s.rdb.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrapUnavailable("get", err)
	}

	var job domain.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

// UpdateStatus performs a read-modify-write under WATCH so the transition
// check and the write are atomic. The key's remaining TTL is preserved.
func (s *RedisStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.JobStatus,
	result *domain.ExtractionResult,
	errMsg string,
) (*domain.Job, error) {
	key := jobKey(id)
	var updated *domain.Job

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return wrapUnavailable("update read", err)
		}

		var job domain.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return fmt.Errorf("unmarshal job %s: %w", id, err)
		}

		if err := applyUpdate(&job, status, result, errMsg); err != nil {
			return err
		}

		payload, err := json.Marshal(&job)
		if err != nil {
			return fmt.Errorf("marshal job: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, redis.KeepTTL)
			return nil
		})
		if err != nil {
			return err
		}

		updated = &job
		return nil
	}

	for attempt := 0; attempt < updateRetries; attempt++ {
		err := s.rdb.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			// Lost the race against a concurrent writer, re-read and retry.
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}

	return nil, wrapUnavailable("update", redis.TxFailedErr)
}

// Delete removes a job and its index entry.
func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.rdb.Del(ctx, jobKey(id)).Err(); err != nil {
		return wrapUnavailable("delete", err)
	}
	if err := s.rdb.ZRem(ctx, jobIndexKey, id.String()).Err(); err != nil {
		return wrapUnavailable("deindex", err)
	}
	return nil
}

// List returns all live jobs ordered by submission time descending. Index
// entries whose job key has expired are pruned as a side effect.
func (s *RedisStore) List(ctx context.Context) ([]*domain.Job, error) {
	// Drop index entries older than the retention window before reading.
	cutoff := time.Now().Add(-s.retention).UnixNano()
	err := s.rdb.ZRemRangeByScore(ctx, jobIndexKey, "0", fmt.Sprintf("%d", cutoff)).Err()
	if err != nil {
		return nil, wrapUnavailable("prune index", err)
	}

	ids, err := s.rdb.ZRevRange(ctx, jobIndexKey, 0, -1).Result()
	if err != nil {
		return nil, wrapUnavailable("list index", err)
	}
	if len(ids) == 0 {
		return []*domain.Job{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = jobKeyPrefix + id
	}

	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, wrapUnavailable("list", err)
	}

	jobs := make([]*domain.Job, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			// Key expired between the index read and the MGET.
			continue
		}

		var job domain.Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			if s.logger != nil {
				s.logger.Warn("skipping undecodable job snapshot",
					"job_id", ids[i],
					"error", err)
			}
			continue
		}
		jobs = append(jobs, &job)
	}

	return jobs, nil
}

// Ping reports backend reachability.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return wrapUnavailable("ping", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
