package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/estudioia/timeline-render/internal/model"
)

const DefaultSnapshotTTL = 24 * time.Hour

// JobStore keeps job snapshots in Redis so status survives purges and is
// visible from other instances. A nil Redis client turns it into a no-op.
type JobStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewJobStore(redisClient *redis.Client, ttl time.Duration) *JobStore {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &JobStore{redis: redisClient, ttl: ttl}
}

func jobKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

// Save writes the snapshot with the store TTL
func (s *JobStore) Save(ctx context.Context, job model.RenderJob) error {
	if s.redis == nil {
		return nil
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := s.redis.Set(ctx, jobKey(job.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// Get loads a snapshot; a missing key yields ErrJobNotFound
func (s *JobStore) Get(ctx context.Context, jobID string) (model.RenderJob, error) {
	if s.redis == nil {
		return model.RenderJob{}, ErrJobNotFound
	}
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.RenderJob{}, ErrJobNotFound
	}
	if err != nil {
		return model.RenderJob{}, fmt.Errorf("failed to get job: %w", err)
	}

	var job model.RenderJob
	if err := json.Unmarshal(data, &job); err != nil {
		return model.RenderJob{}, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return job, nil
}

// Delete removes a snapshot and reports whether it existed
func (s *JobStore) Delete(ctx context.Context, jobID string) (bool, error) {
	if s.redis == nil {
		return false, nil
	}
	n, err := s.redis.Del(ctx, jobKey(jobID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete job: %w", err)
	}
	return n > 0, nil
}
