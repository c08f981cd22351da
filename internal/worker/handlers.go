package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"podcastr/internal/blob"
	"podcastr/pkg/tasks"
)

// BlobCleaner is the part of the podcast service the worker drives.
type BlobCleaner interface {
	DeleteBlob(ctx context.Context, ref string) error
	SweepPendingBlobs(ctx context.Context, grace time.Duration, limit int) (int, error)
}

type TaskHandler struct {
	blobs      BlobCleaner
	sweepGrace time.Duration
	sweepBatch int
}

func NewTaskHandler(blobs BlobCleaner, sweepGrace time.Duration, sweepBatch int) *TaskHandler {
	if sweepBatch <= 0 {
		sweepBatch = 100
	}
	return &TaskHandler{blobs: blobs, sweepGrace: sweepGrace, sweepBatch: sweepBatch}
}

func (h *TaskHandler) HandleDeleteBlobTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.DeleteBlobTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.StorageID == "" {
		return fmt.Errorf("blob delete task without storage id: %w", asynq.SkipRetry)
	}

	if err := h.blobs.DeleteBlob(ctx, p.StorageID); err != nil {
		if errors.Is(err, blob.ErrInvalidRef) {
			return fmt.Errorf("failed to delete blob %s: %w: %w", p.StorageID, err, asynq.SkipRetry)
		}
		return fmt.Errorf("failed to delete blob %s: %w", p.StorageID, err)
	}
	log.Info().Str("storage_id", p.StorageID).Str("podcast_id", p.PodcastID).Msg("orphaned blob deleted")
	return nil
}

func (h *TaskHandler) HandleSweepBlobsTask(ctx context.Context, t *asynq.Task) error {
	n, err := h.blobs.SweepPendingBlobs(ctx, h.sweepGrace, h.sweepBatch)
	if err != nil {
		return fmt.Errorf("failed to sweep pending blobs: %w", err)
	}
	log.Info().Int("enqueued", n).Msg("pending blob sweep finished")
	return nil
}

// RetryDelay backs off exponentially from 30s, capped at 1h.
func RetryDelay(n int, err error, task *asynq.Task) time.Duration {
	delay := 30 * time.Second
	maxDelay := time.Hour

	for i := 0; i < n; i++ {
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
			break
		}
	}

	log.Warn().Err(err).Str("task", task.Type()).Int("attempt", n+1).Dur("retry_in", delay).Msg("task failed")
	return delay
}
