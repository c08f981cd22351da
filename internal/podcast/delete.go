package podcast

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"podcastr/internal/auth"
	"podcastr/internal/blob"
	"podcastr/internal/metrics"
	"podcastr/pkg/tasks"
)

// DeleteResult lists blobs whose deletion failed and was handed to the worker.
type DeleteResult struct {
	PendingBlobs []string
}

// Delete removes a podcast and its image and audio blobs. Only the owner may
// delete. The record is deleted first, together with an outbox entry per
// blob; blobs that fail to delete stay in the outbox and are retried by the
// worker.
//
// imageRef and audioRef may be empty; when set they must match the record.
func (s *Service) Delete(ctx context.Context, rawID, imageRef, audioRef string) (DeleteResult, error) {
	id := auth.FromContext(ctx)
	if id == nil {
		return DeleteResult{}, ErrUnauthenticated
	}

	p, err := s.Get(ctx, rawID)
	if err != nil {
		return DeleteResult{}, err
	}

	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(id.Email))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return DeleteResult{}, ErrForbidden
	case err != nil:
		return DeleteResult{}, opFailed("get user", err)
	case user.ID != p.UserID:
		log.Warn().Str("podcast_id", p.ID.String()).Str("email", user.Email).Msg("delete by non-owner rejected")
		return DeleteResult{}, ErrForbidden
	}

	if imageRef != "" && imageRef != p.ImageStorageID {
		return DeleteResult{}, invalid("image storage id does not belong to podcast %s", p.ID)
	}
	if audioRef != "" && audioRef != p.AudioStorageID {
		return DeleteResult{}, invalid("audio storage id does not belong to podcast %s", p.ID)
	}

	refs := p.StorageIDs()
	if err := s.store.DeletePodcast(ctx, p.ID, refs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DeleteResult{}, ErrNotFound
		}
		return DeleteResult{}, opFailed("delete podcast", err)
	}
	log.Info().Str("podcast_id", p.ID.String()).Msg("podcast deleted")

	var result DeleteResult
	for _, ref := range refs {
		if err := s.DeleteBlob(ctx, ref); err != nil {
			if errors.Is(err, blob.ErrInvalidRef) {
				continue
			}
			log.Warn().Err(err).Str("storage_id", ref).Str("podcast_id", p.ID.String()).Msg("blob delete failed, scheduling retry")
			metrics.RecordBlobDeletion("orphaned")
			result.PendingBlobs = append(result.PendingBlobs, ref)
			s.scheduleBlobDeletion(ref, p.ID.String())
		}
	}
	return result, nil
}

// DeleteBlob deletes one pending blob and clears its outbox entry. On failure
// the attempt is recorded and the error returned. A reference the blob store
// rejects can never be deleted, so its entry is dropped and blob.ErrInvalidRef
// returned.
func (s *Service) DeleteBlob(ctx context.Context, ref string) error {
	if err := s.blobs.Delete(ctx, ref); err != nil {
		if errors.Is(err, blob.ErrInvalidRef) {
			log.Error().Err(err).Str("storage_id", ref).Msg("dropping pending deletion of invalid blob reference")
			if cerr := s.store.CompleteBlobDeletion(ctx, ref); cerr != nil {
				return opFailed("complete blob deletion", cerr)
			}
			return err
		}
		if ferr := s.store.FailBlobDeletion(ctx, ref, err.Error()); ferr != nil {
			log.Error().Err(ferr).Str("storage_id", ref).Msg("failed to record blob deletion attempt")
		}
		return err
	}
	if err := s.store.CompleteBlobDeletion(ctx, ref); err != nil {
		return opFailed("complete blob deletion", err)
	}
	metrics.RecordBlobDeletion("deleted")
	return nil
}

func (s *Service) scheduleBlobDeletion(ref, podcastID string) {
	if s.enqueuer == nil {
		return
	}
	task, err := tasks.NewDeleteBlobTask(ref, podcastID)
	if err != nil {
		log.Error().Err(err).Msg("error creating blob delete task")
		return
	}
	if _, err := s.enqueuer.Enqueue(task); err != nil {
		// The sweep picks the outbox row up later.
		log.Error().Err(err).Str("storage_id", ref).Msg("error enqueuing blob delete task")
	}
}

// SweepPendingBlobs re-enqueues deletions that have been pending for longer
// than grace. It returns the number of tasks enqueued.
func (s *Service) SweepPendingBlobs(ctx context.Context, grace time.Duration, limit int) (int, error) {
	if s.enqueuer == nil {
		return 0, nil
	}
	pending, err := s.store.PendingBlobDeletions(ctx, s.now().Add(-grace), limit)
	if err != nil {
		return 0, opFailed("list pending blob deletions", err)
	}

	n := 0
	for _, d := range pending {
		task, err := tasks.NewDeleteBlobTask(d.StorageID, d.PodcastID.String())
		if err != nil {
			log.Error().Err(err).Str("storage_id", d.StorageID).Msg("error creating blob delete task")
			continue
		}
		if _, err := s.enqueuer.Enqueue(task); err != nil {
			if errors.Is(err, asynq.ErrDuplicateTask) {
				// Still queued or retrying.
				continue
			}
			log.Error().Err(err).Str("storage_id", d.StorageID).Msg("error enqueuing blob delete task")
			continue
		}
		metrics.RecordBlobDeletion("retried")
		n++
	}
	return n, nil
}
