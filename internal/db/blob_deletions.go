package db

import (
	"context"
	"time"

	"podcastr/internal/models"
)

func (s *Store) CompleteBlobDeletion(ctx context.Context, storageID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM blob_deletions WHERE storage_id = $1", storageID)
	return err
}

func (s *Store) FailBlobDeletion(ctx context.Context, storageID string, cause string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE blob_deletions SET attempts = attempts + 1, last_error = $2 WHERE storage_id = $1",
		storageID, cause)
	return err
}

// PendingBlobDeletions returns the oldest outbox entries created before olderThan.
func (s *Store) PendingBlobDeletions(ctx context.Context, olderThan time.Time, limit int) ([]models.BlobDeletion, error) {
	out := []models.BlobDeletion{}
	err := s.db.SelectContext(ctx, &out,
		"SELECT * FROM blob_deletions WHERE created_at < $1 ORDER BY created_at ASC LIMIT $2",
		olderThan, limit)
	return out, err
}
