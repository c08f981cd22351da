package models

import (
	"time"

	"github.com/google/uuid"
)

// BlobDeletion is a blob whose podcast is gone but whose delete has not yet
// been confirmed by the blob store.
type BlobDeletion struct {
	StorageID string    `db:"storage_id"`
	PodcastID uuid.UUID `db:"podcast_id"`
	Attempts  int       `db:"attempts"`
	LastError *string   `db:"last_error"`
	CreatedAt time.Time `db:"created_at"`
}
