package podcast

import (
	"context"
	"time"

	"github.com/google/uuid"

	"podcastr/internal/models"
	"podcastr/internal/quota"
)

// Store is the document store behind the service. Lookups of missing rows
// return sql.ErrNoRows.
type Store interface {
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	UpsertUser(ctx context.Context, u models.UserSync) (models.User, error)

	// CreatePodcast increments the owner's usage under guard, inserts p and
	// claims its storage ids atomically. It writes nothing and returns
	// quota.ErrExceeded when the guard no longer holds, or blob.ErrInUse when
	// a storage id belongs to another podcast or is pending deletion.
	CreatePodcast(ctx context.Context, p *models.Podcast, guard quota.Guard) error
	GetPodcast(ctx context.Context, id uuid.UUID) (models.Podcast, error)
	ListPodcasts(ctx context.Context) ([]models.Podcast, error)
	ListTrending(ctx context.Context, limit int) ([]models.Podcast, error)
	ListByVoiceType(ctx context.Context, voiceType string, exclude uuid.UUID) ([]models.Podcast, error)
	ListByAuthor(ctx context.Context, authorID string) ([]models.Podcast, error)
	Search(ctx context.Context, index models.SearchIndex, term string, limit int) ([]models.Podcast, error)
	IncrementViews(ctx context.Context, id uuid.UUID) (int64, error)

	// DeletePodcast removes the podcast and records storageIDs as pending
	// blob deletions in the same transaction.
	DeletePodcast(ctx context.Context, id uuid.UUID, storageIDs []string) error
	CompleteBlobDeletion(ctx context.Context, storageID string) error
	FailBlobDeletion(ctx context.Context, storageID string, cause string) error
	PendingBlobDeletions(ctx context.Context, olderThan time.Time, limit int) ([]models.BlobDeletion, error)
}
