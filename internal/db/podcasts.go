package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"podcastr/internal/blob"
	"podcastr/internal/models"
	"podcastr/internal/quota"
)

// CreatePodcast bumps the owner's usage counter, inserts p and claims its
// blobs in one transaction. The counter update only matches while the guard
// holds, so two concurrent creations cannot both pass the ceiling. A blob
// already claimed by another podcast, or pending deletion, fails the
// transaction with blob.ErrInUse.
func (s *Store) CreatePodcast(ctx context.Context, p *models.Podcast, guard quota.Guard) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var used int
		err := tx.QueryRowxContext(ctx, `
			UPDATE users
			SET total_podcasts = CASE WHEN quota_period_start < $2 THEN 1 ELSE total_podcasts + 1 END,
				quota_period_start = $2,
				updated_at = NOW()
			WHERE id = $1 AND (quota_period_start < $2 OR total_podcasts < $3)
			RETURNING total_podcasts`,
			p.UserID, guard.PeriodStart, guard.Ceiling).Scan(&used)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return quota.ErrExceeded
			}
			return fmt.Errorf("failed to update usage: %w", err)
		}

		p.Views = 0
		err = tx.QueryRowxContext(ctx, `
			INSERT INTO podcasts (
				id, user_id, title, description, audio_url, audio_storage_id,
				image_url, image_storage_id, author, author_id, author_image_url,
				voice_prompt, image_prompt, voice_type, audio_duration, created_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			RETURNING seq`,
			p.ID, p.UserID, p.Title, p.Description, p.AudioURL, p.AudioStorageID,
			p.ImageURL, p.ImageStorageID, p.Author, p.AuthorID, p.AuthorImageURL,
			p.VoicePrompt, p.ImagePrompt, p.VoiceType, p.AudioDuration, p.CreatedAt,
		).Scan(&p.Seq)
		if err != nil {
			return fmt.Errorf("failed to insert podcast: %w", err)
		}

		for _, ref := range p.StorageIDs() {
			if ref == "" {
				continue
			}
			if err := claimBlob(ctx, tx, ref, p.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

func claimBlob(ctx context.Context, tx *sqlx.Tx, ref string, podcastID uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO blob_refs (storage_id, podcast_id)
		SELECT $1::text, $2::uuid
		WHERE NOT EXISTS (SELECT 1 FROM blob_deletions WHERE storage_id = $1::text)`,
		ref, podcastID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%w: %s", blob.ErrInUse, ref)
		}
		return fmt.Errorf("failed to claim blob %s: %w", ref, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", blob.ErrInUse, ref)
	}
	return nil
}

func (s *Store) GetPodcast(ctx context.Context, id uuid.UUID) (models.Podcast, error) {
	p := models.Podcast{}
	err := s.db.GetContext(ctx, &p, "SELECT * FROM podcasts WHERE id = $1", id)
	return p, err
}

func (s *Store) ListPodcasts(ctx context.Context) ([]models.Podcast, error) {
	ps := []models.Podcast{}
	err := s.db.SelectContext(ctx, &ps, "SELECT * FROM podcasts ORDER BY seq DESC")
	return ps, err
}

func (s *Store) ListTrending(ctx context.Context, limit int) ([]models.Podcast, error) {
	ps := []models.Podcast{}
	err := s.db.SelectContext(ctx, &ps, "SELECT * FROM podcasts ORDER BY views DESC, seq ASC LIMIT $1", limit)
	return ps, err
}

func (s *Store) ListByVoiceType(ctx context.Context, voiceType string, exclude uuid.UUID) ([]models.Podcast, error) {
	ps := []models.Podcast{}
	err := s.db.SelectContext(ctx, &ps,
		"SELECT * FROM podcasts WHERE voice_type = $1 AND id <> $2 ORDER BY seq DESC", voiceType, exclude)
	return ps, err
}

func (s *Store) ListByAuthor(ctx context.Context, authorID string) ([]models.Podcast, error) {
	ps := []models.Podcast{}
	err := s.db.SelectContext(ctx, &ps, "SELECT * FROM podcasts WHERE author_id = $1 ORDER BY seq ASC", authorID)
	return ps, err
}

var searchColumns = map[models.SearchIndex]string{
	models.SearchAuthor:      "author",
	models.SearchTitle:       "title",
	models.SearchDescription: "description",
}

// Search runs a prefix full-text query against one indexed column.
func (s *Store) Search(ctx context.Context, index models.SearchIndex, term string, limit int) ([]models.Podcast, error) {
	column, ok := searchColumns[index]
	if !ok {
		return nil, fmt.Errorf("unknown search index %q", index)
	}
	ps := []models.Podcast{}
	q := PrefixQuery(term)
	if q == "" {
		return ps, nil
	}

	query := fmt.Sprintf(`
		SELECT * FROM podcasts
		WHERE to_tsvector('simple', %s) @@ to_tsquery('simple', $1)
		ORDER BY seq DESC
		LIMIT $2`, column)
	err := s.db.SelectContext(ctx, &ps, query, q, limit)
	return ps, err
}

// PrefixQuery turns free text into a tsquery where every word must match as
// a prefix, e.g. "deep sea" becomes "deep:* & sea:*".
func PrefixQuery(term string) string {
	words := strings.FieldsFunc(strings.ToLower(term), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range words {
		words[i] = w + ":*"
	}
	return strings.Join(words, " & ")
}

func (s *Store) IncrementViews(ctx context.Context, id uuid.UUID) (int64, error) {
	var views int64
	err := s.db.QueryRowxContext(ctx, "UPDATE podcasts SET views = views + 1 WHERE id = $1 RETURNING views", id).Scan(&views)
	return views, err
}

// DeletePodcast removes the podcast and queues its blobs in blob_deletions
// within one transaction.
func (s *Store) DeletePodcast(ctx context.Context, id uuid.UUID, storageIDs []string) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM podcasts WHERE id = $1", id)
		if err != nil {
			return fmt.Errorf("failed to delete podcast: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return sql.ErrNoRows
		}

		for _, ref := range storageIDs {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO blob_deletions (storage_id, podcast_id) VALUES ($1, $2) ON CONFLICT (storage_id) DO NOTHING",
				ref, id)
			if err != nil {
				return fmt.Errorf("failed to queue blob deletion: %w", err)
			}
		}
		return nil
	})
}
