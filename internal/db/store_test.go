package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podcastr/internal/blob"
	"podcastr/internal/models"
	"podcastr/internal/quota"
	"podcastr/internal/test"
)

var podcastColumns = []string{
	"id", "seq", "user_id", "title", "description", "audio_url", "audio_storage_id",
	"image_url", "image_storage_id", "author", "author_id", "author_image_url",
	"voice_prompt", "image_prompt", "voice_type", "views", "audio_duration", "created_at",
}

func podcastRows(ps ...models.Podcast) *sqlmock.Rows {
	rows := sqlmock.NewRows(podcastColumns)
	for _, p := range ps {
		rows.AddRow(p.ID.String(), p.Seq, p.UserID, p.Title, p.Description, p.AudioURL, p.AudioStorageID,
			p.ImageURL, p.ImageStorageID, p.Author, p.AuthorID, p.AuthorImageURL,
			p.VoicePrompt, p.ImagePrompt, p.VoiceType, p.Views, p.AudioDuration, p.CreatedAt)
	}
	return rows
}

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	sqlxDB, mock := test.NewMockDB(t)
	return NewStore(sqlxDB), mock
}

func TestCreatePodcast(t *testing.T) {
	periodStart := time.Unix(0, 0).UTC()
	guard := quota.Guard{Ceiling: 5, PeriodStart: periodStart}

	t.Run("inserts when usage is below the ceiling", func(t *testing.T) {
		store, mock := newTestStore(t)
		p := &models.Podcast{ID: uuid.New(), UserID: 7, Title: "Hello", ImageStorageID: "img.png", AudioStorageID: "aud.mp3", CreatedAt: time.Now()}

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE users\s+SET total_podcasts = CASE WHEN quota_period_start < \$2 THEN 1 ELSE total_podcasts \+ 1 END`).
			WithArgs(int64(7), periodStart, 5).
			WillReturnRows(sqlmock.NewRows([]string{"total_podcasts"}).AddRow(3))
		mock.ExpectQuery(`INSERT INTO podcasts`).
			WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(42))
		mock.ExpectExec(`INSERT INTO blob_refs`).
			WithArgs("img.png", p.ID.String()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO blob_refs`).
			WithArgs("aud.mp3", p.ID.String()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, store.CreatePodcast(context.Background(), p, guard))
		assert.Equal(t, int64(42), p.Seq)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("guard failure rolls back", func(t *testing.T) {
		store, mock := newTestStore(t)
		p := &models.Podcast{ID: uuid.New(), UserID: 7}

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE users`).
			WithArgs(int64(7), periodStart, 5).
			WillReturnRows(sqlmock.NewRows([]string{"total_podcasts"}))
		mock.ExpectRollback()

		err := store.CreatePodcast(context.Background(), p, guard)
		assert.ErrorIs(t, err, quota.ErrExceeded)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert failure rolls back the usage bump", func(t *testing.T) {
		store, mock := newTestStore(t)
		p := &models.Podcast{ID: uuid.New(), UserID: 7}

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE users`).
			WillReturnRows(sqlmock.NewRows([]string{"total_podcasts"}).AddRow(1))
		mock.ExpectQuery(`INSERT INTO podcasts`).WillReturnError(errors.New("duplicate key"))
		mock.ExpectRollback()

		err := store.CreatePodcast(context.Background(), p, guard)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, quota.ErrExceeded)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("blob claimed by another podcast rolls back", func(t *testing.T) {
		store, mock := newTestStore(t)
		p := &models.Podcast{ID: uuid.New(), UserID: 7, ImageStorageID: "img.png", AudioStorageID: "theirs.mp3"}

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE users`).
			WillReturnRows(sqlmock.NewRows([]string{"total_podcasts"}).AddRow(1))
		mock.ExpectQuery(`INSERT INTO podcasts`).
			WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(9))
		mock.ExpectExec(`INSERT INTO blob_refs`).
			WithArgs("img.png", p.ID.String()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO blob_refs`).
			WithArgs("theirs.mp3", p.ID.String()).
			WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
		mock.ExpectRollback()

		err := store.CreatePodcast(context.Background(), p, guard)
		assert.ErrorIs(t, err, blob.ErrInUse)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("blob pending deletion is not claimed", func(t *testing.T) {
		store, mock := newTestStore(t)
		p := &models.Podcast{ID: uuid.New(), UserID: 7, ImageStorageID: "doomed.png", AudioStorageID: "aud.mp3"}

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE users`).
			WillReturnRows(sqlmock.NewRows([]string{"total_podcasts"}).AddRow(1))
		mock.ExpectQuery(`INSERT INTO podcasts`).
			WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(9))
		mock.ExpectExec(`INSERT INTO blob_refs .*WHERE NOT EXISTS \(SELECT 1 FROM blob_deletions`).
			WithArgs("doomed.png", p.ID.String()).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := store.CreatePodcast(context.Background(), p, guard)
		assert.ErrorIs(t, err, blob.ErrInUse)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetPodcast(t *testing.T) {
	store, mock := newTestStore(t)
	want := models.Podcast{ID: uuid.New(), Seq: 3, UserID: 1, Title: "T", VoiceType: "alloy", Views: 12, CreatedAt: time.Now().UTC()}

	mock.ExpectQuery(`SELECT \* FROM podcasts WHERE id = \$1`).
		WithArgs(want.ID.String()).
		WillReturnRows(podcastRows(want))

	got, err := store.GetPodcast(context.Background(), want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, int64(12), got.Views)

	missing := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM podcasts WHERE id = \$1`).
		WithArgs(missing.String()).
		WillReturnRows(podcastRows())
	_, err = store.GetPodcast(context.Background(), missing)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListQueries(t *testing.T) {
	store, mock := newTestStore(t)
	p := models.Podcast{ID: uuid.New(), Seq: 1, CreatedAt: time.Now()}

	mock.ExpectQuery(`SELECT \* FROM podcasts ORDER BY seq DESC`).WillReturnRows(podcastRows(p))
	mock.ExpectQuery(`SELECT \* FROM podcasts ORDER BY views DESC, seq ASC LIMIT \$1`).
		WithArgs(8).WillReturnRows(podcastRows(p))
	mock.ExpectQuery(`SELECT \* FROM podcasts WHERE voice_type = \$1 AND id <> \$2`).
		WithArgs("nova", p.ID.String()).WillReturnRows(podcastRows())
	mock.ExpectQuery(`SELECT \* FROM podcasts WHERE author_id = \$1 ORDER BY seq ASC`).
		WithArgs("author-1").WillReturnRows(podcastRows(p))

	all, err := store.ListPodcasts(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)

	top, err := store.ListTrending(context.Background(), 8)
	require.NoError(t, err)
	assert.Len(t, top, 1)

	similar, err := store.ListByVoiceType(context.Background(), "nova", p.ID)
	require.NoError(t, err)
	assert.NotNil(t, similar)
	assert.Empty(t, similar)

	byAuthor, err := store.ListByAuthor(context.Background(), "author-1")
	require.NoError(t, err)
	assert.Len(t, byAuthor, 1)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearch(t *testing.T) {
	store, mock := newTestStore(t)
	p := models.Podcast{ID: uuid.New(), Seq: 1, Author: "Marie Curie", CreatedAt: time.Now()}

	mock.ExpectQuery(`WHERE to_tsvector\('simple', author\) @@ to_tsquery\('simple', \$1\)`).
		WithArgs("marie:* & cu:*", 10).
		WillReturnRows(podcastRows(p))
	mock.ExpectQuery(`WHERE to_tsvector\('simple', description\)`).
		WithArgs("newton:*", 10).
		WillReturnRows(podcastRows())

	got, err := store.Search(context.Background(), models.SearchAuthor, "Marie  Cu", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = store.Search(context.Background(), models.SearchDescription, "Newton", 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = store.Search(context.Background(), models.SearchTitle, "&&& !", 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = store.Search(context.Background(), models.SearchIndex("views"), "x", 10)
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrefixQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"deep", "deep:*"},
		{"Deep Sea", "deep:* & sea:*"},
		{"rock'n'roll", "rock:* & n:* & roll:*"},
		{"a & b | !c", "a:* & b:* & c:*"},
		{"  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, PrefixQuery(tt.in))
		})
	}
}

func TestIncrementViews(t *testing.T) {
	store, mock := newTestStore(t)
	id := uuid.New()

	mock.ExpectQuery(`UPDATE podcasts SET views = views \+ 1 WHERE id = \$1 RETURNING views`).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows([]string{"views"}).AddRow(5))

	views, err := store.IncrementViews(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(5), views)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePodcast(t *testing.T) {
	t.Run("deletes and queues blobs", func(t *testing.T) {
		store, mock := newTestStore(t)
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM podcasts WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO blob_deletions`).
			WithArgs("img.png", id.String()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO blob_deletions`).
			WithArgs("aud.mp3", id.String()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, store.DeletePodcast(context.Background(), id, []string{"img.png", "aud.mp3"}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing podcast", func(t *testing.T) {
		store, mock := newTestStore(t)
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM podcasts WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := store.DeletePodcast(context.Background(), id, []string{"img.png"})
		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBlobDeletionOutbox(t *testing.T) {
	store, mock := newTestStore(t)
	cutoff := time.Now().Add(-time.Minute)
	podcastID := uuid.New()

	mock.ExpectExec(`UPDATE blob_deletions SET attempts = attempts \+ 1, last_error = \$2 WHERE storage_id = \$1`).
		WithArgs("aud.mp3", "timeout").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM blob_deletions WHERE created_at < \$1 ORDER BY created_at ASC LIMIT \$2`).
		WithArgs(cutoff, 50).
		WillReturnRows(sqlmock.NewRows([]string{"storage_id", "podcast_id", "attempts", "last_error", "created_at"}).
			AddRow("aud.mp3", podcastID.String(), 1, "timeout", cutoff.Add(-time.Hour)))
	mock.ExpectExec(`DELETE FROM blob_deletions WHERE storage_id = \$1`).
		WithArgs("aud.mp3").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.FailBlobDeletion(context.Background(), "aud.mp3", "timeout"))

	pending, err := store.PendingBlobDeletions(context.Background(), cutoff, 50)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, podcastID, pending[0].PodcastID)
	require.NotNil(t, pending[0].LastError)
	assert.Equal(t, "timeout", *pending[0].LastError)

	require.NoError(t, store.CompleteBlobDeletion(context.Background(), "aud.mp3"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsers(t *testing.T) {
	store, mock := newTestStore(t)
	now := time.Now().UTC()
	userColumns := []string{
		"id", "email", "name", "image_url", "external_id", "subscription_id", "subscription_ends_at",
		"plan", "total_podcasts", "quota_period_start", "created_at", "updated_at",
	}

	mock.ExpectQuery(`SELECT \* FROM users WHERE email = \$1`).
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(1, "a@example.com", "A", "", "ext-1", nil, nil, "PRO", 4, time.Unix(0, 0).UTC(), now, now))

	u, err := store.GetUserByEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "PRO", u.PlanName())
	assert.Equal(t, 4, u.TotalPodcasts)
	assert.Nil(t, u.SubscriptionID)

	sub := "sub_1"
	endsOn := int64(1767225600000)
	mock.ExpectQuery(`INSERT INTO users .* ON CONFLICT \(email\) DO UPDATE SET`).
		WithArgs("b@example.com", "B", "", "ext-2", &sub, sqlmock.AnyArg(), nil).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(2, "b@example.com", "B", "", "ext-2", sub, time.UnixMilli(endsOn).UTC(), nil, 0, time.Unix(0, 0).UTC(), now, now))

	u, err = store.UpsertUser(context.Background(), models.UserSync{
		Email: "b@example.com", Name: "B", ExternalID: "ext-2", SubscriptionID: &sub, EndsOn: &endsOn,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), u.ID)
	assert.True(t, u.IsSubscribed(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)))

	assert.NoError(t, mock.ExpectationsWereMet())
}
