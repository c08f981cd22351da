package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podcastr/internal/blob"
	"podcastr/internal/memstore"
	"podcastr/internal/models"
	"podcastr/internal/podcast"
	"podcastr/internal/quota"
	"podcastr/internal/ratelimit"
	"podcastr/internal/test"
	"podcastr/pkg/tasks"
)

func setup(t *testing.T) (*TaskHandler, *memstore.Store, *blob.Local, *test.MockTaskEnqueuer) {
	t.Helper()
	files, err := blob.NewLocal(t.TempDir(), "http://podcastr.test")
	require.NoError(t, err)
	store := memstore.New()
	enq := &test.MockTaskEnqueuer{}
	limiter := ratelimit.NewMemory(ratelimit.Rules{ratelimit.IncrementPodcastViews: {Limit: 1, Window: time.Minute}})
	svc := podcast.NewService(store, files, limiter, enq, podcast.Options{})
	return NewTaskHandler(svc, 0, 10), store, files, enq
}

// deletedPodcast leaves an outbox entry for ref as if the first delete had failed.
func deletedPodcast(t *testing.T, store *memstore.Store, ref string) uuid.UUID {
	t.Helper()
	u := store.PutUser(models.User{Email: "a@example.com"})
	p := &models.Podcast{ID: uuid.New(), UserID: u.ID, ImageStorageID: "img-" + ref, AudioStorageID: ref}
	require.NoError(t, store.CreatePodcast(context.Background(), p, quota.Guard{Ceiling: 10}))
	require.NoError(t, store.DeletePodcast(context.Background(), p.ID, []string{ref}))
	return p.ID
}

func TestHandleDeleteBlobTask(t *testing.T) {
	handler, store, files, _ := setup(t)
	podcastID := deletedPodcast(t, store, "orphan.mp3")
	require.NoError(t, files.Put(context.Background(), "orphan.mp3", strings.NewReader("ID3"), 3, "audio/mpeg"))

	task, err := tasks.NewDeleteBlobTask("orphan.mp3", podcastID.String())
	require.NoError(t, err)

	require.NoError(t, handler.HandleDeleteBlobTask(context.Background(), task))

	_, err = files.URL(context.Background(), "orphan.mp3")
	assert.ErrorIs(t, err, blob.ErrNotFound)
	pending, err := store.PendingBlobDeletions(context.Background(), time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestHandleDeleteBlobTaskBadPayload(t *testing.T) {
	handler, _, _, _ := setup(t)

	err := handler.HandleDeleteBlobTask(context.Background(), asynq.NewTask(tasks.TypeDeleteBlob, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = handler.HandleDeleteBlobTask(context.Background(), asynq.NewTask(tasks.TypeDeleteBlob, []byte(`{}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	task, err := tasks.NewDeleteBlobTask("../etc/passwd", "p")
	require.NoError(t, err)
	err = handler.HandleDeleteBlobTask(context.Background(), task)
	assert.ErrorIs(t, err, blob.ErrInvalidRef)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleDeleteBlobTaskInvalidRefClearsOutbox(t *testing.T) {
	handler, store, _, _ := setup(t)
	podcastID := deletedPodcast(t, store, "../../etc/passwd")

	task, err := tasks.NewDeleteBlobTask("../../etc/passwd", podcastID.String())
	require.NoError(t, err)
	err = handler.HandleDeleteBlobTask(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	pending, err := store.PendingBlobDeletions(context.Background(), time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

type failingCleaner struct{}

func (failingCleaner) DeleteBlob(ctx context.Context, ref string) error { return nil }

func (failingCleaner) SweepPendingBlobs(ctx context.Context, grace time.Duration, limit int) (int, error) {
	return 0, errors.New("database is down")
}

func TestHandleSweepBlobsTask(t *testing.T) {
	handler, store, _, enq := setup(t)
	deletedPodcast(t, store, "one.mp3")
	deletedPodcast(t, store, "two.mp3")

	task, err := tasks.NewSweepBlobsTask()
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, handler.HandleSweepBlobsTask(context.Background(), task))
	assert.Equal(t, []string{tasks.TypeDeleteBlob, tasks.TypeDeleteBlob}, enq.Types())

	err = NewTaskHandler(failingCleaner{}, time.Minute, 0).HandleSweepBlobsTask(context.Background(), task)
	assert.Error(t, err)
}

func TestRetryDelay(t *testing.T) {
	task := asynq.NewTask(tasks.TypeDeleteBlob, nil)
	assert.Equal(t, 30*time.Second, RetryDelay(0, errors.New("x"), task))
	assert.Equal(t, 2*time.Minute, RetryDelay(2, errors.New("x"), task))
	assert.Equal(t, time.Hour, RetryDelay(20, errors.New("x"), task))
}
