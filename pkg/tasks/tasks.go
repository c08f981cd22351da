package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeDeleteBlob = "blob:delete"
	TypeSweepBlobs = "blobs:sweep"
)

// DeleteBlobUniqueFor is how long a blob delete task blocks duplicates for the
// same blob. It is longer than the worker's full retry schedule, so the lock
// held by an archived task expires and a later sweep can enqueue again.
const DeleteBlobUniqueFor = 6 * time.Hour

type DeleteBlobTaskPayload struct {
	StorageID string
	PodcastID string
}

func NewDeleteBlobTask(storageID, podcastID string) (*asynq.Task, error) {
	payload, err := json.Marshal(DeleteBlobTaskPayload{StorageID: storageID, PodcastID: podcastID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDeleteBlob, payload, asynq.MaxRetry(10), asynq.Unique(DeleteBlobUniqueFor)), nil
}

func NewSweepBlobsTask() (*asynq.Task, error) {
	return asynq.NewTask(TypeSweepBlobs, nil), nil
}
