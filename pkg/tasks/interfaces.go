package tasks

import "github.com/hibiken/asynq"

// TaskEnqueuer schedules background tasks. *asynq.Client satisfies it; tests
// substitute a recorder.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}
