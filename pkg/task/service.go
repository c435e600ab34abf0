package task

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
)

// Enqueuer is the producer-side seam over asynq. The resolver, accrual and
// redemption paths all enqueue through it, and tests swap in a capturing
// fake instead of a redis broker.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type enqueuerImpl struct {
	client   *asynq.Client
	defaults []asynq.Option
}

func NewEnqueuer(client *asynq.Client) Enqueuer {
	return &enqueuerImpl{
		client: client,
		// Notification dispatch is informational; a bounded retry keeps an
		// unreachable broker from growing the backlog without limit.
		defaults: []asynq.Option{asynq.MaxRetry(10)},
	}
}

func (e *enqueuerImpl) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := e.client.EnqueueContext(context.Background(), task, append(e.defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}
	return info, nil
}
