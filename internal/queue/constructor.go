package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer is the part of *asynq.Client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher schedules single-target deliveries.
type Dispatcher struct {
	client Enqueuer
}

func NewDispatcher(client Enqueuer) *Dispatcher {
	return &Dispatcher{client: client}
}

func taskID(targetID int64) string {
	return fmt.Sprintf("publish-target:%d", targetID)
}

// EnqueueTarget queues a delivery for targetID after delay. A target that already has a
// pending task is left alone.
func (d *Dispatcher) EnqueueTarget(ctx context.Context, targetID int64, delay time.Duration) error {
	payload, err := json.Marshal(PublishTargetPayload{TargetID: targetID})
	if err != nil {
		return err
	}
	if delay < 0 {
		delay = 0
	}

	task := asynq.NewTask(TaskTypePublishTarget, payload)
	_, err = d.client.EnqueueContext(ctx, task,
		asynq.ProcessIn(delay),
		asynq.TaskID(taskID(targetID)),
		asynq.MaxRetry(0),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		slog.Info("target already queued", "target_id", targetID)
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("target queued", "target_id", targetID, "delay", delay)
	return nil
}
