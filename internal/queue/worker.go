package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/crosspost/internal/service"
)

// HandlePublishTargetTask runs one scheduled delivery. Delivery failures are already recorded
// on the target, so only store errors reach asynq.
func (q *Queue) HandlePublishTargetTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishTargetPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	tgt, err := q.publisher.PublishSingleTarget(ctx, payload.TargetID)
	if errors.Is(err, service.ErrTargetNotFound) {
		slog.Info("queued target no longer exists", "target_id", payload.TargetID)
		return fmt.Errorf("target %d: %v: %w", payload.TargetID, err, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}

	slog.Info("queued delivery done", "target_id", tgt.ID, "status", tgt.Status, "error_message", tgt.ErrorMessage)
	return nil
}

// Register wires the queue's handlers into mux.
func (q *Queue) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypePublishTarget, q.HandlePublishTargetTask)
}
