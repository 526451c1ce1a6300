package queue

import (
	"github.com/maheshrc27/crosspost/internal/service"
)

const TaskTypePublishTarget = "publish:target"

type PublishTargetPayload struct {
	TargetID int64 `json:"target_id"`
}

// Queue handles delivery tasks pulled off asynq.
type Queue struct {
	publisher service.PublishService
}

func NewQueue(publisher service.PublishService) *Queue {
	return &Queue{publisher: publisher}
}
