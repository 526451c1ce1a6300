package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/service"
)

// DueTargetsJob hands scheduled targets whose time has passed to the queue. It catches
// targets whose delayed task was lost or never enqueued.
type DueTargetsJob struct {
	targets   repository.PostTargetRepository
	scheduler service.TargetScheduler
	batch     int
	now       func() time.Time
}

func NewDueTargetsJob(targets repository.PostTargetRepository, scheduler service.TargetScheduler, batch int) *DueTargetsJob {
	return &DueTargetsJob{
		targets:   targets,
		scheduler: scheduler,
		batch:     batch,
		now:       time.Now,
	}
}

func (j *DueTargetsJob) EnqueueDue() {
	j.Run(context.Background())
}

// Run enqueues one batch of due targets and returns how many were handed over.
func (j *DueTargetsJob) Run(ctx context.Context) int {
	due, err := j.targets.ListDue(ctx, j.now(), j.batch)
	if err != nil {
		slog.Info(err.Error())
		return 0
	}

	enqueued := 0
	for _, t := range due {
		if err := j.scheduler.EnqueueTarget(ctx, t.ID, 0); err != nil {
			slog.Error("enqueue due target", "target_id", t.ID, "error", err)
			continue
		}
		enqueued++
	}
	if enqueued > 0 {
		slog.Info("due targets enqueued", "count", enqueued)
	}
	return enqueued
}
