package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.TaskInfo{ID: "x"}, nil
}

func optionValues(opts []asynq.Option) map[asynq.OptionType]any {
	out := map[asynq.OptionType]any{}
	for _, o := range opts {
		out[o.Type()] = o.Value()
	}
	return out
}

func TestEnqueueTarget(t *testing.T) {
	fe := &fakeEnqueuer{}
	d := NewDispatcher(fe)

	require.NoError(t, d.EnqueueTarget(context.Background(), 42, 90*time.Second))

	require.Len(t, fe.tasks, 1)
	assert.Equal(t, TaskTypePublishTarget, fe.tasks[0].Type())
	var payload PublishTargetPayload
	require.NoError(t, json.Unmarshal(fe.tasks[0].Payload(), &payload))
	assert.Equal(t, int64(42), payload.TargetID)

	opts := optionValues(fe.opts[0])
	assert.Equal(t, 90*time.Second, opts[asynq.ProcessInOpt])
	assert.Equal(t, "publish-target:42", opts[asynq.TaskIDOpt])
	assert.Equal(t, 0, opts[asynq.MaxRetryOpt])
}

func TestEnqueueTargetClampsNegativeDelay(t *testing.T) {
	fe := &fakeEnqueuer{}
	require.NoError(t, NewDispatcher(fe).EnqueueTarget(context.Background(), 1, -time.Minute))
	assert.Equal(t, time.Duration(0), optionValues(fe.opts[0])[asynq.ProcessInOpt])
}

func TestEnqueueTargetAlreadyQueued(t *testing.T) {
	fe := &fakeEnqueuer{err: asynq.ErrTaskIDConflict}
	assert.NoError(t, NewDispatcher(fe).EnqueueTarget(context.Background(), 1, 0))
}

func TestEnqueueTargetError(t *testing.T) {
	fe := &fakeEnqueuer{err: errors.New("redis down")}
	assert.EqualError(t, NewDispatcher(fe).EnqueueTarget(context.Background(), 1, 0), "redis down")
}

type fakePublisher struct {
	targets []int64
	result  *models.PostTarget
	err     error
}

func (f *fakePublisher) Publish(context.Context, int64, int64) (*models.Post, error) {
	return nil, errors.New("not used")
}

func (f *fakePublisher) PublishSingleTarget(_ context.Context, targetID int64) (*models.PostTarget, error) {
	f.targets = append(f.targets, targetID)
	return f.result, f.err
}

func publishTask(t *testing.T, targetID int64) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(PublishTargetPayload{TargetID: targetID})
	require.NoError(t, err)
	return asynq.NewTask(TaskTypePublishTarget, payload)
}

func TestHandlePublishTargetTask(t *testing.T) {
	fp := &fakePublisher{result: &models.PostTarget{ID: 5, Status: models.StatusFailed, ErrorMessage: "400: bad"}}
	q := NewQueue(fp)

	// A failed delivery is recorded on the target and does not fail the task.
	require.NoError(t, q.HandlePublishTargetTask(context.Background(), publishTask(t, 5)))
	assert.Equal(t, []int64{5}, fp.targets)
}

func TestHandlePublishTargetTaskSkipsRetry(t *testing.T) {
	q := NewQueue(&fakePublisher{err: service.ErrTargetNotFound})
	err := q.HandlePublishTargetTask(context.Background(), publishTask(t, 5))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorContains(t, err, "target not found")

	err = q.HandlePublishTargetTask(context.Background(), asynq.NewTask(TaskTypePublishTarget, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandlePublishTargetTaskStoreError(t *testing.T) {
	storeErr := errors.New("connection reset")
	q := NewQueue(&fakePublisher{err: storeErr})
	err := q.HandlePublishTargetTask(context.Background(), publishTask(t, 5))
	assert.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}
