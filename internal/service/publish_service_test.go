package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishExhaustedRetriesFailsTarget(t *testing.T) {
	e := newTestEnv(t)
	e.fake.JSON("POST /page-1/feed", http.StatusInternalServerError, `{"error":{"message":"try later"}}`)
	ch := e.channel(models.PlatformFacebook, "page-1")
	post := e.createPost(t, &transfer.PostCreation{Caption: "Hello", Targets: targetsTo(ch.ID)})

	got, err := e.publisher.Publish(context.Background(), post.ID, 0)
	require.NoError(t, err)

	tgt := got.Targets[0]
	assert.Equal(t, models.StatusFailed, tgt.Status)
	assert.Contains(t, tgt.ErrorMessage, "500")
	assert.Contains(t, tgt.ErrorMessage, "try later")
	assert.Empty(t, tgt.PlatformPostID)
	assert.Len(t, e.fake.Calls(), 3)
}

func TestPublishSingleTargetSkipsPostedTarget(t *testing.T) {
	e := newTestEnv(t)
	e.fake.JSON("POST /page-1/feed", http.StatusOK, `{"id":"1234"}`)
	ch := e.channel(models.PlatformFacebook, "page-1")
	post := e.createPost(t, &transfer.PostCreation{Caption: "once", Targets: targetsTo(ch.ID)})
	targetID := post.Targets[0].ID

	first, err := e.publisher.PublishSingleTarget(context.Background(), targetID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPosted, first.Status)

	second, err := e.publisher.PublishSingleTarget(context.Background(), targetID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPosted, second.Status)
	assert.Equal(t, "1234", second.PlatformPostID)
	assert.Len(t, e.fake.Calls(), 1)
}

func TestPublishSkipsTargetAlreadyPosting(t *testing.T) {
	e := newTestEnv(t)
	ch := e.channel(models.PlatformFacebook, "page-1")
	post := e.createPost(t, &transfer.PostCreation{Caption: "busy", Targets: targetsTo(ch.ID)})
	targetID := post.Targets[0].ID

	ok, err := e.db.Targets().Transition(context.Background(), targetID, models.AttemptableStatuses, models.StatusPosting)
	require.NoError(t, err)
	require.True(t, ok)

	tgt, err := e.publisher.PublishSingleTarget(context.Background(), targetID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPosting, tgt.Status)
	assert.Empty(t, e.fake.Calls())
}

func TestPublishRetriesFailedTarget(t *testing.T) {
	e := newTestEnv(t)
	e.fake.JSON("POST /page-1/feed", http.StatusBadRequest, `{"error":{"message":"nope"}}`)
	ch := e.channel(models.PlatformFacebook, "page-1")
	post := e.createPost(t, &transfer.PostCreation{Caption: "again", Targets: targetsTo(ch.ID)})

	got, err := e.publisher.Publish(context.Background(), post.ID, 0)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, got.Targets[0].Status)

	e.fake.JSON("POST /page-1/feed", http.StatusOK, `{"id":"77"}`)
	got, err = e.publisher.Publish(context.Background(), post.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPosted, got.Targets[0].Status)
	assert.Equal(t, "77", got.Targets[0].PlatformPostID)
	assert.Empty(t, got.Targets[0].ErrorMessage)
}

func TestPublishIsolatesTargetFailures(t *testing.T) {
	e := newTestEnv(t)
	e.fake.JSON("POST /page-1/feed", http.StatusOK, `{"id":"1234"}`)
	fb := e.channel(models.PlatformFacebook, "page-1")
	ig := e.channel(models.PlatformInstagram, "ig-1")
	post := e.createPost(t, &transfer.PostCreation{Caption: "mixed", Targets: targetsTo(fb.ID, ig.ID)})

	got, err := e.publisher.Publish(context.Background(), post.ID, 0)
	require.NoError(t, err)

	require.Len(t, got.Targets, 2)
	assert.Equal(t, models.StatusPosted, got.Targets[0].Status)
	assert.Equal(t, models.StatusFailed, got.Targets[1].Status)
	assert.NotEmpty(t, got.Targets[1].ErrorMessage)
	assert.Equal(t, models.StatusFailed, models.DerivedStatus(got.Targets[1:]))
}

func TestPublishOnlyRequestedTarget(t *testing.T) {
	e := newTestEnv(t)
	e.fake.JSON("POST /page-1/feed", http.StatusOK, `{"id":"1"}`)
	e.fake.JSON("POST /page-2/feed", http.StatusOK, `{"id":"2"}`)
	a := e.channel(models.PlatformFacebook, "page-1")
	b := e.channel(models.PlatformFacebook, "page-2")
	post := e.createPost(t, &transfer.PostCreation{Caption: "one", Targets: targetsTo(a.ID, b.ID)})

	got, err := e.publisher.Publish(context.Background(), post.ID, post.Targets[1].ID)
	require.NoError(t, err)

	assert.Equal(t, models.StatusReady, got.Targets[0].Status)
	assert.Equal(t, models.StatusPosted, got.Targets[1].Status)
	assert.Equal(t, []string{"POST /page-2/feed"}, e.fake.Paths())
}

func TestPublishUnknownPost(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.publisher.Publish(context.Background(), 404, 0)
	assert.ErrorIs(t, err, ErrPostNotFound)

	_, err = e.publisher.PublishSingleTarget(context.Background(), 404)
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

func TestPublishTargetNotInPost(t *testing.T) {
	e := newTestEnv(t)
	ch := e.channel(models.PlatformFacebook, "page-1")
	post := e.createPost(t, &transfer.PostCreation{Caption: "x", Targets: targetsTo(ch.ID)})

	_, err := e.publisher.Publish(context.Background(), post.ID, 9999)
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

func TestPublishInactiveChannelFails(t *testing.T) {
	e := newTestEnv(t)
	ch := e.channel(models.PlatformFacebook, "page-1")
	post := e.createPost(t, &transfer.PostCreation{Caption: "x", Targets: targetsTo(ch.ID)})
	require.NoError(t, e.db.Channels().SetActive(context.Background(), ch.ID, false))

	got, err := e.publisher.Publish(context.Background(), post.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Targets[0].Status)
	assert.Equal(t, "channel not found/inactive", got.Targets[0].ErrorMessage)
	assert.Empty(t, e.fake.Calls())
}

func TestPublishUnknownPlatformFails(t *testing.T) {
	e := newTestEnv(t)
	publisher := NewPublishService(e.db.Posts(), e.db.Targets(), e.db.Channels(), e.db.Videos(),
		NewRegistry(NewFacebookService(e.cfg, e.hc, e.creds)))
	ch := e.channel(models.PlatformYoutube, "UC-1")
	post := e.createPost(t, &transfer.PostCreation{Caption: "x", Targets: targetsTo(ch.ID)})

	got, err := publisher.Publish(context.Background(), post.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Targets[0].Status)
	assert.Contains(t, got.Targets[0].ErrorMessage, `platform "youtube" not implemented`)
}

func TestPublishMissingReturnedID(t *testing.T) {
	e := newTestEnv(t)
	e.fake.JSON("POST /page-1/feed", http.StatusOK, `{"success":true}`)
	ch := e.channel(models.PlatformFacebook, "page-1")
	post := e.createPost(t, &transfer.PostCreation{Caption: "x", Targets: targetsTo(ch.ID)})

	got, err := e.publisher.Publish(context.Background(), post.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Targets[0].Status)
	assert.Equal(t, "publish succeeded but missing returned id", got.Targets[0].ErrorMessage)
}

func TestPublishSingleTargetDeliversDueTarget(t *testing.T) {
	e := newTestEnv(t)
	containerRoutes(e, "ig-1")
	ch := e.channel(models.PlatformInstagram, "ig-1")
	post := e.createPost(t, &transfer.PostCreation{
		Caption:   "due",
		Overrides: models.Overrides{ImageURL: "https://cdn.example.com/a.jpg"},
		Targets:   []transfer.TargetCreation{{ChannelID: ch.ID, ScheduledTime: inHours(1)}},
	})
	tgt := post.Targets[0]
	require.Equal(t, models.StatusScheduled, tgt.Status)

	past := time.Now().Add(-time.Minute)
	tgt.ScheduledTime = &past
	require.NoError(t, e.db.Targets().Update(context.Background(), tgt))

	got, err := e.publisher.PublishSingleTarget(context.Background(), tgt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPosted, got.Status)
	assert.Equal(t, "m-1", got.PlatformPostID)

	stored, err := e.db.Targets().GetByID(context.Background(), tgt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPosted, stored.Status)
}

func TestPublishSingleTargetAfterPostRemoved(t *testing.T) {
	e := newTestEnv(t)
	ch := e.channel(models.PlatformFacebook, "page-1")
	post := e.createPost(t, &transfer.PostCreation{Caption: "x", Targets: targetsTo(ch.ID)})
	tgt := post.Targets[0]

	require.NoError(t, e.db.Posts().Remove(context.Background(), post.ID))
	_, err := e.publisher.PublishSingleTarget(context.Background(), tgt.ID)
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

type panickyAdapter struct{}

func (panickyAdapter) Platform() models.Platform { return models.PlatformFacebook }

func (panickyAdapter) NativeScheduling() bool { return true }

func (panickyAdapter) Publish(context.Context, *Delivery) (*Result, error) {
	panic("boom")
}

func TestPublishRecoversAdapterPanic(t *testing.T) {
	e := newTestEnv(t)
	publisher := NewPublishService(e.db.Posts(), e.db.Targets(), e.db.Channels(), e.db.Videos(),
		NewRegistry(panickyAdapter{}))
	ch := e.channel(models.PlatformFacebook, "page-1")
	post := e.createPost(t, &transfer.PostCreation{Caption: "x", Targets: targetsTo(ch.ID)})

	got, err := publisher.Publish(context.Background(), post.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Targets[0].Status)
	assert.Contains(t, got.Targets[0].ErrorMessage, "panic during delivery: boom")
}

var errConnReset = errors.New("connection reset")

// flakyPosts fails the next lookups, then behaves like the wrapped repository.
type flakyPosts struct {
	repository.PostRepository
	failures int
}

func (f *flakyPosts) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errConnReset
	}
	return f.PostRepository.GetByID(ctx, id)
}

// flakyTargets fails the next outcome writes for one target.
type flakyTargets struct {
	repository.PostTargetRepository
	targetID int64
	failures int
}

func (f *flakyTargets) Update(ctx context.Context, t *models.PostTarget) error {
	if t.ID == f.targetID && f.failures > 0 {
		f.failures--
		return errConnReset
	}
	return f.PostTargetRepository.Update(ctx, t)
}

func TestPublishSingleTargetStoreErrorReleasesClaim(t *testing.T) {
	e := newTestEnv(t)
	e.fake.JSON("POST /page-1/feed", http.StatusOK, `{"id":"1234"}`)
	posts := &flakyPosts{PostRepository: e.db.Posts(), failures: 1}
	publisher := NewPublishService(posts, e.db.Targets(), e.db.Channels(), e.db.Videos(),
		NewRegistry(NewFacebookService(e.cfg, e.hc, e.creds)))
	ch := e.channel(models.PlatformFacebook, "page-1")
	post := e.createPost(t, &transfer.PostCreation{Caption: "x", Targets: targetsTo(ch.ID)})
	targetID := post.Targets[0].ID

	_, err := publisher.PublishSingleTarget(context.Background(), targetID)
	assert.ErrorIs(t, err, errConnReset)

	stored, err := e.db.Targets().GetByID(context.Background(), targetID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stored.Status)
	assert.Equal(t, "connection reset", stored.ErrorMessage)
	assert.Empty(t, e.fake.Calls())

	got, err := publisher.PublishSingleTarget(context.Background(), targetID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPosted, got.Status)
	assert.Len(t, e.fake.Calls(), 1)
}

func TestPublishContinuesPastUnwritableOutcome(t *testing.T) {
	e := newTestEnv(t)
	e.fake.JSON("POST /page-1/feed", http.StatusOK, `{"id":"1"}`)
	e.fake.JSON("POST /page-2/feed", http.StatusOK, `{"id":"2"}`)
	a := e.channel(models.PlatformFacebook, "page-1")
	b := e.channel(models.PlatformFacebook, "page-2")
	post := e.createPost(t, &transfer.PostCreation{Caption: "x", Targets: targetsTo(a.ID, b.ID)})

	targets := &flakyTargets{PostTargetRepository: e.db.Targets(), targetID: post.Targets[0].ID, failures: 1}
	publisher := NewPublishService(e.db.Posts(), targets, e.db.Channels(), e.db.Videos(),
		NewRegistry(NewFacebookService(e.cfg, e.hc, e.creds)))

	got, err := publisher.Publish(context.Background(), post.ID, 0)
	require.NoError(t, err)

	// The first outcome could not be written, but its claim is released with the status reached.
	assert.Equal(t, models.StatusPosted, got.Targets[0].Status)
	assert.Empty(t, got.Targets[0].PlatformPostID)
	assert.Equal(t, models.StatusPosted, got.Targets[1].Status)
	assert.Equal(t, "2", got.Targets[1].PlatformPostID)
	assert.Len(t, e.fake.Calls(), 2)
}

func TestPublishSingleTargetUnwritableAbandonStillReleases(t *testing.T) {
	e := newTestEnv(t)
	ch := e.channel(models.PlatformFacebook, "page-1")
	post := e.createPost(t, &transfer.PostCreation{Caption: "x", Targets: targetsTo(ch.ID)})
	targetID := post.Targets[0].ID

	posts := &flakyPosts{PostRepository: e.db.Posts(), failures: 1}
	targets := &flakyTargets{PostTargetRepository: e.db.Targets(), targetID: targetID, failures: 1}
	publisher := NewPublishService(posts, targets, e.db.Channels(), e.db.Videos(),
		NewRegistry(NewFacebookService(e.cfg, e.hc, e.creds)))

	_, err := publisher.PublishSingleTarget(context.Background(), targetID)
	assert.ErrorIs(t, err, errConnReset)

	stored, err := e.db.Targets().GetByID(context.Background(), targetID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stored.Status)
	assert.True(t, stored.Status.Attemptable())
}
