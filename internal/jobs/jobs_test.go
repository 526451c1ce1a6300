package job

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCreds struct {
	mu        sync.Mutex
	refreshed []int64
	fail      map[int64]bool
}

func (f *fakeCreds) EnsureValid(_ context.Context, ch *models.Channel) (*models.Credential, error) {
	return &models.Credential{AccessToken: ch.AccessToken}, nil
}

func (f *fakeCreds) Refresh(_ context.Context, ch *models.Channel) (*models.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, ch.ID)
	if f.fail[ch.ID] {
		return nil, errors.New("rejected")
	}
	return &models.Credential{AccessToken: "new"}, nil
}

type recordingScheduler struct {
	ids []int64
	err error
}

func (r *recordingScheduler) EnqueueTarget(_ context.Context, targetID int64, delay time.Duration) error {
	if delay != 0 {
		return errors.New("due targets go out immediately")
	}
	r.ids = append(r.ids, targetID)
	return r.err
}

func expiringChannel(db *memory.DB, platform models.Platform, in time.Duration, refreshToken string) *models.Channel {
	at := time.Now().Add(in)
	return db.Put(&models.Channel{
		Platform:       platform,
		ExternalID:     string(platform) + in.String(),
		AccessToken:    "old",
		TokenExpiresAt: &at,
		IsActive:       true,
		Metadata:       models.JSONMap{models.MetaRefreshToken: refreshToken},
	})
}

func TestTokenRefreshJob(t *testing.T) {
	db := memory.New()
	soon := expiringChannel(db, models.PlatformTiktok, 5*time.Minute, "r1")
	expired := expiringChannel(db, models.PlatformYoutube, -time.Hour, "r2")
	broken := expiringChannel(db, models.PlatformTiktok, time.Minute, "r3")
	expiringChannel(db, models.PlatformTiktok, 3*time.Hour, "r4")
	expiringChannel(db, models.PlatformYoutube, time.Minute, "")

	creds := &fakeCreds{fail: map[int64]bool{broken.ID: true}}
	job := NewTokenRefreshJob(db.Channels(), creds, 30*time.Minute)

	assert.Equal(t, 2, job.Run(context.Background()))

	sort.Slice(creds.refreshed, func(i, j int) bool { return creds.refreshed[i] < creds.refreshed[j] })
	assert.Equal(t, []int64{soon.ID, expired.ID, broken.ID}, creds.refreshed)
}

func TestTokenRefreshJobNothingDue(t *testing.T) {
	db := memory.New()
	creds := &fakeCreds{}
	assert.Zero(t, NewTokenRefreshJob(db.Channels(), creds, time.Minute).Run(context.Background()))
	assert.Empty(t, creds.refreshed)
}

func seedPost(t *testing.T, db *memory.DB, targets ...*models.PostTarget) []*models.PostTarget {
	t.Helper()
	post := &models.Post{Status: models.StatusScheduled}
	_, err := db.Posts().Create(context.Background(), post, targets)
	require.NoError(t, err)
	return post.Targets
}

func at(d time.Duration) *time.Time {
	t := time.Now().Add(d)
	return &t
}

func TestDueTargetsJob(t *testing.T) {
	db := memory.New()
	ts := seedPost(t, db,
		&models.PostTarget{Platform: models.PlatformTiktok, Status: models.StatusScheduled, ScheduledTime: at(-2 * time.Minute)},
		&models.PostTarget{Platform: models.PlatformInstagram, Status: models.StatusScheduled, ScheduledTime: at(-time.Minute)},
		&models.PostTarget{Platform: models.PlatformTiktok, Status: models.StatusScheduled, ScheduledTime: at(time.Hour)},
		&models.PostTarget{Platform: models.PlatformFacebook, Status: models.StatusPosted, ScheduledTime: at(-time.Hour)},
	)
	sched := &recordingScheduler{}

	assert.Equal(t, 2, NewDueTargetsJob(db.Targets(), sched, 50).Run(context.Background()))
	assert.Equal(t, []int64{ts[0].ID, ts[1].ID}, sched.ids)
}

func TestDueTargetsJobBatchAndErrors(t *testing.T) {
	db := memory.New()
	seedPost(t, db,
		&models.PostTarget{Status: models.StatusScheduled, ScheduledTime: at(-3 * time.Minute)},
		&models.PostTarget{Status: models.StatusScheduled, ScheduledTime: at(-2 * time.Minute)},
		&models.PostTarget{Status: models.StatusScheduled, ScheduledTime: at(-time.Minute)},
	)

	sched := &recordingScheduler{}
	assert.Equal(t, 2, NewDueTargetsJob(db.Targets(), sched, 2).Run(context.Background()))

	failing := &recordingScheduler{err: errors.New("redis down")}
	assert.Zero(t, NewDueTargetsJob(db.Targets(), failing, 10).Run(context.Background()))
	assert.Len(t, failing.ids, 3)
}
