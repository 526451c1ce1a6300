package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
)

// deliveryMachine drives a claimed target through one attempt. It only mutates the target;
// persisting the outcome is the caller's job.
type deliveryMachine struct {
	channels repository.ChannelRepository
	videos   repository.VideoRepository
	adapters Registry
	now      func() time.Time
}

// run executes one attempt and leaves tgt in posted, failed or scheduled.
func (m *deliveryMachine) run(ctx context.Context, post *models.Post, tgt *models.PostTarget) {
	defer func() {
		if r := recover(); r != nil {
			m.fail(tgt, fmt.Errorf("panic during delivery: %v", r))
		}
	}()

	d, adapter, err := m.prepare(ctx, post, tgt)
	if err != nil {
		m.fail(tgt, err)
		return
	}

	if !adapter.NativeScheduling() && d.Future() {
		tgt.Status = models.StatusScheduled
		tgt.ErrorMessage = ""
		slog.Info("delivery deferred", "target_id", tgt.ID, "platform", tgt.Platform, "scheduled_at", d.ScheduleAt)
		return
	}

	res, err := adapter.Publish(ctx, d)
	if err != nil {
		m.fail(tgt, err)
		return
	}
	if res == nil || res.PlatformPostID == "" {
		m.fail(tgt, errors.New("publish succeeded but missing returned id"))
		return
	}

	now := m.now()
	tgt.Status = models.StatusPosted
	tgt.PlatformPostID = res.PlatformPostID
	tgt.PostedTime = &now
	tgt.ErrorMessage = ""
}

func (m *deliveryMachine) prepare(ctx context.Context, post *models.Post, tgt *models.PostTarget) (*Delivery, Adapter, error) {
	ch, err := m.channels.GetByID(ctx, tgt.ChannelID)
	if err != nil {
		return nil, nil, err
	}
	if ch == nil || !ch.IsActive {
		return nil, nil, ErrChannelUnavailable
	}
	if ch.Platform != tgt.Platform {
		return nil, nil, fmt.Errorf("channel %d is %s, target expects %s", ch.ID, ch.Platform, tgt.Platform)
	}

	adapter, ok := m.adapters[tgt.Platform]
	if !ok {
		return nil, nil, fmt.Errorf("%w: platform %q not implemented", ErrUnsupportedPlatform, tgt.Platform)
	}

	media, err := m.media(ctx, post, ch)
	if err != nil {
		return nil, nil, err
	}

	return &Delivery{
		Post:       post,
		Target:     tgt,
		Channel:    ch,
		Message:    post.Message(),
		Media:      media,
		ScheduleAt: post.EffectiveSchedule(tgt),
		Now:        m.now(),
	}, adapter, nil
}

// media prefers per-post overrides and falls back to the channel's defaults.
func (m *deliveryMachine) media(ctx context.Context, post *models.Post, ch *models.Channel) (Media, error) {
	media := Media{
		ImageURLs: post.Overrides.Images(),
		VideoURL:  post.Overrides.VideoURL,
	}
	if len(media.ImageURLs) == 0 {
		if u := ch.Metadata.String(models.MetaImageURL); u != "" {
			media.ImageURLs = []string{u}
		}
	}
	if media.VideoURL == "" {
		media.VideoURL = ch.Metadata.String(models.MetaFileURL)
	}

	if post.VideoID != nil {
		v, err := m.videos.GetByID(ctx, *post.VideoID)
		if err != nil {
			return Media{}, err
		}
		media.Video = v
	}
	return media, nil
}

func (m *deliveryMachine) fail(tgt *models.PostTarget, err error) {
	tgt.Status = models.StatusFailed
	tgt.ErrorMessage = err.Error()
	slog.Info("delivery failed", "target_id", tgt.ID, "platform", tgt.Platform, "error", err)
}
