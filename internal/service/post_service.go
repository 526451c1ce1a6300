package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

// TargetScheduler queues a single target for delivery after delay.
type TargetScheduler interface {
	EnqueueTarget(ctx context.Context, targetID int64, delay time.Duration) error
}

type PostService interface {
	Create(ctx context.Context, userID int64, pc *transfer.PostCreation) (*models.Post, error)
	Get(ctx context.Context, postID int64) (*models.Post, error)
	List(ctx context.Context, filter repository.PostFilter) ([]*models.Post, error)
	Remove(ctx context.Context, postID int64) error
}

type postService struct {
	posts     repository.PostRepository
	channels  repository.ChannelRepository
	videos    repository.VideoRepository
	scheduler TargetScheduler
	now       func() time.Time
}

// NewPostService builds the post service. scheduler may be nil, in which case scheduled
// targets are only picked up by the due sweep.
func NewPostService(
	posts repository.PostRepository,
	channels repository.ChannelRepository,
	videos repository.VideoRepository,
	scheduler TargetScheduler) PostService {
	return &postService{
		posts:     posts,
		channels:  channels,
		videos:    videos,
		scheduler: scheduler,
		now:       time.Now,
	}
}

func (s *postService) Create(ctx context.Context, userID int64, pc *transfer.PostCreation) (*models.Post, error) {
	if pc == nil {
		return nil, errors.New("post creation data is nil")
	}
	if len(pc.Targets) == 0 {
		return nil, ErrNoTargets
	}
	if err := pc.Overrides.Validate(); err != nil {
		return nil, err
	}

	if pc.VideoID != nil {
		v, err := s.videos.GetByID(ctx, *pc.VideoID)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, ErrVideoNotFound
		}
	}

	post := &models.Post{
		Caption:              pc.Caption,
		Hashtags:             pc.Hashtags,
		VideoID:              pc.VideoID,
		DefaultScheduledTime: pc.DefaultScheduledTime,
		Overrides:            pc.Overrides,
		Status:               models.StatusReady,
	}
	if userID != 0 {
		post.CreatedByID = &userID
	}

	now := s.now()
	seen := make(map[int64]struct{}, len(pc.Targets))
	targets := make([]*models.PostTarget, 0, len(pc.Targets))
	for _, tc := range pc.Targets {
		if _, dup := seen[tc.ChannelID]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateChannel, tc.ChannelID)
		}
		seen[tc.ChannelID] = struct{}{}

		ch, err := s.channels.GetByID(ctx, tc.ChannelID)
		if err != nil {
			return nil, err
		}
		if ch == nil || !ch.IsActive {
			return nil, fmt.Errorf("%w: %d", ErrChannelUnavailable, tc.ChannelID)
		}

		tgt := &models.PostTarget{
			ChannelID:     ch.ID,
			Platform:      ch.Platform,
			ScheduledTime: tc.ScheduledTime,
		}
		at := post.EffectiveSchedule(tgt)
		tgt.ScheduledTime = at
		tgt.Status = models.InitialStatus(at, now)
		if tgt.Status == models.StatusScheduled {
			post.Status = models.StatusScheduled
		}
		targets = append(targets, tgt)
	}

	if _, err := s.posts.Create(ctx, post, targets); err != nil {
		return nil, fmt.Errorf("error creating post: %w", err)
	}
	slog.Info("post created", "post_id", post.ID, "targets", len(targets), "status", post.Status)

	s.schedule(ctx, targets, now)
	return post, nil
}

// schedule queues future targets. A failure here is logged only; the due sweep picks
// the target up once its time passes.
func (s *postService) schedule(ctx context.Context, targets []*models.PostTarget, now time.Time) {
	if s.scheduler == nil {
		return
	}
	for _, t := range targets {
		if t.Status != models.StatusScheduled {
			continue
		}
		if err := s.scheduler.EnqueueTarget(ctx, t.ID, t.ScheduledTime.Sub(now)); err != nil {
			slog.Error("enqueue scheduled target", "target_id", t.ID, "error", err)
		}
	}
}

func (s *postService) Get(ctx context.Context, postID int64) (*models.Post, error) {
	if postID == 0 {
		return nil, ErrPostNotFound
	}
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	return post, nil
}

func (s *postService) List(ctx context.Context, filter repository.PostFilter) ([]*models.Post, error) {
	posts, err := s.posts.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	return posts, nil
}

func (s *postService) Remove(ctx context.Context, postID int64) error {
	if _, err := s.Get(ctx, postID); err != nil {
		return err
	}
	if err := s.posts.Remove(ctx, postID); err != nil {
		return fmt.Errorf("error removing post: %w", err)
	}
	return nil
}
