package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/maheshrc27/crosspost/internal/metrics"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
)

type PublishService interface {
	// Publish attempts every eligible target of a post, or only onlyTargetID when it is non-zero,
	// and returns the post as stored afterwards.
	Publish(ctx context.Context, postID, onlyTargetID int64) (*models.Post, error)
	// PublishSingleTarget is the scheduler entry point. A target that is not eligible is
	// returned unchanged without any platform call.
	PublishSingleTarget(ctx context.Context, targetID int64) (*models.PostTarget, error)
}

type publishService struct {
	posts   repository.PostRepository
	targets repository.PostTargetRepository
	machine *deliveryMachine
	now     func() time.Time
}

func NewPublishService(
	posts repository.PostRepository,
	targets repository.PostTargetRepository,
	channels repository.ChannelRepository,
	videos repository.VideoRepository,
	adapters Registry) PublishService {
	return &publishService{
		posts:   posts,
		targets: targets,
		now:     time.Now,
		machine: &deliveryMachine{
			channels: channels,
			videos:   videos,
			adapters: adapters,
			now:      time.Now,
		},
	}
}

func (s *publishService) Publish(ctx context.Context, postID, onlyTargetID int64) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	if onlyTargetID != 0 && post.Target(onlyTargetID) == nil {
		return nil, ErrTargetNotFound
	}

	// Targets run one after another so a post's deliveries never interleave.
	for _, tgt := range post.Targets {
		if onlyTargetID != 0 && tgt.ID != onlyTargetID {
			continue
		}
		claimed, err := s.claim(ctx, tgt)
		if err != nil {
			slog.Error("claim target", "post_id", post.ID, "target_id", tgt.ID, "error", err)
			continue
		}
		if !claimed {
			slog.Info("target skipped", "post_id", post.ID, "target_id", tgt.ID, "status", tgt.Status)
			continue
		}
		if err := s.deliver(ctx, post, tgt); err != nil {
			slog.Error("deliver target", "post_id", post.ID, "target_id", tgt.ID, "error", err)
		}
	}

	refreshed, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if refreshed == nil {
		return nil, ErrPostNotFound
	}
	return refreshed, nil
}

func (s *publishService) PublishSingleTarget(ctx context.Context, targetID int64) (*models.PostTarget, error) {
	tgt, err := s.targets.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if tgt == nil {
		return nil, ErrTargetNotFound
	}

	claimed, err := s.claim(ctx, tgt)
	if err != nil {
		return nil, err
	}
	if !claimed {
		slog.Info("target skipped", "target_id", tgt.ID, "status", tgt.Status)
		return tgt, nil
	}

	post, err := s.posts.GetByID(ctx, tgt.PostID)
	if err != nil {
		s.abandon(ctx, tgt, err)
		return nil, err
	}
	if post == nil {
		s.abandon(ctx, tgt, ErrPostNotFound)
		return tgt, nil
	}

	if err := s.deliver(ctx, post, tgt); err != nil {
		return nil, err
	}
	return tgt, nil
}

// claim moves an eligible target to posting before any platform call, so a concurrent
// trigger for the same target finds it ineligible.
func (s *publishService) claim(ctx context.Context, tgt *models.PostTarget) (bool, error) {
	if !tgt.Status.Attemptable() {
		return false, nil
	}
	ok, err := s.targets.Transition(ctx, tgt.ID, models.AttemptableStatuses, models.StatusPosting)
	if err != nil {
		return false, err
	}
	if ok {
		tgt.Status = models.StatusPosting
	}
	return ok, nil
}

func (s *publishService) deliver(ctx context.Context, post *models.Post, tgt *models.PostTarget) error {
	start := s.now()
	s.machine.run(ctx, post, tgt)

	metrics.Deliveries.WithLabelValues(string(tgt.Platform), string(tgt.Status)).Inc()
	metrics.DeliveryDuration.WithLabelValues(string(tgt.Platform)).Observe(time.Since(start).Seconds())
	slog.Info("delivery finished",
		"post_id", post.ID,
		"target_id", tgt.ID,
		"platform", tgt.Platform,
		"status", tgt.Status,
		"platform_post_id", tgt.PlatformPostID,
	)

	if err := s.targets.Update(ctx, tgt); err != nil {
		slog.Error("persist target outcome", "target_id", tgt.ID, "error", err)
		s.release(ctx, tgt.ID, tgt.Status)
		return err
	}
	return nil
}

// abandon fails a claimed target that could not be attempted, so it does not stay in posting.
func (s *publishService) abandon(ctx context.Context, tgt *models.PostTarget, cause error) {
	s.machine.fail(tgt, cause)
	if err := s.targets.Update(ctx, tgt); err != nil {
		slog.Error("persist abandoned target", "target_id", tgt.ID, "error", err)
		s.release(ctx, tgt.ID, models.StatusFailed)
	}
}

// release moves a target out of posting when its full outcome could not be written.
// Only the status survives; the platform id or error message is lost.
func (s *publishService) release(ctx context.Context, targetID int64, to models.Status) {
	if to == models.StatusPosting {
		to = models.StatusFailed
	}
	if _, err := s.targets.Transition(ctx, targetID, []models.Status{models.StatusPosting}, to); err != nil {
		slog.Error("release claimed target", "target_id", targetID, "status", to, "error", err)
	}
}
