package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/service"
)

const refreshConcurrency = 10

// TokenRefreshJob renews tokens that are about to expire so deliveries rarely refresh inline.
type TokenRefreshJob struct {
	channels repository.ChannelRepository
	creds    service.CredentialService
	window   time.Duration
	now      func() time.Time
}

func NewTokenRefreshJob(channels repository.ChannelRepository, creds service.CredentialService, window time.Duration) *TokenRefreshJob {
	return &TokenRefreshJob{
		channels: channels,
		creds:    creds,
		window:   window,
		now:      time.Now,
	}
}

// RefreshTokens is the cron entry point.
func (j *TokenRefreshJob) RefreshTokens() {
	j.Run(context.Background())
}

// Run refreshes every channel expiring within the window and returns how many succeeded.
func (j *TokenRefreshJob) Run(ctx context.Context) int {
	channels, err := j.channels.ListExpiring(ctx, j.now().Add(j.window))
	if err != nil {
		slog.Info(err.Error())
		return 0
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		refreshed int
	)
	semaphore := make(chan struct{}, refreshConcurrency)

	for _, ch := range channels {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(ch *models.Channel) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if _, err := j.creds.Refresh(ctx, ch); err != nil {
				slog.Info("unable to refresh token", "channel_id", ch.ID, "platform", ch.Platform, "error", err)
				return
			}
			mu.Lock()
			refreshed++
			mu.Unlock()
		}(ch)
	}
	wg.Wait()

	if len(channels) > 0 {
		slog.Info("token refresh sweep", "due", len(channels), "refreshed", refreshed)
	}
	return refreshed
}
