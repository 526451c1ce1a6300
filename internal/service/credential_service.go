package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/metrics"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"github.com/maheshrc27/crosspost/pkg/httpclient"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/singleflight"
)

const defaultTiktokTokenTTL = 3600

type CredentialService interface {
	// EnsureValid returns a usable credential, refreshing an expired token when the platform supports it.
	EnsureValid(ctx context.Context, ch *models.Channel) (*models.Credential, error)
	// Refresh exchanges the refresh token even if the current token has not expired yet.
	Refresh(ctx context.Context, ch *models.Channel) (*models.Credential, error)
}

type tokenRefresher func(ctx context.Context, refreshToken string) (*models.TokenUpdate, error)

type credentialService struct {
	cfg        config.Config
	hc         *httpclient.Client
	channels   repository.ChannelRepository
	refreshers map[models.Platform]tokenRefresher
	flights    singleflight.Group
	now        func() time.Time
}

func NewCredentialService(cfg config.Config, hc *httpclient.Client, channels repository.ChannelRepository) CredentialService {
	s := &credentialService{
		cfg:      cfg,
		hc:       hc,
		channels: channels,
		now:      time.Now,
	}
	// Facebook page tokens and the Instagram accounts reached through them carry no refresh path.
	s.refreshers = map[models.Platform]tokenRefresher{
		models.PlatformTiktok:  s.refreshTiktok,
		models.PlatformYoutube: s.refreshYoutube,
	}
	return s
}

func (s *credentialService) EnsureValid(ctx context.Context, ch *models.Channel) (*models.Credential, error) {
	if ch == nil {
		return nil, &CredentialError{Reason: "channel missing"}
	}
	if _, ok := s.refreshers[ch.Platform]; !ok || !ch.TokenExpired(s.now()) {
		return credentialOf(ch)
	}
	return s.refresh(ctx, ch, false)
}

func (s *credentialService) Refresh(ctx context.Context, ch *models.Channel) (*models.Credential, error) {
	if ch == nil {
		return nil, &CredentialError{Reason: "channel missing"}
	}
	if _, ok := s.refreshers[ch.Platform]; !ok {
		return credentialOf(ch)
	}
	return s.refresh(ctx, ch, true)
}

// refresh runs at most one exchange per channel at a time. Callers that arrive while an
// exchange is in flight share its result; callers that arrive after it reload the channel
// and find the fresh token. The exchange ignores the first caller's cancellation since
// other callers wait on it.
func (s *credentialService) refresh(ctx context.Context, ch *models.Channel, force bool) (*models.Credential, error) {
	key := strconv.FormatInt(ch.ID, 10)
	ctx = context.WithoutCancel(ctx)
	v, err, _ := s.flights.Do(key, func() (interface{}, error) {
		current, err := s.channels.GetByID(ctx, ch.ID)
		if err != nil {
			return nil, &CredentialError{Reason: "channel lookup failed", Err: err}
		}
		if current == nil {
			return nil, &CredentialError{Reason: "channel not found"}
		}
		if !force && !current.TokenExpired(s.now()) {
			return credentialOf(current)
		}

		refreshToken := current.RefreshToken()
		if refreshToken == "" {
			return nil, &CredentialError{Reason: "refresh token unavailable"}
		}

		tu, err := s.refreshers[current.Platform](ctx, refreshToken)
		if err != nil {
			metrics.TokenRefreshes.WithLabelValues(string(current.Platform), "failed").Inc()
			slog.Error("token refresh failed", "channel_id", current.ID, "platform", current.Platform, "error", err)
			return nil, &CredentialError{Reason: "refresh failed", Err: err}
		}
		if tu.RefreshToken == "" {
			tu.RefreshToken = refreshToken
		}

		if err := s.channels.UpdateTokens(ctx, current.ID, tu); err != nil {
			return nil, &CredentialError{Reason: "persist refreshed token", Err: err}
		}
		metrics.TokenRefreshes.WithLabelValues(string(current.Platform), "ok").Inc()
		slog.Info("token refreshed", "channel_id", current.ID, "platform", current.Platform)

		return &models.Credential{
			AccessToken:  tu.AccessToken,
			ExpiresAt:    tu.ExpiresAt,
			RefreshToken: tu.RefreshToken,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	cred := *v.(*models.Credential)
	return &cred, nil
}

func credentialOf(ch *models.Channel) (*models.Credential, error) {
	if ch.AccessToken == "" {
		return nil, &CredentialError{Reason: "access token unavailable"}
	}
	return &models.Credential{
		AccessToken:  ch.AccessToken,
		ExpiresAt:    ch.TokenExpiresAt,
		RefreshToken: ch.RefreshToken(),
	}, nil
}

func (s *credentialService) refreshTiktok(ctx context.Context, refreshToken string) (*models.TokenUpdate, error) {
	data := url.Values{}
	data.Set("client_key", s.cfg.Tiktok.ClientKey)
	data.Set("client_secret", s.cfg.Tiktok.ClientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	resp, err := s.hc.Execute(ctx, http.MethodPost, tiktokURL(s.cfg, "/v2/oauth/token/"), httpclient.Form(data), nil)
	if err != nil {
		return nil, err
	}

	var token transfer.TiktokTokenResponse
	if err := resp.Decode(&token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token response without access_token: %s", strings.TrimSpace(string(resp.Body)))
	}

	expiresIn := token.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultTiktokTokenTTL
	}
	return &models.TokenUpdate{
		AccessToken:  token.AccessToken,
		ExpiresAt:    GetExpiresAt(s.now(), expiresIn),
		RefreshToken: token.RefreshToken,
	}, nil
}

func (s *credentialService) refreshYoutube(ctx context.Context, refreshToken string) (*models.TokenUpdate, error) {
	conf := googleOAuthConfig(s.cfg)

	var token *oauth2.Token
	err := s.hc.Retry(ctx, func(ctx context.Context) error {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.hc.HTTPClient())
		t, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
		if err != nil {
			return upstreamFromOAuth(err)
		}
		token = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	tu := &models.TokenUpdate{AccessToken: token.AccessToken, RefreshToken: token.RefreshToken}
	if !token.Expiry.IsZero() {
		exp := token.Expiry
		tu.ExpiresAt = &exp
	}
	return tu, nil
}

func googleOAuthConfig(cfg config.Config) *oauth2.Config {
	endpoint := google.Endpoint
	if cfg.Google.AuthURL != "" {
		endpoint.AuthURL = cfg.Google.AuthURL
	}
	if cfg.Google.TokenURL != "" {
		endpoint.TokenURL = cfg.Google.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	return &oauth2.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURI,
		Endpoint:     endpoint,
		Scopes: []string{
			"https://www.googleapis.com/auth/youtube.upload",
			"https://www.googleapis.com/auth/youtube.readonly",
		},
	}
}

// upstreamFromOAuth maps token endpoint rejections onto the request client's error model.
func upstreamFromOAuth(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &httpclient.UpstreamError{Status: re.Response.StatusCode, Body: string(re.Body)}
	}
	return err
}

func tiktokURL(cfg config.Config, path string) string {
	return strings.TrimRight(cfg.Tiktok.APIURL, "/") + path
}
