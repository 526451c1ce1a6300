package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"github.com/maheshrc27/crosspost/pkg/httpclient"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/oauth2"
	"google.golang.org/api/youtube/v3"
)

const (
	facebookScopes = "pages_show_list,pages_manage_posts,pages_read_engagement,business_management,instagram_basic,instagram_content_publish"
	tiktokScopes   = "user.info.basic,user.info.profile,video.publish,video.upload"
	statePrefix    = "oauth_state:"
)

// StateStore keeps pending authorization state between the redirect and the callback.
// Take returns nil when the key is unknown or expired and removes it otherwise.
type StateStore interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Take(ctx context.Context, key string) ([]byte, error)
}

type ChannelService interface {
	AuthURL(ctx context.Context, platform models.Platform, userID int64) (string, error)
	Callback(ctx context.Context, platform models.Platform, code, state string) ([]*models.Channel, error)
	List(ctx context.Context, userID int64) ([]*models.Channel, error)
	Deactivate(ctx context.Context, id int64) error
}

type channelService struct {
	cfg      config.Config
	hc       *httpclient.Client
	channels repository.ChannelRepository
	states   StateStore
	now      func() time.Time
}

func NewChannelService(cfg config.Config, hc *httpclient.Client, channels repository.ChannelRepository, states StateStore) ChannelService {
	return &channelService{
		cfg:      cfg,
		hc:       hc,
		channels: channels,
		states:   states,
		now:      time.Now,
	}
}

// AuthURL starts an authorization flow. Instagram business accounts are reached through
// their Facebook page, so both platforms share the Facebook dialog.
func (s *channelService) AuthURL(ctx context.Context, platform models.Platform, userID int64) (string, error) {
	if platform == models.PlatformInstagram {
		platform = models.PlatformFacebook
	}

	switch platform {
	case models.PlatformFacebook, models.PlatformTiktok, models.PlatformYoutube:
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
	}

	st := transfer.OAuthState{Platform: string(platform), UserID: userID}
	if platform == models.PlatformYoutube {
		st.Verifier = oauth2.GenerateVerifier()
	}

	state, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return "", err
	}
	if err := s.states.Put(ctx, statePrefix+state, raw, s.cfg.OAuthStateTTL); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}

	switch platform {
	case models.PlatformFacebook:
		params := url.Values{}
		params.Add("client_id", s.cfg.Facebook.AppID)
		params.Add("redirect_uri", s.cfg.Facebook.RedirectURI)
		params.Add("scope", facebookScopes)
		params.Add("response_type", "code")
		params.Add("state", state)
		return fmt.Sprintf("%s?%s", s.cfg.Facebook.DialogURL, params.Encode()), nil

	case models.PlatformTiktok:
		params := url.Values{}
		params.Add("client_key", s.cfg.Tiktok.ClientKey)
		params.Add("scope", tiktokScopes)
		params.Add("response_type", "code")
		params.Add("redirect_uri", s.cfg.Tiktok.RedirectURI)
		params.Add("state", state)
		return fmt.Sprintf("%s?%s", s.cfg.Tiktok.AuthURL, params.Encode()), nil

	default:
		return googleOAuthConfig(s.cfg).AuthCodeURL(state,
			oauth2.AccessTypeOffline,
			oauth2.ApprovalForce,
			oauth2.S256ChallengeOption(st.Verifier),
		), nil
	}
}

// Callback consumes the state once, exchanges the code and upserts every account it grants.
func (s *channelService) Callback(ctx context.Context, platform models.Platform, code, state string) ([]*models.Channel, error) {
	if code == "" || state == "" {
		return nil, errors.New("code or state is empty")
	}
	if platform == models.PlatformInstagram {
		platform = models.PlatformFacebook
	}

	raw, err := s.states.Take(ctx, statePrefix+state)
	if err != nil {
		return nil, fmt.Errorf("load oauth state: %w", err)
	}
	if raw == nil {
		return nil, ErrInvalidState
	}
	var st transfer.OAuthState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, ErrInvalidState
	}
	if st.Platform != string(platform) {
		return nil, ErrInvalidState
	}

	var linked []*models.Channel
	switch platform {
	case models.PlatformFacebook:
		linked, err = s.facebookCallback(ctx, code, st.UserID)
	case models.PlatformTiktok:
		linked, err = s.tiktokCallback(ctx, code, st.UserID)
	case models.PlatformYoutube:
		linked, err = s.youtubeCallback(ctx, code, st)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
	}
	if err != nil {
		slog.Error("oauth callback failed", "platform", platform, "error", err)
		return nil, err
	}
	return linked, nil
}

func (s *channelService) facebookCallback(ctx context.Context, code string, userID int64) ([]*models.Channel, error) {
	params := url.Values{}
	params.Set("client_id", s.cfg.Facebook.AppID)
	params.Set("client_secret", s.cfg.Facebook.AppSecret)
	params.Set("redirect_uri", s.cfg.Facebook.RedirectURI)
	params.Set("code", code)
	short, err := s.facebookToken(ctx, params)
	if err != nil {
		return nil, err
	}

	params = url.Values{}
	params.Set("grant_type", "fb_exchange_token")
	params.Set("client_id", s.cfg.Facebook.AppID)
	params.Set("client_secret", s.cfg.Facebook.AppSecret)
	params.Set("fb_exchange_token", short.AccessToken)
	long, err := s.facebookToken(ctx, params)
	if err != nil {
		return nil, err
	}

	params = url.Values{}
	params.Set("fields", "id,name,access_token,picture{url},instagram_business_account{id,username,name,profile_picture_url}")
	params.Set("access_token", long.AccessToken)
	resp, err := s.hc.Execute(ctx, http.MethodGet, s.graphURL("/me/accounts", params), nil, nil)
	if err != nil {
		return nil, err
	}
	var pages transfer.FacebookPagesResponse
	if err := resp.Decode(&pages); err != nil {
		return nil, fmt.Errorf("decode pages: %w", err)
	}

	var linked []*models.Channel
	for _, page := range pages.Data {
		ch := &models.Channel{
			Platform:    models.PlatformFacebook,
			ExternalID:  page.ID,
			Name:        page.Name,
			AccessToken: page.AccessToken,
			Metadata:    models.JSONMap{},
		}
		if page.Picture != nil {
			ch.AvatarURL = page.Picture.Data.URL
		}
		if err := s.link(ctx, ch, userID); err != nil {
			return nil, err
		}
		linked = append(linked, ch)

		ig := page.InstagramBusinessAccount
		if ig == nil || ig.ID == "" {
			continue
		}
		igCh := &models.Channel{
			Platform:    models.PlatformInstagram,
			ExternalID:  ig.ID,
			Name:        ig.Name,
			Username:    ig.Username,
			AvatarURL:   ig.ProfilePictureURL,
			AccessToken: page.AccessToken,
			Metadata:    models.JSONMap{models.MetaPageID: page.ID},
		}
		if err := s.link(ctx, igCh, userID); err != nil {
			return nil, err
		}
		linked = append(linked, igCh)
	}
	return linked, nil
}

func (s *channelService) facebookToken(ctx context.Context, params url.Values) (*transfer.FacebookTokenResponse, error) {
	resp, err := s.hc.Execute(ctx, http.MethodGet, s.graphURL("/oauth/access_token", params), nil, nil)
	if err != nil {
		return nil, err
	}
	var token transfer.FacebookTokenResponse
	if err := resp.Decode(&token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, errors.New("facebook token response without access_token")
	}
	return &token, nil
}

func (s *channelService) tiktokCallback(ctx context.Context, code string, userID int64) ([]*models.Channel, error) {
	data := url.Values{}
	data.Set("client_key", s.cfg.Tiktok.ClientKey)
	data.Set("client_secret", s.cfg.Tiktok.ClientSecret)
	data.Set("code", code)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", s.cfg.Tiktok.RedirectURI)

	resp, err := s.hc.Execute(ctx, http.MethodPost, tiktokURL(s.cfg, "/v2/oauth/token/"), httpclient.Form(data), nil)
	if err != nil {
		return nil, err
	}
	var token transfer.TiktokTokenResponse
	if err := resp.Decode(&token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("tiktok token exchange: %s %s", token.Error, token.ErrorDescription)
	}

	resp, err = s.hc.Execute(ctx, http.MethodGet,
		tiktokURL(s.cfg, "/v2/user/info/?fields=open_id,avatar_url,display_name,username"), nil, bearer(token.AccessToken))
	if err != nil {
		return nil, err
	}
	var info transfer.TiktokUserResponse
	if err := resp.Decode(&info); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	if info.Error.Code != "" && info.Error.Code != "ok" {
		return nil, fmt.Errorf("tiktok user info: %s: %s", info.Error.Code, info.Error.Message)
	}

	user := info.Data.User
	externalID := user.OpenID
	if externalID == "" {
		externalID = token.OpenID
	}
	expiresIn := token.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultTiktokTokenTTL
	}

	ch := &models.Channel{
		Platform:       models.PlatformTiktok,
		ExternalID:     externalID,
		Name:           user.DisplayName,
		Username:       user.Username,
		AvatarURL:      user.AvatarURL,
		AccessToken:    token.AccessToken,
		TokenExpiresAt: GetExpiresAt(s.now(), expiresIn),
		Metadata:       models.JSONMap{},
	}
	if token.RefreshToken != "" {
		ch.Metadata[models.MetaRefreshToken] = token.RefreshToken
	}
	if err := s.link(ctx, ch, userID); err != nil {
		return nil, err
	}
	return []*models.Channel{ch}, nil
}

func (s *channelService) youtubeCallback(ctx context.Context, code string, st transfer.OAuthState) ([]*models.Channel, error) {
	conf := googleOAuthConfig(s.cfg)

	var token *oauth2.Token
	err := s.hc.Retry(ctx, func(ctx context.Context) error {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.hc.HTTPClient())
		t, err := conf.Exchange(ctx, code, oauth2.VerifierOption(st.Verifier))
		if err != nil {
			return upstreamFromOAuth(err)
		}
		token = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	yt, err := newYoutubeClient(ctx, s.cfg, s.hc, token)
	if err != nil {
		return nil, err
	}
	var list *youtube.ChannelListResponse
	err = s.hc.Retry(ctx, func(ctx context.Context) error {
		l, err := yt.Channels.List([]string{"snippet"}).Mine(true).Context(ctx).Do()
		if err != nil {
			return upstreamFromGoogle(err)
		}
		list = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(list.Items) == 0 {
		return nil, errors.New("google account has no youtube channel")
	}

	var linked []*models.Channel
	for _, item := range list.Items {
		ch := &models.Channel{
			Platform:    models.PlatformYoutube,
			ExternalID:  item.Id,
			AccessToken: token.AccessToken,
			Metadata:    models.JSONMap{},
		}
		if !token.Expiry.IsZero() {
			exp := token.Expiry
			ch.TokenExpiresAt = &exp
		}
		if token.RefreshToken != "" {
			ch.Metadata[models.MetaRefreshToken] = token.RefreshToken
		}
		if sn := item.Snippet; sn != nil {
			ch.Name = sn.Title
			ch.Username = sn.CustomUrl
			if sn.Thumbnails != nil && sn.Thumbnails.Default != nil {
				ch.AvatarURL = sn.Thumbnails.Default.Url
			}
		}
		if err := s.link(ctx, ch, st.UserID); err != nil {
			return nil, err
		}
		linked = append(linked, ch)
	}
	return linked, nil
}

func (s *channelService) link(ctx context.Context, ch *models.Channel, userID int64) error {
	if userID != 0 {
		ch.OwnerUserID = &userID
	}
	id, err := s.channels.Upsert(ctx, ch)
	if err != nil {
		return fmt.Errorf("save %s channel %s: %w", ch.Platform, ch.ExternalID, err)
	}
	ch.ID = id
	ch.IsActive = true
	slog.Info("channel linked", "channel_id", id, "platform", ch.Platform, "external_id", ch.ExternalID)
	return nil
}

func (s *channelService) List(ctx context.Context, userID int64) ([]*models.Channel, error) {
	channels, err := s.channels.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing channels: %w", err)
	}
	return channels, nil
}

func (s *channelService) Deactivate(ctx context.Context, id int64) error {
	ch, err := s.channels.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if ch == nil {
		return ErrChannelNotFound
	}
	return s.channels.SetActive(ctx, id, false)
}

func (s *channelService) graphURL(path string, params url.Values) string {
	return strings.TrimRight(s.cfg.Facebook.GraphURL, "/") + path + "?" + params.Encode()
}
