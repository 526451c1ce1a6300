package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"github.com/maheshrc27/crosspost/pkg/httpclient"
)

// FacebookPost describes one page publish. At most one of ScheduleUnix and ScheduleISO may be set.
type FacebookPost struct {
	Message      string
	ImageURL     string
	ImageURLs    []string
	VideoURL     string
	ScheduleUnix *int64
	ScheduleISO  string
}

type FacebookService interface {
	Adapter
	PostFeed(ctx context.Context, token, pageID string, p FacebookPost) (*httpclient.Response, error)
	PostPhoto(ctx context.Context, token, pageID string, p FacebookPost) (*httpclient.Response, error)
	PostPhotos(ctx context.Context, token, pageID string, p FacebookPost) (*httpclient.Response, error)
	PostVideo(ctx context.Context, token, pageID string, p FacebookPost) (*httpclient.Response, error)
}

type facebookService struct {
	cfg   config.Config
	hc    *httpclient.Client
	creds CredentialService
}

func NewFacebookService(cfg config.Config, hc *httpclient.Client, creds CredentialService) FacebookService {
	return &facebookService{cfg: cfg, hc: hc, creds: creds}
}

func (s *facebookService) Platform() models.Platform { return models.PlatformFacebook }

func (s *facebookService) NativeScheduling() bool { return true }

func (s *facebookService) Publish(ctx context.Context, d *Delivery) (*Result, error) {
	p := FacebookPost{Message: d.Message}
	// An explicit override schedule goes out as given; otherwise only a future effective time does.
	switch o := d.Post.Overrides; {
	case o.ScheduleUnix != nil || o.ScheduleISO != "":
		p.ScheduleUnix = o.ScheduleUnix
		p.ScheduleISO = o.ScheduleISO
	case d.Future():
		unix := d.ScheduleAt.Unix()
		p.ScheduleUnix = &unix
	}

	images := d.Media.ImageURLs
	wantsVideo := d.Post.VideoID != nil || d.Media.VideoURL != ""
	if wantsVideo && d.Media.VideoURL == "" {
		return nil, errors.New("facebook video post needs a video_url")
	}

	cred, err := s.creds.EnsureValid(ctx, d.Channel)
	if err != nil {
		return nil, err
	}
	pageID := d.Channel.ExternalID

	var resp *httpclient.Response
	switch {
	case wantsVideo:
		p.VideoURL = d.Media.VideoURL
		resp, err = s.PostVideo(ctx, cred.AccessToken, pageID, p)
	case len(images) > 1:
		p.ImageURLs = images
		resp, err = s.PostPhotos(ctx, cred.AccessToken, pageID, p)
	case len(images) == 1:
		p.ImageURL = images[0]
		resp, err = s.PostPhoto(ctx, cred.AccessToken, pageID, p)
	default:
		resp, err = s.PostFeed(ctx, cred.AccessToken, pageID, p)
	}
	if err != nil {
		return nil, err
	}
	return resultFrom(resp, []string{"id"}, []string{"post_id"}), nil
}

func (s *facebookService) PostFeed(ctx context.Context, token, pageID string, p FacebookPost) (*httpclient.Response, error) {
	form, err := s.baseForm(token, pageID, p)
	if err != nil {
		return nil, err
	}
	form.Set("message", p.Message)
	return s.hc.Execute(ctx, http.MethodPost, s.pageURL(pageID, "feed"), httpclient.Form(form), nil)
}

func (s *facebookService) PostPhoto(ctx context.Context, token, pageID string, p FacebookPost) (*httpclient.Response, error) {
	form, err := s.baseForm(token, pageID, p)
	if err != nil {
		return nil, err
	}
	form.Set("url", p.ImageURL)
	if p.Message != "" {
		form.Set("caption", p.Message)
	}
	return s.hc.Execute(ctx, http.MethodPost, s.pageURL(pageID, "photos"), httpclient.Form(form), nil)
}

// PostPhotos uploads every image unpublished and attaches the ones that came back with an id
// to a single feed post. Images that fail to upload are skipped.
func (s *facebookService) PostPhotos(ctx context.Context, token, pageID string, p FacebookPost) (*httpclient.Response, error) {
	form, err := s.baseForm(token, pageID, p)
	if err != nil {
		return nil, err
	}

	var attached []transfer.FacebookAttachment
	for _, u := range p.ImageURLs {
		up := url.Values{}
		up.Set("access_token", token)
		up.Set("url", u)
		up.Set("published", "false")

		resp, err := s.hc.Execute(ctx, http.MethodPost, s.pageURL(pageID, "photos"), httpclient.Form(up), nil)
		if err != nil {
			slog.Info("facebook photo upload skipped", "page_id", pageID, "url", u, "error", err)
			continue
		}
		if id := resp.String("id"); id != "" {
			attached = append(attached, transfer.FacebookAttachment{MediaFBID: id})
		}
	}

	media, err := json.Marshal(attached)
	if err != nil {
		return nil, err
	}
	form.Set("attached_media", string(media))
	if p.Message != "" {
		form.Set("message", p.Message)
	}
	return s.hc.Execute(ctx, http.MethodPost, s.pageURL(pageID, "feed"), httpclient.Form(form), nil)
}

func (s *facebookService) PostVideo(ctx context.Context, token, pageID string, p FacebookPost) (*httpclient.Response, error) {
	form, err := s.baseForm(token, pageID, p)
	if err != nil {
		return nil, err
	}
	form.Set("file_url", p.VideoURL)
	if p.Message != "" {
		form.Set("description", p.Message)
	}
	return s.hc.Execute(ctx, http.MethodPost, s.pageURL(pageID, "videos"), httpclient.Form(form), nil)
}

func (s *facebookService) baseForm(token, pageID string, p FacebookPost) (url.Values, error) {
	if token == "" || pageID == "" {
		return nil, errors.New("missing page token or page id")
	}
	if p.ScheduleUnix != nil && p.ScheduleISO != "" {
		return nil, models.ErrConflictingSchedule
	}

	form := url.Values{}
	form.Set("access_token", token)

	var unix int64
	switch {
	case p.ScheduleUnix != nil:
		unix = *p.ScheduleUnix
	case p.ScheduleISO != "":
		t, err := models.ParseISOTime(p.ScheduleISO)
		if err != nil {
			return nil, fmt.Errorf("schedule_time_iso: %w", err)
		}
		unix = t.Unix()
	default:
		return form, nil
	}
	form.Set("scheduled_publish_time", strconv.FormatInt(unix, 10))
	form.Set("published", "false")
	return form, nil
}

func (s *facebookService) pageURL(pageID, edge string) string {
	return strings.TrimRight(s.cfg.Facebook.GraphURL, "/") + "/" + url.PathEscape(pageID) + "/" + edge
}
