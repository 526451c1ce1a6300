package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/pkg/httpclient"
)

type InstagramService interface {
	Adapter
	CreateContainer(ctx context.Context, token, igID string, fields url.Values) (string, error)
	PublishContainer(ctx context.Context, token, igID, creationID string) (*httpclient.Response, error)
	PostPhoto(ctx context.Context, token, igID, imageURL, caption string) (*httpclient.Response, error)
	PostReel(ctx context.Context, token, igID, videoURL, caption string) (*httpclient.Response, error)
	PostCarousel(ctx context.Context, token, igID string, imageURLs []string, caption string) (*httpclient.Response, error)
}

type instagramService struct {
	cfg   config.Config
	hc    *httpclient.Client
	creds CredentialService
}

func NewInstagramService(cfg config.Config, hc *httpclient.Client, creds CredentialService) InstagramService {
	return &instagramService{cfg: cfg, hc: hc, creds: creds}
}

func (s *instagramService) Platform() models.Platform { return models.PlatformInstagram }

func (s *instagramService) NativeScheduling() bool { return false }

func (s *instagramService) Publish(ctx context.Context, d *Delivery) (*Result, error) {
	images := d.Media.ImageURLs
	if len(images) == 0 && d.Media.VideoURL == "" {
		return nil, errors.New("instagram post needs an image_url or video_url")
	}

	cred, err := s.creds.EnsureValid(ctx, d.Channel)
	if err != nil {
		return nil, err
	}
	igID := d.Channel.ExternalID

	var resp *httpclient.Response
	switch {
	case len(images) > 1:
		resp, err = s.PostCarousel(ctx, cred.AccessToken, igID, images, d.Message)
	case d.Media.VideoURL != "":
		resp, err = s.PostReel(ctx, cred.AccessToken, igID, d.Media.VideoURL, d.Message)
	default:
		resp, err = s.PostPhoto(ctx, cred.AccessToken, igID, images[0], d.Message)
	}
	if err != nil {
		return nil, err
	}
	return resultFrom(resp, []string{"id"}), nil
}

// CreateContainer creates an unpublished media object and returns its creation id.
func (s *instagramService) CreateContainer(ctx context.Context, token, igID string, fields url.Values) (string, error) {
	if token == "" || igID == "" {
		return "", errors.New("missing token or instagram account id")
	}
	form := url.Values{}
	for k, v := range fields {
		form[k] = v
	}
	form.Set("access_token", token)

	resp, err := s.hc.Execute(ctx, http.MethodPost, s.accountURL(igID, "media"), httpclient.Form(form), nil)
	if err != nil {
		return "", err
	}
	id := resp.String("id")
	if id == "" {
		return "", fmt.Errorf("container created without id: %s", strings.TrimSpace(string(resp.Body)))
	}
	return id, nil
}

func (s *instagramService) PublishContainer(ctx context.Context, token, igID, creationID string) (*httpclient.Response, error) {
	form := url.Values{}
	form.Set("access_token", token)
	form.Set("creation_id", creationID)
	return s.hc.Execute(ctx, http.MethodPost, s.accountURL(igID, "media_publish"), httpclient.Form(form), nil)
}

func (s *instagramService) PostPhoto(ctx context.Context, token, igID, imageURL, caption string) (*httpclient.Response, error) {
	id, err := s.CreateContainer(ctx, token, igID, url.Values{
		"image_url": {imageURL},
		"caption":   {caption},
	})
	if err != nil {
		return nil, err
	}
	return s.PublishContainer(ctx, token, igID, id)
}

func (s *instagramService) PostReel(ctx context.Context, token, igID, videoURL, caption string) (*httpclient.Response, error) {
	id, err := s.CreateContainer(ctx, token, igID, url.Values{
		"video_url":  {videoURL},
		"caption":    {caption},
		"media_type": {"REELS"},
	})
	if err != nil {
		return nil, err
	}
	return s.PublishContainer(ctx, token, igID, id)
}

// PostCarousel creates one child container per image, then a CAROUSEL parent over them.
// A failing child aborts the post; children already created are left to expire.
func (s *instagramService) PostCarousel(ctx context.Context, token, igID string, imageURLs []string, caption string) (*httpclient.Response, error) {
	children := make([]string, 0, len(imageURLs))
	for _, u := range imageURLs {
		id, err := s.CreateContainer(ctx, token, igID, url.Values{
			"image_url":        {u},
			"is_carousel_item": {"true"},
		})
		if err != nil {
			return nil, err
		}
		children = append(children, id)
	}

	parent, err := s.CreateContainer(ctx, token, igID, url.Values{
		"caption":    {caption},
		"children":   {strings.Join(children, ",")},
		"media_type": {"CAROUSEL"},
	})
	if err != nil {
		return nil, err
	}
	return s.PublishContainer(ctx, token, igID, parent)
}

func (s *instagramService) accountURL(igID, edge string) string {
	return strings.TrimRight(s.cfg.Instagram.GraphURL, "/") + "/" + url.PathEscape(igID) + "/" + edge
}
