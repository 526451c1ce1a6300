package service

import (
	"context"
	"errors"
	"time"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/storage"
	"github.com/maheshrc27/crosspost/pkg/httpclient"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const youtubeCategoryPeopleBlogs = "22"

// YoutubeUpload carries the metadata of one video insert.
type YoutubeUpload struct {
	Title       string
	Description string
	Tags        []string
	Privacy     string
	PublishAt   *time.Time
	Location    string
}

type YoutubeService interface {
	Adapter
	UploadVideo(ctx context.Context, token string, u YoutubeUpload) (*youtube.Video, error)
}

type youtubeService struct {
	cfg   config.Config
	hc    *httpclient.Client
	creds CredentialService
	files storage.Files
}

func NewYoutubeService(cfg config.Config, hc *httpclient.Client, creds CredentialService, files storage.Files) YoutubeService {
	return &youtubeService{cfg: cfg, hc: hc, creds: creds, files: files}
}

func (s *youtubeService) Platform() models.Platform { return models.PlatformYoutube }

func (s *youtubeService) NativeScheduling() bool { return true }

func (s *youtubeService) Publish(ctx context.Context, d *Delivery) (*Result, error) {
	if err := requireVideo(d); err != nil {
		return nil, err
	}
	rc, _, err := s.files.Open(ctx, d.Media.Video.FilePath)
	if err != nil {
		return nil, err
	}
	rc.Close()

	cred, err := s.creds.EnsureValid(ctx, d.Channel)
	if err != nil {
		return nil, err
	}

	u := YoutubeUpload{
		Title:       youtubeTitle(d),
		Description: d.Message,
		Tags:        d.Post.Overrides.Tags,
		Privacy:     d.Post.Overrides.Privacy,
		Location:    d.Media.Video.FilePath,
	}
	if d.Future() {
		u.PublishAt = d.ScheduleAt
	}

	video, err := s.UploadVideo(ctx, cred.AccessToken, u)
	if err != nil {
		return nil, err
	}
	return &Result{PlatformPostID: video.Id}, nil
}

// UploadVideo inserts a video. Privacy defaults to private when a publish time is set and
// public otherwise.
func (s *youtubeService) UploadVideo(ctx context.Context, token string, u YoutubeUpload) (*youtube.Video, error) {
	privacy := u.Privacy
	if privacy == "" {
		privacy = models.PrivacyPublic
		if u.PublishAt != nil {
			privacy = models.PrivacyPrivate
		}
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       u.Title,
			Description: u.Description,
			Tags:        u.Tags,
			CategoryId:  youtubeCategoryPeopleBlogs,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: privacy,
		},
	}
	if u.PublishAt != nil {
		video.Status.PublishAt = u.PublishAt.UTC().Format(time.RFC3339)
	}

	var inserted *youtube.Video
	err := s.hc.Retry(ctx, func(ctx context.Context) error {
		svc, err := s.newYoutube(ctx, token)
		if err != nil {
			return err
		}

		rc, _, err := s.files.Open(ctx, u.Location)
		if err != nil {
			return err
		}
		defer rc.Close()

		v, err := svc.Videos.Insert([]string{"snippet", "status"}, video).
			Media(rc, googleapi.ContentType("video/mp4")).
			Context(ctx).
			Do()
		if err != nil {
			return upstreamFromGoogle(err)
		}
		inserted = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	if inserted.Id == "" {
		return nil, errors.New("youtube insert succeeded but missing returned id")
	}
	return inserted, nil
}

func (s *youtubeService) newYoutube(ctx context.Context, token string) (*youtube.Service, error) {
	return newYoutubeClient(ctx, s.cfg, s.hc, &oauth2.Token{AccessToken: token})
}

func newYoutubeClient(ctx context.Context, cfg config.Config, hc *httpclient.Client, token *oauth2.Token) (*youtube.Service, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, hc.HTTPClient())
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if cfg.Google.YoutubeURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.Google.YoutubeURL))
	}
	return youtube.NewService(ctx, opts...)
}

func youtubeTitle(d *Delivery) string {
	if t := d.Post.Overrides.Title; t != "" {
		return t
	}
	if d.Media.Video != nil && d.Media.Video.Title != "" {
		return d.Media.Video.Title
	}
	return "Untitled"
}

func upstreamFromGoogle(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		body := gerr.Body
		if body == "" {
			body = gerr.Message
		}
		return &httpclient.UpstreamError{Status: gerr.Code, Body: body}
	}
	return err
}
