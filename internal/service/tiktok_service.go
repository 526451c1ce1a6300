package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/storage"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"github.com/maheshrc27/crosspost/pkg/httpclient"
)

// TiktokUpload is the session returned by the init step.
type TiktokUpload struct {
	UploadURL string
	PublishID string
}

type TiktokService interface {
	Adapter
	InitUpload(ctx context.Context, token string, req transfer.TiktokInitRequest) (*TiktokUpload, error)
	UploadVideo(ctx context.Context, uploadURL string, data []byte) error
	PublishUpload(ctx context.Context, token, publishID, caption string) (*httpclient.Response, error)
}

type tiktokService struct {
	cfg   config.Config
	hc    *httpclient.Client
	creds CredentialService
	files storage.Files
}

func NewTiktokService(cfg config.Config, hc *httpclient.Client, creds CredentialService, files storage.Files) TiktokService {
	return &tiktokService{cfg: cfg, hc: hc, creds: creds, files: files}
}

func (s *tiktokService) Platform() models.Platform { return models.PlatformTiktok }

func (s *tiktokService) NativeScheduling() bool { return false }

func (s *tiktokService) Publish(ctx context.Context, d *Delivery) (*Result, error) {
	data, err := readVideo(ctx, s.files, d)
	if err != nil {
		return nil, err
	}

	cred, err := s.creds.EnsureValid(ctx, d.Channel)
	if err != nil {
		return nil, err
	}

	size := int64(len(data))
	upload, err := s.InitUpload(ctx, cred.AccessToken, transfer.TiktokInitRequest{
		PostInfo: transfer.TiktokPostInfo{
			Title:        d.Message,
			PrivacyLevel: tiktokPrivacy(d.Post.Overrides.Privacy),
		},
		SourceInfo: transfer.TiktokFileSource{
			Source:          "FILE_UPLOAD",
			VideoSize:       size,
			ChunkSize:       size,
			TotalChunkCount: 1,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := s.UploadVideo(ctx, upload.UploadURL, data); err != nil {
		return nil, err
	}

	resp, err := s.PublishUpload(ctx, cred.AccessToken, upload.PublishID, d.Message)
	if err != nil {
		return nil, err
	}

	res := resultFrom(resp, []string{"data", "video_id"})
	if res.PlatformPostID == "" {
		res.PlatformPostID = upload.PublishID
	}
	return res, nil
}

func (s *tiktokService) InitUpload(ctx context.Context, token string, req transfer.TiktokInitRequest) (*TiktokUpload, error) {
	headers := bearer(token)
	headers.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := s.hc.Execute(ctx, http.MethodPost, tiktokURL(s.cfg, "/v2/post/publish/video/init/"), httpclient.JSON(req), headers)
	if err != nil {
		return nil, err
	}

	upload := &TiktokUpload{
		UploadURL: resp.String("data", "upload_url"),
		PublishID: resp.String("data", "publish_id"),
	}
	if upload.UploadURL == "" || upload.PublishID == "" {
		return nil, fmt.Errorf("tiktok init returned no upload session: %s", strings.TrimSpace(string(resp.Body)))
	}
	return upload, nil
}

// UploadVideo sends the whole file in one chunk. The transfer has no per-attempt timeout.
func (s *tiktokService) UploadVideo(ctx context.Context, uploadURL string, data []byte) error {
	size := len(data)
	headers := http.Header{}
	headers.Set("Content-Type", "video/mp4")
	if size > 0 {
		headers.Set("Content-Range", fmt.Sprintf("bytes 0-%d/%d", size-1, size))
	}
	_, err := s.hc.Unbounded().Execute(ctx, http.MethodPut, uploadURL, httpclient.Raw(data, "video/mp4"), headers)
	return err
}

func (s *tiktokService) PublishUpload(ctx context.Context, token, publishID, caption string) (*httpclient.Response, error) {
	return s.hc.Execute(ctx, http.MethodPost, tiktokURL(s.cfg, "/v2/post/publish/video/"),
		httpclient.JSON(transfer.TiktokPublishRequest{PublishID: publishID, Caption: caption}), bearer(token))
}

func tiktokPrivacy(privacy string) string {
	switch privacy {
	case models.PrivacyPublic:
		return "PUBLIC_TO_EVERYONE"
	case models.PrivacyUnlisted:
		return "MUTUAL_FOLLOW_FRIENDS"
	default:
		return "SELF_ONLY"
	}
}

// readVideo loads the post's linked video. It fails before any network call when the
// post has no video or the stored file is gone.
func readVideo(ctx context.Context, files storage.Files, d *Delivery) ([]byte, error) {
	if err := requireVideo(d); err != nil {
		return nil, err
	}
	rc, _, err := files.Open(ctx, d.Media.Video.FilePath)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func requireVideo(d *Delivery) error {
	if d.Media.Video != nil {
		return nil
	}
	if d.Post.VideoID == nil {
		return fmt.Errorf("%s post needs a linked video", d.Channel.Platform)
	}
	return fmt.Errorf("%w: %d", ErrVideoNotFound, *d.Post.VideoID)
}
