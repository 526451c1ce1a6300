package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/storage"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var allowedVideoTypes = map[string]struct{}{
	"mp4": {}, "mov": {},
}

type VideoService interface {
	Upload(ctx context.Context, userID int64, title string, file *multipart.FileHeader) (*models.Video, error)
	Store(ctx context.Context, userID int64, title string, data []byte) (*models.Video, error)
}

type videoService struct {
	videos repository.VideoRepository
	files  storage.Files
}

func NewVideoService(videos repository.VideoRepository, files storage.Files) VideoService {
	return &videoService{
		videos: videos,
		files:  files,
	}
}

func (s *videoService) Upload(ctx context.Context, userID int64, title string, file *multipart.FileHeader) (*models.Video, error) {
	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("error reading file content: %w", err)
	}

	if strings.TrimSpace(title) == "" {
		title = strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename))
	}
	return s.Store(ctx, userID, title, data)
}

// Store sniffs data, writes it to file storage and records the video.
func (s *videoService) Store(ctx context.Context, userID int64, title string, data []byte) (*models.Video, error) {
	kind, err := filetype.Match(data)
	if err != nil || kind == types.Unknown {
		return nil, ErrUnsupportedFileType
	}
	if _, ok := allowedVideoTypes[kind.Extension]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, kind.Extension)
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	key := "videos/" + id + "." + kind.Extension

	location, err := s.files.Save(ctx, key, kind.MIME.Value, data)
	if err != nil {
		return nil, fmt.Errorf("error storing video: %w", err)
	}

	v := &models.Video{
		Title:       title,
		FilePath:    location,
		ContentType: kind.MIME.Value,
		FileSize:    int64(len(data)),
	}
	if userID != 0 {
		v.UploadedByID = &userID
	}
	if _, err := s.videos.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("error recording video: %w", err)
	}

	slog.Info("video stored", "video_id", v.ID, "location", location, "size", v.FileSize)
	return v, nil
}
