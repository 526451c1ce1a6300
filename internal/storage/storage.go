// Package storage persists uploaded media and hands it back to publishers as byte streams.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	config "github.com/maheshrc27/crosspost/configs"
)

var ErrVideoMissing = errors.New("video missing")

// MissingError reports a stored location that no longer resolves to content.
type MissingError struct {
	Location string
	Where    string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("video path missing %s: %s", e.Where, e.Location)
}

func (e *MissingError) Is(target error) bool {
	return target == ErrVideoMissing
}

type Files interface {
	// Save stores data under key and returns the location to persist on the video record.
	Save(ctx context.Context, key, contentType string, data []byte) (string, error)
	// Open returns the content stored at location together with its size.
	Open(ctx context.Context, location string) (io.ReadCloser, int64, error)
}

func New(ctx context.Context, cfg config.Storage) (Files, error) {
	switch cfg.Backend {
	case "r2":
		return NewR2Store(ctx, cfg.R2)
	default:
		return NewLocalStore(cfg.LocalDir), nil
	}
}
