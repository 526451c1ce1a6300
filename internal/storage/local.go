package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) Save(_ context.Context, key, _ string, data []byte) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		slog.Info(err.Error())
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		slog.Info(err.Error())
		return "", err
	}
	return path, nil
}

func (s *LocalStore) Open(_ context.Context, location string) (io.ReadCloser, int64, error) {
	if location == "" {
		return nil, 0, &MissingError{Location: "(empty)", Where: "on disk"}
	}
	f, err := os.Open(location)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, &MissingError{Location: location, Where: "on disk"}
		}
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}
