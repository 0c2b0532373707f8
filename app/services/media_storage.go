package services

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// MediaStorage is a blob store keyed by relative path
type MediaStorage interface {
	// Put writes data under key and returns its public url
	Put(ctx context.Context, key string, data []byte) (string, error)
}

// LocalMediaStorage stores files below a root directory served at a public base url
type LocalMediaStorage struct {
	rootDir       string
	publicBaseURL string
}

// NewLocalMediaStorage creates a filesystem backed media storage
func NewLocalMediaStorage(rootDir, publicBaseURL string) *LocalMediaStorage {
	return &LocalMediaStorage{
		rootDir:       rootDir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Put writes data atomically (tmp + rename)
func (s *LocalMediaStorage) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := path.Clean("/" + key)[1:]
	if clean == "" {
		return "", fmt.Errorf("invalid storage key %q", key)
	}

	dst := filepath.Join(s.rootDir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}

	return s.publicBaseURL + "/" + clean, nil
}
