// Package local implements the local filesystem storage backend. It is intended for development
// and single-node deployments: documents are read from base_path and, with serve_directly enabled,
// handed to browsers as /files/ URLs served by the dashboard itself.
package local

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/qa-dashboard/qa-dashboard/internal/config"
	"github.com/qa-dashboard/qa-dashboard/internal/storage"
)

func init() {
	storage.Register("local", func(cfg *config.Config) (storage.Storage, error) {
		return New(&cfg.Storage.Local, cfg.Server.GetPublicURL())
	})
}

// LocalStorage implements the Storage interface for local filesystem storage
type LocalStorage struct {
	basePath      string
	serveDirectly bool
	baseURL       string
}

// New creates a new local filesystem storage backend
func New(cfg *config.LocalStorageConfig, serverBaseURL string) (*LocalStorage, error) {
	if cfg.BasePath == "" {
		return nil, fmt.Errorf("local storage base_path is required")
	}
	if err := os.MkdirAll(cfg.BasePath, 0750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		basePath:      cfg.BasePath,
		serveDirectly: cfg.ServeDirectly,
		baseURL:       strings.TrimRight(serverBaseURL, "/"),
	}, nil
}

// resolve maps a document path onto the filesystem, refusing anything that escapes basePath
func (s *LocalStorage) resolve(path string) (string, error) {
	clean, ok := storage.CleanPath(path)
	if !ok {
		return "", fmt.Errorf("invalid document path: %q", path)
	}
	return filepath.Join(s.basePath, filepath.FromSlash(clean)), nil
}

// Download opens a document for reading
func (s *LocalStorage) Download(_ context.Context, path string) (io.ReadCloser, error) {
	fullPath, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// GetURL returns a URL for the document. With ServeDirectly enabled this is the dashboard's
// own /files/ endpoint; otherwise a file:// URL for same-host access. ttl is not applicable.
func (s *LocalStorage) GetURL(_ context.Context, path string, _ time.Duration) (string, error) {
	fullPath, err := s.resolve(path)
	if err != nil {
		return "", err
	}

	if s.serveDirectly {
		clean, _ := storage.CleanPath(path)
		segments := strings.Split(clean, "/")
		for i, seg := range segments {
			segments[i] = url.PathEscape(seg)
		}
		return fmt.Sprintf("%s/files/%s", s.baseURL, strings.Join(segments, "/")), nil
	}

	return fmt.Sprintf("file://%s", filepath.ToSlash(fullPath)), nil
}

// Exists checks whether a document exists
func (s *LocalStorage) Exists(_ context.Context, path string) (bool, error) {
	fullPath, err := s.resolve(path)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}

	return !info.IsDir(), nil
}
