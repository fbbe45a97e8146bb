// Package documents resolves browser-facing URLs for draft and final report PDFs.
package documents

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/qa-dashboard/qa-dashboard/internal/config"
	"github.com/qa-dashboard/qa-dashboard/internal/storage"
)

// Kind selects the container a document lives in
type Kind string

const (
	KindDraft Kind = "draft"
	KindFinal Kind = "final"
)

// Store builds document URLs on top of a storage backend.
// A nil backend means blob storage is not configured and every document resolves to the placeholder.
type Store struct {
	backend     storage.Storage
	drafts      string
	finals      string
	ttl         time.Duration
	staticURL   string
	placeholder string
}

// New creates a document store. backend may be nil.
func New(docs *config.DocumentsConfig, staticURL string, backend storage.Storage) *Store {
	ttl := docs.URLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Store{
		backend:     backend,
		drafts:      strings.Trim(docs.DraftsContainer, "/"),
		finals:      strings.Trim(docs.FinalsContainer, "/"),
		ttl:         ttl,
		staticURL:   staticURL,
		placeholder: docs.Placeholder,
	}
}

// Backend returns the underlying storage, or nil
func (s *Store) Backend() storage.Storage {
	return s.backend
}

// Path returns the storage path of a document: "<container>/<filename>"
func (s *Store) Path(kind Kind, filename string) (string, error) {
	filename = strings.TrimLeft(filename, "/")
	if filename == "" {
		return "", fmt.Errorf("document filename is empty")
	}
	switch kind {
	case KindDraft:
		return s.drafts + "/" + filename, nil
	case KindFinal:
		return s.finals + "/" + filename, nil
	default:
		return "", fmt.Errorf("unknown document kind %q", kind)
	}
}

// DocumentURL returns a time-limited URL for the document, or the placeholder URL when no
// storage backend is configured.
func (s *Store) DocumentURL(ctx context.Context, kind Kind, filename string) (string, error) {
	path, err := s.Path(kind, filename)
	if err != nil {
		return "", err
	}
	if s.backend == nil {
		return s.PlaceholderURL(), nil
	}

	u, err := s.backend.GetURL(ctx, path, s.ttl)
	if err != nil {
		return "", fmt.Errorf("failed to get %s document URL: %w", kind, err)
	}
	return u, nil
}

// PlaceholderURL is the static placeholder PDF
func (s *Store) PlaceholderURL() string {
	if s.staticURL == "" || strings.HasSuffix(s.staticURL, "/") {
		return s.staticURL + s.placeholder
	}
	return s.staticURL + "/" + s.placeholder
}

// KindOf reports which container a storage path belongs to
func (s *Store) KindOf(path string) (Kind, bool) {
	container, _, ok := storage.SplitContainer(path)
	switch {
	case !ok:
		return "", false
	case container == s.drafts:
		return KindDraft, true
	case container == s.finals:
		return KindFinal, true
	default:
		return "", false
	}
}

// Open reads a document straight from the backend. Used when the backend has no URL scheme
// the browser can follow, i.e. local storage.
func (s *Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if s.backend == nil {
		return nil, fmt.Errorf("%w: storage is not configured", storage.ErrNotFound)
	}
	clean, ok := storage.CleanPath(path)
	if !ok {
		return nil, fmt.Errorf("invalid document path %q", path)
	}
	return s.backend.Download(ctx, clean)
}
