// Package storage defines the blob storage interface report documents are read through.
//
// Backends register with the factory from an init() function in their own package:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (storage.Storage, error) {
//	        return NewMyBackend(cfg)
//	    })
//	}
//
// cmd/server imports each backend with a blank import to trigger init().
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// ErrNotFound is returned (wrapped) when a document does not exist in the backend
var ErrNotFound = errors.New("document not found")

// Storage is a read-side view of a blob store. Paths are "<container>/<name>"; backends with a
// native container concept (Azure) use the first segment as the container, the others use the
// whole path as the object key.
type Storage interface {
	// Download opens a document for reading
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// GetURL returns a URL the browser can fetch the document from.
	// Cloud backends return a signed URL valid for ttl; the local backend returns a /files/ URL.
	GetURL(ctx context.Context, path string, ttl time.Duration) (string, error)

	// Exists reports whether a document exists at path
	Exists(ctx context.Context, path string) (bool, error)
}

// SplitContainer splits "<container>/<name>" into its parts. ok is false when either part is empty.
func SplitContainer(path string) (container, name string, ok bool) {
	container, name, found := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if !found || container == "" || name == "" {
		return "", "", false
	}
	return container, name, true
}

// CleanPath normalizes a document path and rejects traversal outside the store
func CleanPath(path string) (string, bool) {
	path = strings.TrimPrefix(strings.ReplaceAll(path, "\\", "/"), "/")
	if path == "" {
		return "", false
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", false
		}
	}
	return path, true
}
