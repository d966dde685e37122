// Package storage implements attachment handling for the chat widget: a
// small BlobStore abstraction over durable blob backends, plus the Uploader
// that classifies files and produces ChatAttachment descriptors.
//
// Two backends are provided: a local-filesystem store for development and
// single-host deployments (objects are served back by the HTTP layer under
// a public prefix), and a Google Cloud Storage store for production. Both
// are write-once per generated key; the Uploader guarantees key uniqueness
// with a random component, so clock granularity is never relied upon.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// BlobStore persists an object under a key and returns a durable, publicly
// fetchable URL for it. Implementations must not overwrite an existing key.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (publicURL string, err error)
}

// FSStore writes blobs under Dir and derives public URLs from BaseURL
// (e.g. "https://example.com/uploads"). The HTTP layer is expected to serve
// Dir at that prefix.
type FSStore struct {
	Dir     string
	BaseURL string
}

// NewFSStore creates the backing directory if needed.
func NewFSStore(dir, baseURL string) (*FSStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("storage: empty blob directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create blob dir: %w", err)
	}
	return &FSStore{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put streams r into Dir/key. Keys never contain path separators (the
// Uploader sanitizes names), but reject them anyway rather than escaping Dir.
func (s *FSStore) Put(_ context.Context, key, _ string, r io.Reader) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("storage: invalid blob key %q", key)
	}
	path := filepath.Join(s.Dir, key)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("storage: blob key %q already exists", key)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("storage: create blob: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("storage: write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("storage: close blob: %w", err)
	}
	return s.BaseURL + "/" + url.PathEscape(key), nil
}
