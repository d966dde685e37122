package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore persists blobs in a Google Cloud Storage bucket. Objects are
// expected to be publicly readable (uniform bucket-level access with a
// public read policy), since chat clients fetch attachment URLs without
// credentials. When CDNDomain is set, public URLs are built against it
// instead of storage.googleapis.com.
type GCSStore struct {
	Bucket    string
	CDNDomain string

	client *gcs.Client
}

// NewGCSStore dials the storage API. Credentials come from the environment
// (application default credentials) unless extra client options are passed.
func NewGCSStore(ctx context.Context, bucket, cdnDomain string, opts ...option.ClientOption) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("storage: empty GCS bucket name")
	}
	opts = append(opts, option.WithScopes(gcs.ScopeReadWrite))
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: create GCS client: %w", err)
	}
	return &GCSStore{Bucket: bucket, CDNDomain: cdnDomain, client: client}, nil
}

// Put uploads the object and returns its public URL. DoesNotExist keeps the
// store write-once: a duplicate key fails the precondition instead of
// silently replacing an earlier attachment.
func (s *GCSStore) Put(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.Bucket).Object(key).If(gcs.Conditions{DoesNotExist: true}).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("storage: write to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("storage: close GCS writer: %w", err)
	}
	return s.publicURL(key), nil
}

// Close releases the underlying API client.
func (s *GCSStore) Close() error { return s.client.Close() }

func (s *GCSStore) publicURL(key string) string {
	if s.CDNDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.CDNDomain, url.PathEscape(key))
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.Bucket, url.PathEscape(key))
}
