// Package gcs provides a BlobStore backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"

	"tgmirror/internal/mirror"
)

// Config captures the parameters required to talk to GCS.
type Config struct {
	Bucket    string
	ProjectID string
}

// BlobStore writes attachment bodies to a configured GCS bucket.
// Authentication uses Application Default Credentials.
type BlobStore struct {
	client *storage.Client
	cfg    Config
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{client: client, cfg: cfg}, nil
}

// EnsureBucket creates the bucket if it does not exist and marks its
// objects world-readable, so mirrored media can be linked directly.
// Idempotent; called once at service initialization.
func (s *BlobStore) EnsureBucket(ctx context.Context) error {
	bkt := s.client.Bucket(s.cfg.Bucket)
	_, err := bkt.Attrs(ctx)
	switch {
	case errors.Is(err, storage.ErrBucketNotExist):
		if err := bkt.Create(ctx, s.cfg.ProjectID, nil); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.cfg.Bucket, errors.Join(mirror.ErrStorageUnavailable, err))
		}
	case err != nil:
		return fmt.Errorf("stat bucket %s: %w", s.cfg.Bucket, errors.Join(mirror.ErrStorageUnavailable, err))
	}
	if err := bkt.ACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		return fmt.Errorf("set public-read on %s: %w", s.cfg.Bucket, errors.Join(mirror.ErrStorageUnavailable, err))
	}
	return nil
}

// Put uploads data under the given key.
func (s *BlobStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	w := s.client.Bucket(s.cfg.Bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %s: %w", key, errors.Join(mirror.ErrStorageUnavailable, err))
	}
	// Close finalizes the upload; the object does not exist until it
	// returns.
	if err := w.Close(); err != nil {
		return fmt.Errorf("close object %s: %w", key, errors.Join(mirror.ErrStorageUnavailable, err))
	}
	return nil
}

// Delete removes an object, treating a missing key as success.
func (s *BlobStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.cfg.Bucket).Object(key).Delete(ctx)
	if err == nil || errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return fmt.Errorf("delete object %s: %w", key, errors.Join(mirror.ErrStorageUnavailable, err))
}
