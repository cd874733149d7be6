// Package resourceblob provides a reference resource store for NodeAdapter
// implementations that need somewhere to put binary payloads, built on
// gocloud.dev/blob the way the teacher's pkg/backend/filestate package
// stores deployment checkpoints in a blob.Bucket — any driver (file, s3,
// gcs, azure, in-memory) works unmodified.
package resourceblob

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"gocloud.dev/blob"

	"github.com/catalogsync/replicator/internal/node"
)

// Store streams resource payloads in and out of a blob.Bucket, keyed by
// resource URI.
type Store struct {
	bucket *blob.Bucket
}

// New wraps an already-opened blob.Bucket.
func New(bucket *blob.Bucket) *Store {
	return &Store{bucket: bucket}
}

// Read streams the object at key back as a node.ResourceResponse.
func (s *Store) Read(ctx context.Context, key string) (*node.ResourceResponse, error) {
	reader, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "reading resource %q", key)
	}
	return &node.ResourceResponse{Body: reader, Size: reader.Size()}, nil
}

// Write streams body into key, returning true on success. Every failure,
// including one opening the writer, is returned as false together with
// an error, so the caller's failure classifier can inspect adapter
// availability, per spec.md §4.4 step 5.
func (s *Store) Write(ctx context.Context, key string, body io.Reader) (bool, error) {
	writer, err := s.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return false, errors.Wrapf(err, "opening writer for resource %q", key)
	}
	if _, err := io.Copy(writer, body); err != nil {
		_ = writer.Close()
		return false, errors.Wrapf(err, "writing resource %q", key)
	}
	if err := writer.Close(); err != nil {
		return false, errors.Wrapf(err, "closing writer for resource %q", key)
	}
	return true, nil
}

// Exists reports whether key is present in the bucket.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return false, errors.Wrapf(err, "checking resource %q", key)
	}
	return ok, nil
}

// Delete removes key from the bucket. Deleting an absent key is not an
// error.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if err := s.bucket.Delete(ctx, key); err != nil {
		if blob.IsNotExist(err) {
			return true, nil
		}
		return false, errors.Wrapf(err, "deleting resource %q", key)
	}
	return true, nil
}
