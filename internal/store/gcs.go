package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
	"github.com/jmgilman/go/errors"
)

// GCSBlobStore implements BlobStore on a Cloud Storage bucket.
type GCSBlobStore struct {
	client *storage.Client
	bucket string
}

func NewGCSBlobStore(client *storage.Client, bucket string) *GCSBlobStore {
	return &GCSBlobStore{client: client, bucket: bucket}
}

// Put uploads the artifact with a bounded write timeout and exponential
// backoff on transient failures, then returns the public object URL.
func (s *GCSBlobStore) Put(ctx context.Context, objectName string, data []byte) (string, error) {
	const maxRetries = 2
	var backoff = 1 * time.Second
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := func() error {
			writeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(writeCtx)
			w.ContentType = "application/pdf"
			if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
				_ = w.Close()
				return fmt.Errorf("io.Copy to GCS failed: %w", err)
			}
			if err := w.Close(); err != nil {
				return fmt.Errorf("failed to finalize GCS write: %w", err)
			}
			return nil
		}()

		if err == nil {
			return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, objectName), nil
		}

		lastErr = err
		slog.Warn("Blob upload failed, will retry.", "object", objectName, "attempt", i+1, "error", err)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return "", errors.Wrapf(ctx.Err(), errors.CodeNetwork, "upload of %s cancelled", objectName)
		}
	}
	return "", errors.Wrapf(lastErr, errors.CodeNetwork, "upload of %s failed after retries", objectName)
}

// Delete removes an artifact. A missing object is treated as already deleted.
func (s *GCSBlobStore) Delete(ctx context.Context, objectName string) error {
	err := s.client.Bucket(s.bucket).Object(objectName).Delete(ctx)
	if err != nil && err != storage.ErrObjectNotExist {
		return errors.Wrapf(err, errors.CodeNetwork, "failed to delete blob %s", objectName)
	}
	return nil
}
