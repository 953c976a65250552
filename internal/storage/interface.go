package storage

import (
	"context"
	"fmt"
	"io"
	"os"
)

// ObjectStorage defines the interface for video object storage operations
type ObjectStorage interface {
	// Upload uploads an object to storage
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download downloads an object from storage
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetURL returns the URL for accessing an object
	GetURL(key string) string

	// Delete deletes an object from storage
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)
}

// FetchToFile downloads an object to a local path. Frame extraction needs
// the video on disk; the caller owns cleanup of the destination.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - store: object storage to read from.
//   - key: object key of the video.
//   - destPath: local filesystem path to write.
// Returns:
//   - error: non-nil if the download or write fails.
func FetchToFile(ctx context.Context, store ObjectStorage, key, destPath string) error {
	reader, err := store.Download(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", key, err)
	}
	defer reader.Close()

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create local file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, reader); err != nil {
		return fmt.Errorf("failed to write local file: %w", err)
	}
	return nil
}
