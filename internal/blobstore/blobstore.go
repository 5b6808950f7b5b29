// Package blobstore wraps the remote object store behind a small interface so
// that transfer logic can be tested against in-memory fakes.
package blobstore

import (
	"context"
	"errors"
)

// ErrObjectNotFound indicates the requested key does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// ErrAccessDenied indicates the credentials were rejected by the store.
var ErrAccessDenied = errors.New("access denied")

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// Client captures the minimal object store operations the transfer tools need.
type Client interface {
	// Verify checks that the configured bucket is reachable with the
	// configured credentials.
	Verify(ctx context.Context) error
	// StatObject returns metadata for a single key, or ErrObjectNotFound.
	StatObject(ctx context.Context, key string) (ObjectInfo, error)
	// ListObjects lists all objects under a prefix.
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// DownloadObject fetches a key into destPath, creating parent
	// directories as needed, and reports the bytes written.
	DownloadObject(ctx context.Context, key string, destPath string) (int64, error)
	// UploadObject sends a local file to a key and reports the bytes sent.
	UploadObject(ctx context.Context, srcPath string, key string) (int64, error)
}
