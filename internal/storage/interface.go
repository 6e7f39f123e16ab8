package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when a key does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// Object is a downloaded upload. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// ObjectInfo describes a stored upload without fetching it.
type ObjectInfo struct {
	Key         string
	ContentType string
	Size        int64
}

// ObjectStorage defines the upload store the parse pipeline reads from.
type ObjectStorage interface {
	// Upload stores an object under key
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download fetches an object with its declared content type
	Download(ctx context.Context, key string) (*Object, error)

	// Stat returns object metadata, or ErrObjectNotFound
	Stat(ctx context.Context, key string) (*ObjectInfo, error)

	// GetURL returns the public URL for an object, or "" when none is configured
	GetURL(key string) string
}
