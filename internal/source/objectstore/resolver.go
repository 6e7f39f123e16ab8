package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/timmy/planscan/internal/source"
	"github.com/timmy/planscan/internal/storage"
)

const scheme = "s3://"

// Resolver fetches uploads from object storage by key.
type Resolver struct {
	store    storage.ObjectStorage
	maxBytes int64
}

// NewResolver creates an object storage resolver.
// Parameters:
//   - store: upload storage; a nil store yields a resolver that accepts nothing.
//   - maxBytes: maximum object size read; zero disables the limit.
// Returns:
//   - *Resolver: initialized resolver.
func NewResolver(store storage.ObjectStorage, maxBytes int64) *Resolver {
	return &Resolver{store: store, maxBytes: maxBytes}
}

// Name returns the resolver identifier.
func (r *Resolver) Name() string {
	return "objectstore"
}

// CanResolve accepts s3:// references and bare keys.
func (r *Resolver) CanResolve(ref string) bool {
	if r.store == nil || strings.TrimSpace(ref) == "" {
		return false
	}
	if strings.HasPrefix(ref, scheme) {
		return true
	}
	return !strings.Contains(ref, "://")
}

// Fetch downloads the object named by ref.
func (r *Resolver) Fetch(ctx context.Context, ref string) (*source.File, error) {
	key := keyOf(ref)
	obj, err := r.store.Download(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("%s: %w", key, source.ErrNotFound)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("download %s: %v: %w", key, err, source.ErrUnavailable)
	}
	defer obj.Body.Close()

	reader := io.Reader(obj.Body)
	if r.maxBytes > 0 {
		reader = io.LimitReader(obj.Body, r.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read %s: %v: %w", key, err, source.ErrUnavailable)
	}
	if r.maxBytes > 0 && int64(len(data)) > r.maxBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", key, r.maxBytes)
	}

	return &source.File{
		Ref:         ref,
		Name:        key,
		ContentType: obj.ContentType,
		Data:        data,
		PublicURL:   r.store.GetURL(key),
	}, nil
}

// keyOf strips the scheme and any leading slash.
func keyOf(ref string) string {
	return strings.TrimPrefix(strings.TrimPrefix(ref, scheme), "/")
}
