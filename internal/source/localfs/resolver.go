package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/timmy/planscan/internal/source"
)

const scheme = "file://"

// Resolver reads files from the local filesystem.
type Resolver struct {
	maxBytes int64
}

// NewResolver creates a local filesystem resolver. Files larger than maxBytes
// are rejected; zero disables the limit.
func NewResolver(maxBytes int64) *Resolver {
	return &Resolver{maxBytes: maxBytes}
}

// Name returns the resolver identifier.
func (r *Resolver) Name() string {
	return "localfs"
}

// CanResolve accepts file:// references and paths that exist on disk.
func (r *Resolver) CanResolve(ref string) bool {
	if strings.HasPrefix(ref, scheme) {
		return true
	}
	if strings.Contains(ref, "://") {
		return false
	}
	info, err := os.Stat(ref)
	return err == nil && !info.IsDir()
}

// Fetch reads the referenced file.
func (r *Resolver) Fetch(ctx context.Context, ref string) (*source.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(ref, scheme)

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, source.ErrNotFound)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory: %w", path, source.ErrNotFound)
	}
	if r.maxBytes > 0 && info.Size() > r.maxBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", path, r.maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &source.File{
		Ref:  ref,
		Name: filepath.Base(path),
		Data: data,
	}, nil
}
