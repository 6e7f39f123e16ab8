package source

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnresolvable is returned when no resolver accepts a file reference.
	ErrUnresolvable = errors.New("file reference cannot be resolved")
	// ErrNotFound is returned when a resolver accepts a reference but nothing exists there.
	ErrNotFound = errors.New("file not found")
	// ErrUnavailable marks failures of the backing store itself rather than of one file.
	ErrUnavailable = errors.New("file store unavailable")
)

// File is a fetched upload.
type File struct {
	Ref         string // Reference as given by the caller
	Name        string // File name or key used for kind detection
	ContentType string // Declared content type, if the store reports one
	Data        []byte
	PublicURL   string // Publicly resolvable URL, empty when none exists
}

// Resolver fetches the bytes behind a file reference.
type Resolver interface {
	// Name returns a short identifier used in logs.
	Name() string

	// CanResolve reports whether this resolver handles ref.
	// Parameters:
	//   - ref: file reference as supplied by the caller.
	// Returns:
	//   - bool: true when Fetch should be attempted with this resolver.
	CanResolve(ref string) bool

	// Fetch downloads the referenced file.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - ref: file reference accepted by CanResolve.
	// Returns:
	//   - *File: file bytes and metadata.
	//   - error: wraps ErrNotFound or ErrUnavailable where applicable.
	Fetch(ctx context.Context, ref string) (*File, error)
}

// Registry dispatches references to the first resolver that accepts them.
type Registry struct {
	resolvers []Resolver
}

// NewRegistry creates a Registry. Resolvers are consulted in the given order;
// nil entries are ignored.
func NewRegistry(resolvers ...Resolver) *Registry {
	r := &Registry{}
	for _, res := range resolvers {
		if res != nil {
			r.resolvers = append(r.resolvers, res)
		}
	}
	return r
}

// Resolve fetches ref using the first matching resolver.
func (r *Registry) Resolve(ctx context.Context, ref string) (*File, error) {
	for _, res := range r.resolvers {
		if !res.CanResolve(ref) {
			continue
		}
		f, err := res.Fetch(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", res.Name(), err)
		}
		return f, nil
	}
	return nil, fmt.Errorf("%q: %w", ref, ErrUnresolvable)
}
