package source

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type prefixResolver struct {
	name   string
	prefix string
	err    error
}

func (p prefixResolver) Name() string { return p.name }

func (p prefixResolver) CanResolve(ref string) bool { return strings.HasPrefix(ref, p.prefix) }

func (p prefixResolver) Fetch(_ context.Context, ref string) (*File, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &File{Ref: ref, Name: p.name}, nil
}

func TestRegistryDispatchesInOrder(t *testing.T) {
	reg := NewRegistry(
		prefixResolver{name: "a", prefix: "x:"},
		nil,
		prefixResolver{name: "b", prefix: "x:"},
		prefixResolver{name: "c", prefix: "y:"},
	)

	f, err := reg.Resolve(context.Background(), "x:1")
	require.NoError(t, err)
	assert.Equal(t, "a", f.Name)

	f, err = reg.Resolve(context.Background(), "y:1")
	require.NoError(t, err)
	assert.Equal(t, "c", f.Name)
}

func TestRegistryUnresolvable(t *testing.T) {
	reg := NewRegistry(prefixResolver{name: "a", prefix: "x:"})
	_, err := reg.Resolve(context.Background(), "ftp://host/file.pdf")
	assert.ErrorIs(t, err, ErrUnresolvable)
}

func TestRegistryKeepsResolverErrors(t *testing.T) {
	reg := NewRegistry(prefixResolver{name: "a", prefix: "x:", err: ErrUnavailable})
	_, err := reg.Resolve(context.Background(), "x:1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Contains(t, err.Error(), "a:")
}
