package localfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/planscan/internal/source"
)

func TestResolverReadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plans.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))

	r := NewResolver(0)
	assert.True(t, r.CanResolve(path))
	assert.True(t, r.CanResolve("file://"+path))
	assert.False(t, r.CanResolve(filepath.Join(dir, "missing.pdf")))
	assert.False(t, r.CanResolve("https://example.com/plans.pdf"))
	assert.False(t, r.CanResolve(dir))

	f, err := r.Fetch(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, "plans.pdf", f.Name)
	assert.Equal(t, []byte("%PDF-1.4"), f.Data)
	assert.Empty(t, f.PublicURL)
}

func TestResolverMissingFile(t *testing.T) {
	_, err := NewResolver(0).Fetch(context.Background(), "file:///definitely/not/here.pdf")
	assert.ErrorIs(t, err, source.ErrNotFound)
}

func TestResolverSizeCap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.png")
	require.NoError(t, os.WriteFile(path, make([]byte, 64), 0o644))

	_, err := NewResolver(10).Fetch(context.Background(), path)
	assert.Error(t, err)
}
