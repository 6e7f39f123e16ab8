package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/planscan/internal/source"
)

func TestResolverFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/plans/floor.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("png-bytes"))
		case "/broken":
			w.WriteHeader(http.StatusBadGateway)
		case "/big":
			_, _ = w.Write(make([]byte, 128))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r := NewResolver(5*time.Second, 64)
	assert.True(t, r.CanResolve(srv.URL+"/plans/floor.png"))
	assert.False(t, r.CanResolve("uploads/floor.png"))

	f, err := r.Fetch(context.Background(), srv.URL+"/plans/floor.png?sig=1")
	require.NoError(t, err)
	assert.Equal(t, "floor.png", f.Name)
	assert.Equal(t, "image/png", f.ContentType)
	assert.Equal(t, []byte("png-bytes"), f.Data)
	assert.Equal(t, srv.URL+"/plans/floor.png?sig=1", f.PublicURL)

	_, err = r.Fetch(context.Background(), srv.URL+"/missing.pdf")
	assert.ErrorIs(t, err, source.ErrNotFound)

	_, err = r.Fetch(context.Background(), srv.URL+"/broken")
	assert.ErrorIs(t, err, source.ErrUnavailable)

	_, err = r.Fetch(context.Background(), srv.URL+"/big")
	assert.Error(t, err)
}
