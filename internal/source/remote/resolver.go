package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/planscan/internal/source"
)

// Resolver downloads files referenced by http(s) URL.
type Resolver struct {
	client   *resty.Client
	maxBytes int64
}

// NewResolver creates a remote resolver with a per-request timeout and a size cap.
func NewResolver(timeout time.Duration, maxBytes int64) *Resolver {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	return &Resolver{client: client, maxBytes: maxBytes}
}

// Name returns the resolver identifier.
func (r *Resolver) Name() string {
	return "remote"
}

// CanResolve accepts http and https URLs.
func (r *Resolver) CanResolve(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Fetch downloads the URL. The URL itself is the file's public URL.
func (r *Resolver) Fetch(ctx context.Context, ref string) (*source.File, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(ref)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("get %s: %v: %w", ref, err, source.ErrUnavailable)
	}
	body := resp.RawBody()
	defer body.Close()

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", ref, source.ErrNotFound)
	case resp.StatusCode() >= 500:
		return nil, fmt.Errorf("get %s: status %d: %w", ref, resp.StatusCode(), source.ErrUnavailable)
	case resp.StatusCode() >= 300:
		return nil, fmt.Errorf("get %s: status %d", ref, resp.StatusCode())
	}

	reader := io.Reader(body)
	if r.maxBytes > 0 {
		reader = io.LimitReader(body, r.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	if r.maxBytes > 0 && int64(len(data)) > r.maxBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", ref, r.maxBytes)
	}

	return &source.File{
		Ref:         ref,
		Name:        nameOf(ref),
		ContentType: resp.Header().Get("Content-Type"),
		Data:        data,
		PublicURL:   ref,
	}, nil
}

func nameOf(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return path.Base(u.Path)
}
