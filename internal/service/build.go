package service

import (
	"time"

	"github.com/timmy/planscan/internal/config"
	"github.com/timmy/planscan/internal/document"
	"github.com/timmy/planscan/internal/logger"
	"github.com/timmy/planscan/internal/pipeline"
	"github.com/timmy/planscan/internal/source"
	"github.com/timmy/planscan/internal/source/localfs"
	"github.com/timmy/planscan/internal/source/objectstore"
	"github.com/timmy/planscan/internal/source/remote"
	"github.com/timmy/planscan/internal/storage"
)

// NewPipeline wires the extraction pipeline from configuration.
// Parameters:
//   - cfg: application configuration.
//   - store: object storage for upload keys; nil disables key references.
//   - backend: inference backend.
//
// Returns:
//   - *pipeline.Pipeline: ready to run.
func NewPipeline(cfg *config.Config, store storage.ObjectStorage, backend pipeline.Backend) *pipeline.Pipeline {
	maxBytes := cfg.Pipeline.MaxRemoteBytes
	downloadTimeout := cfg.Inference.Timeout
	if downloadTimeout <= 0 {
		downloadTimeout = 60 * time.Second
	}

	// URLs first, then local paths; bare keys fall through to object storage.
	resolvers := []source.Resolver{
		remote.NewResolver(downloadTimeout, maxBytes),
		localfs.NewResolver(maxBytes),
	}
	if store != nil {
		resolvers = append(resolvers, objectstore.NewResolver(store, maxBytes))
	}

	renderer := document.NewRenderer(cfg.Render, cfg.Pipeline.RenderConcurrency)
	if err := renderer.Available(); err != nil {
		logger.GetDefault().WithError(err).Warn("Page renderer unavailable; scanned pages will use the public URL and text strategies")
	}

	return pipeline.New(pipeline.Deps{
		Resolver: source.NewRegistry(resolvers...),
		Reader:   document.NewTextReader(),
		Counter:  document.NewProber(),
		Renderer: renderer,
		Backend:  backend,
	}, cfg.Pipeline, document.ImageOptions{
		MaxEdgePx:   cfg.Render.MaxEdgePx,
		JPEGQuality: cfg.Render.JPEGQuality,
	})
}
