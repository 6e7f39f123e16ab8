package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/timmy/planscan/internal/config"
	"github.com/timmy/planscan/internal/domain"
	"github.com/timmy/planscan/internal/logger"
)

// Classifier samples pages, classifies them in bounded batches and enriches the results.
type Classifier struct {
	backend Backend
	policy  config.PipelineConfig
}

// NewClassifier creates a Classifier.
func NewClassifier(backend Backend, policy config.PipelineConfig) *Classifier {
	return &Classifier{backend: backend, policy: policy}
}

// Classify classifies the text-bearing pages of a PDF. A failed batch is
// reported as a warning and its pages are left unclassified.
func (c *Classifier) Classify(ctx context.Context, analysis *PDFAnalysis) ([]domain.PageClassification, []string, error) {
	candidates := SamplePages(analysis.TextPages(), c.policy.SampleThreshold, c.policy.SampleCap)
	if len(candidates) == 0 {
		return nil, nil, nil
	}
	log := logger.FromContext(ctx)
	if len(candidates) < analysis.PagesWithText {
		log.Debugf("Sampled %d of %d text pages for classification", len(candidates), analysis.PagesWithText)
	}

	batches := chunk(candidates, c.policy.ClassifyBatchSize)
	var (
		mu       sync.Mutex
		results  []domain.PageClassification
		warnings []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, c.policy.ClassifyConcurrency))
	for _, batch := range batches {
		batch := batch
		g.Go(func() error {
			out, err := c.classifyBatch(gctx, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				first, last := batch[0].PageNumber, batch[len(batch)-1].PageNumber
				log.WithError(err).Warnf("Classification failed for pages %d-%d", first, last)
				warnings = append(warnings, fmt.Sprintf("Could not classify pages %d-%d: %v", first, last, err))
				return nil
			}
			results = append(results, out...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].PageNumber < results[j].PageNumber })
	for i := range results {
		results[i].Confidence = domain.ClampConfidence(results[i].Confidence)
	}
	enriched := Enrich(results, func(n int) string {
		if p := analysis.Page(n); p != nil {
			return p.Text
		}
		return ""
	})
	sort.Strings(warnings)
	return enriched, warnings, nil
}

// classifyBatch calls the backend for one batch. A panic becomes the batch's error.
func (c *Classifier) classifyBatch(ctx context.Context, batch []domain.ExtractedPage) (out []domain.PageClassification, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, fmt.Errorf("classification panicked: %v", rec)
		}
	}()
	return c.backend.Classify(ctx, batch)
}

func chunk(pages []domain.ExtractedPage, size int) [][]domain.ExtractedPage {
	if size <= 0 {
		size = len(pages)
	}
	var out [][]domain.ExtractedPage
	for start := 0; start < len(pages); start += size {
		end := start + size
		if end > len(pages) {
			end = len(pages)
		}
		out = append(out, pages[start:end])
	}
	return out
}
