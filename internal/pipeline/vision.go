package pipeline

import (
	"context"
	"fmt"

	"github.com/timmy/planscan/internal/document"
	"github.com/timmy/planscan/internal/domain"
	"github.com/timmy/planscan/internal/logger"
)

// SelectScannedPages picks up to limit pages of a scanned document for vision.
// The cover (page 1) is skipped unless it is the only page, and the window is
// biased toward the early-middle of the set where plan sheets usually sit.
func SelectScannedPages(total, limit int) []int {
	if total <= 0 || limit <= 0 {
		return nil
	}
	if total == 1 {
		return []int{1}
	}
	first := 2
	available := total - 1
	if available <= limit {
		return pageRange(first, total)
	}
	start := first + (available-limit)/3
	return pageRange(start, start+limit-1)
}

// SelectTextlessPages returns up to limit pages without extractable text, in page order.
func SelectTextlessPages(pages []domain.ExtractedPage, limit int) []int {
	var out []int
	for _, p := range pages {
		if limit > 0 && len(out) >= limit {
			break
		}
		if !p.HasText {
			out = append(out, p.PageNumber)
		}
	}
	return out
}

func pageRange(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for p := from; p <= to; p++ {
		out = append(out, p)
	}
	return out
}

// renderVision renders the given pages locally and submits them to vision.
func renderVision(ctx context.Context, renderer PageRenderer, backend Backend, data []byte, pages []int) (*domain.RoomExtraction, error) {
	if renderer == nil {
		return nil, fmt.Errorf("no page renderer configured")
	}
	if len(pages) == 0 {
		return nil, ErrNotApplicable
	}
	images, err := renderer.RenderPages(ctx, data, pages)
	if err != nil {
		return nil, fmt.Errorf("local rendering failed: %w", err)
	}
	if len(images) < len(pages) {
		logger.FromContext(ctx).Warnf("Rendered %d of %d requested pages", len(images), len(pages))
	}
	ext, err := backend.ExtractRoomsFromImages(ctx, images)
	if err != nil {
		return nil, fmt.Errorf("vision extraction failed: %w", err)
	}
	out := &domain.RoomExtraction{}
	mergeExtraction(out, ext, "", 0)
	return out, nil
}

// imageVision submits a direct image upload, downscaled when it is too large.
func imageVision(ctx context.Context, backend Backend, doc *Document, opts document.ImageOptions) (*domain.RoomExtraction, error) {
	data, mimeType, err := document.PrepareImage(doc.Data, doc.MIMEType, opts)
	if err != nil {
		// the backend may still read formats the local decoders reject
		logger.FromContext(ctx).WithError(err).Warn("Image preparation failed, submitting original bytes")
		data, mimeType = doc.Data, doc.MIMEType
	}
	ext, err := backend.ExtractRoomsFromImages(ctx, []domain.PageImage{{Data: data, MIMEType: mimeType}})
	if err != nil {
		return nil, fmt.Errorf("vision extraction failed: %w", err)
	}
	out := &domain.RoomExtraction{}
	mergeExtraction(out, ext, "", 0)
	return out, nil
}

// urlVision submits the file's public URL to vision.
func urlVision(ctx context.Context, backend Backend, doc *Document) (*domain.RoomExtraction, error) {
	if doc.PublicURL == "" {
		return nil, ErrNotApplicable
	}
	ext, err := backend.ExtractRoomsFromImages(ctx, []domain.PageImage{{URL: doc.PublicURL, MIMEType: doc.MIMEType}})
	if err != nil {
		return nil, fmt.Errorf("public URL vision failed: %w", err)
	}
	out := &domain.RoomExtraction{}
	mergeExtraction(out, ext, "", 0)
	return out, nil
}
