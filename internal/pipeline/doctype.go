package pipeline

import (
	"context"

	"github.com/timmy/planscan/internal/config"
	"github.com/timmy/planscan/internal/domain"
	"github.com/timmy/planscan/internal/logger"
)

// PDFAnalysis is the page extractor's view of one PDF.
type PDFAnalysis struct {
	Pages         []domain.ExtractedPage
	TotalPages    int
	PagesWithText int
	TextRatio     float64
	Type          domain.DocumentType
	// PageCountSource records where TotalPages came from: text, probe or assumed.
	PageCountSource string
}

// Page returns the page with the given number, or nil.
func (a *PDFAnalysis) Page(n int) *domain.ExtractedPage {
	if n < 1 || n > len(a.Pages) {
		return nil
	}
	return &a.Pages[n-1]
}

// TextPages returns the pages that carry text, in page order.
func (a *PDFAnalysis) TextPages() []domain.ExtractedPage {
	out := make([]domain.ExtractedPage, 0, a.PagesWithText)
	for _, p := range a.Pages {
		if p.HasText {
			out = append(out, p)
		}
	}
	return out
}

// ClassifyDocument maps a text ratio to a document type. The mapping is
// monotonic: scanned below scannedMax, vector at or above vectorMin, mixed between.
func ClassifyDocument(textRatio, scannedMax, vectorMin float64) domain.DocumentType {
	switch {
	case textRatio < scannedMax:
		return domain.DocumentTypeScanned
	case textRatio >= vectorMin:
		return domain.DocumentTypeVector
	default:
		return domain.DocumentTypeMixed
	}
}

// Analyzer extracts page text and decides the document type.
type Analyzer struct {
	reader  PageReader
	counter PageCounter
	policy  config.PipelineConfig
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(reader PageReader, counter PageCounter, policy config.PipelineConfig) *Analyzer {
	return &Analyzer{reader: reader, counter: counter, policy: policy}
}

// Analyze always yields a positive page count. When text extraction produces
// nothing the page count is probed, and when probing fails too the configured
// fallback count is assumed. Degradations are returned as warnings.
func (a *Analyzer) Analyze(ctx context.Context, data []byte) (*PDFAnalysis, []string, error) {
	log := logger.FromContext(ctx)
	var warnings []string

	pages, err := a.reader.ExtractPages(ctx, data)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		log.WithError(err).Warn("PDF text extraction failed")
		warnings = append(warnings, "Text extraction failed: "+err.Error())
		pages = nil
	}

	out := &PDFAnalysis{Pages: pages, TotalPages: len(pages), PageCountSource: "text"}
	if len(pages) == 0 {
		n, perr := 0, error(nil)
		if a.counter != nil {
			n, perr = a.counter.PageCount(data)
		}
		switch {
		case perr == nil && n > 0:
			out.TotalPages = n
			out.PageCountSource = "probe"
		default:
			out.TotalPages = a.policy.FallbackPageCount
			out.PageCountSource = "assumed"
			if perr != nil {
				log.WithError(perr).Warn("PDF page count probe failed")
			}
			warnings = append(warnings, "Could not determine the page count; assuming the document has a few pages.")
		}
		out.Pages = make([]domain.ExtractedPage, out.TotalPages)
		for i := range out.Pages {
			out.Pages[i] = domain.ExtractedPage{PageNumber: i + 1}
		}
	}

	for _, p := range out.Pages {
		if p.HasText {
			out.PagesWithText++
		}
	}
	out.TextRatio = float64(out.PagesWithText) / float64(out.TotalPages)
	out.Type = ClassifyDocument(out.TextRatio, a.policy.ScannedMaxRatio, a.policy.VectorMinRatio)

	log.WithFields(logger.Fields{
		"total_pages":       out.TotalPages,
		"pages_with_text":   out.PagesWithText,
		"text_ratio":        out.TextRatio,
		"document_type":     out.Type,
		"page_count_source": out.PageCountSource,
	}).Debug("PDF analyzed")
	return out, warnings, nil
}
