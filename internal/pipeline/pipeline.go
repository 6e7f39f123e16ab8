package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/planscan/internal/config"
	"github.com/timmy/planscan/internal/document"
	"github.com/timmy/planscan/internal/domain"
	"github.com/timmy/planscan/internal/logger"
	"github.com/timmy/planscan/internal/source"
)

// NoRoomsWarning is recorded when the sentinel room stands in for an empty extraction.
const NoRoomsWarning = "No rooms were detected in the uploaded documents; a general scope entry was added for review."

// Strategy names.
const (
	StrategyText           = "text"
	StrategyVisionRender   = "vision-render"
	StrategyVisionURL      = "vision-public-url"
	StrategyVisionTextless = "vision-textless-pages"
	StrategyVisionImage    = "vision-image"
)

// Deps are the capabilities a Pipeline is built from.
type Deps struct {
	Resolver FileResolver
	Reader   PageReader
	Counter  PageCounter
	Renderer PageRenderer
	Backend  Backend
}

// Pipeline turns file references into a structured, reviewable room and
// line-item scaffold. It keeps no state between runs.
type Pipeline struct {
	deps     Deps
	policy   config.PipelineConfig
	imageOpt document.ImageOptions
}

// Outcome is the product of one run.
type Outcome struct {
	Result *domain.ParseResult
	Stats  Stats
}

// New creates a Pipeline. Zero policy values fall back to the defaults.
// Parameters:
//   - deps: resolver, PDF utilities, renderer and inference backend.
//   - policy: thresholds and caps.
//   - imageOpt: bounds for direct image uploads sent to vision.
//
// Returns:
//   - *Pipeline: ready to Run.
func New(deps Deps, policy config.PipelineConfig, imageOpt document.ImageOptions) *Pipeline {
	return &Pipeline{deps: deps, policy: withDefaults(policy), imageOpt: imageOpt}
}

// Policy returns the effective policy.
func (p *Pipeline) Policy() config.PipelineConfig {
	return p.policy
}

// Run processes every reference in order and assembles the result. Per-file
// failures degrade to warnings; only context cancellation is returned as an
// error. The assembled result always contains at least one room.
func (p *Pipeline) Run(ctx context.Context, refs []string) (*Outcome, error) {
	start := time.Now()
	ctx = logger.SetComponent(ctx, "pipeline")
	counter := &callCounter{}
	backend := &meteredBackend{inner: p.deps.Backend, counter: counter}

	acc := NewAccumulator()
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fr, err := p.processFile(logger.SetFileRef(ctx, ref), ref, backend)
		if err != nil {
			return nil, err
		}
		acc.Merge(fr)
	}

	result, err := p.assemble(ctx, acc, backend)
	if err != nil {
		return nil, err
	}

	acc.Stats.BackendCalls = int(counter.calls.Load())
	acc.Stats.BackendUnavailable = int(counter.unavailable.Load())
	acc.Stats.VisionInvocations = int(counter.vision.Load())
	result.Summary.VisionInvocations = acc.Stats.VisionInvocations
	result.Summary.ProcessingMs = time.Since(start).Milliseconds()

	logger.With(logger.Fields{
		"rooms":              result.Summary.TotalRooms,
		"sheets_detected":    result.Summary.SheetsDetected,
		"vision_invocations": result.Summary.VisionInvocations,
		"files_processed":    result.Summary.FilesProcessed,
		"files_skipped":      result.Summary.FilesSkipped,
	}).WithDuration(result.Summary.ProcessingMs).Info(ctx, "Pipeline run finished")

	return &Outcome{Result: result, Stats: acc.Stats}, nil
}

// processFile acquires and extracts one file. Its result never depends on other files.
func (p *Pipeline) processFile(ctx context.Context, ref string, backend Backend) (*FileResult, error) {
	log := logger.FromContext(ctx)
	fr := &FileResult{Ref: ref}

	doc, err := NewAcquirer(p.deps.Resolver).Acquire(logger.SetStage(ctx, "acquire"), ref)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		fr.Skipped = true
		switch {
		case errors.Is(err, ErrUnsupportedKind):
			fr.Rejected = true
			fr.Warn("Skipped %s: unsupported file type (expected PDF, JPG, PNG, GIF or WEBP).", ref)
		case errors.Is(err, source.ErrUnavailable):
			fr.Unavailable = true
			fr.Warn("Skipped %s: file storage could not be reached.", ref)
		case errors.Is(err, source.ErrNotFound):
			fr.Warn("Skipped %s: file not found.", ref)
		default:
			fr.Warn("Skipped %s: %v", ref, err)
		}
		log.WithError(err).Warn("File skipped")
		return fr, nil
	}

	in := &Input{Doc: doc}
	var chain Chain
	switch doc.Kind {
	case domain.DocumentKindImage:
		fr.DocumentType = domain.DocumentTypeImage
		chain = p.imageChain(backend)
	default:
		analysis, warnings, err := NewAnalyzer(p.deps.Reader, p.deps.Counter, p.policy).Analyze(logger.SetStage(ctx, "analyze"), doc.Data)
		if err != nil {
			return nil, err
		}
		fr.Warnings = append(fr.Warnings, warnings...)
		fr.DocumentType = analysis.Type
		in.Analysis = analysis
		in.loadSheets = p.sheetLoader(backend, analysis, ref)

		if analysis.Type != domain.DocumentTypeScanned {
			if _, err := in.Sheets(logger.SetStage(ctx, "classify")); err != nil {
				return nil, err
			}
		}
		chain = p.pdfChain(analysis.Type, backend)
	}

	log.WithFields(logger.Fields{
		"document_type": fr.DocumentType,
		"strategies":    chain.Names(),
	}).Debug("Extracting rooms")

	res, err := chain.Run(ctx, in, doc.Name)
	if err != nil {
		return nil, err
	}
	fr.Sheets = in.sheets
	fr.Strategy = res.Strategy
	fr.Warnings = append(fr.Warnings, res.Warnings...)
	fr.Assumptions = append(fr.Assumptions, res.Assumptions...)
	fr.MissingInfo = append(fr.MissingInfo, res.MissingInfo...)
	fr.absorb(res.Extraction)
	for i := range fr.Rooms {
		fr.Rooms[i].Source = ref
	}
	return fr, nil
}

func (p *Pipeline) sheetLoader(backend Backend, analysis *PDFAnalysis, ref string) func(context.Context) ([]domain.SheetInfo, []string, error) {
	return func(ctx context.Context) ([]domain.SheetInfo, []string, error) {
		classes, warnings, err := NewClassifier(backend, p.policy).Classify(ctx, analysis)
		if err != nil {
			return nil, nil, err
		}
		sheets := GroupSheets(classes, p.policy, ref)
		logger.FromContext(ctx).Debugf("Classified %d pages, admitted %d sheets", len(classes), len(sheets))
		return sheets, warnings, nil
	}
}

// pdfChain returns the ordered strategies for a PDF of the given type.
func (p *Pipeline) pdfChain(docType domain.DocumentType, backend Backend) Chain {
	text := NewStrategy(StrategyText, func(ctx context.Context, in *Input) (*domain.RoomExtraction, error) {
		if in.Analysis.PagesWithText == 0 {
			return nil, ErrNotApplicable
		}
		sheets, err := in.Sheets(ctx)
		if err != nil {
			return nil, err
		}
		extractor := NewRoomExtractor(backend, p.policy)
		if len(sheets) == 0 {
			return extractor.ExtractPrefix(ctx, in.Analysis, in.Doc.Ref)
		}
		return extractor.ExtractSheets(ctx, sheets, in.Analysis)
	})

	switch docType {
	case domain.DocumentTypeScanned:
		return Chain{
			NewStrategy(StrategyVisionRender, func(ctx context.Context, in *Input) (*domain.RoomExtraction, error) {
				pages := SelectScannedPages(in.Analysis.TotalPages, p.policy.MaxScannedVisionPages)
				return renderVision(ctx, p.deps.Renderer, backend, in.Doc.Data, pages)
			}),
			NewStrategy(StrategyVisionURL, func(ctx context.Context, in *Input) (*domain.RoomExtraction, error) {
				return urlVision(ctx, backend, in.Doc)
			}),
			text,
		}
	case domain.DocumentTypeMixed:
		return Chain{
			text,
			NewStrategy(StrategyVisionTextless, func(ctx context.Context, in *Input) (*domain.RoomExtraction, error) {
				pages := SelectTextlessPages(in.Analysis.Pages, p.policy.MaxMixedVisionPages)
				return renderVision(ctx, p.deps.Renderer, backend, in.Doc.Data, pages)
			}),
		}
	default:
		return Chain{text}
	}
}

// imageChain returns the strategies for a direct image upload.
func (p *Pipeline) imageChain(backend Backend) Chain {
	return Chain{
		NewStrategy(StrategyVisionImage, func(ctx context.Context, in *Input) (*domain.RoomExtraction, error) {
			return imageVision(ctx, backend, in.Doc, p.imageOpt)
		}),
	}
}

// assemble deduplicates, scaffolds and summarizes the accumulated output.
func (p *Pipeline) assemble(ctx context.Context, acc *Accumulator, backend Backend) (*domain.ParseResult, error) {
	ctx = logger.SetStage(ctx, "assemble")
	rooms := Dedup(acc.Rooms)

	var items []domain.LineItemScaffold
	if len(rooms) == 0 {
		rooms = []domain.ExtractedRoom{domain.SentinelRoom()}
		acc.Warn(NoRoomsWarning)
		items = PlaceholderItems(rooms)
	} else {
		var warnings []string
		var err error
		items, warnings, err = NewScaffolder(backend).Scaffold(ctx, rooms)
		if err != nil {
			return nil, err
		}
		acc.Warnings = appendUnique(acc.Warnings, warnings...)
	}

	byLevel, byType := Summarize(rooms)
	sheets := acc.Sheets
	if sheets == nil {
		sheets = []domain.SheetInfo{}
	}
	return &domain.ParseResult{
		Rooms:       rooms,
		LineItems:   items,
		Sheets:      sheets,
		Assumptions: orEmpty(acc.Assumptions),
		Warnings:    orEmpty(acc.Warnings),
		MissingInfo: orEmpty(acc.MissingInfo),
		Summary: domain.ParseSummary{
			TotalRooms:     len(rooms),
			RoomsByLevel:   byLevel,
			RoomsByType:    byType,
			SheetsDetected: acc.Stats.SheetsDetected,
			DocumentTypes:  acc.Stats.DocumentTypes,
			FilesProcessed: acc.Stats.FilesProcessed,
			FilesSkipped:   acc.Stats.FilesSkipped,
		},
	}, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// withDefaults fills unset policy values from config.DefaultPipeline.
func withDefaults(p config.PipelineConfig) config.PipelineConfig {
	d := config.DefaultPipeline()
	if p.ScannedMaxRatio <= 0 {
		p.ScannedMaxRatio = d.ScannedMaxRatio
	}
	if p.VectorMinRatio <= 0 || p.VectorMinRatio < p.ScannedMaxRatio {
		p.VectorMinRatio = max(d.VectorMinRatio, p.ScannedMaxRatio)
	}
	if p.SampleThreshold <= 0 {
		p.SampleThreshold = d.SampleThreshold
	}
	if p.SampleCap <= 0 {
		p.SampleCap = d.SampleCap
	}
	if p.ClassifyBatchSize <= 0 {
		p.ClassifyBatchSize = d.ClassifyBatchSize
	}
	if p.ClassifyConcurrency <= 0 {
		p.ClassifyConcurrency = d.ClassifyConcurrency
	}
	if len(p.AdmitTypes) == 0 {
		p.AdmitTypes = d.AdmitTypes
	}
	if p.LegacyPrefixPages <= 0 {
		p.LegacyPrefixPages = d.LegacyPrefixPages
	}
	if p.MaxScannedVisionPages <= 0 {
		p.MaxScannedVisionPages = d.MaxScannedVisionPages
	}
	if p.MaxMixedVisionPages <= 0 {
		p.MaxMixedVisionPages = d.MaxMixedVisionPages
	}
	if p.FallbackPageCount <= 0 {
		p.FallbackPageCount = d.FallbackPageCount
	}
	return p
}

// meteredBackend counts calls made through it.
type meteredBackend struct {
	inner   Backend
	counter *callCounter
}

func (m *meteredBackend) record(err error) {
	m.counter.calls.Add(1)
	if errors.Is(err, ErrBackendUnavailable) {
		m.counter.unavailable.Add(1)
	}
}

func (m *meteredBackend) Classify(ctx context.Context, pages []domain.ExtractedPage) ([]domain.PageClassification, error) {
	out, err := m.inner.Classify(ctx, pages)
	m.record(err)
	return out, err
}

func (m *meteredBackend) ExtractRooms(ctx context.Context, sheet domain.SheetInfo, text string) (*domain.RoomExtraction, error) {
	out, err := m.inner.ExtractRooms(ctx, sheet, text)
	m.record(err)
	return out, err
}

func (m *meteredBackend) ExtractRoomsFromImages(ctx context.Context, images []domain.PageImage) (*domain.RoomExtraction, error) {
	m.counter.vision.Add(1)
	out, err := m.inner.ExtractRoomsFromImages(ctx, images)
	m.record(err)
	return out, err
}

func (m *meteredBackend) ScaffoldLineItems(ctx context.Context, rooms []domain.ExtractedRoom) ([]domain.LineItemScaffold, error) {
	out, err := m.inner.ScaffoldLineItems(ctx, rooms)
	m.record(err)
	return out, err
}

// String describes the stats for logs.
func (s Stats) String() string {
	return fmt.Sprintf("processed=%d skipped=%d sheets=%d vision=%d backend_calls=%d backend_unavailable=%d",
		s.FilesProcessed, s.FilesSkipped, s.SheetsDetected, s.VisionInvocations, s.BackendCalls, s.BackendUnavailable)
}
