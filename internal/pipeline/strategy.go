package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/timmy/planscan/internal/domain"
	"github.com/timmy/planscan/internal/logger"
)

// Input is what every extraction strategy sees for one file.
type Input struct {
	Doc      *Document
	Analysis *PDFAnalysis // nil for image uploads

	sheets       []domain.SheetInfo
	sheetsLoaded bool
	loadSheets   func(ctx context.Context) ([]domain.SheetInfo, []string, error)
	warnings     []string
}

// Sheets returns the file's sheet worklist, classifying on first use.
func (in *Input) Sheets(ctx context.Context) ([]domain.SheetInfo, error) {
	if in.sheetsLoaded || in.loadSheets == nil {
		return in.sheets, nil
	}
	sheets, warnings, err := in.loadSheets(ctx)
	if err != nil {
		return nil, err
	}
	in.sheets, in.sheetsLoaded = sheets, true
	in.warnings = append(in.warnings, warnings...)
	return sheets, nil
}

// Strategy is one way of getting rooms out of a file.
type Strategy interface {
	Name() string
	// Extract returns the rooms found, ErrNotApplicable when the strategy has
	// nothing to work with, or another error when the attempt failed.
	Extract(ctx context.Context, in *Input) (*domain.RoomExtraction, error)
}

type strategyFunc struct {
	name string
	fn   func(ctx context.Context, in *Input) (*domain.RoomExtraction, error)
}

// NewStrategy adapts a function to the Strategy interface.
func NewStrategy(name string, fn func(ctx context.Context, in *Input) (*domain.RoomExtraction, error)) Strategy {
	return strategyFunc{name: name, fn: fn}
}

func (s strategyFunc) Name() string { return s.name }

func (s strategyFunc) Extract(ctx context.Context, in *Input) (*domain.RoomExtraction, error) {
	return s.fn(ctx, in)
}

// Chain is an ordered list of strategies; the first non-empty result wins.
type Chain []Strategy

// ChainResult reports the outcome of running a chain over one file.
type ChainResult struct {
	Extraction *domain.RoomExtraction
	// Strategy names the strategy that produced rooms, empty when none did.
	Strategy string
	Attempts []string
	Warnings []string
	// Assumptions and MissingInfo carry the notes of attempts that found no rooms.
	Assumptions []string
	MissingInfo []string
}

// Names lists the strategies in order.
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, s := range c {
		names[i] = s.Name()
	}
	return names
}

// Run tries each strategy in order until one yields rooms. Failures and empty
// results become warnings naming the strategy. Only context cancellation is
// returned as an error.
func (c Chain) Run(ctx context.Context, in *Input, label string) (*ChainResult, error) {
	log := logger.FromContext(ctx)
	res := &ChainResult{}
	for _, s := range c {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sctx := logger.SetStage(ctx, s.Name())
		ext, err := s.Extract(sctx, in)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		switch {
		case errors.Is(err, ErrNotApplicable):
			log.Debugf("Strategy %s not applicable to %s", s.Name(), label)
			continue
		case err != nil:
			res.Attempts = append(res.Attempts, s.Name())
			res.keepNotes(ext)
			log.WithError(err).Warnf("Strategy %s failed for %s", s.Name(), label)
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %s failed: %v", label, s.Name(), err))
			continue
		}

		res.Attempts = append(res.Attempts, s.Name())
		if ext.Empty() {
			res.keepNotes(ext)
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %s found no rooms.", label, s.Name()))
			continue
		}
		res.Extraction = ext
		res.Strategy = s.Name()
		res.Warnings = append(append([]string{}, in.warnings...), res.Warnings...)
		return res, nil
	}

	tried := strings.Join(res.Attempts, ", ")
	if tried == "" {
		tried = "none applicable"
	}
	res.Warnings = append(append([]string{}, in.warnings...), res.Warnings...)
	res.Warnings = append(res.Warnings, fmt.Sprintf("%s: no rooms could be extracted (tried: %s).", label, tried))
	return res, nil
}

func (r *ChainResult) keepNotes(ext *domain.RoomExtraction) {
	if ext == nil {
		return
	}
	r.Warnings = append(r.Warnings, ext.Warnings...)
	r.Assumptions = append(r.Assumptions, ext.Assumptions...)
	r.MissingInfo = append(r.MissingInfo, ext.MissingInfo...)
}
