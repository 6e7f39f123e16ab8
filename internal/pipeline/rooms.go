package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/timmy/planscan/internal/config"
	"github.com/timmy/planscan/internal/domain"
	"github.com/timmy/planscan/internal/logger"
)

// NoSheetsWarning is recorded when the legacy prefix extraction is used.
const NoSheetsWarning = "Floor-plan pages were not confidently identified; rooms were read from the first pages of the document."

// RoomExtractor runs text-path room extraction over a sheet worklist.
type RoomExtractor struct {
	backend Backend
	policy  config.PipelineConfig
}

// NewRoomExtractor creates a RoomExtractor.
func NewRoomExtractor(backend Backend, policy config.PipelineConfig) *RoomExtractor {
	return &RoomExtractor{backend: backend, policy: policy}
}

// ExtractSheets extracts rooms sheet by sheet. Sheets whose extraction fails
// contribute a warning and no rooms.
func (e *RoomExtractor) ExtractSheets(ctx context.Context, sheets []domain.SheetInfo, analysis *PDFAnalysis) (*domain.RoomExtraction, error) {
	out := &domain.RoomExtraction{}
	log := logger.FromContext(ctx)
	for _, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := analysis.Page(sheet.PageNumber)
		if page == nil || strings.TrimSpace(page.Text) == "" {
			out.Warnings = append(out.Warnings, fmt.Sprintf("Page %d has no extractable text for room extraction.", sheet.PageNumber))
			continue
		}

		ext, err := e.backend.ExtractRooms(ctx, sheet, page.Text)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.WithError(err).WithField(logger.FieldPage, sheet.PageNumber).Warn("Room extraction failed for sheet")
			out.Warnings = append(out.Warnings, fmt.Sprintf("Room extraction failed for page %d: %v", sheet.PageNumber, err))
			continue
		}
		mergeExtraction(out, ext, sheet.Level, sheet.PageNumber)
	}
	return out, nil
}

// ExtractPrefix is the last-resort path when no sheet was admitted: the text
// of the first LegacyPrefixPages text pages is submitted as one sheet.
func (e *RoomExtractor) ExtractPrefix(ctx context.Context, analysis *PDFAnalysis, ref string) (*domain.RoomExtraction, error) {
	textPages := analysis.TextPages()
	limit := e.policy.LegacyPrefixPages
	if limit > 0 && len(textPages) > limit {
		textPages = textPages[:limit]
	}
	if len(textPages) == 0 {
		return nil, ErrNotApplicable
	}

	var b strings.Builder
	for _, p := range textPages {
		fmt.Fprintf(&b, "--- page %d ---\n%s\n", p.PageNumber, p.Text)
	}
	sheet := domain.SheetInfo{
		PageNumber:     textPages[0].PageNumber,
		Level:          DetectLevel(b.String()),
		Classification: domain.SheetTypeOther,
		Source:         ref,
	}

	ext, err := e.backend.ExtractRooms(ctx, sheet, b.String())
	if err != nil {
		return nil, err
	}
	out := &domain.RoomExtraction{Warnings: []string{NoSheetsWarning}}
	mergeExtraction(out, ext, sheet.Level, 0)
	return out, nil
}

// mergeExtraction normalizes rooms from one backend call and appends them to dst.
// Rooms without a level inherit level; nameless rooms are dropped with a warning.
func mergeExtraction(dst, src *domain.RoomExtraction, level string, page int) {
	if src == nil {
		return
	}
	dropped := 0
	for _, r := range src.Rooms {
		r.Normalize()
		if r.Name == "" {
			dropped++
			continue
		}
		if r.Level == "" {
			r.Level = level
		}
		if page > 0 && r.SourcePage == 0 {
			r.SourcePage = page
		}
		dst.Rooms = append(dst.Rooms, r)
	}
	if dropped > 0 {
		where := "the submitted pages"
		if page > 0 {
			where = fmt.Sprintf("page %d", page)
		}
		dst.Warnings = append(dst.Warnings, fmt.Sprintf("Ignored %d unnamed room(s) on %s.", dropped, where))
	}
	dst.Assumptions = append(dst.Assumptions, src.Assumptions...)
	dst.Warnings = append(dst.Warnings, src.Warnings...)
	dst.MissingInfo = append(dst.MissingInfo, src.MissingInfo...)
}
