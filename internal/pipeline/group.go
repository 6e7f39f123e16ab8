package pipeline

import (
	"sort"

	"github.com/timmy/planscan/internal/config"
	"github.com/timmy/planscan/internal/domain"
)

// GroupSheets builds the deep-extraction worklist. A page is admitted when its
// type is one of the admitted types with at least MinSheetConfidence, or when
// room labels were seen with at least MinRoomLabelConfidence.
func GroupSheets(classes []domain.PageClassification, policy config.PipelineConfig, ref string) []domain.SheetInfo {
	admit := make(map[domain.SheetType]bool, len(policy.AdmitTypes))
	for _, t := range policy.AdmitTypes {
		admit[domain.ParseSheetType(t)] = true
	}

	seen := make(map[int]bool, len(classes))
	sheets := make([]domain.SheetInfo, 0, len(classes))
	for _, c := range classes {
		if seen[c.PageNumber] {
			continue
		}
		byType := admit[c.Type] && c.Confidence >= policy.MinSheetConfidence
		byLabels := policy.AdmitRoomLabels && c.HasRoomLabels &&
			c.Type != domain.SheetTypeCover && c.Confidence >= policy.MinRoomLabelConfidence
		if !byType && !byLabels {
			continue
		}
		seen[c.PageNumber] = true
		sheets = append(sheets, domain.SheetInfo{
			PageNumber:     c.PageNumber,
			SheetTitle:     c.SheetTitle,
			Level:          c.Level,
			Classification: c.Type,
			Confidence:     c.Confidence,
			Source:         ref,
		})
	}
	sort.Slice(sheets, func(i, j int) bool { return sheets[i].PageNumber < sheets[j].PageNumber })
	return sheets
}
