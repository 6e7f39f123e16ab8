package domain

import "strings"

// DocumentKind is the container type of an acquired file.
type DocumentKind string

const (
	DocumentKindPDF   DocumentKind = "pdf"
	DocumentKindImage DocumentKind = "image"
)

// DocumentType is the text-density signature of a PDF.
type DocumentType string

const (
	DocumentTypeVector  DocumentType = "vector"
	DocumentTypeMixed   DocumentType = "mixed"
	DocumentTypeScanned DocumentType = "scanned"
	// DocumentTypeImage marks direct image uploads, which skip PDF analysis.
	DocumentTypeImage DocumentType = "image"
)

// ExtractedPage is the text of one PDF page. Immutable once produced.
type ExtractedPage struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
	HasText    bool   `json:"has_text"`
}

// SheetType is the closed set of page classifications.
type SheetType string

const (
	SheetTypeFloorPlan SheetType = "floor_plan"
	SheetTypeSchedule  SheetType = "schedule"
	SheetTypeNotes     SheetType = "notes"
	SheetTypeElevation SheetType = "elevation"
	SheetTypeCover     SheetType = "cover"
	SheetTypeOther     SheetType = "other"
)

var sheetTypeAliases = map[string]SheetType{
	"floor_plan":  SheetTypeFloorPlan,
	"floorplan":   SheetTypeFloorPlan,
	"plan":        SheetTypeFloorPlan,
	"schedule":    SheetTypeSchedule,
	"schedules":   SheetTypeSchedule,
	"notes":       SheetTypeNotes,
	"note":        SheetTypeNotes,
	"general":     SheetTypeNotes,
	"elevation":   SheetTypeElevation,
	"elevations":  SheetTypeElevation,
	"section":     SheetTypeElevation,
	"cover":       SheetTypeCover,
	"cover_sheet": SheetTypeCover,
	"title":       SheetTypeCover,
	"other":       SheetTypeOther,
}

// ParseSheetType coerces a loosely typed label into the closed SheetType set.
// Unknown labels become SheetTypeOther.
func ParseSheetType(label string) SheetType {
	key := strings.ToLower(strings.TrimSpace(label))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if t, ok := sheetTypeAliases[key]; ok {
		return t
	}
	if strings.Contains(key, "floor") && strings.Contains(key, "plan") {
		return SheetTypeFloorPlan
	}
	return SheetTypeOther
}

// PageClassification is the backend's verdict for one page, enriched with
// a detected level and sheet title.
type PageClassification struct {
	PageNumber    int       `json:"page_number"`
	Type          SheetType `json:"type"`
	Confidence    int       `json:"confidence"`
	HasRoomLabels bool      `json:"has_room_labels"`
	Reason        string    `json:"reason,omitempty"`
	Level         string    `json:"level,omitempty"`
	SheetTitle    string    `json:"sheet_title,omitempty"`
}

// SheetInfo is a classified page admitted for deep extraction.
type SheetInfo struct {
	PageNumber     int       `json:"page_number"`
	SheetTitle     string    `json:"sheet_title,omitempty"`
	Level          string    `json:"level,omitempty"`
	Classification SheetType `json:"classification"`
	Confidence     int       `json:"confidence"`
	// Source is the file reference the sheet came from.
	Source string `json:"source,omitempty"`
}

// PageImage is a rendered page or uploaded image submitted for vision extraction.
// Either Data or URL is set.
type PageImage struct {
	PageNumber int    `json:"page_number"`
	Data       []byte `json:"-"`
	MIMEType   string `json:"mime_type"`
	URL        string `json:"url,omitempty"`
}

// ClampConfidence bounds c to [0,100].
func ClampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
