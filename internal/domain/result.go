package domain

// ParseSummary carries observability counters for one parse.
type ParseSummary struct {
	TotalRooms        int                     `json:"total_rooms"`
	RoomsByLevel      map[string]int          `json:"rooms_by_level"`
	RoomsByType       map[RoomType]int        `json:"rooms_by_type"`
	SheetsDetected    int                     `json:"sheets_detected"`
	DocumentTypes     map[string]DocumentType `json:"document_types"`
	VisionInvocations int                     `json:"vision_invocations"`
	FilesProcessed    int                     `json:"files_processed"`
	FilesSkipped      int                     `json:"files_skipped"`
	ProcessingMs      int64                   `json:"processing_ms"`
}

// ParseResult is the structured payload returned to callers and stored on the job.
// Rooms is never empty once assembled.
type ParseResult struct {
	Rooms       []ExtractedRoom    `json:"rooms"`
	LineItems   []LineItemScaffold `json:"line_items"`
	Sheets      []SheetInfo        `json:"sheets"`
	Assumptions []string           `json:"assumptions"`
	Warnings    []string           `json:"warnings"`
	MissingInfo []string           `json:"missing_info"`
	Summary     ParseSummary       `json:"summary"`
}

// EmptyResult returns a well-formed payload containing only the sentinel room.
func EmptyResult() *ParseResult {
	room := SentinelRoom()
	return &ParseResult{
		Rooms:       []ExtractedRoom{room},
		LineItems:   []LineItemScaffold{ScopeReviewItem(room)},
		Sheets:      []SheetInfo{},
		Assumptions: []string{},
		Warnings:    []string{},
		MissingInfo: []string{},
		Summary: ParseSummary{
			TotalRooms:    1,
			RoomsByLevel:  map[string]int{DefaultLevel: 1},
			RoomsByType:   map[RoomType]int{RoomTypeOther: 1},
			DocumentTypes: map[string]DocumentType{},
		},
	}
}
