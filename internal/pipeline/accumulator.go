package pipeline

import (
	"fmt"
	"sync/atomic"

	"github.com/timmy/planscan/internal/domain"
)

// Stats are the counters one run reports.
type Stats struct {
	SheetsDetected    int
	VisionInvocations int
	DocumentTypes     map[string]domain.DocumentType
	FilesProcessed    int
	FilesSkipped      int
	// FilesUnavailable counts files whose store could not be reached.
	FilesUnavailable int
	// FilesRejected counts files of an unsupported kind.
	FilesRejected      int
	BackendCalls       int
	BackendUnavailable int
}

// FileResult is the contribution of one file. It is built in isolation and
// merged into the run's Accumulator once the file is done.
type FileResult struct {
	Ref          string
	DocumentType domain.DocumentType
	Rooms        []domain.ExtractedRoom
	Sheets       []domain.SheetInfo
	Assumptions  []string
	Warnings     []string
	MissingInfo  []string
	Skipped      bool
	Unavailable  bool
	Rejected     bool
	Strategy     string
}

// Warn records a warning on the file.
func (f *FileResult) Warn(format string, args ...interface{}) {
	f.Warnings = append(f.Warnings, fmt.Sprintf(format, args...))
}

// absorb adds an extraction's rooms and annotations.
func (f *FileResult) absorb(ext *domain.RoomExtraction) {
	if ext == nil {
		return
	}
	f.Rooms = append(f.Rooms, ext.Rooms...)
	f.Assumptions = append(f.Assumptions, ext.Assumptions...)
	f.Warnings = append(f.Warnings, ext.Warnings...)
	f.MissingInfo = append(f.MissingInfo, ext.MissingInfo...)
}

// Accumulator collects the merged output of every file in a run.
type Accumulator struct {
	Rooms       []domain.ExtractedRoom
	Sheets      []domain.SheetInfo
	Assumptions []string
	Warnings    []string
	MissingInfo []string
	Stats       Stats
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{Stats: Stats{DocumentTypes: map[string]domain.DocumentType{}}}
}

// Warn records a run-level warning.
func (a *Accumulator) Warn(format string, args ...interface{}) {
	a.Warnings = append(a.Warnings, fmt.Sprintf(format, args...))
}

// Merge folds one file's result into the accumulator.
func (a *Accumulator) Merge(f *FileResult) {
	if f == nil {
		return
	}
	a.Rooms = append(a.Rooms, f.Rooms...)
	a.Sheets = append(a.Sheets, f.Sheets...)
	a.Assumptions = appendUnique(a.Assumptions, f.Assumptions...)
	a.Warnings = appendUnique(a.Warnings, f.Warnings...)
	a.MissingInfo = appendUnique(a.MissingInfo, f.MissingInfo...)

	a.Stats.SheetsDetected += len(f.Sheets)
	if f.DocumentType != "" {
		a.Stats.DocumentTypes[f.Ref] = f.DocumentType
	}
	switch {
	case f.Skipped:
		a.Stats.FilesSkipped++
		if f.Unavailable {
			a.Stats.FilesUnavailable++
		}
		if f.Rejected {
			a.Stats.FilesRejected++
		}
	default:
		a.Stats.FilesProcessed++
	}
}

func appendUnique(dst []string, items ...string) []string {
	for _, item := range items {
		dup := false
		for _, existing := range dst {
			if existing == item {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, item)
		}
	}
	return dst
}

// callCounter tallies backend calls across concurrent stages.
type callCounter struct {
	calls       atomic.Int64
	unavailable atomic.Int64
	vision      atomic.Int64
}
