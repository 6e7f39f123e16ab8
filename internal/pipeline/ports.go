package pipeline

import (
	"context"
	"errors"

	"github.com/timmy/planscan/internal/document"
	"github.com/timmy/planscan/internal/domain"
	"github.com/timmy/planscan/internal/source"
)

var (
	// ErrBackendUnavailable marks inference calls that could not reach a working backend.
	ErrBackendUnavailable = errors.New("inference backend unavailable")
	// ErrUnsupportedKind is returned for files that are neither a PDF nor a supported image.
	ErrUnsupportedKind = document.ErrUnsupportedKind
	// ErrNotApplicable is returned by a strategy that has nothing to work with for a file.
	// The chain moves on without recording a warning.
	ErrNotApplicable = errors.New("strategy not applicable")
)

// Backend is the inference capability the pipeline delegates to.
type Backend interface {
	Classify(ctx context.Context, pages []domain.ExtractedPage) ([]domain.PageClassification, error)
	ExtractRooms(ctx context.Context, sheet domain.SheetInfo, text string) (*domain.RoomExtraction, error)
	ExtractRoomsFromImages(ctx context.Context, images []domain.PageImage) (*domain.RoomExtraction, error)
	ScaffoldLineItems(ctx context.Context, rooms []domain.ExtractedRoom) ([]domain.LineItemScaffold, error)
}

// FileResolver fetches the bytes behind a file reference.
type FileResolver interface {
	Resolve(ctx context.Context, ref string) (*source.File, error)
}

// PageReader extracts per-page text from a PDF.
type PageReader interface {
	ExtractPages(ctx context.Context, data []byte) ([]domain.ExtractedPage, error)
}

// PageCounter reads a PDF's page count by a method independent of PageReader.
type PageCounter interface {
	PageCount(data []byte) (int, error)
}

// PageRenderer rasterizes PDF pages.
type PageRenderer interface {
	RenderPages(ctx context.Context, data []byte, pages []int) ([]domain.PageImage, error)
}
