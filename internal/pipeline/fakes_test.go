package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/timmy/planscan/internal/domain"
	"github.com/timmy/planscan/internal/source"
)

type fakeBackend struct {
	mu sync.Mutex

	classify func(pages []domain.ExtractedPage) ([]domain.PageClassification, error)
	extract  func(sheet domain.SheetInfo, text string) (*domain.RoomExtraction, error)
	vision   func(images []domain.PageImage) (*domain.RoomExtraction, error)
	scaffold func(rooms []domain.ExtractedRoom) ([]domain.LineItemScaffold, error)

	classifyCalls int
	extractCalls  []domain.SheetInfo
	visionCalls   [][]domain.PageImage
	scaffoldCalls int
}

func (f *fakeBackend) Classify(_ context.Context, pages []domain.ExtractedPage) ([]domain.PageClassification, error) {
	f.mu.Lock()
	f.classifyCalls++
	f.mu.Unlock()
	if f.classify == nil {
		return nil, nil
	}
	return f.classify(pages)
}

func (f *fakeBackend) ExtractRooms(_ context.Context, sheet domain.SheetInfo, text string) (*domain.RoomExtraction, error) {
	f.mu.Lock()
	f.extractCalls = append(f.extractCalls, sheet)
	f.mu.Unlock()
	if f.extract == nil {
		return &domain.RoomExtraction{}, nil
	}
	return f.extract(sheet, text)
}

func (f *fakeBackend) ExtractRoomsFromImages(_ context.Context, images []domain.PageImage) (*domain.RoomExtraction, error) {
	f.mu.Lock()
	f.visionCalls = append(f.visionCalls, images)
	f.mu.Unlock()
	if f.vision == nil {
		return &domain.RoomExtraction{}, nil
	}
	return f.vision(images)
}

func (f *fakeBackend) ScaffoldLineItems(_ context.Context, rooms []domain.ExtractedRoom) ([]domain.LineItemScaffold, error) {
	f.mu.Lock()
	f.scaffoldCalls++
	f.mu.Unlock()
	if f.scaffold == nil {
		return nil, nil
	}
	return f.scaffold(rooms)
}

type fakeResolver struct {
	files map[string]*source.File
	errs  map[string]error
}

func (r *fakeResolver) Resolve(_ context.Context, ref string) (*source.File, error) {
	if err, ok := r.errs[ref]; ok {
		return nil, err
	}
	if f, ok := r.files[ref]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("%q: %w", ref, source.ErrUnresolvable)
}

// fakeReader returns pages keyed by the document bytes.
type fakeReader struct {
	pages map[string][]domain.ExtractedPage
	err   error
}

func (r *fakeReader) ExtractPages(_ context.Context, data []byte) ([]domain.ExtractedPage, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.pages[string(data)], nil
}

type fakeCounter struct {
	n   int
	err error
}

func (c *fakeCounter) PageCount([]byte) (int, error) {
	return c.n, c.err
}

type fakeRenderer struct {
	err      error
	requests [][]int
}

func (r *fakeRenderer) RenderPages(_ context.Context, _ []byte, pages []int) ([]domain.PageImage, error) {
	r.requests = append(r.requests, pages)
	if r.err != nil {
		return nil, r.err
	}
	out := make([]domain.PageImage, len(pages))
	for i, p := range pages {
		out[i] = domain.PageImage{PageNumber: p, Data: []byte{0xff, 0xd8}, MIMEType: "image/jpeg"}
	}
	return out, nil
}

func textPage(n int, text string) domain.ExtractedPage {
	return domain.ExtractedPage{PageNumber: n, Text: text, HasText: text != ""}
}

func rooms(level string, names ...string) *domain.RoomExtraction {
	out := &domain.RoomExtraction{}
	for _, n := range names {
		out.Rooms = append(out.Rooms, domain.ExtractedRoom{Name: n, Level: level, Confidence: 80})
	}
	return out
}
