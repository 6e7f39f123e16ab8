package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/timmy/planscan/internal/config"
	"github.com/timmy/planscan/internal/domain"
)

// Renderer rasterizes PDF pages with poppler's pdftoppm.
type Renderer struct {
	binary      string
	dpi         int
	format      string
	timeout     time.Duration
	concurrency int
	image       ImageOptions
}

// NewRenderer creates a Renderer from render settings. concurrency bounds the
// number of pdftoppm processes running at once.
func NewRenderer(cfg config.RenderConfig, concurrency int) *Renderer {
	if cfg.Binary == "" {
		cfg.Binary = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 110
	}
	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	if format != "png" {
		format = "jpeg"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Renderer{
		binary:      cfg.Binary,
		dpi:         cfg.DPI,
		format:      format,
		timeout:     cfg.Timeout,
		concurrency: concurrency,
		image:       ImageOptions{MaxEdgePx: cfg.MaxEdgePx, JPEGQuality: cfg.JPEGQuality},
	}
}

// Available reports whether the pdftoppm binary can be found.
func (r *Renderer) Available() error {
	if _, err := exec.LookPath(r.binary); err != nil {
		return fmt.Errorf("missing required binary %q: %w", r.binary, err)
	}
	return nil
}

// RenderPages renders the requested 1-based pages of a PDF. Pages that fail
// to render are left out; an error is returned only when no page rendered.
// The returned images are ordered by page number.
func (r *Renderer) RenderPages(ctx context.Context, data []byte, pages []int) ([]domain.PageImage, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages requested")
	}
	if err := r.Available(); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "planscan-render-*")
	if err != nil {
		return nil, fmt.Errorf("create render dir: %w", err)
	}
	defer os.RemoveAll(dir)

	pdfPath := filepath.Join(dir, "source.pdf")
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	var (
		mu     sync.Mutex
		images []domain.PageImage
		errs   []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, page := range pages {
		page := page
		g.Go(func() error {
			img, err := guardPage(page, func() (*domain.PageImage, error) {
				return r.renderPage(gctx, pdfPath, dir, page)
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("page %d: %w", page, err))
				return nil
			}
			images = append(images, *img)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("render failed: %w", errors.Join(errs...))
	}
	sort.Slice(images, func(i, j int) bool { return images[i].PageNumber < images[j].PageNumber })
	return images, nil
}

// guardPage runs one page render and reports a panic as that page's error.
func guardPage(page int, render func() (*domain.PageImage, error)) (img *domain.PageImage, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			img, err = nil, fmt.Errorf("rendering page %d panicked: %v", page, rec)
		}
	}()
	return render()
}

func (r *Renderer) renderPage(ctx context.Context, pdfPath, dir string, page int) (*domain.PageImage, error) {
	if page <= 0 {
		return nil, fmt.Errorf("page must be >= 1")
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	prefix := filepath.Join(dir, fmt.Sprintf("page_%04d", page))
	args := []string{"-r", strconv.Itoa(r.dpi)}
	if r.format == "png" {
		args = append(args, "-png")
	} else {
		args = append(args, "-jpeg")
	}
	args = append(args, "-f", strconv.Itoa(page), "-l", strconv.Itoa(page), "-singlefile", pdfPath, prefix)

	cmd := exec.CommandContext(ctx, r.binary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w; out=%s", err, strings.TrimSpace(string(out)))
	}

	ext, mimeType := ".jpg", "image/jpeg"
	if r.format == "png" {
		ext, mimeType = ".png", "image/png"
	}
	raw, err := os.ReadFile(prefix + ext)
	if err != nil {
		return nil, fmt.Errorf("read rendered page: %w", err)
	}

	encoded, mimeType, err := PrepareImage(raw, mimeType, r.image)
	if err != nil {
		return nil, err
	}
	return &domain.PageImage{PageNumber: page, Data: encoded, MIMEType: mimeType}, nil
}
