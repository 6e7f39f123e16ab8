package document

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"github.com/timmy/planscan/internal/domain"
)

// MinTextChars is the number of non-space characters a page needs to count as having text.
const MinTextChars = 20

// TextReader extracts per-page text from PDF bytes.
type TextReader struct {
	minChars int
}

// NewTextReader creates a TextReader using MinTextChars.
func NewTextReader() *TextReader {
	return &TextReader{minChars: MinTextChars}
}

// ExtractPages returns one ExtractedPage per page of the document, in page order.
// Pages whose content cannot be decoded are returned with empty text.
// The underlying parser panics on some malformed files; those panics surface as errors.
func (r *TextReader) ExtractPages(ctx context.Context, data []byte) (pages []domain.ExtractedPage, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = fmt.Errorf("pdf text extraction panicked: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	total := reader.NumPage()
	pages = make([]domain.ExtractedPage, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := r.pageText(reader, i)
		pages = append(pages, domain.ExtractedPage{
			PageNumber: i,
			Text:       text,
			HasText:    countNonSpace(text) >= r.minChars,
		})
	}
	return pages, nil
}

func (r *TextReader) pageText(reader *pdf.Reader, n int) (text string) {
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
		}
	}()
	page := reader.Page(n)
	if page.V.IsNull() {
		return ""
	}
	raw, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return normalizeText(raw)
}

// normalizeText collapses runs of blank lines and trims trailing spaces.
func normalizeText(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRightFunc(line, unicode.IsSpace)
		if strings.TrimSpace(line) == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
