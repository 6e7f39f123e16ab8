package document

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Prober reads a PDF's page count with a parser independent of the text reader.
type Prober struct {
	conf *model.Configuration
}

// NewProber creates a Prober with relaxed validation.
func NewProber() *Prober {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Prober{conf: conf}
}

// PageCount returns the number of pages in data.
func (p *Prober) PageCount(data []byte) (n int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			n, err = 0, fmt.Errorf("pdf page count panicked: %v", rec)
		}
	}()
	n, err = api.PageCount(bytes.NewReader(data), p.conf)
	if err != nil {
		return 0, fmt.Errorf("pdfcpu page count: %w", err)
	}
	return n, nil
}
