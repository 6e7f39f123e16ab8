package pipeline

import (
	"context"
	"fmt"

	"github.com/timmy/planscan/internal/document"
	"github.com/timmy/planscan/internal/domain"
)

// Document is an acquired file tagged with its container kind.
type Document struct {
	Ref       string
	Name      string
	Kind      domain.DocumentKind
	MIMEType  string
	Data      []byte
	PublicURL string
}

// Acquirer fetches file references and determines their kind.
type Acquirer struct {
	resolver FileResolver
}

// NewAcquirer creates an Acquirer.
func NewAcquirer(resolver FileResolver) *Acquirer {
	return &Acquirer{resolver: resolver}
}

// Acquire fetches ref. Files that are neither PDFs nor supported images fail
// with ErrUnsupportedKind; resolver errors are returned wrapped.
func (a *Acquirer) Acquire(ctx context.Context, ref string) (*Document, error) {
	// reject by extension before downloading anything
	if kind, decided := document.ExtensionKind(ref); decided && kind == "" {
		return nil, fmt.Errorf("%s: %w", ref, ErrUnsupportedKind)
	}

	f, err := a.resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if len(f.Data) == 0 {
		return nil, fmt.Errorf("%s is empty", ref)
	}

	name := f.Name
	if name == "" {
		name = ref
	}
	detected, err := document.DetectKind(name, f.ContentType, f.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref, err)
	}
	return &Document{
		Ref:       ref,
		Name:      name,
		Kind:      detected.Kind,
		MIMEType:  detected.MIMEType,
		Data:      f.Data,
		PublicURL: f.PublicURL,
	}, nil
}
