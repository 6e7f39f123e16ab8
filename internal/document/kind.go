package document

import (
	"errors"
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/timmy/planscan/internal/domain"
)

// ErrUnsupportedKind is returned for files that are neither a PDF nor a supported image.
var ErrUnsupportedKind = errors.New("unsupported file type")

var extKinds = map[string]domain.DocumentKind{
	".pdf":  domain.DocumentKindPDF,
	".jpg":  domain.DocumentKindImage,
	".jpeg": domain.DocumentKindImage,
	".png":  domain.DocumentKindImage,
	".gif":  domain.DocumentKindImage,
	".webp": domain.DocumentKindImage,
}

var imageMIMEs = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Detected is the outcome of kind detection.
type Detected struct {
	Kind     domain.DocumentKind
	MIMEType string
}

// DetectKind determines the container kind of a file from its name, then its
// declared content type, then its leading bytes.
func DetectKind(name, contentType string, data []byte) (Detected, error) {
	ext := strings.ToLower(path.Ext(stripQuery(name)))
	if kind, ok := extKinds[ext]; ok {
		if kind == domain.DocumentKindPDF {
			return Detected{Kind: kind, MIMEType: "application/pdf"}, nil
		}
		return Detected{Kind: kind, MIMEType: imageMIMEs[ext]}, nil
	}

	if d, ok := kindFromMIME(contentType); ok {
		return d, nil
	}

	if len(data) > 0 {
		if d, ok := kindFromMIME(mimetype.Detect(data).String()); ok {
			return d, nil
		}
	}
	return Detected{}, ErrUnsupportedKind
}

func kindFromMIME(contentType string) (Detected, bool) {
	if contentType == "" {
		return Detected{}, false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch mt {
	case "application/pdf", "application/x-pdf":
		return Detected{Kind: domain.DocumentKindPDF, MIMEType: "application/pdf"}, true
	case "image/jpeg", "image/jpg", "image/pjpeg":
		return Detected{Kind: domain.DocumentKindImage, MIMEType: "image/jpeg"}, true
	case "image/png", "image/gif", "image/webp":
		return Detected{Kind: domain.DocumentKindImage, MIMEType: mt}, true
	}
	return Detected{}, false
}

// stripQuery reduces a reference to its path: scheme, host, query and fragment are dropped.
func stripQuery(name string) string {
	if i := strings.Index(name, "://"); i >= 0 {
		rest := name[i+3:]
		if j := strings.Index(rest, "/"); j >= 0 {
			name = rest[j:]
		} else {
			name = ""
		}
	}
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		return name[:i]
	}
	return name
}

// ExtensionKind classifies name by extension alone. decided is false when the
// name has no extension, in which case content-based detection must decide.
func ExtensionKind(name string) (kind domain.DocumentKind, decided bool) {
	ext := strings.ToLower(path.Ext(stripQuery(name)))
	if ext == "" || strings.ContainsAny(ext, "/\\") {
		return "", false
	}
	if k, ok := extKinds[ext]; ok {
		return k, true
	}
	return "", true
}
