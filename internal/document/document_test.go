package document

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/planscan/internal/config"
	"github.com/timmy/planscan/internal/domain"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDetectKindByExtension(t *testing.T) {
	d, err := DetectKind("uploads/Plans.PDF", "", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentKindPDF, d.Kind)

	d, err = DetectKind("https://cdn.example.com/photo.webp?sig=abc", "", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentKindImage, d.Kind)
	assert.Equal(t, "image/webp", d.MIMEType)
}

func TestDetectKindByContentType(t *testing.T) {
	d, err := DetectKind("uploads/abc123", "application/pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentKindPDF, d.Kind)

	d, err = DetectKind("uploads/abc123", "image/jpeg; charset=binary", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentKindImage, d.Kind)
	assert.Equal(t, "image/jpeg", d.MIMEType)
}

func TestDetectKindBySniffing(t *testing.T) {
	d, err := DetectKind("scan", "application/octet-stream", pngBytes(t, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentKindImage, d.Kind)
	assert.Equal(t, "image/png", d.MIMEType)

	d, err = DetectKind("blob", "", []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n1 0 obj\n"))
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentKindPDF, d.Kind)
}

func TestDetectKindUnsupported(t *testing.T) {
	_, err := DetectKind("estimate.docx", "", []byte("hello world, plain text"))
	assert.ErrorIs(t, err, ErrUnsupportedKind)

	_, err = DetectKind("drawing.dwg", "application/acad", nil)
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestPrepareImageDownscales(t *testing.T) {
	out, mimeType, err := PrepareImage(pngBytes(t, 400, 200), "image/png", ImageOptions{MaxEdgePx: 100, JPEGQuality: 80})
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mimeType)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

func TestPrepareImageKeepsSmallImages(t *testing.T) {
	in := pngBytes(t, 50, 50)
	out, mimeType, err := PrepareImage(in, "image/png", ImageOptions{MaxEdgePx: 100})
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, in, out)
}

func TestPrepareImageRejectsGarbage(t *testing.T) {
	_, _, err := PrepareImage([]byte("not an image"), "image/png", ImageOptions{})
	assert.Error(t, err)
}

func TestTextReaderRejectsNonPDF(t *testing.T) {
	_, err := NewTextReader().ExtractPages(context.Background(), []byte("definitely not a pdf"))
	assert.Error(t, err)
}

func TestProberRejectsNonPDF(t *testing.T) {
	_, err := NewProber().PageCount([]byte("definitely not a pdf"))
	assert.Error(t, err)
}

func TestNormalizeText(t *testing.T) {
	in := "FLOOR PLAN   \r\n\r\n\r\nKITCHEN\n  \nBEDROOM 1  "
	assert.Equal(t, "FLOOR PLAN\n\nKITCHEN\n\nBEDROOM 1", normalizeText(in))
	assert.Equal(t, 6, countNonSpace(" a b\tc\nd e f "))
}

func TestRendererMissingBinary(t *testing.T) {
	r := NewRenderer(config.RenderConfig{Binary: "definitely-not-a-real-pdftoppm"}, 2)
	_, err := r.RenderPages(context.Background(), []byte("%PDF-1.4"), []int{1})
	assert.Error(t, err)
}

func TestExtensionKind(t *testing.T) {
	k, decided := ExtensionKind("s3://uploads/plans.pdf")
	assert.True(t, decided)
	assert.Equal(t, domain.DocumentKindPDF, k)

	k, decided = ExtensionKind("notes.txt")
	assert.True(t, decided)
	assert.Empty(t, k)

	_, decided = ExtensionKind("uploads/abc123")
	assert.False(t, decided)
}

func TestGuardPageRecoversPanics(t *testing.T) {
	img, err := guardPage(3, func() (*domain.PageImage, error) {
		panic("pdftoppm output truncated")
	})
	assert.Nil(t, img)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page 3")

	img, err = guardPage(4, func() (*domain.PageImage, error) {
		return &domain.PageImage{PageNumber: 4}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, img.PageNumber)
}
