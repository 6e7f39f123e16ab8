package document

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	// Register decoders for the supported upload formats.
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ImageOptions bounds images sent for vision extraction.
type ImageOptions struct {
	MaxEdgePx   int
	JPEGQuality int
}

// PrepareImage downscales an image so its longest edge fits MaxEdgePx and
// re-encodes it as JPEG. Images already within bounds and in a format the
// backend accepts are returned unchanged.
// Parameters:
//   - data: encoded image bytes (jpeg, png, gif or webp).
//   - mimeType: declared type of data.
//   - opts: size and quality bounds.
// Returns:
//   - []byte, string: encoded image and its MIME type.
//   - error: non-nil when the image cannot be decoded.
func PrepareImage(data []byte, mimeType string, opts ImageOptions) ([]byte, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image config: %w", err)
	}
	longest := cfg.Width
	if cfg.Height > longest {
		longest = cfg.Height
	}
	accepted := mimeType == "image/jpeg" || mimeType == "image/png"
	if accepted && (opts.MaxEdgePx <= 0 || longest <= opts.MaxEdgePx) {
		return data, mimeType, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	out := src
	if opts.MaxEdgePx > 0 && longest > opts.MaxEdgePx {
		out = scale(src, opts.MaxEdgePx)
	}

	quality := opts.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flatten(out), &jpeg.Options{Quality: quality}); err != nil {
		return nil, "", fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

func scale(src image.Image, maxEdge int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w >= h {
		h = h * maxEdge / w
		w = maxEdge
	} else {
		w = w * maxEdge / h
		h = maxEdge
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// flatten draws transparent images onto white so JPEG encoding keeps line work visible.
func flatten(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}
