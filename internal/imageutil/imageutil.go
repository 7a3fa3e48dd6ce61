// Package imageutil prepares visitor photos for vision model calls:
// bounded resize and JPEG re-encoding keep the inline base64 payload
// small without losing recognizable detail.
package imageutil

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultMaxDimension bounds the longer photo edge before upload.
	DefaultMaxDimension = 512

	jpegQuality = 85
)

// Preprocess decodes an uploaded photo, scales it down so neither edge
// exceeds maxDim while preserving aspect ratio, and re-encodes it as
// JPEG. Images already within bounds are still re-encoded so the
// capability always receives a JPEG payload.
// Parameters:
//   - data: raw uploaded image bytes (jpeg, png, gif, or webp).
//   - maxDim: maximum edge length in pixels; <=0 uses DefaultMaxDimension.
// Returns:
//   - []byte: JPEG-encoded image.
//   - error: non-nil if the input cannot be decoded or encoded.
func Preprocess(data []byte, maxDim int) ([]byte, error) {
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d", width, height)
	}

	targetW, targetH := fitWithin(width, height, maxDim)

	var out image.Image = src
	if targetW != width || targetH != height {
		dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// fitWithin scales (w, h) down to fit inside a maxDim square, never up.
func fitWithin(w, h, maxDim int) (int, int) {
	if w <= maxDim && h <= maxDim {
		return w, h
	}
	if w >= h {
		scaled := h * maxDim / w
		if scaled < 1 {
			scaled = 1
		}
		return maxDim, scaled
	}
	scaled := w * maxDim / h
	if scaled < 1 {
		scaled = 1
	}
	return scaled, maxDim
}
