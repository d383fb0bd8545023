package watermark

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decode reads a PNG, JPEG, GIF, BMP, TIFF or WebP image.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	return img, nil
}

// Encode writes img as PNG. 16-bit images stay 16-bit.
func Encode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidImage)
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	return buf.Bytes(), nil
}

// EmbedBytes is Embed on encoded images. The watermarked image is returned
// as PNG.
func (w *Watermark) EmbedBytes(ctx context.Context, original, mark []byte, opts ...EmbedOption) ([]byte, *Embedding, error) {
	o, err := Decode(original)
	if err != nil {
		return nil, nil, fmt.Errorf("original: %w", err)
	}
	m, err := Decode(mark)
	if err != nil {
		return nil, nil, fmt.Errorf("watermark: %w", err)
	}
	e, err := w.Embed(ctx, o, m, opts...)
	if err != nil {
		return nil, nil, err
	}
	data, err := Encode(e.Image)
	if err != nil {
		return nil, nil, err
	}
	return data, e, nil
}

// ExtractBytes is Extract on an encoded image. The recovered watermark is
// returned as PNG, or nil when nothing was extracted.
func (w *Watermark) ExtractBytes(ctx context.Context, suspect []byte, hint string) ([]byte, ExtractResult, error) {
	s, err := Decode(suspect)
	if err != nil {
		return nil, ExtractResult{}, fmt.Errorf("suspect: %w", err)
	}
	r, err := w.Extract(ctx, s, hint)
	if err != nil || !r.Extracted() {
		return nil, r, err
	}
	data, err := Encode(r.Extraction.Image)
	if err != nil {
		return nil, r, err
	}
	return data, r, nil
}
