package watermark

import (
	"context"
	"fmt"
	"image"

	"github.com/yyyoichi/watermark_svd/internal/planes"
	"github.com/yyyoichi/watermark_svd/internal/watermark"
	"github.com/yyyoichi/watermark_svd/internal/workerpool"
)

// Batch embeds several watermarks into one host image, transforming the
// host only once.
type Batch struct {
	w        *Watermark
	original image.Image
	host     *watermark.Decomposition
}

// NewBatch pre-computes the wavelet decomposition of original.
func (w *Watermark) NewBatch(ctx context.Context, original image.Image) (*Batch, error) {
	if err := validImage(original, "original"); err != nil {
		return nil, err
	}
	d, err := w.decompose(ctx, original)
	if err != nil {
		return nil, err
	}
	return &Batch{w: w, original: original, host: d}, nil
}

// Embed embeds mark into the cached host. Every call saves its own record.
func (b *Batch) Embed(ctx context.Context, mark image.Image, opts ...EmbedOption) (*Embedding, error) {
	return b.w.embed(ctx, b.original, b.host, mark, opts...)
}

func (w *Watermark) decompose(ctx context.Context, img image.Image) (*watermark.Decomposition, error) {
	d, err := workerpool.Do(ctx, w.pool, func(ctx context.Context) (*watermark.Decomposition, error) {
		return watermark.Decompose(ctx, planes.FromImage(img))
	})
	if err != nil {
		return nil, fmt.Errorf("decompose: %w", err)
	}
	return d, nil
}
