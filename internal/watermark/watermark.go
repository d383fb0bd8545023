// Package watermark runs the per-channel embedding and extraction on
// decomposed images. Callers are expected to bring every image to a common
// canonical size first.
package watermark

import (
	"context"
	"fmt"

	"github.com/yyyoichi/watermark_svd/internal/dwt"
	"github.com/yyyoichi/watermark_svd/internal/planes"
	"github.com/yyyoichi/watermark_svd/internal/spectral"
	"github.com/yyyoichi/watermark_svd/internal/svd"
	"golang.org/x/sync/errgroup"
)

// Decomposition holds the wavelet bands of every channel of one image.
type Decomposition struct {
	Width, Height int
	Bands         [planes.NumChannels]dwt.Bands
}

// Shape returns the LL sub-band shape, [rows, cols].
func (d *Decomposition) Shape() [2]int {
	return [2]int{d.Bands[0].Rows, d.Bands[0].Cols}
}

// Decompose transforms the channels of p concurrently.
func Decompose(ctx context.Context, p planes.Planes) (*Decomposition, error) {
	d := &Decomposition{Width: p.Width, Height: p.Height}
	eg, ctx := errgroup.WithContext(ctx)
	for c := range planes.NumChannels {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := dwt.Decompose(p.Channels[c], p.Width)
			if err != nil {
				return err
			}
			d.Bands[c] = b
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

// Embedded is the result of Embed.
type Embedded struct {
	Planes planes.Planes
	// HostS holds the unmodified singular values of each host LL band.
	HostS [planes.NumChannels][]float64
}

// Embed mixes the LL bands of mark into those of host with strength alpha.
// Detail bands of the host are kept. host is not modified.
func Embed(ctx context.Context, host, mark *Decomposition, alpha float64) (Embedded, error) {
	if err := sameShape(host, mark); err != nil {
		return Embedded{}, err
	}
	out := Embedded{Planes: planes.Planes{Width: host.Width, Height: host.Height}}
	eg, ctx := errgroup.WithContext(ctx)
	for c := range planes.NumChannels {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			hb, mb := host.Bands[c], mark.Bands[c]
			ll, s, err := spectral.Embed(
				spectral.Matrix(hb.Rows, hb.Cols, hb.A),
				spectral.Matrix(mb.Rows, mb.Cols, mb.A),
				alpha,
			)
			if err != nil {
				return fmt.Errorf("channel %d: %w", c, err)
			}
			hb.A = spectral.Flatten(ll)
			out.Planes.Channels[c] = dwt.Reconstruct(hb)
			out.HostS[c] = s
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Embedded{}, err
	}
	return out, nil
}

// Extracted is the result of Extract.
type Extracted struct {
	Planes planes.Planes
	// Clamped counts recovered singular values that came out negative.
	Clamped int
}

// Extract recovers the watermark from suspect using the host singular values
// saved at embedding time. The LL band is rebuilt with the singular vectors
// of ref, the watermark used for embedding, and ref's detail bands complete
// the image.
func Extract(ctx context.Context, suspect, ref *Decomposition, hostS [planes.NumChannels][]float64, alpha float64) (Extracted, error) {
	if err := sameShape(suspect, ref); err != nil {
		return Extracted{}, err
	}
	out := Extracted{Planes: planes.Planes{Width: ref.Width, Height: ref.Height}}
	var clamped [planes.NumChannels]int
	eg, ctx := errgroup.WithContext(ctx)
	for c := range planes.NumChannels {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sb, rb := suspect.Bands[c], ref.Bands[c]
			s, n, err := spectral.Extract(spectral.Matrix(sb.Rows, sb.Cols, sb.A), hostS[c], alpha)
			if err != nil {
				return fmt.Errorf("channel %d: %w", c, err)
			}
			t, err := svd.Factorize(spectral.Matrix(rb.Rows, rb.Cols, rb.A))
			if err != nil {
				return fmt.Errorf("channel %d: %w", c, err)
			}
			rb.A = spectral.Flatten(spectral.ReconstructFromValues(s, t.U, t.V))
			out.Planes.Channels[c] = dwt.Reconstruct(rb)
			clamped[c] = n
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Extracted{}, err
	}
	for _, n := range clamped {
		out.Clamped += n
	}
	return out, nil
}

func sameShape(a, b *Decomposition) error {
	if a.Width != b.Width || a.Height != b.Height {
		return fmt.Errorf("%w: %dx%d and %dx%d", dwt.ErrShape, a.Width, a.Height, b.Width, b.Height)
	}
	return nil
}
