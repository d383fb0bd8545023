package bench

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/yyyoichi/watermark_svd/internal/dwt"
	"github.com/yyyoichi/watermark_svd/internal/metrics"
	"github.com/yyyoichi/watermark_svd/internal/spectral"
	"github.com/yyyoichi/watermark_svd/internal/svd"
)

func genSrc(w, h int) []float64 {
	src := make([]float64, w*h)
	for i := range src {
		src[i] = rand.Float64() * 255.0
	}
	return src
}

func BenchmarkStages(b *testing.B) {
	for _, size := range [][2]int{{640, 360}, {1280, 720}} {
		w, h := size[0], size[1]
		src := genSrc(w, h)
		bands, err := dwt.Decompose(src, w)
		if err != nil {
			b.Fatal(err)
		}
		ll := spectral.Matrix(bands.Rows, bands.Cols, bands.A)

		b.Run(fmt.Sprintf("dwt_%dx%d", w, h), func(b *testing.B) {
			for b.Loop() {
				bd, _ := dwt.Decompose(src, w)
				_ = dwt.Reconstruct(bd)
			}
		})
		b.Run(fmt.Sprintf("svd_%dx%d", w, h), func(b *testing.B) {
			for b.Loop() {
				t, err := svd.Factorize(ll)
				if err != nil {
					b.Fatal(err)
				}
				_ = svd.Reconstruct(t.S, t.U, t.V)
			}
		})
		b.Run(fmt.Sprintf("ssim_%dx%d", w, h), func(b *testing.B) {
			other := genSrc(w, h)
			for b.Loop() {
				_ = metrics.SSIM(src, other, w)
			}
		})
	}
}
