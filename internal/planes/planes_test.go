package planes

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{uint8(x * 255 / w), uint8(y * 255 / h), 100, 255})
		}
	}
	return img
}

func TestFromImage(t *testing.T) {
	img := gradient(5, 3)
	p := FromImage(img)
	require.Equal(t, 5, p.Width)
	require.Equal(t, 3, p.Height)
	for c := range NumChannels {
		require.Len(t, p.Channels[c], 15)
	}
	// pixel (4, 2)
	assert.InDelta(t, float64(4*255/5), p.Channels[0][2*5+4], 1e-9)
	assert.InDelta(t, float64(2*255/3), p.Channels[1][2*5+4], 1e-9)
	assert.InDelta(t, 100.0, p.Channels[2][2*5+4], 1e-9)
}

func TestFromImage_SubImage(t *testing.T) {
	img := gradient(8, 8)
	sub := img.SubImage(image.Rect(2, 3, 6, 7))
	p := FromImage(sub)
	require.Equal(t, 4, p.Width)
	require.Equal(t, 4, p.Height)
	assert.InDelta(t, float64(2*255/8), p.Channels[0][0], 1e-9)
	assert.InDelta(t, float64(3*255/8), p.Channels[1][0], 1e-9)
}

func TestImage_RoundTrip(t *testing.T) {
	img := gradient(7, 4)
	got := FromImage(img).Image()
	require.Equal(t, img.Bounds().Size(), got.Bounds().Size())
	for y := range 4 {
		for x := range 7 {
			r0, g0, b0, a0 := img.At(x, y).RGBA()
			r1, g1, b1, a1 := got.At(x, y).RGBA()
			assert.Equal(t, []uint32{r0, g0, b0, a0}, []uint32{r1, g1, b1, a1})
		}
	}
}

func TestImage_Clips(t *testing.T) {
	p := New(4, 1)
	for c := range NumChannels {
		copy(p.Channels[c], []float64{-20, 300, math.NaN(), 127.5})
	}
	img := p.Image()
	r, _, _, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0), r)
	r, _, _, _ = img.At(1, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	r, _, _, _ = img.At(2, 0).RGBA()
	assert.Equal(t, uint32(0), r)
	r, _, _, _ = img.At(3, 0).RGBA()
	assert.Equal(t, uint32(math.Round(127.5*257)), r)
}

func TestLuma(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 1))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	img.Set(1, 0, color.RGBA{0, 255, 0, 255})
	img.Set(2, 0, color.RGBA{255, 255, 255, 255})
	lum := Luma(img)
	assert.InDelta(t, 0.299*255, lum[0], 1e-9)
	assert.InDelta(t, 0.587*255, lum[1], 1e-9)
	assert.InDelta(t, 255.0, lum[2], 1e-9)
}

func TestResize(t *testing.T) {
	img := gradient(16, 16)

	t.Run("same size is a no-op", func(t *testing.T) {
		assert.Same(t, img, Resize(img, 16, 16))
	})

	t.Run("scales", func(t *testing.T) {
		got := Resize(img, 9, 5)
		assert.Equal(t, image.Pt(9, 5), got.Bounds().Size())
	})

	t.Run("constant image stays constant", func(t *testing.T) {
		flat := image.NewRGBA(image.Rect(0, 0, 10, 10))
		for i := range flat.Pix {
			flat.Pix[i] = 200
			if i%4 == 3 {
				flat.Pix[i] = 255
			}
		}
		got := FromImage(Resize(flat, 4, 6))
		for _, v := range got.Channels[0] {
			assert.InDelta(t, 200.0, v, 0.01)
		}
	})
}
