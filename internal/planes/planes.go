// Package planes converts images to per-channel sample planes and back.
package planes

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// NumChannels is the number of color channels processed: R, G, B.
const NumChannels = 3

// luminance weights
const (
	yr = 0.299
	yg = 0.587
	yb = 0.114
)

// Planes holds R, G and B samples in the 0..255 working range, row-major.
type Planes struct {
	Width, Height int
	Channels      [NumChannels][]float64
}

// New allocates zeroed planes.
func New(width, height int) Planes {
	p := Planes{Width: width, Height: height}
	for i := range p.Channels {
		p.Channels[i] = make([]float64, width*height)
	}
	return p
}

// FromImage splits src into its color planes. Alpha is discarded.
func FromImage(src image.Image) Planes {
	b := src.Bounds()
	p := New(b.Dx(), b.Dy())
	idx := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBA64Model.Convert(src.At(x, y)).(color.NRGBA64)
			p.Channels[0][idx] = float64(c.R) / 257.0
			p.Channels[1][idx] = float64(c.G) / 257.0
			p.Channels[2][idx] = float64(c.B) / 257.0
			idx++
		}
	}
	return p
}

// Image recombines the planes into an opaque 16-bit image, clipping samples to
// the valid range.
func (p Planes) Image() *image.RGBA64 {
	dist := image.NewRGBA64(image.Rect(0, 0, p.Width, p.Height))
	idx := 0
	for y := range p.Height {
		for x := range p.Width {
			dist.SetRGBA64(x, y, color.RGBA64{
				R: clip16(p.Channels[0][idx]),
				G: clip16(p.Channels[1][idx]),
				B: clip16(p.Channels[2][idx]),
				A: 0xffff,
			})
			idx++
		}
	}
	return dist
}

// Luma returns the luminance plane of the planes.
func (p Planes) Luma() []float64 {
	lum := make([]float64, p.Width*p.Height)
	for i := range lum {
		lum[i] = yr*p.Channels[0][i] + yg*p.Channels[1][i] + yb*p.Channels[2][i]
	}
	return lum
}

// Luma returns the luminance plane of src in the 0..255 range.
func Luma(src image.Image) []float64 {
	return FromImage(src).Luma()
}

// Resize scales src to width x height. src is returned unchanged when it
// already has that size and starts at the origin.
func Resize(src image.Image, width, height int) image.Image {
	b := src.Bounds()
	if b.Min == (image.Point{}) && b.Dx() == width && b.Dy() == height {
		return src
	}
	dist := image.NewRGBA64(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dist, dist.Bounds(), src, b, draw.Src, nil)
	return dist
}

func clip16(v float64) uint16 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= 255 {
		return 0xffff
	}
	return uint16(math.Round(v * 257.0))
}
