// Package phash computes 64-bit perceptual fingerprints of images and finds the
// closest fingerprint in a catalog.
package phash

import (
	"errors"
	"fmt"
	"image"
	"math/bits"
	"slices"
	"strconv"

	"github.com/yyyoichi/bitstream-go"
	"github.com/yyyoichi/watermark_svd/internal/dct"
	"github.com/yyyoichi/watermark_svd/internal/planes"
)

const (
	sampleSize = 32
	lowSize    = 8
	// Bits is the fingerprint length.
	Bits = lowSize * lowSize
)

var (
	ErrInvalidHash = errors.New("invalid fingerprint")
)

var bases = dct.NewCache()

// Hash is a 64-bit perceptual fingerprint.
type Hash uint64

// String formats the hash as 16 lower-case hex digits.
func (h Hash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// Parse reads a hash formatted by Hash.String.
func Parse(s string) (Hash, error) {
	if len(s) != 16 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidHash, err)
	}
	return Hash(v), nil
}

// Distance returns the Hamming distance between two hashes.
func Distance(a, b Hash) int {
	return bits.OnesCount64(uint64(a ^ b))
}

// Fingerprint computes the DCT hash of img: the luminance is downscaled to
// 32x32, the top-left 8x8 DCT coefficients are compared against the median of
// their rows 1..7, and each comparison yields one bit.
func Fingerprint(img image.Image) Hash {
	small := planes.Resize(img, sampleSize, sampleSize)
	coef := bases.Get(sampleSize, sampleSize).Forward(planes.Luma(small))

	low := make([]float64, 0, Bits)
	for y := range lowSize {
		low = append(low, coef[y*sampleSize:y*sampleSize+lowSize]...)
	}
	// the DC row is skipped for the threshold
	med := median(low[lowSize:])

	w := bitstream.NewBitWriter[uint64](0, 0)
	for _, v := range low {
		w.WriteBool(v > med)
	}
	data := w.Data()
	if len(data) == 0 {
		return 0
	}
	return Hash(data[0])
}

func median(values []float64) float64 {
	s := slices.Clone(values)
	slices.Sort(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
