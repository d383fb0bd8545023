// Package sideinfo persists the parameters and host singular values needed to
// extract a watermark from a suspect image.
package sideinfo

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/yyyoichi/watermark_svd/internal/phash"
	"github.com/yyyoichi/watermark_svd/internal/spectral"
)

const (
	// Channels is the only channel set in use.
	Channels = "RGB"
	// Wavelet is the only wavelet family in use.
	Wavelet = "haar"
)

var (
	ErrNotFound        = errors.New("side-info record not found")
	ErrMalformedRecord = errors.New("malformed side-info record")
)

// Params are the watermark parameters of one embedding.
type Params struct {
	Alpha    float64 `json:"alpha"`
	Wavelet  string  `json:"wavelet"`
	Channels string  `json:"channels"`
}

// Size is [width, height].
type Size [2]int

// Shape is [rows, cols] of a sub-band.
type Shape [2]int

// Shapes holds one sub-band shape per channel.
type Shapes struct {
	R Shape `json:"R"`
	G Shape `json:"G"`
	B Shape `json:"B"`
}

// At returns the shape of channel i (0 R, 1 G, 2 B).
func (s Shapes) At(i int) Shape {
	return [...]Shape{s.R, s.G, s.B}[i]
}

// Set stores the shape of channel i.
func (s *Shapes) Set(i int, v Shape) {
	*[...]*Shape{&s.R, &s.G, &s.B}[i] = v
}

// Values holds one singular-value sequence per channel, in descending order.
type Values struct {
	R []float64 `json:"R"`
	G []float64 `json:"G"`
	B []float64 `json:"B"`
}

// At returns the values of channel i (0 R, 1 G, 2 B).
func (v Values) At(i int) []float64 {
	return [...][]float64{v.R, v.G, v.B}[i]
}

// Set stores the values of channel i.
func (v *Values) Set(i int, s []float64) {
	*[...]*[]float64{&v.R, &v.G, &v.B}[i] = s
}

// WatermarkRef points at the resized watermark used during embedding, either
// inline (PNG bytes) or by path.
type WatermarkRef struct {
	Image     []byte `json:"image_base64,omitempty"`
	Path      string `json:"path,omitempty"`
	ResizedTo Size   `json:"resized_to"`
}

// Record is the side-information of one embedding. Records are written once
// and never modified.
type Record struct {
	ID            string       `json:"id"`
	Params        Params       `json:"wm_params"`
	CanonicalSize Size         `json:"canonical_size"`
	LLShapes      Shapes       `json:"ll_shapes"`
	HostS         Values       `json:"host_S"`
	WatermarkRef  WatermarkRef `json:"watermark_ref"`
	Fingerprint   string       `json:"fingerprint,omitempty"`
	OutputPath    string       `json:"output_path,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Validate rejects records that cannot drive an extraction.
func (r *Record) Validate() error {
	switch {
	case r.ID == "":
		return fmt.Errorf("%w: missing id", ErrMalformedRecord)
	case spectral.ValidateAlpha(r.Params.Alpha) != nil:
		return fmt.Errorf("%w: alpha %v outside (0, 1]", ErrMalformedRecord, r.Params.Alpha)
	case r.Params.Wavelet != Wavelet:
		return fmt.Errorf("%w: unsupported wavelet %q", ErrMalformedRecord, r.Params.Wavelet)
	case r.Params.Channels != Channels:
		return fmt.Errorf("%w: unsupported channels %q", ErrMalformedRecord, r.Params.Channels)
	case r.CanonicalSize[0] <= 0 || r.CanonicalSize[1] <= 0:
		return fmt.Errorf("%w: canonical size %v", ErrMalformedRecord, r.CanonicalSize)
	case len(r.WatermarkRef.Image) == 0 && r.WatermarkRef.Path == "":
		return fmt.Errorf("%w: missing watermark reference", ErrMalformedRecord)
	}
	if r.Fingerprint != "" {
		if _, err := phash.Parse(r.Fingerprint); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedRecord, err)
		}
	}
	for i, name := range Channels {
		s := r.HostS.At(i)
		if len(s) == 0 {
			return fmt.Errorf("%w: no host values for channel %c", ErrMalformedRecord, name)
		}
		for _, v := range s {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return fmt.Errorf("%w: host value %v in channel %c", ErrMalformedRecord, v, name)
			}
		}
		if shape := r.LLShapes.At(i); shape[0] < 0 || shape[1] < 0 {
			return fmt.Errorf("%w: sub-band shape %v in channel %c", ErrMalformedRecord, shape, name)
		}
	}
	return nil
}

// Marshal validates r and encodes it as indented JSON.
func Marshal(r *Record) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return json.MarshalIndent(r, "", "  ")
}

// Unmarshal decodes and validates a record.
func Unmarshal(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}
