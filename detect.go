package watermark

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/yyyoichi/watermark_svd/internal/metrics"
	"github.com/yyyoichi/watermark_svd/internal/planes"
)

// Metrics are the similarity measures of one comparison.
type Metrics = metrics.Result

// DetectionResult is the outcome of comparing an extracted watermark with
// the original one.
type DetectionResult struct {
	Metrics   Metrics `json:"metrics"`
	Threshold float64 `json:"pcc_threshold"`
	// IsMatch is |PCC| >= Threshold. The absolute value also accepts
	// extractions that came out with inverted intensities.
	IsMatch    bool   `json:"is_match"`
	EvidenceID string `json:"evidence_id,omitempty"`
}

type detectOptions struct {
	threshold float64
	evidence  *EvidenceStore
	suspect   image.Image
	recordID  string
}

type DetectOption func(*detectOptions) error

// WithThreshold sets the |PCC| at or above which the comparison matches.
func WithThreshold(threshold float64) DetectOption {
	return func(o *detectOptions) error {
		if err := validThreshold(threshold); err != nil {
			return err
		}
		o.threshold = threshold
		return nil
	}
}

// WithEvidenceStore saves the comparison as an evidence record.
func WithEvidenceStore(e *EvidenceStore) DetectOption {
	return func(o *detectOptions) error {
		o.evidence = e
		return nil
	}
}

// WithSuspect attaches the suspect image to the evidence record.
func WithSuspect(img image.Image) DetectOption {
	return func(o *detectOptions) error {
		o.suspect = img
		return nil
	}
}

// WithRecordID attaches the side-information id to the evidence record.
func WithRecordID(id string) DetectOption {
	return func(o *detectOptions) error {
		o.recordID = id
		return nil
	}
}

func validThreshold(t float64) error {
	if math.IsNaN(t) || t < 0 || t > 1 {
		return fmt.Errorf("%w: threshold %v outside [0, 1]", ErrInvalidParameter, t)
	}
	return nil
}

// Detect compares the luminance of extracted against original. extracted is
// resized to the size of original first.
func Detect(original, extracted image.Image, opts ...DetectOption) (DetectionResult, error) {
	o := detectOptions{threshold: DefaultPCCThreshold}
	return detect(context.Background(), o, original, extracted, opts...)
}

// Detect is the package Detect with the instance's threshold and evidence
// store as defaults.
func (w *Watermark) Detect(ctx context.Context, original, extracted image.Image, opts ...DetectOption) (DetectionResult, error) {
	o := detectOptions{threshold: w.pccThreshold, evidence: w.evidence}
	r, err := detect(ctx, o, original, extracted, opts...)
	if err != nil {
		return r, err
	}
	w.logger.Info().
		Float64("pcc", r.Metrics.PCC).
		Float64("ssim", r.Metrics.SSIM).
		Float64("threshold", r.Threshold).
		Bool("match", r.IsMatch).
		Str("evidence", r.EvidenceID).
		Msg("detection")
	return r, nil
}

func detect(ctx context.Context, o detectOptions, original, extracted image.Image, opts ...DetectOption) (DetectionResult, error) {
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return DetectionResult{}, err
		}
	}
	if err := validImage(original, "original"); err != nil {
		return DetectionResult{}, err
	}
	if err := validImage(extracted, "extracted"); err != nil {
		return DetectionResult{}, err
	}
	b := original.Bounds()
	a := planes.Luma(original)
	e := planes.Luma(planes.Resize(extracted, b.Dx(), b.Dy()))
	m, err := metrics.Compute(a, e, b.Dx())
	if err != nil {
		return DetectionResult{}, err
	}
	r := DetectionResult{
		Metrics:   m,
		Threshold: o.threshold,
		IsMatch:   m.PCCAbs >= o.threshold,
	}
	if o.evidence != nil {
		id, err := o.evidence.Record(ctx, r, original, extracted, o.suspect, o.recordID)
		if err != nil {
			return r, fmt.Errorf("save evidence: %w", err)
		}
		r.EvidenceID = id
	}
	return r, nil
}
