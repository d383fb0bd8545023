package watermark

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/yyyoichi/watermark_svd/internal/phash"
	"github.com/yyyoichi/watermark_svd/internal/planes"
	"github.com/yyyoichi/watermark_svd/internal/watermark"
	"github.com/yyyoichi/watermark_svd/internal/workerpool"
)

// Reasons reported by an ExtractResult without extraction.
const (
	ReasonNoCandidate = "no stored fingerprint within the match threshold"
)

// resolution is either resolved or unresolved.
type resolution interface {
	resolution()
}

type resolved struct {
	record *Record
	// distance is -1 when the record was named by id.
	distance int
}

type unresolved struct {
	reason string
}

func (resolved) resolution()   {}
func (unresolved) resolution() {}

// Extraction is a recovered watermark.
type Extraction struct {
	Image         *image.RGBA64
	RecordID      string
	Params        Params
	CanonicalSize [2]int
	// Clamped counts singular values that came out negative. A non-zero
	// count means the suspect was likely not produced from this record.
	Clamped int
	// Distance is the fingerprint distance to the record, or -1 when the
	// record was named by id.
	Distance int
}

// ExtractResult holds either an Extraction or the reason none was possible.
type ExtractResult struct {
	Extraction *Extraction
	Reason     string
}

// Extracted reports whether a watermark was recovered.
func (r ExtractResult) Extracted() bool { return r.Extraction != nil }

// Extract recovers the watermark from suspect.
//
// With a hint, the record of that id is used and a missing record fails
// with ErrNotFound. Without one, the record whose fingerprint is closest to
// the suspect's is used; when none lies within the match threshold the
// result carries a reason and no error.
//
// Process:
//  1. Resizes the suspect and the referenced watermark to the canonical size.
//  2. Applies the Haar wavelet transform to each RGB channel of both.
//  3. Recovers the watermark singular values as (S_suspect - S_host) / alpha.
//  4. Rebuilds each LL band with the watermark's singular vectors and applies
//     the inverse transform with the watermark's detail bands.
//
// The lookup and every step run inside one pool slot and count against the
// timeout.
func (w *Watermark) Extract(ctx context.Context, suspect image.Image, hint string) (ExtractResult, error) {
	if err := validImage(suspect, "suspect"); err != nil {
		return ExtractResult{}, err
	}
	start := time.Now()

	type outcome struct {
		resolution resolution
		extracted  watermark.Extracted
	}
	out, err := workerpool.Do(ctx, w.pool, func(ctx context.Context) (outcome, error) {
		res, err := w.resolve(ctx, suspect, hint)
		if err != nil {
			return outcome{}, err
		}
		rd, ok := res.(resolved)
		if !ok {
			return outcome{resolution: res}, nil
		}
		ex, err := w.extract(ctx, suspect, rd)
		if err != nil {
			return outcome{}, err
		}
		return outcome{resolution: rd, extracted: ex}, nil
	})
	if err != nil {
		return ExtractResult{}, fmt.Errorf("extract: %w", err)
	}

	var rd resolved
	switch r := out.resolution.(type) {
	case unresolved:
		w.logger.Info().Str("reason", r.reason).Msg("no extraction")
		return ExtractResult{Reason: r.reason}, nil
	case resolved:
		rd = r
	}
	rec := rd.record
	e := &Extraction{
		Image:         out.extracted.Planes.Image(),
		RecordID:      rec.ID,
		Params:        rec.Params,
		CanonicalSize: rec.CanonicalSize,
		Clamped:       out.extracted.Clamped,
		Distance:      rd.distance,
	}
	ev := w.logger.Info()
	if e.Clamped > 0 {
		ev = w.logger.Warn()
	}
	ev.Str("record", rec.ID).
		Int("distance", rd.distance).
		Int("clamped", e.Clamped).
		Dur("elapsed", time.Since(start)).
		Msg("extracted watermark")
	return ExtractResult{Extraction: e}, nil
}

// extract runs the transform stage against a resolved record.
func (w *Watermark) extract(ctx context.Context, suspect image.Image, rd resolved) (watermark.Extracted, error) {
	rec := rd.record
	ref, err := w.resolver.Resolve(ctx, rec.WatermarkRef)
	if err != nil {
		return watermark.Extracted{}, fmt.Errorf("watermark reference of %s: %w", rec.ID, err)
	}
	cw, ch := rec.CanonicalSize[0], rec.CanonicalSize[1]
	sd, err := watermark.Decompose(ctx, planes.FromImage(planes.Resize(suspect, cw, ch)))
	if err != nil {
		return watermark.Extracted{}, err
	}
	if err := checkShapes(rec, sd.Shape()); err != nil {
		return watermark.Extracted{}, err
	}
	rdc, err := watermark.Decompose(ctx, planes.FromImage(planes.Resize(ref, cw, ch)))
	if err != nil {
		return watermark.Extracted{}, err
	}
	w.logger.Debug().Str("record", rec.ID).Msg("decomposed suspect and reference")

	var hostS [planes.NumChannels][]float64
	for c := range planes.NumChannels {
		hostS[c] = rec.HostS.At(c)
	}
	return watermark.Extract(ctx, sd, rdc, hostS, rec.Params.Alpha)
}

func (w *Watermark) resolve(ctx context.Context, suspect image.Image, hint string) (resolution, error) {
	if hint != "" {
		rec, err := w.store.Load(ctx, hint)
		if err != nil {
			return nil, err
		}
		return resolved{record: rec, distance: -1}, nil
	}
	fp := phash.Fingerprint(suspect)
	m, ok, err := w.store.FindByFingerprint(ctx, fp, w.matchThreshold)
	if err != nil {
		return nil, err
	}
	if !ok {
		w.logger.Debug().Str("fingerprint", fp.String()).Int("threshold", w.matchThreshold).Msg("fingerprint lookup missed")
		return unresolved{reason: ReasonNoCandidate}, nil
	}
	return resolved{record: m.Record, distance: m.Distance}, nil
}

// checkShapes rejects records whose LL shapes disagree with their canonical
// size. Records without shapes are accepted.
func checkShapes(rec *Record, shape [2]int) error {
	for c := range planes.NumChannels {
		s := rec.LLShapes.At(c)
		if s == (Shape{}) {
			continue
		}
		if [2]int(s) != shape {
			return fmt.Errorf("%w: sub-band shape %v, canonical size gives %v", ErrMalformedRecord, s, shape)
		}
	}
	return nil
}
