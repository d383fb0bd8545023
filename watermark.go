package watermark

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/yyyoichi/watermark_svd/internal/dwt"
	"github.com/yyyoichi/watermark_svd/internal/phash"
	"github.com/yyyoichi/watermark_svd/internal/planes"
	"github.com/yyyoichi/watermark_svd/internal/sideinfo"
	"github.com/yyyoichi/watermark_svd/internal/spectral"
	"github.com/yyyoichi/watermark_svd/internal/watermark"
	"github.com/yyyoichi/watermark_svd/internal/workerpool"
)

var (
	ErrInvalidImage     = errors.New("invalid image")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrShape            = dwt.ErrShape
	ErrNotFound         = sideinfo.ErrNotFound
	ErrMalformedRecord  = sideinfo.ErrMalformedRecord
	ErrTimeout          = workerpool.ErrTimeout
)

// Defaults applied by New.
const (
	DefaultAlpha          = 0.6
	DefaultMatchThreshold = 12
	DefaultPCCThreshold   = 0.70
	DefaultTimeout        = 60 * time.Second
)

// Embed embeds mark into original with the specified options.
// This is a convenience function that creates a Watermark instance and calls its Embed method.
func Embed(ctx context.Context, original, mark image.Image, opts ...Option) (*Embedding, error) {
	w, err := New(opts...)
	if err != nil {
		return nil, err
	}
	return w.Embed(ctx, original, mark)
}

// Extract extracts a watermark from suspect with the specified options.
// This is a convenience function that creates a Watermark instance and calls its Extract method.
func Extract(ctx context.Context, suspect image.Image, hint string, opts ...Option) (ExtractResult, error) {
	w, err := New(opts...)
	if err != nil {
		return ExtractResult{}, err
	}
	return w.Extract(ctx, suspect, hint)
}

type Watermark struct {
	alpha          float64
	matchThreshold int
	pccThreshold   float64
	workers        int
	timeout        time.Duration
	watermarkDir   string

	store    *Store
	resolver WatermarkResolver
	evidence *EvidenceStore
	logger   zerolog.Logger
	pool     *workerpool.Pool
}

// New initializes a watermark processor. Without WithStore, side-information
// lives in memory for the lifetime of the instance.
func New(opts ...Option) (*Watermark, error) {
	w := &Watermark{
		alpha:          DefaultAlpha,
		matchThreshold: DefaultMatchThreshold,
		pccThreshold:   DefaultPCCThreshold,
		timeout:        DefaultTimeout,
		logger:         zerolog.Nop(),
	}
	if err := w.init(opts...); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Watermark) init(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return err
		}
	}
	if w.store == nil {
		s, err := sideinfo.Open(context.Background(), sideinfo.NewMemoryStorage())
		if err != nil {
			return err
		}
		w.store = s
	}
	if w.resolver == nil {
		w.resolver = FileResolver{Dir: w.watermarkDir}
	}
	w.pool = workerpool.New(w.workers, w.timeout)
	return nil
}

// Alpha returns the embedding strength.
func (w *Watermark) Alpha() float64 { return w.alpha }

// Store returns the side-information store.
func (w *Watermark) Store() *Store { return w.store }

// Embedding is the outcome of a successful Embed.
type Embedding struct {
	Image    *image.RGBA64
	RecordID string
	Record   *Record
}

// Embed hides mark in original and persists the side-information needed to
// extract it again.
//
// Process:
//  1. Resizes mark to the size of original.
//  2. Applies the Haar wavelet transform to each RGB channel of both.
//  3. Adds alpha times the singular values of each mark LL band to those of the host.
//  4. Applies the inverse transform with the host detail bands.
//  5. Fingerprints the result and saves the side-information record.
//
// Steps 1 to 5 run inside one pool slot and count against the timeout. The
// record is written only when the work completes before ctx ends.
func (w *Watermark) Embed(ctx context.Context, original, mark image.Image, opts ...EmbedOption) (*Embedding, error) {
	if err := validImage(original, "original"); err != nil {
		return nil, err
	}
	return w.embed(ctx, original, nil, mark, opts...)
}

// embed runs one embedding inside a single pool slot. host is the
// decomposition of original when already known.
func (w *Watermark) embed(ctx context.Context, original image.Image, host *watermark.Decomposition, mark image.Image, opts ...EmbedOption) (*Embedding, error) {
	var eo embedOptions
	for _, opt := range opts {
		opt(&eo)
	}
	if err := validImage(mark, "watermark"); err != nil {
		return nil, err
	}
	if err := spectral.ValidateAlpha(w.alpha); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	start := time.Now()
	width, height := original.Bounds().Dx(), original.Bounds().Dy()
	log := w.logger.With().Int("width", width).Int("height", height).Float64("alpha", w.alpha).Logger()

	type result struct {
		img         *image.RGBA64
		hostS       [planes.NumChannels][]float64
		shape       [2]int
		fingerprint phash.Hash
		reference   []byte
	}
	res, err := workerpool.Do(ctx, w.pool, func(ctx context.Context) (result, error) {
		host := host
		if host == nil {
			var err error
			if host, err = watermark.Decompose(ctx, planes.FromImage(original)); err != nil {
				return result{}, err
			}
			log.Debug().Msg("decomposed host")
		}
		resized := planes.Resize(mark, width, height)
		ref, err := Encode(resized)
		if err != nil {
			return result{}, err
		}
		md, err := watermark.Decompose(ctx, planes.FromImage(resized))
		if err != nil {
			return result{}, err
		}
		log.Debug().Msg("decomposed watermark")
		out, err := watermark.Embed(ctx, host, md, w.alpha)
		if err != nil {
			return result{}, err
		}
		img := out.Planes.Image()
		return result{
			img:         img,
			hostS:       out.HostS,
			shape:       host.Shape(),
			fingerprint: phash.Fingerprint(img),
			reference:   ref,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec := &Record{
		ID:            uuid.NewString(),
		Params:        Params{Alpha: w.alpha, Wavelet: sideinfo.Wavelet, Channels: sideinfo.Channels},
		CanonicalSize: sideinfo.Size{width, height},
		WatermarkRef:  sideinfo.WatermarkRef{ResizedTo: sideinfo.Size{width, height}},
		Fingerprint:   res.fingerprint.String(),
		OutputPath:    eo.outputPath,
	}
	for c := range planes.NumChannels {
		rec.HostS.Set(c, res.hostS[c])
		rec.LLShapes.Set(c, sideinfo.Shape(res.shape))
	}
	if err := w.storeReference(rec, res.reference); err != nil {
		return nil, err
	}
	if _, err := w.store.Save(ctx, rec); err != nil {
		w.dropReference(rec)
		return nil, fmt.Errorf("save side-information: %w", err)
	}

	log.Info().Str("record", rec.ID).Str("fingerprint", rec.Fingerprint).Dur("elapsed", time.Since(start)).Msg("embedded watermark")
	return &Embedding{Image: res.img, RecordID: rec.ID, Record: rec}, nil
}

// storeReference keeps the resized watermark inline, or as a file in the
// watermark directory when one is configured.
func (w *Watermark) storeReference(rec *Record, data []byte) error {
	if w.watermarkDir == "" {
		rec.WatermarkRef.Image = data
		return nil
	}
	name := rec.ID + ".png"
	if err := os.MkdirAll(w.watermarkDir, 0o755); err != nil {
		return fmt.Errorf("failed to create watermark directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(w.watermarkDir, name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write watermark reference: %w", err)
	}
	rec.WatermarkRef.Path = name
	return nil
}

func (w *Watermark) dropReference(rec *Record) {
	if w.watermarkDir != "" && rec.WatermarkRef.Path != "" {
		os.Remove(filepath.Join(w.watermarkDir, rec.WatermarkRef.Path))
	}
}

func validImage(img image.Image, name string) error {
	if img == nil {
		return fmt.Errorf("%w: %s is nil", ErrInvalidImage, name)
	}
	if b := img.Bounds(); b.Empty() {
		return fmt.Errorf("%w: %s has no pixels", ErrInvalidImage, name)
	}
	return nil
}
