package watermark

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/yyyoichi/watermark_svd/internal/phash"
	"github.com/yyyoichi/watermark_svd/internal/spectral"
)

type Option func(*Watermark) error

// WithAlpha sets the embedding strength, in (0, 1]. Larger values survive
// more processing but are more visible. Extraction always uses the alpha
// saved with each record.
func WithAlpha(alpha float64) Option {
	return func(w *Watermark) error {
		if err := spectral.ValidateAlpha(alpha); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidParameter, err)
		}
		w.alpha = alpha
		return nil
	}
}

// WithStore sets where side-information is saved and looked up.
func WithStore(s *Store) Option {
	return func(w *Watermark) error {
		if s == nil {
			return fmt.Errorf("%w: nil store", ErrInvalidParameter)
		}
		w.store = s
		return nil
	}
}

// WithMatchThreshold sets the largest fingerprint distance, in bits, at which
// a suspect image is matched to a stored record when no id is given.
func WithMatchThreshold(bits int) Option {
	return func(w *Watermark) error {
		if bits < 0 || bits > phash.Bits {
			return fmt.Errorf("%w: match threshold %d outside [0, %d]", ErrInvalidParameter, bits, phash.Bits)
		}
		w.matchThreshold = bits
		return nil
	}
}

// WithPCCThreshold sets the |PCC| at or above which Detect reports a match.
func WithPCCThreshold(threshold float64) Option {
	return func(w *Watermark) error {
		if err := validThreshold(threshold); err != nil {
			return err
		}
		w.pccThreshold = threshold
		return nil
	}
}

// WithWorkers bounds how many embed or extract calls run at once.
// Zero means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(w *Watermark) error {
		if n < 0 {
			return fmt.Errorf("%w: workers %d", ErrInvalidParameter, n)
		}
		w.workers = n
		return nil
	}
}

// WithTimeout limits each call, including the wait for a worker. Zero
// disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(w *Watermark) error {
		if d < 0 {
			return fmt.Errorf("%w: timeout %v", ErrInvalidParameter, d)
		}
		w.timeout = d
		return nil
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(w *Watermark) error {
		w.logger = l
		return nil
	}
}

// WithResolver replaces the default FileResolver used to load the watermark
// referenced by a record.
func WithResolver(r WatermarkResolver) Option {
	return func(w *Watermark) error {
		if r == nil {
			return fmt.Errorf("%w: nil resolver", ErrInvalidParameter)
		}
		w.resolver = r
		return nil
	}
}

// WithWatermarkDir stores resized watermarks as files in dir instead of
// inline in the record, and resolves relative references against it.
func WithWatermarkDir(dir string) Option {
	return func(w *Watermark) error {
		w.watermarkDir = dir
		return nil
	}
}

// WithEvidence records every Detect made through the instance.
func WithEvidence(e *EvidenceStore) Option {
	return func(w *Watermark) error {
		w.evidence = e
		return nil
	}
}

type embedOptions struct {
	outputPath string
}

type EmbedOption func(*embedOptions)

// WithOutputPath records where the caller writes the watermarked image.
func WithOutputPath(path string) EmbedOption {
	return func(o *embedOptions) {
		o.outputPath = path
	}
}
