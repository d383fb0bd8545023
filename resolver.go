package watermark

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
)

// WatermarkResolver loads the watermark a record refers to.
type WatermarkResolver interface {
	Resolve(ctx context.Context, ref WatermarkRef) (image.Image, error)
}

// ResolverFunc adapts a function to WatermarkResolver.
type ResolverFunc func(ctx context.Context, ref WatermarkRef) (image.Image, error)

func (f ResolverFunc) Resolve(ctx context.Context, ref WatermarkRef) (image.Image, error) {
	return f(ctx, ref)
}

// FileResolver decodes inline watermark bytes, or reads the referenced file.
// Relative paths are taken from Dir.
type FileResolver struct {
	Dir string
}

func (r FileResolver) Resolve(ctx context.Context, ref WatermarkRef) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data := ref.Image
	if len(data) == 0 {
		if ref.Path == "" {
			return nil, fmt.Errorf("%w: empty watermark reference", ErrMalformedRecord)
		}
		path := ref.Path
		if !filepath.IsAbs(path) && r.Dir != "" {
			path = filepath.Join(r.Dir, path)
		}
		var err error
		data, err = os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: watermark file %s", ErrNotFound, path)
		}
		if err != nil {
			return nil, err
		}
	}
	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	return img, nil
}
