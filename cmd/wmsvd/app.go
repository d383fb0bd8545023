package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
	"github.com/yyyoichi/httpcache-go"
	watermark "github.com/yyyoichi/watermark_svd"
	"github.com/yyyoichi/watermark_svd/internal/config"
	"github.com/yyyoichi/watermark_svd/internal/phash"
)

type app struct {
	cfg     config.Config
	stdout  io.Writer
	closers []io.Closer
	client  *httpcache.Client
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}
}

// storage opens the backend named by the config. name selects the table
// or subdirectory so side-information and evidence can share a location.
func (a *app) storage(kind, path, name string) (watermark.Storage, error) {
	switch kind {
	case config.StoreMemory:
		return watermark.NewMemoryStorage(), nil
	case config.StoreSQLite:
		s, err := watermark.OpenSQLite(path, name)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s)
		return s, nil
	default:
		return watermark.NewFileStorage(path)
	}
}

func (a *app) watermark(ctx context.Context) (*watermark.Watermark, error) {
	storage, err := a.storage(a.cfg.Store.Kind, a.cfg.Store.Path, a.cfg.Store.Table)
	if err != nil {
		return nil, err
	}
	store, err := watermark.OpenStore(ctx, storage)
	if err != nil {
		return nil, err
	}
	for _, id := range store.Skipped() {
		log.Warn().Str("record", id).Msg("skipped malformed side-information")
	}
	opts := []watermark.Option{
		watermark.WithStore(store),
		watermark.WithAlpha(a.cfg.Alpha),
		watermark.WithMatchThreshold(a.cfg.MatchThreshold),
		watermark.WithPCCThreshold(a.cfg.PCCThreshold),
		watermark.WithWorkers(a.cfg.Workers),
		watermark.WithTimeout(a.cfg.Timeout),
		watermark.WithWatermarkDir(a.cfg.WatermarkDir),
		watermark.WithLogger(log.Logger),
	}
	if a.cfg.Evidence.Enabled {
		ev, err := a.evidence()
		if err != nil {
			return nil, err
		}
		opts = append(opts, watermark.WithEvidence(ev))
	}
	return watermark.New(opts...)
}

func (a *app) evidence() (*watermark.EvidenceStore, error) {
	kind, path := config.StoreFile, a.cfg.Evidence.Path
	if a.cfg.Store.Kind == config.StoreSQLite {
		kind, path = config.StoreSQLite, a.cfg.Store.Path
	}
	s, err := a.storage(kind, path, "evidence")
	if err != nil {
		return nil, err
	}
	return watermark.NewEvidenceStore(s), nil
}

// load reads an image from a file or an http(s) URL. Responses are cached
// on disk.
func (a *app) load(src string) (image.Image, error) {
	if src == "" {
		return nil, fmt.Errorf("%w: missing image", errUsage)
	}
	var data []byte
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		if a.client == nil {
			a.client = &httpcache.Client{
				Client:  http.DefaultClient,
				Cache:   httpcache.NewStorageCache(a.cfg.HTTPCache.Dir),
				Handler: httpcache.NewDefaultHandler(),
			}
		}
		log.Debug().Str("url", src).Msg("fetch image")
		resp, err := a.client.Get(src)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", src, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("failed to fetch %s: %s", src, resp.Status)
		}
		if data, err = io.ReadAll(resp.Body); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", src, err)
		}
	} else {
		var err error
		if data, err = os.ReadFile(src); err != nil {
			return nil, err
		}
	}
	img, err := watermark.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src, err)
	}
	return img, nil
}

func write(path string, img image.Image) error {
	data, err := watermark.Encode(img)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) embed(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("embed", flag.ContinueOnError)
	src := fs.String("src", "", "host image path or URL")
	markPath := fs.String("mark", "", "watermark image path or URL")
	qrText := fs.String("qr", "", "use a QR code of this text as the watermark")
	dst := fs.String("dst", "", "output PNG path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dst == "" || (*markPath == "") == (*qrText == "") {
		fs.Usage()
		return fmt.Errorf("%w: embed needs -src, -dst and one of -mark or -qr", errUsage)
	}

	original, err := a.load(*src)
	if err != nil {
		return err
	}
	var mark image.Image
	if *qrText != "" {
		mark, err = qrImage(*qrText, 256)
	} else {
		mark, err = a.load(*markPath)
	}
	if err != nil {
		return err
	}

	w, err := a.watermark(ctx)
	if err != nil {
		return err
	}
	e, err := w.Embed(ctx, original, mark, watermark.WithOutputPath(*dst))
	if err != nil {
		return err
	}
	if err := write(*dst, e.Image); err != nil {
		return err
	}
	return a.print(map[string]any{
		"id":          e.RecordID,
		"fingerprint": e.Record.Fingerprint,
		"output_path": *dst,
		"alpha":       e.Record.Params.Alpha,
	})
}

func (a *app) extract(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	src := fs.String("src", "", "suspect image path or URL")
	id := fs.String("id", "", "side-information id; looked up by fingerprint when empty")
	dst := fs.String("dst", "", "output PNG path for the extracted watermark")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dst == "" {
		fs.Usage()
		return fmt.Errorf("%w: extract needs -src and -dst", errUsage)
	}

	suspect, err := a.load(*src)
	if err != nil {
		return err
	}
	w, err := a.watermark(ctx)
	if err != nil {
		return err
	}
	r, err := w.Extract(ctx, suspect, *id)
	if err != nil {
		return err
	}
	if !r.Extracted() {
		return a.print(map[string]any{"extracted": false, "reason": r.Reason})
	}
	if err := write(*dst, r.Extraction.Image); err != nil {
		return err
	}
	return a.print(map[string]any{
		"extracted":      true,
		"id":             r.Extraction.RecordID,
		"distance":       r.Extraction.Distance,
		"clamped":        r.Extraction.Clamped,
		"canonical_size": r.Extraction.CanonicalSize,
		"output_path":    *dst,
	})
}

func (a *app) detect(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	original := fs.String("original", "", "original watermark path or URL")
	extracted := fs.String("extracted", "", "extracted watermark path or URL")
	suspect := fs.String("suspect", "", "suspect image kept with the evidence")
	id := fs.String("id", "", "side-information id kept with the evidence")
	threshold := fs.Float64("threshold", a.cfg.PCCThreshold, "|PCC| match threshold")
	if err := fs.Parse(args); err != nil {
		return err
	}

	o, err := a.load(*original)
	if err != nil {
		return err
	}
	e, err := a.load(*extracted)
	if err != nil {
		return err
	}
	opts := []watermark.DetectOption{watermark.WithThreshold(*threshold), watermark.WithRecordID(*id)}
	if *suspect != "" {
		s, err := a.load(*suspect)
		if err != nil {
			return err
		}
		opts = append(opts, watermark.WithSuspect(s))
	}
	w, err := a.watermark(ctx)
	if err != nil {
		return err
	}
	r, err := w.Detect(ctx, o, e, opts...)
	if err != nil {
		return err
	}
	return a.print(r)
}

func (a *app) fingerprint(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("fingerprint", flag.ContinueOnError)
	src := fs.String("src", "", "image path or URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	img, err := a.load(*src)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.stdout, phash.Fingerprint(img))
	return err
}

func (a *app) qr(args []string) error {
	fs := flag.NewFlagSet("qr", flag.ContinueOnError)
	text := fs.String("text", "", "content of the QR code")
	size := fs.Int("size", 256, "image size in pixels")
	dst := fs.String("dst", "", "output PNG path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *text == "" || *dst == "" {
		fs.Usage()
		return fmt.Errorf("%w: qr needs -text and -dst", errUsage)
	}
	img, err := qrImage(*text, *size)
	if err != nil {
		return err
	}
	return write(*dst, img)
}

func qrImage(text string, size int) (image.Image, error) {
	data, err := qrcode.Encode(text, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to render QR code: %w", err)
	}
	return watermark.Decode(data)
}
