// Package config loads the YAML settings shared by the command line tools.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/yyyoichi/watermark_svd/internal/spectral"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid configuration")

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

type Config struct {
	Alpha          float64       `yaml:"alpha"`
	MatchThreshold int           `yaml:"match_threshold"`
	PCCThreshold   float64       `yaml:"pcc_threshold"`
	Store          Store         `yaml:"store"`
	Evidence       Evidence      `yaml:"evidence"`
	WatermarkDir   string        `yaml:"watermark_dir"`
	Workers        int           `yaml:"workers"`
	Timeout        time.Duration `yaml:"timeout"`
	Log            Log           `yaml:"log"`
	HTTPCache      HTTPCache     `yaml:"http_cache"`
}

type Store struct {
	Kind string `yaml:"kind"`
	// Path is a directory for "file" and a database file for "sqlite".
	Path  string `yaml:"path"`
	Table string `yaml:"table"`
}

type Evidence struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type Log struct {
	Level string `yaml:"level"`
	Human bool   `yaml:"human"`
}

// HTTPCache configures the on-disk cache for images fetched by URL.
type HTTPCache struct {
	Dir string `yaml:"dir"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Alpha:          0.6,
		MatchThreshold: 12,
		PCCThreshold:   0.70,
		Store:          Store{Kind: StoreFile, Path: "./sideinfo", Table: "sideinfo"},
		Evidence:       Evidence{Path: "./detections"},
		Workers:        0,
		Timeout:        60 * time.Second,
		Log:            Log{Level: "info"},
		HTTPCache:      HTTPCache{Dir: filepath.Join(os.TempDir(), "wmsvd_http_cache")},
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := spectral.ValidateAlpha(c.Alpha); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	switch {
	case c.MatchThreshold < 0 || c.MatchThreshold > 64:
		return fmt.Errorf("%w: match_threshold %d outside [0, 64]", ErrInvalid, c.MatchThreshold)
	case math.IsNaN(c.PCCThreshold) || c.PCCThreshold < 0 || c.PCCThreshold > 1:
		return fmt.Errorf("%w: pcc_threshold %v outside [0, 1]", ErrInvalid, c.PCCThreshold)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers %d", ErrInvalid, c.Workers)
	case c.Timeout < 0:
		return fmt.Errorf("%w: timeout %v", ErrInvalid, c.Timeout)
	}
	switch c.Store.Kind {
	case StoreMemory:
	case StoreFile, StoreSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store %s needs a path", ErrInvalid, c.Store.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown store kind %q", ErrInvalid, c.Store.Kind)
	}
	if c.Evidence.Enabled && c.Evidence.Path == "" {
		return fmt.Errorf("%w: evidence needs a path", ErrInvalid)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses the configured log level.
func (c Config) Level() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return lvl, nil
}
