package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yyyoichi/watermark_svd/internal/spectral"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, 0.6, c.Alpha)
	assert.Equal(t, 12, c.MatchThreshold)
	assert.Equal(t, 0.70, c.PCCThreshold)
	assert.Equal(t, StoreFile, c.Store.Kind)
	assert.Equal(t, 60*time.Second, c.Timeout)
	lvl, err := c.Level()
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, lvl)
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
alpha: 0.3
timeout: 5s
store:
  kind: sqlite
  path: /tmp/wm.db
log:
  level: debug
  human: true
`))
	require.NoError(t, err)
	assert.Equal(t, 0.3, c.Alpha)
	assert.Equal(t, 5*time.Second, c.Timeout)
	assert.Equal(t, StoreSQLite, c.Store.Kind)
	assert.Equal(t, "sideinfo", c.Store.Table, "unset keys keep defaults")
	assert.Equal(t, 12, c.MatchThreshold)
	assert.True(t, c.Log.Human)

	t.Run("empty document", func(t *testing.T) {
		c, err := Parse(nil)
		require.NoError(t, err)
		assert.Equal(t, Default(), c)
	})
}

func TestParse_AlphaBounds(t *testing.T) {
	// the config accepts exactly the alphas the embedder accepts
	for _, alpha := range []float64{spectral.MinAlpha, 0.05, 1} {
		c := Default()
		c.Alpha = alpha
		assert.NoError(t, c.Validate(), "alpha %v", alpha)
		assert.NoError(t, spectral.ValidateAlpha(alpha))
	}
	c, err := Parse([]byte("alpha: 1e-9"))
	require.NoError(t, err)
	assert.Equal(t, spectral.MinAlpha, c.Alpha)
}

func TestParse_Invalid(t *testing.T) {
	test := []struct {
		name string
		yaml string
	}{
		{"unknown key", "colour: red"},
		{"zero alpha", "alpha: 0"},
		{"alpha above one", "alpha: 2"},
		{"alpha below the usable minimum", "alpha: 1e-10"},
		{"nan alpha", "alpha: .nan"},
		{"pcc threshold", "pcc_threshold: 1.5"},
		{"match threshold", "match_threshold: 65"},
		{"workers", "workers: -1"},
		{"store kind", "store: {kind: s3}"},
		{"store path", "store: {kind: file, path: ''}"},
		{"evidence path", "evidence: {enabled: true, path: ''}"},
		{"log level", "log: {level: loud}"},
		{"syntax", "alpha: [1"},
	}
	for _, tt := range test {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoad(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)

	path := filepath.Join(t.TempDir(), "wmsvd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("match_threshold: 8\n"), 0o644))
	c, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, c.MatchThreshold)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
