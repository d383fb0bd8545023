package watermark

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yyyoichi/watermark_svd/internal/dwt"
	"github.com/yyyoichi/watermark_svd/internal/planes"
	"github.com/yyyoichi/watermark_svd/internal/spectral"
)

func random(seed uint64, w, h int, lo, hi float64) planes.Planes {
	rd := rand.New(rand.NewPCG(seed, seed))
	p := planes.New(w, h)
	for c := range planes.NumChannels {
		for i := range p.Channels[c] {
			p.Channels[c][i] = lo + rd.Float64()*(hi-lo)
		}
	}
	return p
}

func TestEmbedExtract(t *testing.T) {
	ctx := context.Background()
	for _, size := range [][2]int{{16, 12}, {10, 14}} {
		host, err := Decompose(ctx, random(1, size[0], size[1], 60, 140))
		require.NoError(t, err)
		mark, err := Decompose(ctx, random(2, size[0], size[1], 0, 60))
		require.NoError(t, err)
		assert.Equal(t, [2]int{(size[1] + 1) / 2, (size[0] + 1) / 2}, host.Shape())

		embedded, err := Embed(ctx, host, mark, 0.6)
		require.NoError(t, err)
		require.Equal(t, size[0], embedded.Planes.Width)
		for c := range planes.NumChannels {
			require.Len(t, embedded.HostS[c], min(host.Shape()[0], host.Shape()[1]))
		}

		suspect, err := Decompose(ctx, embedded.Planes)
		require.NoError(t, err)
		got, err := Extract(ctx, suspect, mark, embedded.HostS, 0.6)
		require.NoError(t, err)
		assert.Zero(t, got.Clamped)

		want := random(2, size[0], size[1], 0, 60)
		for c := range planes.NumChannels {
			assert.InDeltaSlice(t, want.Channels[c], got.Planes.Channels[c], 1e-6, "channel %d", c)
		}
	}
}

func TestEmbed_KeepsDetailBands(t *testing.T) {
	ctx := context.Background()
	host, err := Decompose(ctx, random(3, 8, 8, 60, 140))
	require.NoError(t, err)
	mark, err := Decompose(ctx, random(4, 8, 8, 0, 60))
	require.NoError(t, err)

	embedded, err := Embed(ctx, host, mark, 0.2)
	require.NoError(t, err)
	after, err := Decompose(ctx, embedded.Planes)
	require.NoError(t, err)
	for c := range planes.NumChannels {
		assert.InDeltaSlice(t, host.Bands[c].H, after.Bands[c].H, 1e-9)
		assert.InDeltaSlice(t, host.Bands[c].V, after.Bands[c].V, 1e-9)
		assert.InDeltaSlice(t, host.Bands[c].D, after.Bands[c].D, 1e-9)
	}
}

func TestShapeMismatch(t *testing.T) {
	ctx := context.Background()
	a, err := Decompose(ctx, random(1, 8, 8, 0, 1))
	require.NoError(t, err)
	b, err := Decompose(ctx, random(1, 6, 8, 0, 1))
	require.NoError(t, err)

	_, err = Embed(ctx, a, b, 0.5)
	assert.ErrorIs(t, err, dwt.ErrShape)
	_, err = Extract(ctx, a, b, [planes.NumChannels][]float64{}, 0.5)
	assert.ErrorIs(t, err, dwt.ErrShape)
}

func TestInvalidAlpha(t *testing.T) {
	ctx := context.Background()
	a, err := Decompose(ctx, random(1, 4, 4, 0, 1))
	require.NoError(t, err)
	_, err = Embed(ctx, a, a, 0)
	assert.ErrorIs(t, err, spectral.ErrInvalidAlpha)
}

func TestCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Decompose(ctx, random(1, 4, 4, 0, 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecompose_Empty(t *testing.T) {
	_, err := Decompose(context.Background(), planes.New(0, 0))
	assert.ErrorIs(t, err, dwt.ErrShape)
}
