package upscaler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiesman99/goat/internal/model"
	"github.com/kiesman99/goat/pkg/tile"
)

func TestQuadrantOverlap(t *testing.T) {
	tests := []struct {
		size, want int
	}{
		{256, 32},
		{1024, 64},
		{4096, 64},
		{100, 12},
		{40, 8},
		{8, 7},
		{2, 1},
		{1, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QuadrantOverlap(tt.size), "size %d", tt.size)
	}
}

func TestQuadrants(t *testing.T) {
	ov := QuadrantOverlap(256)
	assert.Equal(t, []quadrant{
		{0, 0, 288, 288},
		{224, 0, 512, 288},
		{0, 224, 288, 512},
		{224, 224, 512, 512},
	}, quadrants(512, 512, ov, ov))
}

func TestTiledInferScenario(t *testing.T) {
	img := tile.NewImage(512, 512, 1, tile.FormatFloat)
	for i := range img.Pix {
		img.Pix[i] = 0.25
	}

	out, err := TiledInfer(t.Context(), replicate(4), img)
	require.NoError(t, err)
	assert.Equal(t, 2048, out.Width)
	assert.Equal(t, 2048, out.Height)

	for _, p := range [][2]int{{0, 0}, {1023, 1023}, {900, 1100}, {1151, 0}, {2047, 2047}} {
		assert.InDelta(t, 0.25, out.At(p[0], p[1], 0), 1e-6, "%v", p)
	}
}

func TestTiledInferMatchesWholeImage(t *testing.T) {
	for _, size := range [][2]int{{37, 29}, {16, 16}, {64, 9}, {3, 2}} {
		for _, format := range []tile.PixelFormat{tile.FormatUint8, tile.FormatFloat} {
			img := gradient(size[0], size[1], 3, format)
			m := replicate(2)

			want, err := model.InferOne(t.Context(), m, img)
			require.NoError(t, err)

			got, err := TiledInfer(t.Context(), m, img)
			require.NoError(t, err)
			require.Equal(t, want.Width, got.Width)
			require.Equal(t, want.Height, got.Height)
			assert.Equal(t, format, got.Format)

			if format == tile.FormatUint8 {
				assert.Equal(t, want.Pix, got.Pix, "%v", size)
				continue
			}
			assert.InDeltaSlice(t, want.Pix, got.Pix, 1e-5, "%v", size)
		}
	}
}

func TestTiledInferBlendsSeams(t *testing.T) {
	// The model brightens each quadrant differently, so the overlap must
	// transition smoothly between them.
	var calls int
	m := model.New(1, func(_ context.Context, img *tile.Image) (*tile.Image, error) {
		calls++
		out := img.Clone()
		for i := range out.Pix {
			out.Pix[i] = float32(calls)
		}
		return out, nil
	})

	img := tile.NewImage(64, 64, 1, tile.FormatFloat)
	out, err := TiledInfer(t.Context(), m, img)
	require.NoError(t, err)

	// Quadrant 1 spans [0,40), quadrant 2 spans [24,64) on the x axis.
	assert.InDelta(t, 1, out.At(10, 5, 0), 1e-6)
	assert.InDelta(t, 2, out.At(50, 5, 0), 1e-6)
	prev := out.At(24, 5, 0)
	for x := 25; x < 40; x++ {
		v := out.At(x, 5, 0)
		assert.GreaterOrEqual(t, v, prev)
		prev = v
	}
	assert.InDelta(t, 1, out.At(24, 5, 0), 1e-6)
	assert.InDelta(t, 2, out.At(39, 5, 0), 1e-6)
}

func TestTiledInferRejectsTinyImages(t *testing.T) {
	_, err := TiledInfer(t.Context(), replicate(2), tile.NewImage(1, 8, 3, tile.FormatFloat))
	assert.Error(t, err)
}

func TestTiledInferChecksModelOutput(t *testing.T) {
	short := model.New(2, func(_ context.Context, img *tile.Image) (*tile.Image, error) {
		return tile.NewImage(img.Width, img.Height, img.Channels, img.Format), nil
	})
	_, err := TiledInfer(t.Context(), short, gradient(20, 20, 3, tile.FormatFloat))
	assert.ErrorContains(t, err, "expected at least")
}

func TestTiledInferStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := TiledInfer(ctx, replicate(2), gradient(20, 20, 3, tile.FormatFloat))
	assert.ErrorIs(t, err, context.Canceled)
}
