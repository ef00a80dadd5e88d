package upscaler

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiesman99/goat/internal/model"
	"github.com/kiesman99/goat/internal/resample"
	"github.com/kiesman99/goat/pkg/tile"
)

// replicate is a model that repeats every pixel scale x scale times
func replicate(scale int) model.Model {
	return model.New(scale, func(_ context.Context, img *tile.Image) (*tile.Image, error) {
		out := tile.NewImage(img.Width*scale, img.Height*scale, img.Channels, img.Format)
		for y := 0; y < out.Height; y++ {
			for x := 0; x < out.Width; x++ {
				for c := 0; c < img.Channels; c++ {
					out.Set(x, y, c, img.At(x/scale, y/scale, c))
				}
			}
		}
		return out, nil
	})
}

func gradient(w, h, c int, format tile.PixelFormat) *tile.Image {
	img := tile.NewImage(w, h, c, format)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for ch := 0; ch < c; ch++ {
				v := float64((x*5+y*11+ch*40)%256) / 255
				img.Set(x, y, ch, float32(v*format.Max()))
			}
		}
	}
	if format == tile.FormatUint8 {
		for i, v := range img.Pix {
			img.Pix[i] = float32(math.Round(float64(v)))
		}
	}
	return img
}

// counting wraps the default resampler and records every call
type counting struct {
	calls  atomic.Int32
	failAt int32
}

func (r *counting) Resample(ctx context.Context, img *tile.Image, w, h int, m resample.Method) (*tile.Image, error) {
	n := r.calls.Add(1)
	if n == r.failAt {
		return nil, errors.New("resampler exploded")
	}
	return resample.Resample(ctx, img, w, h, m)
}

// flakyModel fails or panics on the given call
type flakyModel struct {
	model.Model
	calls   int
	failAt  int
	doPanic bool
}

func (m *flakyModel) Infer(ctx context.Context, batch []*tile.Image) ([]*tile.Image, error) {
	m.calls++
	if m.calls == m.failAt {
		if m.doPanic {
			panic("out of memory")
		}
		return nil, errors.New("inference failed")
	}
	return m.Model.Infer(ctx, batch)
}

func opts(by float64, order Stage2Order, mixed, tiled bool) Options {
	return Options{UpscaleBy: by, Method: resample.Bilinear, Stage2Order: order, MixedInitial: mixed, Tiled: tiled}
}

func TestUnitScaleModelHitsExactSize(t *testing.T) {
	sizes := [][2]int{{10, 7}, {13, 9}, {32, 32}, {5, 17}}
	factors := []float64{1, 1.25, 1.5, 2.5, 3.3, 16}

	for _, size := range sizes {
		img := gradient(size[0], size[1], 3, tile.FormatFloat)
		for _, by := range factors {
			for _, order := range []Stage2Order{DownscaleFirst, UpscaleFirst} {
				for _, mixed := range []bool{false, true} {
					res := New(replicate(1), nil).Upscale(t.Context(), img, opts(by, order, mixed, true))
					require.False(t, res.Fallback, "%v", res.Err)

					assert.Equal(t, int(math.RoundToEven(float64(size[0])*by)), res.Width)
					assert.Equal(t, int(math.RoundToEven(float64(size[1])*by)), res.Height)
					assert.Equal(t, res.Width, res.Image.Width)
					assert.Equal(t, res.Height, res.Image.Height)
				}
			}
		}
	}
}

func TestUnitScaleRoundsHalfToEven(t *testing.T) {
	img := gradient(10, 13, 3, tile.FormatFloat)
	res := New(replicate(1), nil).Upscale(t.Context(), img, opts(1.25, DownscaleFirst, false, false))
	require.False(t, res.Fallback)
	// 12.5 and 16.25
	assert.Equal(t, 12, res.Width)
	assert.Equal(t, 16, res.Height)
}

func TestStage1Overshoot(t *testing.T) {
	r := &counting{}
	img := gradient(10, 6, 3, tile.FormatFloat)

	res := New(replicate(4), r).Upscale(t.Context(), img, opts(2, DownscaleFirst, false, false))
	require.False(t, res.Fallback, "%v", res.Err)
	assert.Equal(t, 20, res.Width)
	assert.Equal(t, 12, res.Height)
	assert.EqualValues(t, 1, r.calls.Load())
}

func TestStage1Exact(t *testing.T) {
	r := &counting{}
	img := gradient(10, 6, 3, tile.FormatUint8)

	res := New(replicate(2), r).Upscale(t.Context(), img, opts(2, DownscaleFirst, false, false))
	require.False(t, res.Fallback, "%v", res.Err)
	assert.Equal(t, 20, res.Width)
	assert.Equal(t, 12, res.Height)
	assert.EqualValues(t, 0, r.calls.Load())
	assert.Equal(t, img.At(3, 2, 1), res.Image.At(7, 5, 1))
}

func TestStage2(t *testing.T) {
	tests := []struct {
		name          string
		by            float64
		order         Stage2Order
		width, height int
		resamples     int32
		modelCalls    int
	}{
		// 20x12 after stage 1, model to 40x24, shrink to 30x18
		{"upscale first shrinks", 3, UpscaleFirst, 30, 18, 1, 2},
		// model lands on 40x24 directly
		{"upscale first exact", 4, UpscaleFirst, 40, 24, 0, 2},
		// shrink to 15x9, model lands on 30x18
		{"downscale first", 3, DownscaleFirst, 30, 18, 1, 2},
		// interim 20x12, model lands on 40x24
		{"downscale first exact", 4, DownscaleFirst, 40, 24, 1, 2},
		// 20x12 -> interim round(20*2.5/2)=25 x 15 -> 50x30 -> 50x30
		{"downscale first fractional", 5, DownscaleFirst, 50, 30, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &counting{}
			m := &flakyModel{Model: replicate(2)}
			img := gradient(10, 6, 3, tile.FormatFloat)

			res := New(m, r).Upscale(t.Context(), img, opts(tt.by, tt.order, false, false))
			require.False(t, res.Fallback, "%v", res.Err)
			assert.Equal(t, tt.width, res.Width)
			assert.Equal(t, tt.height, res.Height)
			assert.Equal(t, tt.resamples, r.calls.Load())
			assert.Equal(t, tt.modelCalls, m.calls)
		})
	}
}

func TestStage2Tiled(t *testing.T) {
	img := gradient(40, 24, 3, tile.FormatUint8)

	for _, order := range []Stage2Order{DownscaleFirst, UpscaleFirst} {
		res := New(replicate(2), nil).Upscale(t.Context(), img, opts(3, order, false, true))
		require.False(t, res.Fallback, "%v", res.Err)
		assert.Equal(t, 120, res.Width)
		assert.Equal(t, 72, res.Height)
	}
}

func TestFallbackReturnsOriginalInput(t *testing.T) {
	img := gradient(16, 12, 3, tile.FormatFloat)

	tests := []struct {
		name  string
		model model.Model
		r     resample.Resampler
		opts  Options
	}{
		{"model error", &flakyModel{Model: replicate(2), failAt: 1}, nil, opts(2, DownscaleFirst, true, false)},
		{"model panic", &flakyModel{Model: replicate(2), failAt: 1, doPanic: true}, nil, opts(2, DownscaleFirst, true, false)},
		{"stage 2 model panic", &flakyModel{Model: replicate(2), failAt: 2, doPanic: true}, nil, opts(3, UpscaleFirst, true, false)},
		{"tiled model error", &flakyModel{Model: replicate(2), failAt: 3}, nil, opts(2, DownscaleFirst, true, true)},
		{"resampler error", replicate(2), &counting{failAt: 1}, opts(2, DownscaleFirst, true, false)},
		{"upscale_by too small", replicate(2), nil, opts(0.5, DownscaleFirst, true, false)},
		{"upscale_by too large", replicate(2), nil, opts(17, DownscaleFirst, true, false)},
		{"unknown stage 2 order", replicate(2), nil, opts(3, Stage2Order(7), true, false)},
		{"unknown method", replicate(2), nil, Options{UpscaleBy: 2, Method: resample.Method(42), MixedInitial: true}},
		{"nil model", nil, nil, opts(2, DownscaleFirst, true, false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New(tt.model, tt.r).Upscale(t.Context(), img, tt.opts)
			require.True(t, res.Fallback)
			assert.Error(t, res.Err)
			assert.Same(t, img, res.Image)
			assert.Equal(t, 16, res.Width)
			assert.Equal(t, 12, res.Height)
		})
	}
}

func TestFallbackOnEveryStep(t *testing.T) {
	img := gradient(24, 20, 3, tile.FormatFloat)

	for _, order := range []Stage2Order{DownscaleFirst, UpscaleFirst} {
		for _, tiled := range []bool{false, true} {
			o := opts(3, order, true, tiled)

			// count the calls of a clean run first
			r := &counting{}
			m := &flakyModel{Model: replicate(2)}
			res := New(m, r).Upscale(t.Context(), img, o)
			require.False(t, res.Fallback, "%v", res.Err)

			for n := 1; n <= int(r.calls.Load()); n++ {
				res := New(replicate(2), &counting{failAt: int32(n)}).Upscale(t.Context(), img, o)
				assert.True(t, res.Fallback, "resample call %d", n)
				assert.Same(t, img, res.Image)
			}
			for n := 1; n <= m.calls; n++ {
				res := New(&flakyModel{Model: replicate(2), failAt: n, doPanic: n%2 == 0}, nil).Upscale(t.Context(), img, o)
				assert.True(t, res.Fallback, "model call %d", n)
				assert.Same(t, img, res.Image)
			}
		}
	}
}

func TestCancelledContextFallsBack(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	img := gradient(16, 16, 3, tile.FormatFloat)
	res := New(replicate(2), nil).Upscale(ctx, img, opts(2, DownscaleFirst, false, false))
	require.True(t, res.Fallback)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestMixInitial(t *testing.T) {
	black := resample.Func(func(_ context.Context, img *tile.Image, w, h int, _ resample.Method) (*tile.Image, error) {
		return tile.NewImage(w, h, img.Channels, img.Format), nil
	})

	img := gradient(6, 4, 3, tile.FormatUint8)
	mixed, err := New(replicate(2), black).mixInitial(t.Context(), img, resample.Bilinear)
	require.NoError(t, err)

	for i, v := range img.Pix {
		assert.Equal(t, float32(math.Round(float64(v)/2)), mixed.Pix[i])
	}
}

func TestMixInitialKeepsConstantImage(t *testing.T) {
	img := tile.NewImage(9, 7, 3, tile.FormatFloat)
	for i := range img.Pix {
		img.Pix[i] = 0.5
	}

	mixed, err := New(replicate(2), nil).mixInitial(t.Context(), img, resample.Lanczos)
	require.NoError(t, err)
	for _, v := range mixed.Pix {
		assert.InDelta(t, 0.5, v, 1e-3)
	}
}

func TestParseStage2Order(t *testing.T) {
	for _, o := range []Stage2Order{DownscaleFirst, UpscaleFirst} {
		got, err := ParseStage2Order(o.String())
		require.NoError(t, err)
		assert.Equal(t, o, got)
	}
	_, err := ParseStage2Order("sideways")
	assert.ErrorIs(t, err, tile.ErrInvalidConfig)
}
