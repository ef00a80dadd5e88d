// Package upscaler runs an upscale model in one or two stages to reach an
// arbitrary scale factor.
//
// Any error or panic inside the pipeline is absorbed: the caller gets the
// input image back with Result.Fallback set and the cause in Result.Err.
package upscaler

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/kiesman99/goat/internal/logging"
	"github.com/kiesman99/goat/internal/model"
	"github.com/kiesman99/goat/internal/resample"
	"github.com/kiesman99/goat/pkg/tile"
)

// Accepted range of Options.UpscaleBy
const (
	MinUpscaleBy = 1.0
	MaxUpscaleBy = 16.0
)

// Stage2Order decides whether the second model pass runs before or after
// shrinking the intermediate image
type Stage2Order int

const (
	// DownscaleFirst shrinks the stage 1 result so one more model pass lands
	// on the target. Faster, slightly less detail.
	DownscaleFirst Stage2Order = iota
	// UpscaleFirst runs the model on the full stage 1 result and shrinks afterwards
	UpscaleFirst
)

func (o Stage2Order) String() string {
	switch o {
	case DownscaleFirst:
		return "downscale_first"
	case UpscaleFirst:
		return "upscale_first"
	default:
		return "unknown"
	}
}

// ParseStage2Order resolves a stage 2 ordering name
func ParseStage2Order(name string) (Stage2Order, error) {
	switch name {
	case "downscale_first":
		return DownscaleFirst, nil
	case "upscale_first":
		return UpscaleFirst, nil
	}
	return 0, &tile.ConfigError{
		Field:      "stage2_order",
		Value:      name,
		Constraint: "is not one of upscale_first, downscale_first",
	}
}

// Options configures a single Upscale call
type Options struct {
	UpscaleBy    float64
	Method       resample.Method
	Stage2Order  Stage2Order
	MixedInitial bool
	Tiled        bool
}

// DefaultOptions returns the upscale defaults
func DefaultOptions() Options {
	return Options{
		UpscaleBy:    2.0,
		Method:       resample.Lanczos,
		Stage2Order:  DownscaleFirst,
		MixedInitial: true,
	}
}

// Validate checks the option ranges
func (o Options) Validate() error {
	if err := tile.CheckRange("upscale_by", o.UpscaleBy, MinUpscaleBy, MaxUpscaleBy); err != nil {
		return err
	}
	if o.Stage2Order != DownscaleFirst && o.Stage2Order != UpscaleFirst {
		return &tile.ConfigError{Field: "stage2_order", Value: int(o.Stage2Order), Constraint: "is not a known ordering"}
	}
	return nil
}

// Result is the outcome of Upscale
type Result struct {
	Image  *tile.Image
	Width  int
	Height int
	// Fallback is set when Image is the unchanged input because the pipeline failed
	Fallback bool
	Err      error
}

// Upscaler combines a model with a resampler
type Upscaler struct {
	model     model.Model
	resampler resample.Resampler
}

// New creates an upscaler. A nil resampler uses resample.Default.
func New(m model.Model, r resample.Resampler) *Upscaler {
	if r == nil {
		r = resample.Default
	}
	return &Upscaler{model: m, resampler: r}
}

// Upscale scales img by opts.UpscaleBy. It never fails: on any error the
// input is returned as is.
func (u *Upscaler) Upscale(ctx context.Context, img *tile.Image, opts Options) *Result {
	out, err := u.run(ctx, img, opts)
	if err == nil && out == nil {
		err = errors.New("pipeline produced no image")
	}
	if err != nil {
		logging.Logger().Warn("advanced upscale: returning input image", "error", err, "upscale_by", opts.UpscaleBy)
		res := &Result{Image: img, Fallback: true, Err: err}
		if img != nil {
			res.Width, res.Height = img.Width, img.Height
		}
		return res
	}
	return &Result{Image: out, Width: out.Width, Height: out.Height}
}

func (u *Upscaler) run(ctx context.Context, img *tile.Image, opts Options) (out *tile.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if img == nil || img.Width <= 0 || img.Height <= 0 {
		return nil, errors.New("empty input image")
	}
	if u.model == nil {
		return nil, errors.New("no upscale model")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if s := u.model.Scale(); s < 1 {
		return nil, fmt.Errorf("model scale %d is not positive", s)
	}

	src := img
	if opts.MixedInitial {
		if src, err = u.mixInitial(ctx, img, opts.Method); err != nil {
			return nil, fmt.Errorf("mixed initial: %w", err)
		}
	}

	if u.model.Scale() == 1 {
		logging.Logger().Debug("advanced upscale: 1x model, single pass without staging")
		return u.onlyUpscale(ctx, src, opts)
	}

	stage1, achieved, err := u.stage1(ctx, src, opts)
	if err != nil {
		return nil, fmt.Errorf("stage 1: %w", err)
	}
	if achieved >= opts.UpscaleBy {
		return stage1, nil
	}

	out, err = u.stage2(ctx, stage1, achieved, opts)
	if err != nil {
		return nil, fmt.Errorf("stage 2: %w", err)
	}
	return out, nil
}

// mixInitial averages img with a copy that was doubled and shrunk back
func (u *Upscaler) mixInitial(ctx context.Context, img *tile.Image, method resample.Method) (*tile.Image, error) {
	up, err := u.resampler.Resample(ctx, img, img.Width*2, img.Height*2, method)
	if err != nil {
		return nil, err
	}
	down, err := u.resampler.Resample(ctx, up, img.Width, img.Height, method)
	if err != nil {
		return nil, err
	}
	if !down.SameShape(img) {
		return nil, fmt.Errorf("resampler returned %dx%dx%d, expected %dx%dx%d",
			down.Width, down.Height, down.Channels, img.Width, img.Height, img.Channels)
	}

	out := tile.NewImage(img.Width, img.Height, img.Channels, img.Format)
	for i, v := range img.Pix {
		out.Pix[i] = img.Format.Quantize(float64(v)*0.5 + float64(down.Pix[i])*0.5)
	}
	return out, nil
}

// onlyUpscale runs the model once and resizes to the exact target
func (u *Upscaler) onlyUpscale(ctx context.Context, img *tile.Image, opts Options) (*tile.Image, error) {
	width, height := scaledSize(img.Width, img.Height, opts.UpscaleBy)
	up, err := model.InferOne(ctx, u.model, img)
	if err != nil {
		return nil, err
	}
	return u.resampler.Resample(ctx, up, width, height, opts.Method)
}

func (u *Upscaler) infer(ctx context.Context, img *tile.Image, tiled bool) (*tile.Image, error) {
	if tiled {
		return TiledInfer(ctx, u.model, img)
	}
	return model.InferOne(ctx, u.model, img)
}

// stage1 applies the model once. If that overshoots it shrinks to the exact
// target and reports the requested scale, otherwise it reports the scale reached.
func (u *Upscaler) stage1(ctx context.Context, img *tile.Image, opts Options) (*tile.Image, float64, error) {
	logging.Logger().Debug("advanced upscale: stage 1", "width", img.Width, "height", img.Height, "tiled", opts.Tiled)

	up, err := u.infer(ctx, img, opts.Tiled)
	if err != nil {
		return nil, 0, err
	}

	achieved := float64(up.Width) / float64(img.Width)
	if achieved <= opts.UpscaleBy {
		return up, achieved, nil
	}

	width, height := scaledSize(img.Width, img.Height, opts.UpscaleBy)
	down, err := u.resampler.Resample(ctx, up, width, height, opts.Method)
	if err != nil {
		return nil, 0, err
	}
	return down, opts.UpscaleBy, nil
}

// stage2 covers the scale still missing after stage 1
func (u *Upscaler) stage2(ctx context.Context, img *tile.Image, current float64, opts Options) (*tile.Image, error) {
	remaining := opts.UpscaleBy / current
	width, height := scaledSize(img.Width, img.Height, remaining)

	logging.Logger().Debug("advanced upscale: stage 2",
		"order", opts.Stage2Order.String(), "remaining", remaining, "target_width", width, "target_height", height)

	src := img
	if opts.Stage2Order == DownscaleFirst {
		scale := float64(u.model.Scale())
		interimWidth := roundHalfEven(float64(img.Width) * remaining / scale)
		interimHeight := roundHalfEven(float64(img.Height) * remaining / scale)

		var err error
		if src, err = u.resampler.Resample(ctx, img, interimWidth, interimHeight, opts.Method); err != nil {
			return nil, err
		}
	}

	up, err := u.infer(ctx, src, opts.Tiled)
	if err != nil {
		return nil, err
	}
	if up.Width == width && up.Height == height {
		return up, nil
	}
	return u.resampler.Resample(ctx, up, width, height, opts.Method)
}

// scaledSize multiplies both dimensions by factor, rounding half to even
func scaledSize(width, height int, factor float64) (int, int) {
	return roundHalfEven(float64(width) * factor), roundHalfEven(float64(height) * factor)
}

func roundHalfEven(v float64) int {
	return int(math.RoundToEven(v))
}
