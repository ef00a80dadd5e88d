// Package resample implements general-purpose image resizing.
//
// Every channel is resized on its own as a 16-bit plane so images with any
// channel count and either pixel format keep their precision. Nearest,
// bilinear and bicubic use the scalers of golang.org/x/image/draw, area runs
// a box kernel through the same package and lanczos uses
// github.com/nfnt/resize.
package resample

import (
	"context"
	"fmt"
	"image"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/kiesman99/goat/pkg/tile"
)

// Method selects the resampling filter
type Method int

const (
	Nearest Method = iota
	Bilinear
	Area
	Bicubic
	Lanczos
)

var methodNames = map[Method]string{
	Nearest:  "nearest",
	Bilinear: "bilinear",
	Area:     "area",
	Bicubic:  "bicubic",
	Lanczos:  "lanczos",
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return "unknown"
}

// Methods lists every resampling method
func Methods() []Method {
	return []Method{Nearest, Bilinear, Area, Bicubic, Lanczos}
}

// ParseMethod resolves a method name. "nearest-exact" is accepted for nearest.
func ParseMethod(name string) (Method, error) {
	if name == "nearest-exact" {
		return Nearest, nil
	}
	for m, n := range methodNames {
		if n == name {
			return m, nil
		}
	}
	return 0, &tile.ConfigError{
		Field:      "method",
		Value:      name,
		Constraint: "is not one of nearest, bilinear, area, bicubic, lanczos",
	}
}

// Resampler resizes images to an exact size
type Resampler interface {
	Resample(ctx context.Context, img *tile.Image, width, height int, method Method) (*tile.Image, error)
}

// Func adapts a function to the Resampler interface
type Func func(ctx context.Context, img *tile.Image, width, height int, method Method) (*tile.Image, error)

// Resample calls f
func (f Func) Resample(ctx context.Context, img *tile.Image, width, height int, method Method) (*tile.Image, error) {
	return f(ctx, img, width, height, method)
}

// Default is the library-backed Resampler
var Default Resampler = Func(Resample)

// Resample resizes img to width x height
func Resample(ctx context.Context, img *tile.Image, width, height int, method Method) (*tile.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("resample: invalid target size %dx%d", width, height)
	}
	if img.Width <= 0 || img.Height <= 0 {
		return nil, fmt.Errorf("resample: empty source image %dx%d", img.Width, img.Height)
	}
	if _, ok := methodNames[method]; !ok {
		return nil, fmt.Errorf("resample: unknown method %d", method)
	}

	out := tile.NewImage(width, height, img.Channels, img.Format)
	if width == img.Width && height == img.Height {
		copy(out.Pix, img.Pix)
		return out, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for c := 0; c < img.Channels; c++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			scaled := scalePlane(img.Plane(c), width, height, method)
			out.SetPlane(c, scaled)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// boxKernel averages every source pixel under a destination pixel when
// shrinking. The kernel widens with the scale factor, so this is an area filter.
var boxKernel = &draw.Kernel{
	Support: 0.5,
	At:      func(float64) float64 { return 1 },
}

// scalePlane resizes a single channel
func scalePlane(src *image.Gray16, width, height int, method Method) image.Image {
	switch method {
	case Lanczos:
		return resize.Resize(uint(width), uint(height), src, resize.Lanczos3)
	}

	var interp draw.Interpolator
	switch method {
	case Area:
		interp = boxKernel
	case Nearest:
		interp = draw.NearestNeighbor
	case Bilinear:
		interp = draw.BiLinear
	default:
		interp = draw.CatmullRom
	}

	dst := image.NewGray16(image.Rect(0, 0, width, height))
	interp.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
