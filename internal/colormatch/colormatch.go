// Package colormatch transfers the per-channel colour statistics of a
// reference image onto another image.
package colormatch

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kiesman99/goat/pkg/tile"
)

const (
	epsilon    = 1e-8
	meanWeight = 2.0
	stdWeight  = 1.0
)

// Options configures Match
type Options struct {
	Strength float64
	// Adaptive lowers the strength for channels whose statistics differ a lot
	Adaptive bool
}

// DefaultOptions returns the colour match defaults
func DefaultOptions() Options {
	return Options{Strength: 1, Adaptive: true}
}

// Match shifts every channel of img to the mean and standard deviation of
// the same channel in ref, then blends with the original by the strength.
// Statistics are taken on values normalised to [0,1]; the images may differ
// in size but not in channel count.
func Match(ctx context.Context, img, ref *tile.Image, opts Options) (*tile.Image, error) {
	if err := tile.CheckRange("strength", opts.Strength, 0, 1); err != nil {
		return nil, err
	}
	if img.Channels != ref.Channels {
		return nil, fmt.Errorf("colour match: image has %d channels, reference has %d", img.Channels, ref.Channels)
	}
	if opts.Strength == 0 {
		return img, nil
	}

	out := tile.NewImage(img.Width, img.Height, img.Channels, img.Format)
	g, ctx := errgroup.WithContext(ctx)
	for c := 0; c < img.Channels; c++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src := channel(img, c)
			matched := matchChannel(src, channel(ref, c), opts)
			top := img.Format.Max()
			for p, v := range matched {
				out.Pix[p*img.Channels+c] = img.Format.Quantize(math.Max(0, math.Min(1, v)) * top)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// channel extracts channel c normalised to [0,1]
func channel(img *tile.Image, c int) []float64 {
	out := make([]float64, img.Width*img.Height)
	top := img.Format.Max()
	for p := range out {
		out[p] = float64(img.Pix[p*img.Channels+c]) / top
	}
	return out
}

func matchChannel(src, ref []float64, opts Options) []float64 {
	srcMean, srcStd := stat.MeanStdDev(src, nil)
	refMean, refStd := stat.MeanStdDev(ref, nil)
	if math.IsNaN(srcStd) {
		srcStd = 0
	}
	if math.IsNaN(refStd) {
		refStd = 0
	}

	strength := opts.Strength
	if opts.Adaptive {
		strength = adaptiveStrength(opts.Strength, math.Abs(srcMean-refMean), math.Abs(srcStd-refStd))
	}

	matched := make([]float64, len(src))
	for i, v := range src {
		matched[i] = (v-srcMean)/(srcStd+epsilon)*refStd + refMean
	}

	// lerp(src, matched, strength)
	floats.Scale(strength, matched)
	floats.AddScaled(matched, 1-strength, src)
	return matched
}

// adaptiveStrength weakens the match when the statistics are far apart
func adaptiveStrength(strength, meanDiff, stdDiff float64) float64 {
	adjustment := (meanWeight*meanDiff + stdWeight*stdDiff) / (meanWeight + stdWeight + 1e-5)
	return math.Max(0, math.Min(1, strength*(1-adjustment)))
}
