// Package grain adds synthetic film grain to images.
package grain

import (
	"context"
	"math"
	"math/rand/v2"
	"strings"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kiesman99/goat/pkg/tile"
)

// MaxSeed is the largest accepted seed
const MaxSeed = 1125899906842624

const (
	// strengthScale maps the user facing strength onto the noise amplitude
	strengthScale = 0.25
	// cutoff is the standard deviation of the gaussian low-pass, in cycles per pixel
	cutoff = 0.01
	// whiteMix is the share of unfiltered noise in mixed grain
	whiteMix = 0.2
)

// Kind selects the noise generator
type Kind int

const (
	Gaussian Kind = iota
	FFT
	Mixed
)

var kindNames = map[Kind]string{
	Gaussian: "gaussian",
	FFT:      "fft",
	Mixed:    "mixed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// multiplier compensates for the amplitude each generator produces
func (k Kind) multiplier() float64 {
	switch k {
	case FFT:
		return 5
	case Mixed:
		return 2.5
	default:
		return 0.5
	}
}

// Kinds lists every grain kind
func Kinds() []Kind {
	return []Kind{Gaussian, FFT, Mixed}
}

// ParseKind resolves a grain name. The "_cuda" variants select the same
// generator, device placement is left to the environment.
func ParseKind(name string) (Kind, error) {
	base := strings.TrimSuffix(name, "_cuda")
	for k, n := range kindNames {
		if n == base {
			return k, nil
		}
	}
	return 0, &tile.ConfigError{
		Field:      "grain",
		Value:      name,
		Constraint: "is not one of gaussian, gaussian_cuda, fft, fft_cuda, mixed, mixed_cuda",
	}
}

// Options configures Apply
type Options struct {
	Strength float64
	Kind     Kind
	Seed     int64
}

// DefaultOptions returns the grain defaults
func DefaultOptions() Options {
	return Options{Strength: 0.1, Kind: Mixed}
}

// Validate checks the option ranges
func (o Options) Validate() error {
	if err := tile.CheckRange("strength", o.Strength, 0, 1); err != nil {
		return err
	}
	if err := tile.CheckRange("seed", o.Seed, 0, MaxSeed); err != nil {
		return err
	}
	if _, ok := kindNames[o.Kind]; !ok {
		return &tile.ConfigError{Field: "grain", Value: int(o.Kind), Constraint: "is not a known grain kind"}
	}
	return nil
}

// Apply returns a copy of img with grain added. The result is clamped to the
// format's range and is identical for identical seeds.
func Apply(ctx context.Context, img *tile.Image, opts Options) (*tile.Image, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	n := img.Width * img.Height
	noise := make([][]float64, img.Channels)

	g, ctx := errgroup.WithContext(ctx)
	for c := range noise {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			noise[c] = channelNoise(img.Width, img.Height, opts.Kind, uint64(opts.Seed), uint64(c))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Filtered noise is centred on the mean over all channels.
	var mean float64
	if opts.Kind != Gaussian {
		for _, plane := range noise {
			mean += stat.Mean(plane, nil)
		}
		mean /= float64(len(noise))
	}

	amplitude := opts.Strength * strengthScale * opts.Kind.multiplier()
	top := img.Format.Max()

	out := tile.NewImage(img.Width, img.Height, img.Channels, img.Format)
	for p := 0; p < n; p++ {
		for c := 0; c < img.Channels; c++ {
			i := p*img.Channels + c
			v := float64(img.Pix[i])/top + (noise[c][p]-mean)*amplitude
			out.Pix[i] = img.Format.Quantize(math.Max(0, math.Min(1, v)) * top)
		}
	}
	return out, nil
}

// channelNoise returns one plane of standard normal noise shaped by kind
func channelNoise(width, height int, kind Kind, seed, stream uint64) []float64 {
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(seed, stream)}
	white := make([]float64, width*height)
	for i := range white {
		white[i] = normal.Rand()
	}

	switch kind {
	case FFT:
		return lowPass(white, width, height)
	case Mixed:
		filtered := lowPass(white, width, height)
		for i := range filtered {
			filtered[i] = whiteMix*white[i] + (1-whiteMix)*filtered[i]
		}
		return filtered
	default:
		return white
	}
}

// lowPass filters a plane with a gaussian in the 2-D frequency domain
func lowPass(plane []float64, width, height int) []float64 {
	rows := fourier.NewCmplxFFT(width)
	cols := fourier.NewCmplxFFT(height)

	freq := make([]complex128, width*height)
	for i, v := range plane {
		freq[i] = complex(v, 0)
	}

	row := make([]complex128, width)
	col := make([]complex128, height)
	buf := make([]complex128, height)
	transform := func(inverse bool) {
		for y := 0; y < height; y++ {
			line := freq[y*width : (y+1)*width]
			if inverse {
				rows.Sequence(row, line)
			} else {
				rows.Coefficients(row, line)
			}
			copy(line, row)
		}
		for x := 0; x < width; x++ {
			for y := 0; y < height; y++ {
				col[y] = freq[y*width+x]
			}
			if inverse {
				cols.Sequence(buf, col)
			} else {
				cols.Coefficients(buf, col)
			}
			for y := 0; y < height; y++ {
				freq[y*width+x] = buf[y]
			}
		}
	}

	transform(false)
	for y := 0; y < height; y++ {
		fy := cols.Freq(y)
		for x := 0; x < width; x++ {
			fx := rows.Freq(x)
			freq[y*width+x] *= complex(math.Exp(-(fx*fx+fy*fy)/(2*cutoff*cutoff)), 0)
		}
	}
	transform(true)

	// Sequence does not normalise.
	scale := 1 / float64(width*height)
	out := make([]float64, len(plane))
	for i, v := range freq {
		out[i] = real(v) * scale
	}
	return out
}
