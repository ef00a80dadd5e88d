package tile

// Accumulator sums weighted tiles into image-sized buffers
type Accumulator struct {
	output    []float64
	weightSum []float64
	width     int
	height    int
	channels  int
	format    PixelFormat
}

// NewAccumulator allocates zeroed output and weight buffers
func NewAccumulator(width, height, channels int, format PixelFormat) *Accumulator {
	return &Accumulator{
		output:    make([]float64, width*height*channels),
		weightSum: make([]float64, width*height),
		width:     width,
		height:    height,
		channels:  channels,
		format:    format,
	}
}

// Add accumulates t*weights at origin o. t and weights must have the same
// size and the tile must lie inside the buffers.
func (a *Accumulator) Add(t *Image, o Origin, weights *WeightMatrix) {
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			w := weights.At(x, y)
			dst := (o.Y+y)*a.width + o.X + x
			a.weightSum[dst] += w

			src := t.Offset(x, y)
			for c := 0; c < a.channels; c++ {
				a.output[dst*a.channels+c] += float64(t.Pix[src+c]) * w
			}
		}
	}
}

// WeightAt returns the accumulated weight of pixel (x, y)
func (a *Accumulator) WeightAt(x, y int) float64 {
	return a.weightSum[y*a.width+x]
}

// Image divides every sample by its accumulated weight. Where no weight was
// accumulated the raw sum, which is 0, is kept.
func (a *Accumulator) Image() *Image {
	out := NewImage(a.width, a.height, a.channels, a.format)
	for p, ws := range a.weightSum {
		for c := 0; c < a.channels; c++ {
			v := a.output[p*a.channels+c]
			if ws > 0 {
				v /= ws
			}
			out.Pix[p*a.channels+c] = a.format.Quantize(v)
		}
	}
	return out
}
