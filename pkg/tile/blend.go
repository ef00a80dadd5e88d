package tile

import "math"

// WeightFunc maps a normalized distance from a tile edge in [0,1] to a blend weight
type WeightFunc func(t float64) float64

// BlendMode selects the falloff curve used in overlap regions
type BlendMode int

const (
	BlendLinear BlendMode = iota
	BlendSine
	BlendCubic
	BlendQuadratic
	BlendHermite
	BlendSineQuadraticMix
	BlendQuadraticSineMix
)

var blendModeNames = map[BlendMode]string{
	BlendLinear:           "linear",
	BlendSine:             "sine",
	BlendCubic:            "cubic",
	BlendQuadratic:        "quadratic",
	BlendHermite:          "hermite",
	BlendSineQuadraticMix: "sine_quadratic_mix",
	BlendQuadraticSineMix: "quadratic_sine_mix",
}

func (m BlendMode) String() string {
	if name, ok := blendModeNames[m]; ok {
		return name
	}
	return "unknown"
}

// BlendModes lists every blend mode
func BlendModes() []BlendMode {
	return []BlendMode{
		BlendLinear, BlendSine, BlendCubic, BlendQuadratic,
		BlendHermite, BlendSineQuadraticMix, BlendQuadraticSineMix,
	}
}

// ParseBlendMode resolves a blend mode name
func ParseBlendMode(name string) (BlendMode, error) {
	for mode, n := range blendModeNames {
		if n == name {
			return mode, nil
		}
	}
	return 0, configErrorf("blend_mode", name, "is not one of linear, sine, cubic, quadratic, hermite, sine_quadratic_mix, quadratic_sine_mix")
}

// Func returns the weight curve of the mode
func (m BlendMode) Func() (WeightFunc, error) {
	switch m {
	case BlendLinear:
		return Linear, nil
	case BlendSine:
		return Sine, nil
	case BlendCubic:
		return Cubic, nil
	case BlendQuadratic:
		return Quadratic, nil
	case BlendHermite:
		return Hermite, nil
	case BlendSineQuadraticMix:
		return SineQuadraticMix, nil
	case BlendQuadraticSineMix:
		return QuadraticSineMix, nil
	default:
		return nil, configErrorf("blend_mode", int(m), "is not a known blend mode")
	}
}

func Linear(t float64) float64 { return t }

func Sine(t float64) float64 { return 0.5 - 0.5*math.Cos(math.Pi*t) }

func Cubic(t float64) float64 { return -2*t*t*t + 3*t*t }

func Quadratic(t float64) float64 { return t * (2 - t) }

func Hermite(t float64) float64 { return 3*t*t - 2*t*t*t }

// SineQuadraticMix favours the sine curve near the edges and the quadratic one near t = 0.5
func SineQuadraticMix(t float64) float64 {
	e := (2*t - 1) * (2*t - 1)
	return (1-e)*Quadratic(t) + e*Sine(t)
}

// QuadraticSineMix favours the quadratic curve near the edges and the sine one near t = 0.5
func QuadraticSineMix(t float64) float64 {
	e := (2*t - 1) * (2*t - 1)
	return (1-e)*Sine(t) + e*Quadratic(t)
}

// WeightMatrix holds one blend weight per tile pixel
type WeightMatrix struct {
	W      []float64
	Width  int
	Height int
}

// NewWeightMatrix returns a matrix with every weight set to 1
func NewWeightMatrix(width, height int) *WeightMatrix {
	w := make([]float64, width*height)
	for i := range w {
		w[i] = 1
	}
	return &WeightMatrix{W: w, Width: width, Height: height}
}

// At returns the weight at (x, y)
func (m *WeightMatrix) At(x, y int) float64 {
	return m.W[y*m.Width+x]
}

func (m *WeightMatrix) scaleColumn(x int, f float64) {
	for y := 0; y < m.Height; y++ {
		m.W[y*m.Width+x] *= f
	}
}

func (m *WeightMatrix) scaleRow(y int, f float64) {
	row := m.W[y*m.Width : (y+1)*m.Width]
	for x := range row {
		row[x] *= f
	}
}

// AttenuateLeft fades the first n columns in with fn
func (m *WeightMatrix) AttenuateLeft(n int, fn WeightFunc) {
	for i := 0; i < n; i++ {
		m.scaleColumn(i, fn(float64(i)/float64(n)))
	}
}

// AttenuateRight fades the last n columns out with fn
func (m *WeightMatrix) AttenuateRight(n int, fn WeightFunc) {
	for i := 0; i < n; i++ {
		m.scaleColumn(m.Width-1-i, fn(float64(i)/float64(n)))
	}
}

// AttenuateTop fades the first n rows in with fn
func (m *WeightMatrix) AttenuateTop(n int, fn WeightFunc) {
	for i := 0; i < n; i++ {
		m.scaleRow(i, fn(float64(i)/float64(n)))
	}
}

// AttenuateBottom fades the last n rows out with fn
func (m *WeightMatrix) AttenuateBottom(n int, fn WeightFunc) {
	for i := 0; i < n; i++ {
		m.scaleRow(m.Height-1-i, fn(float64(i)/float64(n)))
	}
}

// Edges marks which tile edges lie inside the image and must be faded
type Edges struct {
	Left, Top, Right, Bottom bool
}

// InteriorEdges returns the edges of a w x h tile at o that do not touch the
// border of an imageWidth x imageHeight image
func InteriorEdges(o Origin, w, h, imageWidth, imageHeight int) Edges {
	return Edges{
		Left:   o.X > 0,
		Top:    o.Y > 0,
		Right:  o.X+w < imageWidth,
		Bottom: o.Y+h < imageHeight,
	}
}

// BuildWeightMatrix fades every interior edge over the given number of pixels.
// Corners where two fades meet receive the product of both.
func BuildWeightMatrix(width, height int, edges Edges, rangeX, rangeY int, fn WeightFunc) *WeightMatrix {
	m := NewWeightMatrix(width, height)
	if edges.Left {
		m.AttenuateLeft(rangeX, fn)
	}
	if edges.Right {
		m.AttenuateRight(rangeX, fn)
	}
	if edges.Top {
		m.AttenuateTop(rangeY, fn)
	}
	if edges.Bottom {
		m.AttenuateBottom(rangeY, fn)
	}
	return m
}
