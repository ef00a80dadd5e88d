package tile

import (
	"fmt"
	"math"
)

// PixelFormat is the numeric representation of an image's samples
type PixelFormat int

const (
	// FormatFloat holds samples in [0,1]
	FormatFloat PixelFormat = iota
	// FormatUint8 holds integral samples in [0,255]
	FormatUint8
)

// Max returns the largest sample value of the format
func (f PixelFormat) Max() float64 {
	if f == FormatUint8 {
		return 255
	}
	return 1
}

// Quantize converts a computed value back into the format's domain
func (f PixelFormat) Quantize(v float64) float32 {
	if f == FormatUint8 {
		return float32(math.Max(0, math.Min(255, math.Round(v))))
	}
	return float32(v)
}

// Image holds interleaved pixel data, laid out as (height, width, channels)
type Image struct {
	Pix      []float32
	Width    int
	Height   int
	Channels int
	Format   PixelFormat
}

// NewImage allocates a zeroed image
func NewImage(width, height, channels int, format PixelFormat) *Image {
	return &Image{
		Pix:      make([]float32, width*height*channels),
		Width:    width,
		Height:   height,
		Channels: channels,
		Format:   format,
	}
}

// Offset returns the index of the first channel of pixel (x, y)
func (m *Image) Offset(x, y int) int {
	return (y*m.Width + x) * m.Channels
}

// At returns the sample of channel c at (x, y)
func (m *Image) At(x, y, c int) float32 {
	return m.Pix[m.Offset(x, y)+c]
}

// Set stores the sample of channel c at (x, y)
func (m *Image) Set(x, y, c int, v float32) {
	m.Pix[m.Offset(x, y)+c] = v
}

// Clone returns a deep copy
func (m *Image) Clone() *Image {
	out := *m
	out.Pix = append([]float32(nil), m.Pix...)
	return &out
}

// Crop copies the w x h region with top-left corner (x, y)
func (m *Image) Crop(x, y, w, h int) (*Image, error) {
	if x < 0 || y < 0 || w <= 0 || h <= 0 || x+w > m.Width || y+h > m.Height {
		return nil, fmt.Errorf("crop %dx%d at (%d,%d) outside %dx%d image", w, h, x, y, m.Width, m.Height)
	}

	out := NewImage(w, h, m.Channels, m.Format)
	row := w * m.Channels
	for yy := 0; yy < h; yy++ {
		src := m.Offset(x, y+yy)
		copy(out.Pix[yy*row:(yy+1)*row], m.Pix[src:src+row])
	}
	return out, nil
}

// SameShape reports whether both images have identical dimensions and channels
func (m *Image) SameShape(o *Image) bool {
	return m.Width == o.Width && m.Height == o.Height && m.Channels == o.Channels
}

// Origin is the top-left pixel coordinate of a tile within its source image
type Origin struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (o Origin) String() string {
	return fmt.Sprintf("(%d,%d)", o.X, o.Y)
}

// Metadata is everything needed to invert a tiling
type Metadata struct {
	Height  int      `json:"height"`
	Width   int      `json:"width"`
	Origins []Origin `json:"origins"`
}

// GeometryOptions describes how tiles are laid over an image
type GeometryOptions struct {
	TileWidth  int
	TileHeight int
	RowOverlap int
	ColOverlap int
	RowOffset  int
	ColOffset  int
}

// Options contains all configuration for splitting an image into tiles
type Options struct {
	GeometryOptions
	Mode TilingMode
}

// DefaultOptions returns the tiling defaults
func DefaultOptions() Options {
	return Options{
		GeometryOptions: GeometryOptions{
			TileWidth:  1024,
			TileHeight: 1024,
			RowOverlap: 512,
			ColOverlap: 512,
		},
		Mode: ModeRadial,
	}
}
