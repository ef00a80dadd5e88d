package tile

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Processor loads and stores images for the command line and HTTP surfaces
type Processor struct {
	client    *http.Client
	userAgent string
}

// NewProcessor creates a new image processor
func NewProcessor(userAgent string) *Processor {
	return &Processor{
		client:    &http.Client{},
		userAgent: userAgent,
	}
}

// Fetch reads raw image bytes from a local path or an http(s) URL
func (p *Processor) Fetch(ctx context.Context, src string) ([]byte, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return os.ReadFile(src)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	return io.ReadAll(resp.Body)
}

// Load fetches and decodes an image
func (p *Processor) Load(ctx context.Context, src string, format PixelFormat) (*Image, error) {
	data, err := p.Fetch(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("can't retrieve %s: %w", src, err)
	}
	img, err := DecodeImage(bytes.NewReader(data), format)
	if err != nil {
		return nil, fmt.Errorf("can't decode image from %s: %w", src, err)
	}
	return img, nil
}

// DecodeImage decodes PNG, JPEG, GIF, BMP, TIFF or WebP data into an RGB image
func DecodeImage(r io.Reader, format PixelFormat) (*Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	return FromImage(img, format), nil
}

// FromImage converts a Go image to a 3-channel Image
func FromImage(img image.Image, format PixelFormat) *Image {
	bounds := img.Bounds()
	out := NewImage(bounds.Dx(), bounds.Dy(), 3, format)

	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			c := color.NRGBA64Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA64)
			idx := out.Offset(x, y)
			if format == FormatUint8 {
				out.Pix[idx] = float32(c.R >> 8)
				out.Pix[idx+1] = float32(c.G >> 8)
				out.Pix[idx+2] = float32(c.B >> 8)
			} else {
				out.Pix[idx] = float32(c.R) / 0xffff
				out.Pix[idx+1] = float32(c.G) / 0xffff
				out.Pix[idx+2] = float32(c.B) / 0xffff
			}
		}
	}
	return out
}

// to16 maps a sample onto the 16-bit range
func (m *Image) to16(v float32) uint16 {
	f := float64(v) / m.Format.Max()
	if f <= 0 {
		return 0
	}
	if f >= 1 {
		return 0xffff
	}
	return uint16(f*0xffff + 0.5)
}

// from16 maps a 16-bit value back onto the image's sample range
func (m *Image) from16(v uint16) float32 {
	return m.Format.Quantize(float64(v) / 0xffff * m.Format.Max())
}

// ToNRGBA64 converts the image for encoding. Images with one channel are
// written as gray, four channels carry alpha.
func (m *Image) ToNRGBA64() *image.NRGBA64 {
	out := image.NewNRGBA64(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			idx := m.Offset(x, y)
			var c color.NRGBA64
			switch m.Channels {
			case 1, 2:
				v := m.to16(m.Pix[idx])
				c = color.NRGBA64{R: v, G: v, B: v, A: 0xffff}
			default:
				c = color.NRGBA64{R: m.to16(m.Pix[idx]), G: m.to16(m.Pix[idx+1]), B: m.to16(m.Pix[idx+2]), A: 0xffff}
				if m.Channels >= 4 {
					c.A = m.to16(m.Pix[idx+3])
				}
			}
			out.SetNRGBA64(x, y, c)
		}
	}
	return out
}

// Plane extracts one channel as a 16-bit gray image
func (m *Image) Plane(c int) *image.Gray16 {
	out := image.NewGray16(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			out.SetGray16(x, y, color.Gray16{Y: m.to16(m.At(x, y, c))})
		}
	}
	return out
}

// SetPlane stores a 16-bit gray image into channel c
func (m *Image) SetPlane(c int, plane image.Image) {
	bounds := plane.Bounds()
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			g := color.Gray16Model.Convert(plane.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
			m.Set(x, y, c, m.from16(g.Y))
		}
	}
}

// EncodePNG writes the image as a 16-bit PNG
func EncodePNG(w io.Writer, m *Image) error {
	return imaging.Encode(w, m.ToNRGBA64(), imaging.PNG)
}

// WritePNG writes PNG output to a file
func WritePNG(filename string, m *Image) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := EncodePNG(file, m); err != nil {
		return err
	}
	return file.Close()
}
