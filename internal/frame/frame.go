// Package frame provides the BGR frame value type shared by the capture
// pipeline, the matchers, and the analyzer.
package frame

import (
	"fmt"
	"image"
	"time"
)

// Frame is a single captured picture: height x width x 3 bytes in BGR order,
// row-major. Frames are immutable once captured; operations that derive new
// pixel data return copies.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Timestamp time.Time
}

// New wraps raw BGR bytes in a Frame, validating the buffer size.
func New(data []byte, width, height int) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	if len(data) != width*height*3 {
		return nil, fmt.Errorf("frame buffer is %d bytes, want %d for %dx%d BGR", len(data), width*height*3, width, height)
	}
	return &Frame{Data: data, Width: width, Height: height}, nil
}

// FromImage converts a decoded image into a BGR frame.
func FromImage(img image.Image) *Frame {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	data := make([]byte, w*h*3)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			data[i] = byte(b >> 8)
			data[i+1] = byte(g >> 8)
			data[i+2] = byte(r >> 8)
			i += 3
		}
	}
	return &Frame{Data: data, Width: w, Height: h}
}

// ToImage converts the frame into an NRGBA image for encoding.
func (f *Frame) ToImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			si := (y*f.Width + x) * 3
			di := img.PixOffset(x, y)
			img.Pix[di] = f.Data[si+2]
			img.Pix[di+1] = f.Data[si+1]
			img.Pix[di+2] = f.Data[si]
			img.Pix[di+3] = 0xFF
		}
	}
	return img
}

// BGR returns the blue, green, and red components of the pixel at (x, y).
// Coordinates outside the frame return zeros.
func (f *Frame) BGR(x, y int) (b, g, r byte) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return 0, 0, 0
	}
	i := (y*f.Width + x) * 3
	return f.Data[i], f.Data[i+1], f.Data[i+2]
}

// Clone returns an independent copy of the frame.
func (f *Frame) Clone() *Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return &Frame{Data: data, Width: f.Width, Height: f.Height, Timestamp: f.Timestamp}
}

// WithTimestamp returns a shallow copy stamped with the given capture time.
func (f *Frame) WithTimestamp(t time.Time) *Frame {
	cp := *f
	cp.Timestamp = t
	return &cp
}

// Crop copies the region into a new frame. The region is clamped to the
// frame bounds; an empty intersection is an error.
func (f *Frame) Crop(x, y, w, h int) (*Frame, error) {
	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	if x+w > f.Width {
		w = f.Width - x
	}
	if y+h > f.Height {
		h = f.Height - y
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("crop (%d,%d %dx%d) outside frame %dx%d", x, y, w, h, f.Width, f.Height)
	}
	data := make([]byte, w*h*3)
	for row := 0; row < h; row++ {
		src := ((y+row)*f.Width + x) * 3
		dst := row * w * 3
		copy(data[dst:dst+w*3], f.Data[src:src+w*3])
	}
	return &Frame{Data: data, Width: w, Height: h, Timestamp: f.Timestamp}, nil
}

// Gray returns the frame as one luminance byte per pixel.
func (f *Frame) Gray() []byte {
	out := make([]byte, f.Width*f.Height)
	for i := 0; i < len(out); i++ {
		si := i * 3
		out[i] = Luma(f.Data[si], f.Data[si+1], f.Data[si+2])
	}
	return out
}

// MeanLuma returns the average luminance over the whole frame in [0, 255].
func (f *Frame) MeanLuma() float64 {
	if f.Width == 0 || f.Height == 0 {
		return 0
	}
	var sum uint64
	for i := 0; i+2 < len(f.Data); i += 3 {
		sum += uint64(Luma(f.Data[i], f.Data[i+1], f.Data[i+2]))
	}
	return float64(sum) / float64(f.Width*f.Height)
}
