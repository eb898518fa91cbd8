// Package matcher implements the frame classification primitives: template,
// HSV, RGB, hash, uniform, brightness, and edge matchers, plus composite
// and/or/not expressions over them. Matchers are pure and side-effect free;
// the same frame always yields the same verdict.
package matcher

import (
	"fmt"

	"github.com/splat-replay/splat-replay/internal/frame"
)

// Matcher is a pure predicate over a frame.
type Matcher interface {
	Match(f *frame.Frame) (bool, error)
}

// Scorer is implemented by matchers that expose a continuous match score;
// template matchers score in [-1, 1].
type Scorer interface {
	Score(f *frame.Frame) (float64, error)
}

// Mask marks which pixels of a matcher's region participate in matching.
// A nil *Mask includes every pixel.
type Mask struct {
	Include []bool
	Width   int
	Height  int
}

// MaskFromFrame builds a mask from an image: pixels with non-zero luminance
// are included.
func MaskFromFrame(f *frame.Frame) *Mask {
	include := make([]bool, f.Width*f.Height)
	for i := range include {
		si := i * 3
		include[i] = frame.Luma(f.Data[si], f.Data[si+1], f.Data[si+2]) > 0
	}
	return &Mask{Include: include, Width: f.Width, Height: f.Height}
}

// LoadMask reads a mask image from disk.
func LoadMask(path string) (*Mask, error) {
	f, err := frame.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading mask: %w", err)
	}
	return MaskFromFrame(f), nil
}

// includes reports whether the pixel at index i participates. Masks sized
// differently from the region include everything, matching is then degraded
// rather than failed.
func (m *Mask) includes(i, regionPixels int) bool {
	if m == nil || len(m.Include) != regionPixels {
		return true
	}
	return m.Include[i]
}

// region crops the frame to the matcher's ROI.
func region(f *frame.Frame, roi frame.ROI) (*frame.Frame, error) {
	cropped, err := f.CropROI(roi)
	if err != nil {
		return nil, fmt.Errorf("resolving ROI: %w", err)
	}
	return cropped, nil
}
