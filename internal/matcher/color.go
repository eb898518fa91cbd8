package matcher

import (
	"math"

	"github.com/splat-replay/splat-replay/internal/frame"
)

// HSVBound is one corner of an HSV box: H in [0, 179], S and V in [0, 255].
type HSVBound struct {
	H, S, V byte
}

// HSVMatcher passes when the fraction of masked ROI pixels inside
// [Lower, Upper] reaches the threshold.
type HSVMatcher struct {
	ROI       frame.ROI
	Lower     HSVBound
	Upper     HSVBound
	Threshold float64
	Mask      *Mask
}

// Match implements Matcher.
func (m *HSVMatcher) Match(f *frame.Frame) (bool, error) {
	reg, err := region(f, m.ROI)
	if err != nil {
		return false, err
	}
	pixels := reg.Width * reg.Height
	var matched, total int
	for i := 0; i < pixels; i++ {
		if !m.Mask.includes(i, pixels) {
			continue
		}
		si := i * 3
		h, s, v := frame.BGRToHSV(reg.Data[si], reg.Data[si+1], reg.Data[si+2])
		total++
		if h >= m.Lower.H && h <= m.Upper.H &&
			s >= m.Lower.S && s <= m.Upper.S &&
			v >= m.Lower.V && v <= m.Upper.V {
			matched++
		}
	}
	if total == 0 {
		return false, nil
	}
	return float64(matched)/float64(total) >= m.Threshold, nil
}

// RGBMatcher passes when the fraction of masked ROI pixels exactly equal to
// the target color reaches the threshold.
type RGBMatcher struct {
	ROI       frame.ROI
	B, G, R   byte
	Threshold float64
	Mask      *Mask
}

// Match implements Matcher.
func (m *RGBMatcher) Match(f *frame.Frame) (bool, error) {
	reg, err := region(f, m.ROI)
	if err != nil {
		return false, err
	}
	pixels := reg.Width * reg.Height
	var matched, total int
	for i := 0; i < pixels; i++ {
		if !m.Mask.includes(i, pixels) {
			continue
		}
		si := i * 3
		total++
		if reg.Data[si] == m.B && reg.Data[si+1] == m.G && reg.Data[si+2] == m.R {
			matched++
		}
	}
	if total == 0 {
		return false, nil
	}
	return float64(matched)/float64(total) >= m.Threshold, nil
}

// UniformMatcher passes when the hue across the masked ROI is uniform: the
// standard deviation of hue stays at or below the configured limit.
type UniformMatcher struct {
	ROI       frame.ROI
	HueStdDev float64
	Mask      *Mask
}

// Match implements Matcher.
func (m *UniformMatcher) Match(f *frame.Frame) (bool, error) {
	reg, err := region(f, m.ROI)
	if err != nil {
		return false, err
	}
	pixels := reg.Width * reg.Height
	var sum, sumSq float64
	var total int
	for i := 0; i < pixels; i++ {
		if !m.Mask.includes(i, pixels) {
			continue
		}
		si := i * 3
		h, _, _ := frame.BGRToHSV(reg.Data[si], reg.Data[si+1], reg.Data[si+2])
		hf := float64(h)
		sum += hf
		sumSq += hf * hf
		total++
	}
	if total == 0 {
		return false, nil
	}
	mean := sum / float64(total)
	variance := sumSq/float64(total) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance) <= m.HueStdDev, nil
}

// BrightnessMatcher passes when the mean luminance of the masked ROI stays
// at or below the configured maximum.
type BrightnessMatcher struct {
	ROI     frame.ROI
	MaxLuma float64
	Mask    *Mask
}

// Match implements Matcher.
func (m *BrightnessMatcher) Match(f *frame.Frame) (bool, error) {
	reg, err := region(f, m.ROI)
	if err != nil {
		return false, err
	}
	pixels := reg.Width * reg.Height
	var sum float64
	var total int
	for i := 0; i < pixels; i++ {
		if !m.Mask.includes(i, pixels) {
			continue
		}
		si := i * 3
		sum += float64(frame.Luma(reg.Data[si], reg.Data[si+1], reg.Data[si+2]))
		total++
	}
	if total == 0 {
		return false, nil
	}
	return sum/float64(total) <= m.MaxLuma, nil
}
