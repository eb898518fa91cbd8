package matcher

import (
	"fmt"
	"math"

	"github.com/splat-replay/splat-replay/internal/frame"
)

// TemplateMatcher slides a pre-loaded grayscale template across its ROI and
// passes when the best normalized cross-correlation reaches the threshold.
type TemplateMatcher struct {
	ROI       frame.ROI
	Threshold float64

	tmpl     []float64 // mean-subtracted template pixels, masked
	tmplNorm float64   // sqrt of masked sum of squares
	mask     *Mask
	width    int
	height   int
}

// NewTemplateMatcher prepares a template matcher from a template frame and
// optional mask sharing the template's size.
func NewTemplateMatcher(template *frame.Frame, mask *Mask, roi frame.ROI, threshold float64) (*TemplateMatcher, error) {
	if template == nil || template.Width == 0 || template.Height == 0 {
		return nil, fmt.Errorf("template image is empty")
	}
	m := &TemplateMatcher{
		ROI:       roi,
		Threshold: threshold,
		mask:      mask,
		width:     template.Width,
		height:    template.Height,
	}

	gray := template.Gray()
	n := len(gray)

	var sum float64
	var count int
	for i := 0; i < n; i++ {
		if !mask.includes(i, n) {
			continue
		}
		sum += float64(gray[i])
		count++
	}
	if count == 0 {
		return nil, fmt.Errorf("template mask excludes every pixel")
	}
	mean := sum / float64(count)

	m.tmpl = make([]float64, n)
	var sq float64
	for i := 0; i < n; i++ {
		if !mask.includes(i, n) {
			continue
		}
		v := float64(gray[i]) - mean
		m.tmpl[i] = v
		sq += v * v
	}
	m.tmplNorm = math.Sqrt(sq)
	if m.tmplNorm == 0 {
		return nil, fmt.Errorf("template has no contrast under the mask")
	}
	return m, nil
}

// Match implements Matcher.
func (m *TemplateMatcher) Match(f *frame.Frame) (bool, error) {
	score, err := m.Score(f)
	if err != nil {
		return false, err
	}
	return score >= m.Threshold, nil
}

// Score implements Scorer: the maximum normalized cross-correlation of the
// template over the ROI, in [-1, 1].
func (m *TemplateMatcher) Score(f *frame.Frame) (float64, error) {
	reg, err := region(f, m.ROI)
	if err != nil {
		return 0, err
	}
	if reg.Width < m.width || reg.Height < m.height {
		return 0, fmt.Errorf("ROI %dx%d smaller than template %dx%d", reg.Width, reg.Height, m.width, m.height)
	}

	gray := reg.Gray()
	best := -1.0
	for oy := 0; oy <= reg.Height-m.height; oy++ {
		for ox := 0; ox <= reg.Width-m.width; ox++ {
			if s := m.scoreAt(gray, reg.Width, ox, oy); s > best {
				best = s
			}
		}
	}
	return best, nil
}

// scoreAt computes the correlation coefficient at one window offset.
func (m *TemplateMatcher) scoreAt(gray []byte, stride, ox, oy int) float64 {
	n := m.width * m.height

	var sum float64
	var count int
	for ty := 0; ty < m.height; ty++ {
		base := (oy+ty)*stride + ox
		for tx := 0; tx < m.width; tx++ {
			if !m.mask.includes(ty*m.width+tx, n) {
				continue
			}
			sum += float64(gray[base+tx])
			count++
		}
	}
	if count == 0 {
		return -1
	}
	mean := sum / float64(count)

	var dot, sq float64
	for ty := 0; ty < m.height; ty++ {
		base := (oy+ty)*stride + ox
		for tx := 0; tx < m.width; tx++ {
			i := ty*m.width + tx
			if !m.mask.includes(i, n) {
				continue
			}
			v := float64(gray[base+tx]) - mean
			dot += v * m.tmpl[i]
			sq += v * v
		}
	}
	denom := math.Sqrt(sq) * m.tmplNorm
	if denom == 0 {
		return 0
	}
	return dot / denom
}
