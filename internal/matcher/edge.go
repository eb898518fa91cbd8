package matcher

import (
	"fmt"
	"math"

	"github.com/splat-replay/splat-replay/internal/frame"
)

// Canny thresholds tuned for HUD line art on 8-bit luma gradients.
const (
	cannyLowThreshold  = 40.0
	cannyHighThreshold = 100.0
)

// EdgeMatcher compares the Canny edge map of the ROI against a pre-computed
// template edge map and passes when the disagreement fraction stays at or
// below MaxDistance. Lower is better; 0 means identical edges.
type EdgeMatcher struct {
	ROI         frame.ROI
	MaxDistance float64

	edges  []bool
	width  int
	height int
}

// NewEdgeMatcher precomputes the edge map of the template image.
func NewEdgeMatcher(template *frame.Frame, roi frame.ROI, maxDistance float64) (*EdgeMatcher, error) {
	if template == nil || template.Width < 3 || template.Height < 3 {
		return nil, fmt.Errorf("edge template must be at least 3x3")
	}
	return &EdgeMatcher{
		ROI:         roi,
		MaxDistance: maxDistance,
		edges:       cannyEdges(template.Gray(), template.Width, template.Height),
		width:       template.Width,
		height:      template.Height,
	}, nil
}

// Match implements Matcher.
func (m *EdgeMatcher) Match(f *frame.Frame) (bool, error) {
	d, err := m.Distance(f)
	if err != nil {
		return false, err
	}
	return d <= m.MaxDistance, nil
}

// Distance returns the fraction of pixels whose edge classification differs
// from the template, in [0, 1].
func (m *EdgeMatcher) Distance(f *frame.Frame) (float64, error) {
	reg, err := region(f, m.ROI)
	if err != nil {
		return 0, err
	}
	if reg.Width != m.width || reg.Height != m.height {
		return 0, fmt.Errorf("ROI resolves to %dx%d, edge template is %dx%d", reg.Width, reg.Height, m.width, m.height)
	}
	edges := cannyEdges(reg.Gray(), reg.Width, reg.Height)

	var differ int
	for i := range edges {
		if edges[i] != m.edges[i] {
			differ++
		}
	}
	return float64(differ) / float64(len(edges)), nil
}

// cannyEdges runs the Canny detector over a grayscale buffer: gaussian
// smoothing, Sobel gradients, non-maximum suppression, then double-threshold
// hysteresis. Returns one bool per pixel.
func cannyEdges(gray []byte, w, h int) []bool {
	blurred := gaussian5x5(gray, w, h)

	mag := make([]float64, w*h)
	dir := make([]uint8, w*h) // quantized: 0=E/W, 1=NE/SW, 2=N/S, 3=NW/SE
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			gx := -int(blurred[i-w-1]) + int(blurred[i-w+1]) +
				-2*int(blurred[i-1]) + 2*int(blurred[i+1]) +
				-int(blurred[i+w-1]) + int(blurred[i+w+1])
			gy := int(blurred[i-w-1]) + 2*int(blurred[i-w]) + int(blurred[i-w+1]) +
				-int(blurred[i+w-1]) - 2*int(blurred[i+w]) - int(blurred[i+w+1])
			mag[i] = math.Hypot(float64(gx), float64(gy))

			angle := math.Atan2(float64(gy), float64(gx)) * 180 / math.Pi
			if angle < 0 {
				angle += 180
			}
			switch {
			case angle < 22.5 || angle >= 157.5:
				dir[i] = 0
			case angle < 67.5:
				dir[i] = 1
			case angle < 112.5:
				dir[i] = 2
			default:
				dir[i] = 3
			}
		}
	}

	// Non-maximum suppression.
	const (
		none   = 0
		weak   = 1
		strong = 2
	)
	class := make([]uint8, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			var a, b float64
			switch dir[i] {
			case 0:
				a, b = mag[i-1], mag[i+1]
			case 1:
				a, b = mag[i-w+1], mag[i+w-1]
			case 2:
				a, b = mag[i-w], mag[i+w]
			default:
				a, b = mag[i-w-1], mag[i+w+1]
			}
			if mag[i] < a || mag[i] < b {
				continue
			}
			switch {
			case mag[i] >= cannyHighThreshold:
				class[i] = strong
			case mag[i] >= cannyLowThreshold:
				class[i] = weak
			}
		}
	}

	// Hysteresis: weak pixels survive only when connected to a strong one.
	edges := make([]bool, w*h)
	stack := make([]int, 0, w*h/8)
	for i, c := range class {
		if c == strong && !edges[i] {
			edges[i] = true
			stack = append(stack, i)
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				px, py := p%w, p/w
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := px+dx, py+dy
						if nx < 0 || ny < 0 || nx >= w || ny >= h {
							continue
						}
						n := ny*w + nx
						if class[n] == weak && !edges[n] {
							edges[n] = true
							stack = append(stack, n)
						}
					}
				}
			}
		}
	}
	return edges
}

// gaussian5x5 smooths the buffer with the standard 5x5 Gaussian kernel.
func gaussian5x5(gray []byte, w, h int) []byte {
	kernel := [5][5]int{
		{2, 4, 5, 4, 2},
		{4, 9, 12, 9, 4},
		{5, 12, 15, 12, 5},
		{4, 9, 12, 9, 4},
		{2, 4, 5, 4, 2},
	}
	out := make([]byte, len(gray))
	copy(out, gray)
	for y := 2; y < h-2; y++ {
		for x := 2; x < w-2; x++ {
			var sum int
			for ky := 0; ky < 5; ky++ {
				for kx := 0; kx < 5; kx++ {
					sum += kernel[ky][kx] * int(gray[(y+ky-2)*w+(x+kx-2)])
				}
			}
			out[y*w+x] = byte(sum / 159)
		}
	}
	return out
}
