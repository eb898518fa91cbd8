package frame

// ROI is a rectangular region of interest. Coordinates are either absolute
// pixels or, when Normalized is set, fractions of the frame size in [0, 1].
type ROI struct {
	X, Y, W, H float64
	Normalized bool
}

// IsZero reports whether the ROI selects nothing, meaning the whole frame.
func (r ROI) IsZero() bool {
	return r.W == 0 && r.H == 0
}

// Resolve maps the ROI onto a concrete frame size, returning pixel bounds.
// A zero ROI resolves to the full frame.
func (r ROI) Resolve(width, height int) (x, y, w, h int) {
	if r.IsZero() {
		return 0, 0, width, height
	}
	if r.Normalized {
		x = int(r.X * float64(width))
		y = int(r.Y * float64(height))
		w = int(r.W * float64(width))
		h = int(r.H * float64(height))
	} else {
		x, y, w, h = int(r.X), int(r.Y), int(r.W), int(r.H)
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x+w > width {
		w = width - x
	}
	if y+h > height {
		h = height - y
	}
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return x, y, w, h
}

// CropROI resolves the ROI against the frame and returns the cropped copy.
func (f *Frame) CropROI(r ROI) (*Frame, error) {
	x, y, w, h := r.Resolve(f.Width, f.Height)
	return f.Crop(x, y, w, h)
}
