package frame

// Luma converts one BGR pixel to its luminance using the BT.601 weights.
func Luma(b, g, r byte) byte {
	// 0.299 R + 0.587 G + 0.114 B in fixed point.
	return byte((299*uint32(r) + 587*uint32(g) + 114*uint32(b) + 500) / 1000)
}

// BGRToHSV converts one BGR pixel to HSV with H in [0, 180) and S, V in
// [0, 255], the convention matcher thresholds are written in.
func BGRToHSV(b, g, r byte) (h, s, v byte) {
	bf, gf, rf := float64(b), float64(g), float64(r)

	maxc := max(bf, gf, rf)
	minc := min(bf, gf, rf)
	v = byte(maxc)

	delta := maxc - minc
	if maxc > 0 {
		s = byte(255 * delta / maxc)
	}
	if delta == 0 {
		return 0, s, v
	}

	var hue float64
	switch maxc {
	case rf:
		hue = 60 * (gf - bf) / delta
	case gf:
		hue = 120 + 60*(bf-rf)/delta
	default:
		hue = 240 + 60*(rf-gf)/delta
	}
	if hue < 0 {
		hue += 360
	}
	h = byte(hue / 2)
	return h, s, v
}
