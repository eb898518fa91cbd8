package editor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/splat-replay/splat-replay/internal/frame"
	"github.com/splat-replay/splat-replay/internal/models"
)

// brightnessROI is where result screens put the action: the central band of
// the frame. The brightest candidate there makes the most legible thumbnail.
var brightnessROI = frame.ROI{X: 0.25, Y: 0.2, W: 0.5, H: 0.6, Normalized: true}

// selectBrightest picks the screenshot with the highest mean luma inside the
// ROI. Unreadable candidates are skipped; no readable candidate is an error.
func selectBrightest(paths []string) (*frame.Frame, error) {
	var best *frame.Frame
	bestLuma := -1.0
	for _, path := range paths {
		f, err := frame.Load(path)
		if err != nil {
			continue
		}
		region, err := f.CropROI(brightnessROI)
		if err != nil {
			continue
		}
		if luma := region.MeanLuma(); luma > bestLuma {
			bestLuma = luma
			best = f
		}
	}
	if best == nil {
		return nil, models.NewError(models.KindNotFound, "no readable thumbnail candidates")
	}
	return best, nil
}

// overlayFonts carries the faces the overlay is drawn with. Nil faces mean
// no font is configured and text drawing is skipped.
type overlayFonts struct {
	title font.Face
	label font.Face
}

func loadOverlayFonts(fontPath string, height int) (overlayFonts, error) {
	var fonts overlayFonts
	if fontPath == "" {
		return fonts, nil
	}
	data, err := os.ReadFile(fontPath)
	if err != nil {
		return fonts, fmt.Errorf("reading overlay font: %w", err)
	}
	ft, err := opentype.Parse(data)
	if err != nil {
		return fonts, fmt.Errorf("parsing overlay font: %w", err)
	}
	titleSize := float64(height) / 14
	fonts.title, err = opentype.NewFace(ft, &opentype.FaceOptions{
		Size: titleSize, DPI: 72, Hinting: font.HintingFull,
	})
	if err != nil {
		return fonts, err
	}
	fonts.label, err = opentype.NewFace(ft, &opentype.FaceOptions{
		Size: titleSize / 2, DPI: 72, Hinting: font.HintingFull,
	})
	return fonts, err
}

// fillRoundedRect paints r onto dst with quarter-circle corners. A pixel is
// inside when it is within radius of the inner rectangle.
func fillRoundedRect(dst draw.Image, r image.Rectangle, radius int, c color.Color) {
	if radius*2 > r.Dx() {
		radius = r.Dx() / 2
	}
	if radius*2 > r.Dy() {
		radius = r.Dy() / 2
	}
	src := image.NewUniform(c)
	inner := image.Rect(r.Min.X+radius, r.Min.Y+radius, r.Max.X-radius, r.Max.Y-radius)
	rr := radius * radius
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			dx := x - clamp(x, inner.Min.X, inner.Max.X-1)
			dy := y - clamp(y, inner.Min.Y, inner.Max.Y-1)
			if dx*dx+dy*dy > rr {
				continue
			}
			draw.Draw(dst, image.Rect(x, y, x+1, y+1), src, image.Point{}, draw.Over)
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ThumbnailOverlay is what gets drawn over the selected screenshot.
type ThumbnailOverlay struct {
	Title   string
	Allies  []string
	Enemies []string
}

// ComposeThumbnail renders the overlay onto the brightest candidate and
// returns the finished PNG. With no font configured the banner is drawn
// without text.
func ComposeThumbnail(candidates []string, overlay ThumbnailOverlay, fontPath string) ([]byte, error) {
	base, err := selectBrightest(candidates)
	if err != nil {
		return nil, err
	}
	img := base.ToImage()
	bounds := img.Bounds()

	fonts, err := loadOverlayFonts(fontPath, bounds.Dy())
	if err != nil {
		return nil, err
	}

	bannerHeight := bounds.Dy() / 5
	banner := image.Rect(
		bounds.Min.X+bounds.Dx()/40,
		bounds.Max.Y-bannerHeight-bounds.Dy()/40,
		bounds.Max.X-bounds.Dx()/40,
		bounds.Max.Y-bounds.Dy()/40,
	)
	fillRoundedRect(img, banner, bannerHeight/4, color.NRGBA{A: 0xb4})

	if fonts.title != nil {
		drawer := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(color.White),
			Face: fonts.title,
			Dot:  fixed.P(banner.Min.X+bannerHeight/4, banner.Min.Y+bannerHeight/2),
		}
		drawer.DrawString(overlay.Title)
	}
	if fonts.label != nil && (len(overlay.Allies) > 0 || len(overlay.Enemies) > 0) {
		drawer := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(color.NRGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff}),
			Face: fonts.label,
			Dot:  fixed.P(banner.Min.X+bannerHeight/4, banner.Max.Y-bannerHeight/4),
		}
		drawer.DrawString(weaponLine(overlay.Allies, overlay.Enemies))
	}

	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, fmt.Errorf("encoding thumbnail: %w", err)
	}
	return out.Bytes(), nil
}

func weaponLine(allies, enemies []string) string {
	var parts []string
	if len(allies) > 0 {
		parts = append(parts, strings.Join(allies, " / "))
	}
	if len(enemies) > 0 {
		parts = append(parts, "vs "+strings.Join(enemies, " / "))
	}
	return strings.Join(parts, "  ")
}
