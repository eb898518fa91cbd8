package editor

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splat-replay/splat-replay/internal/frame"
	"github.com/splat-replay/splat-replay/internal/models"
)

// writeUniformPNG writes a solid-gray screenshot candidate.
func writeUniformPNG(t *testing.T, dir, name string, level byte) string {
	t.Helper()
	const w, h = 64, 36
	data := make([]byte, w*h*3)
	for i := range data {
		data[i] = level
	}
	f, err := frame.New(data, w, h)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, f.SavePNG(path))
	return path
}

func TestSelectBrightest(t *testing.T) {
	dir := t.TempDir()
	dark := writeUniformPNG(t, dir, "dark.png", 20)
	bright := writeUniformPNG(t, dir, "bright.png", 200)
	_ = dark

	f, err := selectBrightest([]string{dark, bright, filepath.Join(dir, "missing.png")})
	require.NoError(t, err)
	b, _, _ := f.BGR(0, 0)
	assert.EqualValues(t, 200, b)
}

func TestSelectBrightestNoCandidates(t *testing.T) {
	_, err := selectBrightest([]string{filepath.Join(t.TempDir(), "missing.png")})
	require.Error(t, err)
	assert.Equal(t, models.KindNotFound, models.KindOf(err))
}

func TestFillRoundedRect(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	fillRoundedRect(img, image.Rect(0, 0, 40, 40), 10, color.NRGBA{R: 0xff, A: 0xff})

	// Corner pixel outside the radius stays empty; center is painted.
	assert.EqualValues(t, 0, img.NRGBAAt(0, 0).A)
	assert.EqualValues(t, 0xff, img.NRGBAAt(20, 20).A)
	assert.EqualValues(t, 0xff, img.NRGBAAt(20, 0).A)
}

func TestComposeThumbnailWithoutFont(t *testing.T) {
	dir := t.TempDir()
	candidate := writeUniformPNG(t, dir, "c.png", 120)

	data, err := ComposeThumbnail([]string{candidate}, ThumbnailOverlay{Title: "x area"}, "")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 36, img.Bounds().Dy())
}

func TestComposeThumbnailMissingFontFile(t *testing.T) {
	dir := t.TempDir()
	candidate := writeUniformPNG(t, dir, "c.png", 120)

	_, err := ComposeThumbnail([]string{candidate}, ThumbnailOverlay{}, filepath.Join(dir, "nope.ttf"))
	require.Error(t, err)
}
