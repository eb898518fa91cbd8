package frame

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// solid builds a width x height frame filled with one BGR color.
func solid(t *testing.T, width, height int, b, g, r byte) *Frame {
	t.Helper()
	data := make([]byte, width*height*3)
	for i := 0; i < len(data); i += 3 {
		data[i], data[i+1], data[i+2] = b, g, r
	}
	f, err := New(data, width, height)
	require.NoError(t, err)
	return f
}

func TestNew(t *testing.T) {
	t.Run("valid buffer", func(t *testing.T) {
		f, err := New(make([]byte, 4*2*3), 4, 2)
		require.NoError(t, err)
		assert.Equal(t, 4, f.Width)
		assert.Equal(t, 2, f.Height)
	})

	t.Run("wrong buffer size", func(t *testing.T) {
		_, err := New(make([]byte, 10), 4, 2)
		assert.Error(t, err)
	})

	t.Run("zero dimensions", func(t *testing.T) {
		_, err := New(nil, 0, 0)
		assert.Error(t, err)
	})
}

func TestFrame_BGR(t *testing.T) {
	f := solid(t, 3, 3, 10, 20, 30)
	b, g, r := f.BGR(1, 1)
	assert.Equal(t, byte(10), b)
	assert.Equal(t, byte(20), g)
	assert.Equal(t, byte(30), r)

	b, g, r = f.BGR(-1, 5)
	assert.Equal(t, byte(0), b)
	assert.Equal(t, byte(0), g)
	assert.Equal(t, byte(0), r)
}

func TestFrame_Crop(t *testing.T) {
	// 4x4 frame, left half blue, right half red.
	data := make([]byte, 4*4*3)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			i := (y*4 + x) * 3
			if x < 2 {
				data[i] = 255
			} else {
				data[i+2] = 255
			}
		}
	}
	f, err := New(data, 4, 4)
	require.NoError(t, err)

	t.Run("interior region", func(t *testing.T) {
		c, err := f.Crop(2, 0, 2, 4)
		require.NoError(t, err)
		assert.Equal(t, 2, c.Width)
		assert.Equal(t, 4, c.Height)
		_, _, r := c.BGR(0, 0)
		assert.Equal(t, byte(255), r)
	})

	t.Run("clamped to bounds", func(t *testing.T) {
		c, err := f.Crop(3, 3, 10, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, c.Width)
		assert.Equal(t, 1, c.Height)
	})

	t.Run("empty intersection errors", func(t *testing.T) {
		_, err := f.Crop(10, 10, 2, 2)
		assert.Error(t, err)
	})

	t.Run("crop is a copy", func(t *testing.T) {
		c, err := f.Crop(0, 0, 2, 2)
		require.NoError(t, err)
		c.Data[0] = 7
		assert.Equal(t, byte(255), f.Data[0])
	})
}

func TestROI_Resolve(t *testing.T) {
	tests := []struct {
		name       string
		roi        ROI
		x, y, w, h int
	}{
		{"zero means full frame", ROI{}, 0, 0, 1920, 1080},
		{"pixel coordinates", ROI{X: 10, Y: 20, W: 100, H: 50}, 10, 20, 100, 50},
		{"normalized coordinates", ROI{X: 0.5, Y: 0.5, W: 0.25, H: 0.25, Normalized: true}, 960, 540, 480, 270},
		{"clamped to frame", ROI{X: 1900, Y: 0, W: 100, H: 100}, 1900, 0, 20, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, w, h := tt.roi.Resolve(1920, 1080)
			assert.Equal(t, []int{tt.x, tt.y, tt.w, tt.h}, []int{x, y, w, h})
		})
	}
}

func TestLumaAndHSV(t *testing.T) {
	t.Run("luma extremes", func(t *testing.T) {
		assert.Equal(t, byte(255), Luma(255, 255, 255))
		assert.Equal(t, byte(0), Luma(0, 0, 0))
		assert.Equal(t, byte(76), Luma(0, 0, 255))
	})

	t.Run("primary hues", func(t *testing.T) {
		h, s, v := BGRToHSV(0, 0, 255)
		assert.Equal(t, byte(0), h)
		assert.Equal(t, byte(255), s)
		assert.Equal(t, byte(255), v)

		h, _, _ = BGRToHSV(0, 255, 0)
		assert.Equal(t, byte(60), h)

		h, _, _ = BGRToHSV(255, 0, 0)
		assert.Equal(t, byte(120), h)
	})

	t.Run("white is unsaturated", func(t *testing.T) {
		_, s, v := BGRToHSV(255, 255, 255)
		assert.Equal(t, byte(0), s)
		assert.Equal(t, byte(255), v)
	})
}

func TestFrame_MeanLuma(t *testing.T) {
	assert.InDelta(t, 255, solid(t, 8, 8, 255, 255, 255).MeanLuma(), 0.5)
	assert.InDelta(t, 0, solid(t, 8, 8, 0, 0, 0).MeanLuma(), 0.001)
}

func TestFrame_PNGRoundtrip(t *testing.T) {
	f := solid(t, 6, 4, 40, 80, 120)
	f.Data[0] = 200 // one distinct pixel

	path := filepath.Join(t.TempDir(), "snapshot.png")
	require.NoError(t, f.SavePNG(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, f.Width, loaded.Width)
	assert.Equal(t, f.Height, loaded.Height)
	assert.Equal(t, f.Data, loaded.Data)
}

func TestFrame_CloneAndTimestamp(t *testing.T) {
	f := solid(t, 2, 2, 1, 2, 3)
	ts := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	stamped := f.WithTimestamp(ts)
	assert.Equal(t, ts, stamped.Timestamp)
	assert.True(t, f.Timestamp.IsZero(), "original frame keeps its timestamp")

	cp := f.Clone()
	cp.Data[0] = 99
	assert.Equal(t, byte(1), f.Data[0])
}
