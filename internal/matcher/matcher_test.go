package matcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splat-replay/splat-replay/internal/frame"
)

// solidFrame builds a width x height frame filled with one BGR color.
func solidFrame(t *testing.T, width, height int, b, g, r byte) *frame.Frame {
	t.Helper()
	data := make([]byte, width*height*3)
	for i := 0; i < len(data); i += 3 {
		data[i], data[i+1], data[i+2] = b, g, r
	}
	f, err := frame.New(data, width, height)
	require.NoError(t, err)
	return f
}

// barFrame builds a frame that is dark except for a bright vertical bar
// starting at barX.
func barFrame(t *testing.T, width, height, barX, barW int) *frame.Frame {
	t.Helper()
	f := solidFrame(t, width, height, 10, 10, 10)
	for y := 0; y < height; y++ {
		for x := barX; x < barX+barW && x < width; x++ {
			i := (y*width + x) * 3
			f.Data[i], f.Data[i+1], f.Data[i+2] = 240, 240, 240
		}
	}
	return f
}

func TestTemplateMatcher(t *testing.T) {
	// Template: 8x8 with a bright 4-wide bar on the left half.
	tmpl := barFrame(t, 8, 8, 0, 4)

	t.Run("exact occurrence scores one", func(t *testing.T) {
		scene := barFrame(t, 32, 16, 12, 4)
		m, err := NewTemplateMatcher(tmpl, nil, frame.ROI{}, 0.9)
		require.NoError(t, err)

		score, err := m.Score(scene)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, score, 1e-9)

		ok, err := m.Match(scene)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("uniform scene scores low", func(t *testing.T) {
		scene := solidFrame(t, 32, 16, 10, 10, 10)
		m, err := NewTemplateMatcher(tmpl, nil, frame.ROI{}, 0.9)
		require.NoError(t, err)

		ok, err := m.Match(scene)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("deterministic", func(t *testing.T) {
		scene := barFrame(t, 32, 16, 12, 4)
		m, err := NewTemplateMatcher(tmpl, nil, frame.ROI{}, 0.9)
		require.NoError(t, err)

		s1, err := m.Score(scene)
		require.NoError(t, err)
		s2, err := m.Score(scene)
		require.NoError(t, err)
		assert.Equal(t, s1, s2)
	})

	t.Run("ROI smaller than template errors", func(t *testing.T) {
		scene := solidFrame(t, 32, 16, 0, 0, 0)
		m, err := NewTemplateMatcher(tmpl, nil, frame.ROI{X: 0, Y: 0, W: 4, H: 4}, 0.9)
		require.NoError(t, err)
		_, err = m.Match(scene)
		assert.Error(t, err)
	})

	t.Run("flat template rejected", func(t *testing.T) {
		_, err := NewTemplateMatcher(solidFrame(t, 8, 8, 50, 50, 50), nil, frame.ROI{}, 0.9)
		assert.Error(t, err)
	})
}

func TestHSVMatcher(t *testing.T) {
	green := solidFrame(t, 8, 8, 0, 255, 0)
	red := solidFrame(t, 8, 8, 0, 0, 255)

	m := &HSVMatcher{
		Lower:     HSVBound{H: 55, S: 200, V: 200},
		Upper:     HSVBound{H: 65, S: 255, V: 255},
		Threshold: 0.9,
	}

	ok, err := m.Match(green)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Match(red)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHSVMatcher_Mask(t *testing.T) {
	// Left half green, right half red; mask selects only the left half.
	f := solidFrame(t, 8, 8, 0, 255, 0)
	for y := 0; y < 8; y++ {
		for x := 4; x < 8; x++ {
			i := (y*8 + x) * 3
			f.Data[i], f.Data[i+1], f.Data[i+2] = 0, 0, 255
		}
	}
	maskImg := solidFrame(t, 8, 8, 0, 0, 0)
	for y := 0; y < 8; y++ {
		for x := 0; x < 4; x++ {
			i := (y*8 + x) * 3
			maskImg.Data[i+1] = 255
		}
	}

	m := &HSVMatcher{
		Lower:     HSVBound{H: 55, S: 200, V: 200},
		Upper:     HSVBound{H: 65, S: 255, V: 255},
		Threshold: 0.99,
		Mask:      MaskFromFrame(maskImg),
	}
	ok, err := m.Match(f)
	require.NoError(t, err)
	assert.True(t, ok, "mask should hide the red half")
}

func TestRGBMatcher(t *testing.T) {
	f := solidFrame(t, 4, 4, 12, 34, 56)

	m := &RGBMatcher{B: 12, G: 34, R: 56, Threshold: 1.0}
	ok, err := m.Match(f)
	require.NoError(t, err)
	assert.True(t, ok)

	m = &RGBMatcher{B: 12, G: 34, R: 57, Threshold: 0.01}
	ok, err = m.Match(f)
	require.NoError(t, err)
	assert.False(t, ok, "exact equality must not tolerate off-by-one")
}

func TestHashMatcher(t *testing.T) {
	f := barFrame(t, 16, 16, 4, 4)
	roi := frame.ROI{X: 0, Y: 0, W: 8, H: 8}

	digest, err := HashFrame(f, roi)
	require.NoError(t, err)

	m, err := NewHashMatcher(roi, digest)
	require.NoError(t, err)

	ok, err := m.Match(f)
	require.NoError(t, err)
	assert.True(t, ok)

	changed := f.Clone()
	changed.Data[0] ^= 0xFF
	ok, err = m.Match(changed)
	require.NoError(t, err)
	assert.False(t, ok)

	t.Run("bad digest rejected", func(t *testing.T) {
		_, err := NewHashMatcher(roi, "zz")
		assert.Error(t, err)
	})
}

func TestUniformMatcher(t *testing.T) {
	m := &UniformMatcher{HueStdDev: 2.0}

	ok, err := m.Match(solidFrame(t, 8, 8, 200, 40, 40))
	require.NoError(t, err)
	assert.True(t, ok, "solid color has zero hue deviation")

	// Half green, half red: hues 60 and 0, large deviation.
	mixed := solidFrame(t, 8, 8, 0, 255, 0)
	for y := 0; y < 8; y++ {
		for x := 4; x < 8; x++ {
			i := (y*8 + x) * 3
			mixed.Data[i+1] = 0
			mixed.Data[i+2] = 255
		}
	}
	ok, err = m.Match(mixed)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBrightnessMatcher(t *testing.T) {
	m := &BrightnessMatcher{MaxLuma: 20}

	ok, err := m.Match(solidFrame(t, 8, 8, 5, 5, 5))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Match(solidFrame(t, 8, 8, 250, 250, 250))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEdgeMatcher(t *testing.T) {
	tmpl := barFrame(t, 24, 24, 8, 6)

	m, err := NewEdgeMatcher(tmpl, frame.ROI{}, 0.01)
	require.NoError(t, err)

	t.Run("identical layout matches", func(t *testing.T) {
		d, err := m.Distance(barFrame(t, 24, 24, 8, 6))
		require.NoError(t, err)
		assert.InDelta(t, 0, d, 1e-9)

		ok, err := m.Match(barFrame(t, 24, 24, 8, 6))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("shifted layout distances grow", func(t *testing.T) {
		d, err := m.Distance(barFrame(t, 24, 24, 14, 6))
		require.NoError(t, err)
		assert.Greater(t, d, 0.01)
	})

	t.Run("size mismatch errors", func(t *testing.T) {
		_, err := m.Distance(barFrame(t, 16, 16, 4, 4))
		assert.Error(t, err)
	})
}

// boolMatcher is a test stub with a fixed verdict.
type boolMatcher bool

func (b boolMatcher) Match(*frame.Frame) (bool, error) { return bool(b), nil }

func TestRegistryAndComposites(t *testing.T) {
	f := solidFrame(t, 2, 2, 0, 0, 0)

	newRegistry := func(t *testing.T, exprs map[string]*Expr) *Registry {
		t.Helper()
		r, err := NewRegistry(map[string]Matcher{
			"yes": boolMatcher(true),
			"no":  boolMatcher(false),
		}, exprs, 4)
		require.NoError(t, err)
		return r
	}

	t.Run("simple lookup", func(t *testing.T) {
		r := newRegistry(t, nil)
		ok, err := r.Match(context.Background(), "yes", f)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unknown name errors", func(t *testing.T) {
		r := newRegistry(t, nil)
		_, err := r.Match(context.Background(), "missing", f)
		assert.Error(t, err)
	})

	t.Run("and or not", func(t *testing.T) {
		r := newRegistry(t, map[string]*Expr{
			"both": {Op: OpAnd, Children: []*Expr{
				{Op: OpRef, Ref: "yes"},
				{Op: OpNot, Children: []*Expr{{Op: OpRef, Ref: "no"}}},
			}},
			"either": {Op: OpOr, Children: []*Expr{
				{Op: OpRef, Ref: "no"},
				{Op: OpRef, Ref: "yes"},
			}},
			"none": {Op: OpAnd, Children: []*Expr{
				{Op: OpRef, Ref: "yes"},
				{Op: OpRef, Ref: "no"},
			}},
		})

		ok, err := r.Match(context.Background(), "both", f)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = r.Match(context.Background(), "either", f)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = r.Match(context.Background(), "none", f)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("expression referencing expression", func(t *testing.T) {
		r := newRegistry(t, map[string]*Expr{
			"inner": {Op: OpRef, Ref: "yes"},
			"outer": {Op: OpNot, Children: []*Expr{{Op: OpRef, Ref: "inner"}}},
		})
		ok, err := r.Match(context.Background(), "outer", f)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown reference rejected at construction", func(t *testing.T) {
		_, err := NewRegistry(map[string]Matcher{}, map[string]*Expr{
			"broken": {Op: OpRef, Ref: "ghost"},
		}, 0)
		assert.Error(t, err)
	})

	t.Run("self reference hits the depth guard", func(t *testing.T) {
		r := newRegistry(t, map[string]*Expr{
			"loop": {Op: OpRef, Ref: "loop"},
		})
		_, err := r.Match(context.Background(), "loop", f)
		assert.Error(t, err)
	})
}

func TestRegistry_Score(t *testing.T) {
	tmpl := barFrame(t, 8, 8, 0, 4)
	tm, err := NewTemplateMatcher(tmpl, nil, frame.ROI{}, 0.5)
	require.NoError(t, err)

	r, err := NewRegistry(map[string]Matcher{
		"bar":  tm,
		"flat": boolMatcher(true),
	}, nil, 0)
	require.NoError(t, err)

	score, err := r.Score("bar", barFrame(t, 16, 16, 4, 4))
	require.NoError(t, err)
	assert.Greater(t, score, 0.9)

	_, err = r.Score("flat", tmpl)
	assert.Error(t, err, "non-scoring matcher")

	_, err = r.Score("missing", tmpl)
	assert.Error(t, err)
}
