package subtitle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splat-replay/splat-replay/internal/models"
)

const sample = `1
00:00:01,500 --> 00:00:03,000
nice shot

2
00:00:05,000 --> 00:00:07,250
booyah!
`

func TestParse(t *testing.T) {
	track, err := Parse(sample)
	require.NoError(t, err)
	require.Len(t, track.Cues, 2)

	assert.Equal(t, 1500*time.Millisecond, track.Cues[0].Start)
	assert.Equal(t, 3*time.Second, track.Cues[0].End)
	assert.Equal(t, "nice shot", track.Cues[0].Text)
	assert.Equal(t, "booyah!", track.Cues[1].Text)
}

func TestParseWindowsLineEndings(t *testing.T) {
	track, err := Parse("1\r\n00:00:00,000 --> 00:00:01,000\r\nhello\r\n")
	require.NoError(t, err)
	require.Len(t, track.Cues, 1)
	assert.Equal(t, "hello", track.Cues[0].Text)
}

func TestParseEmpty(t *testing.T) {
	track, err := Parse("")
	require.NoError(t, err)
	assert.Empty(t, track.Cues)
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse("not a subtitle")
	require.Error(t, err)
	assert.Equal(t, models.KindValidation, models.KindOf(err))

	_, err = Parse("1\n00:00:00,000 until 00:00:01,000\nx")
	require.Error(t, err)
}

func TestFormatRoundTrip(t *testing.T) {
	track, err := Parse(sample)
	require.NoError(t, err)

	again, err := Parse(track.Format())
	require.NoError(t, err)
	assert.Equal(t, track.Cues, again.Cues)
}

func TestFormatRenumbers(t *testing.T) {
	track := Track{Cues: []Cue{
		{Index: 7, Start: time.Second, End: 2 * time.Second, Text: "a"},
		{Index: 9, Start: 3 * time.Second, End: 4 * time.Second, Text: "b"},
	}}
	parsed, err := Parse(track.Format())
	require.NoError(t, err)
	assert.Equal(t, 1, parsed.Cues[0].Index)
	assert.Equal(t, 2, parsed.Cues[1].Index)
}

func TestShiftClampsAtZero(t *testing.T) {
	track := Track{Cues: []Cue{{Start: time.Second, End: 2 * time.Second, Text: "x"}}}
	shifted := track.Shift(-90 * time.Second)
	assert.Equal(t, time.Duration(0), shifted.Cues[0].Start)
	assert.Equal(t, time.Duration(0), shifted.Cues[0].End)

	// Original untouched.
	assert.Equal(t, time.Second, track.Cues[0].Start)
}

func TestMergeAlignsToOffsets(t *testing.T) {
	a := Track{Cues: []Cue{{Start: time.Second, End: 2 * time.Second, Text: "first"}}}
	b := Track{Cues: []Cue{{Start: time.Second, End: 3 * time.Second, Text: "second"}}}

	merged, err := Merge([]Track{a, b}, []time.Duration{0, 90 * time.Second})
	require.NoError(t, err)
	require.Len(t, merged.Cues, 2)
	assert.Equal(t, time.Second, merged.Cues[0].Start)
	assert.Equal(t, 91*time.Second, merged.Cues[1].Start)
	assert.Equal(t, "second", merged.Cues[1].Text)
}

func TestMergeMismatchedOffsets(t *testing.T) {
	_, err := Merge([]Track{{}}, nil)
	require.Error(t, err)
	assert.Equal(t, models.KindValidation, models.KindOf(err))
}

func TestDuration(t *testing.T) {
	track := Track{Cues: []Cue{
		{Start: 0, End: 4 * time.Second},
		{Start: time.Second, End: 2 * time.Second},
	}}
	assert.Equal(t, 4*time.Second, track.Duration())
	assert.Equal(t, time.Duration(0), Track{}.Duration())
}
