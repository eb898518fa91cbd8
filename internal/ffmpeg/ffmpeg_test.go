package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcatArgs(t *testing.T) {
	args := concatArgs("/tmp/list.txt", "/tmp/out.mkv")
	assert.Equal(t, []string{
		"-y", "-f", "concat", "-safe", "0", "-i", "/tmp/list.txt", "-c", "copy", "/tmp/out.mkv",
	}, args)
}

func TestConcatListEntryEscapesQuotes(t *testing.T) {
	assert.Equal(t, "file '/a/b.mkv'", concatListEntry("/a/b.mkv"))
	assert.Equal(t, `file '/a/it'\''s.mkv'`, concatListEntry("/a/it's.mkv"))
}

func TestVolumeArgs(t *testing.T) {
	args := volumeArgs("in.mkv", "out.mkv", 1.5)
	assert.Equal(t, []string{
		"-y", "-i", "in.mkv", "-filter:a", "volume=1.5", "-c:v", "copy", "out.mkv",
	}, args)
}

func TestEmbedArgs(t *testing.T) {
	t.Run("metadata only", func(t *testing.T) {
		args := embedArgs("in.mkv", "out.mkv", "", "", map[string]string{"title": "x"})
		assert.Equal(t, []string{
			"-y", "-i", "in.mkv", "-map", "0", "-c", "copy",
			"-metadata", "title=x", "out.mkv",
		}, args)
	})

	t.Run("subtitle codec follows container", func(t *testing.T) {
		mkv := embedArgs("in.mkv", "out.mkv", "sub.srt", "", nil)
		assert.Contains(t, mkv, "srt")
		assert.NotContains(t, mkv, "mov_text")

		mp4 := embedArgs("in.mp4", "out.mp4", "sub.srt", "", nil)
		assert.Contains(t, mp4, "mov_text")
	})

	t.Run("thumbnail attached as picture", func(t *testing.T) {
		args := embedArgs("in.mkv", "out.mkv", "", "thumb.png", nil)
		assert.Contains(t, args, "-disposition:v:1")
		assert.Contains(t, args, "attached_pic")
	})

	t.Run("metadata keys in stable order", func(t *testing.T) {
		a := embedArgs("in.mkv", "out.mkv", "", "", map[string]string{"b": "2", "a": "1"})
		b := embedArgs("in.mkv", "out.mkv", "", "", map[string]string{"a": "1", "b": "2"})
		assert.Equal(t, a, b)
	})
}

func TestAddAudioArgs(t *testing.T) {
	args := addAudioArgs("v.mkv", "a.aac", "out.mkv")
	assert.Equal(t, []string{
		"-y", "-i", "v.mkv", "-i", "a.aac", "-map", "0", "-map", "1:a", "-c", "copy", "out.mkv",
	}, args)
}

func TestParseVersion(t *testing.T) {
	cases := []struct {
		in           string
		major, minor int
	}{
		{"6.1.1", 6, 1},
		{"7.0", 7, 0},
		{"6.1-2-gabc123", 6, 1},
		{"garbage", 0, 0},
	}
	for _, tc := range cases {
		major, minor := parseVersion(tc.in)
		assert.Equal(t, tc.major, major, tc.in)
		assert.Equal(t, tc.minor, minor, tc.in)
	}
}

func TestParseDeviceListing(t *testing.T) {
	out := `[dshow @ 0x1] DirectShow video devices
[dshow @ 0x1]  "Game Capture HD60"
[dshow @ 0x1]     Alternative name "@device_pnp_\\?\usb#vid"
[dshow @ 0x1]  "Integrated Webcam"
`
	devices := parseDeviceListing(out)
	require.Len(t, devices, 2)
	assert.Equal(t, "Game Capture HD60", devices[0])
	assert.Equal(t, "Integrated Webcam", devices[1])
}

func TestBinaryDetectorExplicitPathMissing(t *testing.T) {
	d := NewBinaryDetector("/nonexistent/ffmpeg", "")
	_, err := d.Detect(t.Context())
	require.Error(t, err)
}
