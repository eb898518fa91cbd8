// Package subtitle reads, writes, and rearranges SRT subtitle files: the
// recorder emits one sidecar per session and the editor merges them onto
// the concatenated timeline.
package subtitle

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/splat-replay/splat-replay/internal/models"
)

// Cue is one subtitle entry.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

// Track is an ordered list of cues.
type Track struct {
	Cues []Cue
}

// srtTimeLayout is HH:MM:SS,mmm.
func formatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	ms := (d - s*time.Second) / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

func parseTimestamp(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	main, msPart, ok := strings.Cut(s, ",")
	if !ok {
		// Some producers use a dot.
		main, msPart, ok = strings.Cut(s, ".")
		if !ok {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
	}
	parts := strings.Split(main, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	sec, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	ms, err := strconv.Atoi(msPart)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}

// Parse reads SRT content. Blank tracks parse to an empty track; malformed
// blocks fail with a validation error naming the block.
func Parse(content string) (Track, error) {
	var track Track
	content = strings.ReplaceAll(content, "\r\n", "\n")
	blocks := strings.Split(strings.TrimSpace(content), "\n\n")
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		if len(lines) < 2 {
			return Track{}, models.NewError(models.KindValidation,
				fmt.Sprintf("malformed subtitle block %q", block))
		}

		index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			return Track{}, models.WrapError(models.KindValidation,
				fmt.Sprintf("invalid cue index %q", lines[0]), err)
		}
		startRaw, endRaw, ok := strings.Cut(lines[1], "-->")
		if !ok {
			return Track{}, models.NewError(models.KindValidation,
				fmt.Sprintf("invalid cue timing %q", lines[1]))
		}
		start, err := parseTimestamp(startRaw)
		if err != nil {
			return Track{}, models.WrapError(models.KindValidation, "invalid cue start", err)
		}
		end, err := parseTimestamp(endRaw)
		if err != nil {
			return Track{}, models.WrapError(models.KindValidation, "invalid cue end", err)
		}

		track.Cues = append(track.Cues, Cue{
			Index: index,
			Start: start,
			End:   end,
			Text:  strings.Join(lines[2:], "\n"),
		})
	}
	return track, nil
}

// Format renders the track as SRT, renumbering cues from 1.
func (t Track) Format() string {
	var b strings.Builder
	for i, cue := range t.Cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1, formatTimestamp(cue.Start), formatTimestamp(cue.End), cue.Text)
	}
	return b.String()
}

// Shift returns a copy with every cue moved by the offset. Cues shifted
// before zero are clamped.
func (t Track) Shift(offset time.Duration) Track {
	out := Track{Cues: make([]Cue, len(t.Cues))}
	for i, cue := range t.Cues {
		cue.Start += offset
		cue.End += offset
		if cue.Start < 0 {
			cue.Start = 0
		}
		if cue.End < 0 {
			cue.End = 0
		}
		out.Cues[i] = cue
	}
	return out
}

// Duration returns the end time of the last cue.
func (t Track) Duration() time.Duration {
	var max time.Duration
	for _, cue := range t.Cues {
		if cue.End > max {
			max = cue.End
		}
	}
	return max
}

// Merge concatenates tracks onto a single timeline: each track is shifted
// by the running offset of the videos before it. offsets[i] is where video
// i begins in the concatenated output; len(offsets) must equal len(tracks).
func Merge(tracks []Track, offsets []time.Duration) (Track, error) {
	if len(tracks) != len(offsets) {
		return Track{}, models.NewError(models.KindValidation,
			fmt.Sprintf("got %d tracks but %d offsets", len(tracks), len(offsets)))
	}
	var merged Track
	for i, track := range tracks {
		shifted := track.Shift(offsets[i])
		merged.Cues = append(merged.Cues, shifted.Cues...)
	}
	sort.SliceStable(merged.Cues, func(i, j int) bool {
		return merged.Cues[i].Start < merged.Cues[j].Start
	})
	return merged, nil
}
