package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// ProbeResult is the subset of ffprobe output the editor needs.
type ProbeResult struct {
	Duration time.Duration
	HasAudio bool
	HasVideo bool
	Width    int
	Height   int
}

// Prober reads media properties through ffprobe.
type Prober struct {
	ffprobePath string
	runner      *runner
}

// NewProber builds a prober for the given ffprobe binary.
func NewProber(ffprobePath string, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		ffprobePath: ffprobePath,
		runner:      &runner{logger: logger.With(slog.String("component", "ffprobe"))},
	}
}

// probeOutput mirrors ffprobe's -print_format json layout.
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// Probe reads the container duration and stream layout.
func (p *Prober) Probe(ctx context.Context, path string) (ProbeResult, error) {
	out, err := p.runner.runOutput(ctx, p.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("probing %s: %w", path, err)
	}

	var parsed probeOutput
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return ProbeResult{}, fmt.Errorf("parsing probe of %s: %w", path, err)
	}

	var result ProbeResult
	if parsed.Format.Duration != "" {
		seconds, err := strconv.ParseFloat(parsed.Format.Duration, 64)
		if err != nil {
			return ProbeResult{}, fmt.Errorf("parsing duration %q: %w", parsed.Format.Duration, err)
		}
		result.Duration = time.Duration(seconds * float64(time.Second))
	}
	for _, stream := range parsed.Streams {
		switch stream.CodecType {
		case "audio":
			result.HasAudio = true
		case "video":
			result.HasVideo = true
			if stream.Width > 0 {
				result.Width = stream.Width
				result.Height = stream.Height
			}
		}
	}
	return result, nil
}

// Duration returns just the container duration.
func (p *Prober) Duration(ctx context.Context, path string) (time.Duration, error) {
	result, err := p.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return result.Duration, nil
}
