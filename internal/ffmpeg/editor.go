package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"github.com/splat-replay/splat-replay/internal/config"
)

// Editor performs the media operations the auto-editor composes: concat,
// volume adjustment, metadata/subtitle/thumbnail embedding, and audio track
// addition.
type Editor struct {
	cfg      config.EditorConfig
	detector *BinaryDetector
	prober   *Prober
	runner   *runner
	logger   *slog.Logger
}

// NewEditor wires the editor against a detected ffmpeg installation.
func NewEditor(cfg config.EditorConfig, logger *slog.Logger) *Editor {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "ffmpeg_editor"))
	return &Editor{
		cfg:      cfg,
		detector: NewBinaryDetector(cfg.FFmpegPath, cfg.FFprobePath),
		runner:   &runner{logger: logger},
		logger:   logger,
	}
}

func (e *Editor) binaries(ctx context.Context) (*BinaryInfo, error) {
	info, err := e.detector.Detect(ctx)
	if err != nil {
		return nil, err
	}
	if e.prober == nil && info.FFprobePath != "" {
		e.prober = NewProber(info.FFprobePath, e.logger)
	}
	return info, nil
}

// concatArgs builds the concat-demuxer invocation. Inputs are re-muxed
// without re-encoding.
func concatArgs(listFile, output string) []string {
	return []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		output,
	}
}

// concatListEntry escapes one path for the concat demuxer list format.
func concatListEntry(path string) string {
	return "file '" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}

// Concat joins the inputs into output in order, without re-encoding. All
// inputs must share codec parameters, which holds for recordings from one
// capture configuration.
func (e *Editor) Concat(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("no inputs to concatenate")
	}
	info, err := e.binaries(ctx)
	if err != nil {
		return err
	}

	var list strings.Builder
	for _, input := range inputs {
		abs, err := filepath.Abs(input)
		if err != nil {
			return err
		}
		list.WriteString(concatListEntry(abs))
		list.WriteByte('\n')
	}
	listFile := filepath.Join(filepath.Dir(output), "concat_"+time.Now().Format("150405")+".txt")
	if err := renameio.WriteFile(listFile, []byte(list.String()), 0o644); err != nil {
		return fmt.Errorf("writing concat list: %w", err)
	}
	defer os.Remove(listFile)

	return e.runner.run(ctx, info.FFmpegPath, concatArgs(listFile, output)...)
}

// volumeArgs builds the volume-filter invocation; video is stream-copied.
func volumeArgs(input, output string, multiplier float64) []string {
	return []string{
		"-y",
		"-i", input,
		"-filter:a", fmt.Sprintf("volume=%g", multiplier),
		"-c:v", "copy",
		output,
	}
}

// ChangeVolume re-encodes the audio track with the multiplier applied.
func (e *Editor) ChangeVolume(ctx context.Context, input, output string, multiplier float64) error {
	info, err := e.binaries(ctx)
	if err != nil {
		return err
	}
	return e.runner.run(ctx, info.FFmpegPath, volumeArgs(input, output, multiplier)...)
}

// embedArgs builds the embedding invocation: container metadata tags, an
// optional subtitle stream, and an optional attached thumbnail.
func embedArgs(input, output, subtitlePath, thumbnailPath string, meta map[string]string) []string {
	args := []string{"-y", "-i", input}
	inputs := 1

	subtitleInput := -1
	if subtitlePath != "" {
		args = append(args, "-i", subtitlePath)
		subtitleInput = inputs
		inputs++
	}
	thumbnailInput := -1
	if thumbnailPath != "" {
		args = append(args, "-i", thumbnailPath)
		thumbnailInput = inputs
		inputs++
	}

	args = append(args, "-map", "0")
	if subtitleInput >= 0 {
		args = append(args, "-map", fmt.Sprintf("%d", subtitleInput))
	}
	if thumbnailInput >= 0 {
		args = append(args, "-map", fmt.Sprintf("%d", thumbnailInput))
	}

	args = append(args, "-c", "copy")
	if subtitleInput >= 0 {
		subCodec := "mov_text"
		if strings.EqualFold(filepath.Ext(output), ".mkv") {
			subCodec = "srt"
		}
		args = append(args, "-c:s", subCodec)
	}
	if thumbnailInput >= 0 {
		args = append(args, "-disposition:v:1", "attached_pic")
	}

	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-metadata", k+"="+meta[k])
	}

	return append(args, output)
}

// Embed writes metadata tags and optional subtitle/thumbnail streams into
// a copy of the container.
func (e *Editor) Embed(ctx context.Context, input, output, subtitlePath, thumbnailPath string, meta map[string]string) error {
	info, err := e.binaries(ctx)
	if err != nil {
		return err
	}
	return e.runner.run(ctx, info.FFmpegPath, embedArgs(input, output, subtitlePath, thumbnailPath, meta)...)
}

// addAudioArgs builds the extra-audio-track invocation.
func addAudioArgs(video, audio, output string) []string {
	return []string{
		"-y",
		"-i", video,
		"-i", audio,
		"-map", "0",
		"-map", "1:a",
		"-c", "copy",
		output,
	}
}

// AddAudioTrack muxes an extra audio stream (e.g. a voice memo track)
// alongside the existing ones.
func (e *Editor) AddAudioTrack(ctx context.Context, video, audio, output string) error {
	info, err := e.binaries(ctx)
	if err != nil {
		return err
	}
	return e.runner.run(ctx, info.FFmpegPath, addAudioArgs(video, audio, output)...)
}

// VideoLength returns the container duration.
func (e *Editor) VideoLength(ctx context.Context, path string) (time.Duration, error) {
	if _, err := e.binaries(ctx); err != nil {
		return 0, err
	}
	if e.prober == nil {
		return 0, fmt.Errorf("ffprobe not available")
	}
	return e.prober.Duration(ctx, path)
}

// ListVideoDevices enumerates capture devices for the current platform.
func (e *Editor) ListVideoDevices(ctx context.Context) ([]string, error) {
	switch runtime.GOOS {
	case "linux":
		return listV4L2Devices()
	case "windows":
		info, err := e.binaries(ctx)
		if err != nil {
			return nil, err
		}
		return e.listDirectShowDevices(ctx, info.FFmpegPath)
	case "darwin":
		info, err := e.binaries(ctx)
		if err != nil {
			return nil, err
		}
		return e.listAVFoundationDevices(ctx, info.FFmpegPath)
	default:
		return nil, fmt.Errorf("device listing not supported on %s", runtime.GOOS)
	}
}

func listV4L2Devices() ([]string, error) {
	matches, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func (e *Editor) listDirectShowDevices(ctx context.Context, ffmpegPath string) ([]string, error) {
	// ffmpeg exits non-zero after listing; the device names are on stderr.
	out, _ := e.runner.runOutput(ctx, ffmpegPath,
		"-hide_banner", "-list_devices", "true", "-f", "dshow", "-i", "dummy")
	return parseDeviceListing(out), nil
}

func (e *Editor) listAVFoundationDevices(ctx context.Context, ffmpegPath string) ([]string, error) {
	out, _ := e.runner.runOutput(ctx, ffmpegPath,
		"-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", "")
	return parseDeviceListing(out), nil
}

// parseDeviceListing extracts quoted device names from ffmpeg's device
// listing output.
func parseDeviceListing(out string) []string {
	var devices []string
	for _, line := range strings.Split(out, "\n") {
		start := strings.Index(line, `"`)
		if start < 0 {
			continue
		}
		end := strings.Index(line[start+1:], `"`)
		if end < 0 {
			continue
		}
		name := line[start+1 : start+1+end]
		if name != "" && !strings.Contains(line, "Alternative name") {
			devices = append(devices, name)
		}
	}
	return devices
}
