// Package ffmpeg wraps the ffmpeg and ffprobe binaries: detection, media
// probing, and the editing operations the auto-editor is built on.
package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// BinaryInfo describes the detected ffmpeg installation.
type BinaryInfo struct {
	FFmpegPath   string `json:"ffmpeg_path"`
	FFprobePath  string `json:"ffprobe_path"`
	Version      string `json:"version"`
	MajorVersion int    `json:"major_version"`
	MinorVersion int    `json:"minor_version"`
}

// BinaryDetector locates ffmpeg/ffprobe and caches the result.
type BinaryDetector struct {
	mu           sync.RWMutex
	ffmpegPath   string
	ffprobePath  string
	info         *BinaryInfo
	lastDetected time.Time
	cacheTTL     time.Duration
}

// NewBinaryDetector creates a detector. Explicit paths take precedence;
// empty paths fall back to the SPLAT_FFMPEG_BINARY / SPLAT_FFPROBE_BINARY
// environment variables and then $PATH.
func NewBinaryDetector(ffmpegPath, ffprobePath string) *BinaryDetector {
	return &BinaryDetector{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		cacheTTL:    5 * time.Minute,
	}
}

// WithCacheTTL sets the detection cache TTL.
func (d *BinaryDetector) WithCacheTTL(ttl time.Duration) *BinaryDetector {
	d.cacheTTL = ttl
	return d
}

// Detect locates the binaries and reads the ffmpeg version.
func (d *BinaryDetector) Detect(ctx context.Context) (*BinaryInfo, error) {
	d.mu.RLock()
	if d.info != nil && time.Since(d.lastDetected) < d.cacheTTL {
		info := d.info
		d.mu.RUnlock()
		return info, nil
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.info != nil && time.Since(d.lastDetected) < d.cacheTTL {
		return d.info, nil
	}

	info, err := d.detect(ctx)
	if err != nil {
		return nil, err
	}
	d.info = info
	d.lastDetected = time.Now()
	return info, nil
}

// Clear drops the cached detection result.
func (d *BinaryDetector) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.info = nil
}

func (d *BinaryDetector) detect(ctx context.Context) (*BinaryInfo, error) {
	info := &BinaryInfo{}

	ffmpegPath, err := findBinary("ffmpeg", d.ffmpegPath, "SPLAT_FFMPEG_BINARY")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	info.FFmpegPath = ffmpegPath

	// ffprobe is optional; without it length probing degrades but editing
	// still works.
	if ffprobePath, err := findBinary("ffprobe", d.ffprobePath, "SPLAT_FFPROBE_BINARY"); err == nil {
		info.FFprobePath = ffprobePath
	}

	version, major, minor, err := readVersion(ctx, ffmpegPath)
	if err != nil {
		return nil, fmt.Errorf("getting ffmpeg version: %w", err)
	}
	info.Version = version
	info.MajorVersion = major
	info.MinorVersion = minor
	return info, nil
}

// findBinary resolves a binary: explicit path, env override, working
// directory, then $PATH.
func findBinary(name, explicit, envVar string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%s: %w", explicit, err)
		}
		return explicit, nil
	}
	if fromEnv := os.Getenv(envVar); fromEnv != "" {
		if _, err := os.Stat(fromEnv); err != nil {
			return "", fmt.Errorf("%s (%s): %w", fromEnv, envVar, err)
		}
		return fromEnv, nil
	}
	if local := filepath.Join(".", name); fileExists(local) {
		return local, nil
	}
	return exec.LookPath(name)
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

func readVersion(ctx context.Context, ffmpegPath string) (full string, major, minor int, err error) {
	cmd := exec.CommandContext(ctx, ffmpegPath, "-version")
	output, err := cmd.Output()
	if err != nil {
		return "", 0, 0, err
	}
	line, _, _ := strings.Cut(string(output), "\n")
	fields := strings.Fields(line)
	if len(fields) < 3 || fields[0] != "ffmpeg" {
		return "", 0, 0, fmt.Errorf("unexpected version output %q", line)
	}
	full = strings.TrimPrefix(fields[2], "n")
	major, minor = parseVersion(full)
	return full, major, minor, nil
}

// parseVersion reads "6.1.1" or "6.1-2-gabc" forms; unknown pieces stay 0.
func parseVersion(v string) (major, minor int) {
	v, _, _ = strings.Cut(v, "-")
	parts := strings.Split(v, ".")
	if len(parts) > 0 {
		major, _ = strconv.Atoi(parts[0])
	}
	if len(parts) > 1 {
		minor, _ = strconv.Atoi(parts[1])
	}
	return major, minor
}
