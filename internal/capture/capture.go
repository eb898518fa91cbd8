// Package capture produces BGR frames from the capture device by running
// ffmpeg as a rawvideo pipe and keeping only the most recent frame.
package capture

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/splat-replay/splat-replay/internal/config"
	"github.com/splat-replay/splat-replay/internal/ffmpeg"
	"github.com/splat-replay/splat-replay/internal/frame"
	"github.com/splat-replay/splat-replay/internal/models"
)

// staleAfter is how old the latest frame may be before Capture reports no
// frame; a stalled pipe should look like a dead device, not a frozen image.
const staleAfter = 2 * time.Second

// DeviceCapture reads the capture card through ffmpeg. A reader goroutine
// drains the pipe at device rate and coalesces into a single latest frame.
type DeviceCapture struct {
	cfg      config.CaptureConfig
	detector *ffmpeg.BinaryDetector
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	latest  *frame.Frame
	takenAt time.Time
}

// NewDeviceCapture builds the frame source.
func NewDeviceCapture(cfg config.CaptureConfig, editorCfg config.EditorConfig, logger *slog.Logger) *DeviceCapture {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeviceCapture{
		cfg:      cfg,
		detector: ffmpeg.NewBinaryDetector(editorCfg.FFmpegPath, editorCfg.FFprobePath),
		logger:   logger.With(slog.String("component", "capture")),
		now:      time.Now,
	}
}

// inputArgs builds the platform-specific device input arguments.
func inputArgs(goos string, cfg config.CaptureConfig) ([]string, error) {
	size := fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)
	rate := fmt.Sprintf("%d", cfg.FPS)
	switch goos {
	case "linux":
		device := cfg.DeviceName
		if device == "" {
			device = "/dev/video0"
		}
		return []string{
			"-f", "v4l2", "-framerate", rate, "-video_size", size, "-i", device,
		}, nil
	case "windows":
		if cfg.DeviceName == "" {
			return nil, models.NewError(models.KindConfiguration, "capture.device_name is required on windows")
		}
		return []string{
			"-f", "dshow", "-framerate", rate, "-video_size", size, "-i", "video=" + cfg.DeviceName,
		}, nil
	case "darwin":
		device := cfg.DeviceName
		if device == "" {
			device = "0"
		}
		return []string{
			"-f", "avfoundation", "-framerate", rate, "-video_size", size, "-i", device,
		}, nil
	}
	return nil, fmt.Errorf("capture not supported on %s", goos)
}

// outputArgs is the fixed rawvideo pipe output.
func outputArgs() []string {
	return []string{"-f", "rawvideo", "-pix_fmt", "bgr24", "-"}
}

// Setup starts the ffmpeg pipe and the reader goroutine.
func (c *DeviceCapture) Setup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}

	info, err := c.detector.Detect(ctx)
	if err != nil {
		return err
	}
	in, err := inputArgs(runtime.GOOS, c.cfg)
	if err != nil {
		return err
	}
	args := append(append([]string{"-hide_banner", "-loglevel", "error"}, in...), outputArgs()...)

	runCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(runCtx, info.FFmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return models.WrapError(models.KindDevice, "starting capture pipe", err)
	}

	c.cancel = cancel
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		c.readFrames(stdout)
		_ = cmd.Wait()
	}()
	c.logger.Info("capture pipe started",
		slog.String("device", c.cfg.DeviceName),
		slog.Int("width", c.cfg.Width), slog.Int("height", c.cfg.Height))
	return nil
}

// readFrames drains fixed-size BGR frames, keeping only the newest.
func (c *DeviceCapture) readFrames(r io.Reader) {
	size := c.cfg.Width * c.cfg.Height * 3
	for {
		buf := make([]byte, size)
		if _, err := io.ReadFull(r, buf); err != nil {
			if err != io.EOF {
				c.logger.Debug("capture pipe read ended", slog.Any("error", err))
			}
			return
		}
		f, err := frame.New(buf, c.cfg.Width, c.cfg.Height)
		if err != nil {
			return
		}
		now := c.now()
		c.mu.Lock()
		c.latest = f.WithTimestamp(now)
		c.takenAt = now
		c.mu.Unlock()
	}
}

// Capture returns the most recent frame, or nil when none is fresh.
func (c *DeviceCapture) Capture(context.Context) (*frame.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest == nil || c.now().Sub(c.takenAt) > staleAfter {
		return nil, nil
	}
	return c.latest, nil
}

// Teardown stops the pipe.
func (c *DeviceCapture) Teardown(context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.latest = nil
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}
