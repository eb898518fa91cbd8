package transcriber

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/splat-replay/splat-replay/internal/config"
)

// WhisperRecognizer streams microphone audio through a whisper.cpp-style
// stream binary and parses its stdout into utterances.
type WhisperRecognizer struct {
	cfg    config.TranscriberConfig
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewWhisperRecognizer builds the recognizer from configuration.
func NewWhisperRecognizer(cfg config.TranscriberConfig, logger *slog.Logger) *WhisperRecognizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &WhisperRecognizer{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "whisper")),
	}
}

// Start launches the stream binary and returns the utterance channel. The
// channel closes when the process exits.
func (w *WhisperRecognizer) Start(ctx context.Context) (<-chan Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return nil, fmt.Errorf("recognizer already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	args := []string{"-m", w.cfg.ModelPath, "-l", w.cfg.Language}
	if w.cfg.Device != "" {
		args = append(args, "-c", w.cfg.Device)
	}
	cmd := exec.CommandContext(runCtx, w.cfg.BinaryPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("starting speech recognizer: %w", err)
	}
	w.cancel = cancel

	results := make(chan Result, 16)
	go func() {
		defer close(results)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if text := cleanUtterance(scanner.Text()); text != "" {
				results <- Result{Text: text, At: time.Now()}
			}
		}
		if err := cmd.Wait(); err != nil && runCtx.Err() == nil {
			w.logger.Warn("speech recognizer exited", slog.Any("error", err))
		}
	}()
	return results, nil
}

// Stop terminates the stream process.
func (w *WhisperRecognizer) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	return nil
}

// cleanUtterance strips the stream binary's "[00:00.000 --> 00:02.000]"
// prefixes and control markers, keeping just the spoken text.
func cleanUtterance(line string) string {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "whisper_") {
		return ""
	}
	if end := strings.Index(line, "]"); strings.HasPrefix(line, "[") && end >= 0 {
		line = strings.TrimSpace(line[end+1:])
	}
	switch line {
	case "[BLANK_AUDIO]", "(silence)", "[ Silence ]":
		return ""
	}
	return line
}
