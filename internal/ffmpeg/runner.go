package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// runner executes ffmpeg-family commands, capturing stderr for error
// reporting. ffmpeg writes its diagnostics to stderr even on success, so
// the tail is only surfaced on failure.
type runner struct {
	logger *slog.Logger
}

// stderrTailLimit bounds how much diagnostic output lands in an error.
const stderrTailLimit = 2048

func (r *runner) run(ctx context.Context, binary string, args ...string) error {
	_, err := r.runOutput(ctx, binary, args...)
	return err
}

func (r *runner) runOutput(ctx context.Context, binary string, args ...string) (string, error) {
	r.logger.Debug("executing",
		slog.String("binary", binary),
		slog.String("args", strings.Join(args, " ")))

	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		tail := stderr.String()
		if len(tail) > stderrTailLimit {
			tail = tail[len(tail)-stderrTailLimit:]
		}
		return "", fmt.Errorf("%s %s: %w: %s", binary, firstArg(args), err, strings.TrimSpace(tail))
	}
	return stdout.String(), nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
