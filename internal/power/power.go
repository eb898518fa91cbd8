// Package power suspends the host after the pipeline finishes.
package power

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
)

// Manager puts the machine to sleep.
type Manager interface {
	Sleep(ctx context.Context) error
}

// SystemManager suspends via the platform's own tooling.
type SystemManager struct {
	logger *slog.Logger
}

// NewSystemManager returns the platform sleep implementation.
func NewSystemManager(logger *slog.Logger) *SystemManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SystemManager{logger: logger.With(slog.String("component", "power"))}
}

// Sleep suspends the host. The call returns once the suspend command has
// been accepted; the OS takes it from there.
func (m *SystemManager) Sleep(ctx context.Context) error {
	name, args, err := suspendCommand()
	if err != nil {
		return err
	}
	m.logger.Info("suspending system", slog.String("command", name))
	if out, err := exec.CommandContext(ctx, name, args...).CombinedOutput(); err != nil {
		return fmt.Errorf("suspend command failed: %w: %s", err, out)
	}
	return nil
}

func suspendCommand() (string, []string, error) {
	switch runtime.GOOS {
	case "linux":
		return "systemctl", []string{"suspend"}, nil
	case "darwin":
		return "pmset", []string{"sleepnow"}, nil
	case "windows":
		return "rundll32.exe", []string{"powrprof.dll,SetSuspendState", "0,1,0"}, nil
	}
	return "", nil, fmt.Errorf("suspend not supported on %s", runtime.GOOS)
}
