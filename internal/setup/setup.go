// Package setup checks the host for everything the pipeline needs and
// persists the result so the UI can walk the user through what is missing.
package setup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"golang.org/x/image/font/opentype"

	"github.com/splat-replay/splat-replay/internal/config"
	"github.com/splat-replay/splat-replay/internal/ffmpeg"
)

// Status is a step's outcome.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
)

// StepID names one setup step. Steps run in declaration order.
type StepID string

const (
	StepHardwareCheck StepID = "hardware_check"
	StepFFmpeg        StepID = "ffmpeg"
	StepOBS           StepID = "obs"
	StepTesseract     StepID = "tesseract"
	StepFont          StepID = "font"
	StepYouTube       StepID = "youtube"
)

// stepOrder is the canonical walk-through order.
var stepOrder = []StepID{
	StepHardwareCheck, StepFFmpeg, StepOBS, StepTesseract, StepFont, StepYouTube,
}

// StepState is one step's persisted outcome.
type StepState struct {
	Status      Status            `json:"status"`
	Substeps    map[string]string `json:"substeps,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// State is the full persisted setup record.
type State struct {
	Steps     map[StepID]StepState `json:"steps"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Complete reports whether every step is completed or skipped.
func (s State) Complete() bool {
	for _, id := range stepOrder {
		if s.Steps[id].Status == StatusPending {
			return false
		}
	}
	return len(s.Steps) > 0
}

// stateFile is the persisted record's name under the storage base dir.
const stateFile = "setup.json"

// minimums the hardware check enforces.
const (
	minLogicalCPUs = 2
	minMemoryBytes = 4 << 30
)

// Service runs the checks and persists the record.
type Service struct {
	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

// NewService builds the setup service.
func NewService(cfg *config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "setup")),
		now:    time.Now,
	}
}

func (s *Service) statePath() string {
	return filepath.Join(s.cfg.Storage.BaseDir, stateFile)
}

// Load reads the persisted record; a missing file is an all-pending state.
func (s *Service) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.statePath())
	if os.IsNotExist(err) {
		return s.emptyState(), nil
	}
	if err != nil {
		return State{}, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parsing setup state: %w", err)
	}
	return state, nil
}

func (s *Service) emptyState() State {
	state := State{Steps: make(map[StepID]StepState)}
	for _, id := range stepOrder {
		state.Steps[id] = StepState{Status: StatusPending}
	}
	return state
}

// Run executes every check and persists the outcome.
func (s *Service) Run(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.emptyState()
	checks := map[StepID]func(context.Context) StepState{
		StepHardwareCheck: s.checkHardware,
		StepFFmpeg:        s.checkFFmpeg,
		StepOBS:           s.checkOBS,
		StepTesseract:     s.checkTesseract,
		StepFont:          s.checkFont,
		StepYouTube:       s.checkYouTube,
	}
	for _, id := range stepOrder {
		result := checks[id](ctx)
		if result.Status == StatusCompleted {
			t := s.now()
			result.CompletedAt = &t
		}
		state.Steps[id] = result
		s.logger.Info("setup step checked",
			slog.String("step", string(id)), slog.String("status", string(result.Status)))
	}
	state.UpdatedAt = s.now()

	if err := s.persist(state); err != nil {
		return state, err
	}
	return state, nil
}

func (s *Service) persist(state State) error {
	if err := os.MkdirAll(s.cfg.Storage.BaseDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(s.statePath(), data, 0o644)
}

func (s *Service) checkHardware(context.Context) StepState {
	sub := make(map[string]string)
	ok := true

	if cpus, err := cpu.Counts(true); err != nil {
		sub["cpu"] = "error: " + err.Error()
		ok = false
	} else if cpus < minLogicalCPUs {
		sub["cpu"] = fmt.Sprintf("%d logical cpus, need %d", cpus, minLogicalCPUs)
		ok = false
	} else {
		sub["cpu"] = fmt.Sprintf("%d logical cpus", cpus)
	}

	if vm, err := mem.VirtualMemory(); err != nil {
		sub["memory"] = "error: " + err.Error()
		ok = false
	} else if vm.Total < minMemoryBytes {
		sub["memory"] = fmt.Sprintf("%d MiB total, need %d MiB", vm.Total>>20, minMemoryBytes>>20)
		ok = false
	} else {
		sub["memory"] = fmt.Sprintf("%d MiB total", vm.Total>>20)
	}

	if usage, err := disk.Usage(s.cfg.Storage.BaseDir); err != nil {
		// The base dir may not exist yet; check its parent volume.
		if usage, err = disk.Usage(filepath.Dir(s.cfg.Storage.BaseDir)); err != nil {
			sub["disk"] = "error: " + err.Error()
			ok = false
		} else {
			sub["disk"] = s.diskLine(usage, &ok)
		}
	} else {
		sub["disk"] = s.diskLine(usage, &ok)
	}

	return stepResult(ok, sub)
}

func (s *Service) diskLine(usage *disk.UsageStat, ok *bool) string {
	need := uint64(s.cfg.Storage.MinFreeDisk)
	if usage.Free < need {
		*ok = false
		return fmt.Sprintf("%d MiB free, need %d MiB", usage.Free>>20, need>>20)
	}
	return fmt.Sprintf("%d MiB free", usage.Free>>20)
}

func (s *Service) checkFFmpeg(ctx context.Context) StepState {
	sub := make(map[string]string)
	detector := ffmpeg.NewBinaryDetector(s.cfg.Editor.FFmpegPath, s.cfg.Editor.FFprobePath)
	info, err := detector.Detect(ctx)
	if err != nil {
		sub["ffmpeg"] = "error: " + err.Error()
		return StepState{Status: StatusPending, Substeps: sub}
	}
	sub["ffmpeg"] = fmt.Sprintf("%s (%s)", info.FFmpegPath, info.Version)
	ok := true
	if info.FFprobePath == "" {
		sub["ffprobe"] = "not found"
		ok = false
	} else {
		sub["ffprobe"] = info.FFprobePath
	}
	return stepResult(ok, sub)
}

// checkOBS probes the websocket endpoint with a plain TCP dial: a full
// handshake needs the password, which setup should not consume.
func (s *Service) checkOBS(context.Context) StepState {
	sub := make(map[string]string)
	addr := net.JoinHostPort(s.cfg.OBS.Host, fmt.Sprintf("%d", s.cfg.OBS.Port))
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		sub["endpoint"] = fmt.Sprintf("%s unreachable: %v (is OBS running with the websocket server enabled?)", addr, err)
		return StepState{Status: StatusPending, Substeps: sub}
	}
	conn.Close()
	sub["endpoint"] = addr + " reachable"
	return stepResult(true, sub)
}

func (s *Service) checkTesseract(context.Context) StepState {
	sub := make(map[string]string)
	binary := s.cfg.OCR.BinaryPath
	if binary == "" {
		binary = "tesseract"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		sub["binary"] = "not found: " + binary
		return StepState{Status: StatusPending, Substeps: sub}
	}
	sub["binary"] = path
	sub["language"] = s.cfg.OCR.Language
	return stepResult(true, sub)
}

func (s *Service) checkFont(context.Context) StepState {
	sub := make(map[string]string)
	path := s.cfg.Editor.FontPath
	if path == "" {
		sub["font"] = "no overlay font configured; thumbnails will have no text"
		return StepState{Status: StatusSkipped, Substeps: sub}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		sub["font"] = "error: " + err.Error()
		return StepState{Status: StatusPending, Substeps: sub}
	}
	if _, err := opentype.Parse(data); err != nil {
		sub["font"] = fmt.Sprintf("%s is not a usable font: %v", path, err)
		return StepState{Status: StatusPending, Substeps: sub}
	}
	sub["font"] = path
	return stepResult(true, sub)
}

func (s *Service) checkYouTube(context.Context) StepState {
	sub := make(map[string]string)
	data, err := os.ReadFile(s.cfg.Upload.CredentialsFile)
	if err != nil {
		sub["credentials"] = "error: " + err.Error()
		return StepState{Status: StatusPending, Substeps: sub}
	}
	if !json.Valid(data) {
		sub["credentials"] = s.cfg.Upload.CredentialsFile + " is not valid JSON"
		return StepState{Status: StatusPending, Substeps: sub}
	}
	sub["credentials"] = s.cfg.Upload.CredentialsFile

	if _, err := os.Stat(s.cfg.Upload.TokenFile); err != nil {
		sub["token"] = "no token yet; run the consent flow"
	} else {
		sub["token"] = s.cfg.Upload.TokenFile
	}
	return stepResult(true, sub)
}

func stepResult(ok bool, sub map[string]string) StepState {
	status := StatusCompleted
	if !ok {
		status = StatusPending
	}
	return StepState{Status: status, Substeps: sub}
}
