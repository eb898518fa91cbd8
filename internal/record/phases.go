package record

import (
	"context"
	"log/slog"
	"time"

	"github.com/splat-replay/splat-replay/internal/bus"
	"github.com/splat-replay/splat-replay/internal/frame"
	"github.com/splat-replay/splat-replay/internal/models"
)

const (
	// abortWindow is how long after battle start an abort cue cancels the
	// session instead of stopping it.
	abortWindow = 60 * time.Second

	// recordingCap stops any session regardless of cues.
	recordingCap = 600 * time.Second

	// standbyProbeInterval throttles the OCR-backed lobby probes.
	standbyProbeInterval = time.Second
)

// Handlers dispatches frames to the per-state policy. It holds no session
// state beyond probe throttling; all session state lives in the Context.
type Handlers struct {
	analyzer FrameAnalyzer
	detector *WeaponDetector
	events   *bus.EventBus
	logger   *slog.Logger
	now      func() time.Time

	lastStandbyProbe time.Time
}

// NewHandlers wires the phase handlers.
func NewHandlers(fa FrameAnalyzer, detector *WeaponDetector, events *bus.EventBus, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		analyzer: fa,
		detector: detector,
		events:   events,
		logger:   logger.With(slog.String("component", "phase_handlers")),
		now:      time.Now,
	}
}

// Handle runs the policy for the current state against one frame.
func (h *Handlers) Handle(ctx context.Context, f *frame.Frame, rc Context, state State) (Command, error) {
	switch state {
	case StateStopped:
		return h.handleStopped(ctx, f, rc)
	case StateMatching:
		return h.handleMatching(ctx, f, rc)
	case StateRecording:
		return h.handleRecording(ctx, f, rc)
	case StatePaused:
		return h.handlePaused(ctx, f, rc)
	default:
		// Stopping and finishing complete internally.
		return none(rc), nil
	}
}

// handleStopped is the standby policy: track lobby selections and wait for
// the matching screen.
func (h *Handlers) handleStopped(ctx context.Context, f *frame.Frame, rc Context) (Command, error) {
	if h.now().Sub(h.lastStandbyProbe) >= standbyProbeInterval {
		h.lastStandbyProbe = h.now()
		rc = h.probeLobby(ctx, f, rc)
	}

	matching, err := h.analyzer.DetectMatchingStart(ctx, f)
	if err != nil {
		return none(rc), err
	}
	if matching {
		return Command{Action: ActionStart, Context: rc, Reason: "matching started"}, nil
	}
	return none(rc), nil
}

// probeLobby refreshes the game mode, rate, and schedule observations.
// Probe failures are logged and skipped; standby must never stall on a bad
// frame.
func (h *Handlers) probeLobby(ctx context.Context, f *frame.Frame, rc Context) Context {
	if mode, err := h.analyzer.ExtractGameMode(ctx, f); err != nil {
		h.logger.Debug("game mode probe failed", slog.String("error", err.Error()))
	} else if mode != rc.Metadata.GameMode && !rc.IsManual(models.FieldGameMode) {
		rc = rc.WithMetadata(rc.Metadata.WithGameMode(mode)).Rebase()
		h.publishMetadata(rc)
	}

	if rate, ok, err := h.analyzer.ExtractRate(ctx, f); err != nil {
		h.logger.Debug("rate probe failed", slog.String("error", err.Error()))
	} else if ok && !rc.IsManual(models.FieldRate) {
		if rc.Metadata.Rate == nil || *rc.Metadata.Rate != rate {
			rc = rc.WithMetadata(rc.Metadata.WithRate(rate)).Rebase()
			h.publishMetadata(rc)
		}
	}

	if changed, err := h.analyzer.DetectScheduleChange(ctx, f); err != nil {
		h.logger.Debug("schedule probe failed", slog.String("error", err.Error()))
	} else if changed && h.events != nil {
		h.events.Publish(bus.NewEvent(bus.EventBattleScheduleChanged, nil))
	}
	return rc
}

// handleMatching waits for the session to actually start; a schedule change
// mid-matching aborts and clears the stale lobby metadata.
func (h *Handlers) handleMatching(ctx context.Context, f *frame.Frame, rc Context) (Command, error) {
	started, err := h.analyzer.DetectSessionStart(ctx, rc.Metadata.GameMode, f)
	if err != nil {
		return none(rc), err
	}
	if started {
		return Command{Action: ActionStart, Context: rc, Reason: "session started"}, nil
	}

	changed, err := h.analyzer.DetectScheduleChange(ctx, f)
	if err != nil {
		return none(rc), err
	}
	if changed {
		if h.events != nil {
			h.events.Publish(bus.NewEvent(bus.EventBattleScheduleChanged, nil))
		}
		return Command{Action: ActionCancel, Context: rc, Reason: "schedule changed while matching"}, nil
	}
	return none(rc), nil
}

func (h *Handlers) handleRecording(ctx context.Context, f *frame.Frame, rc Context) (Command, error) {
	elapsed := h.now().Sub(rc.BattleStartedAt)

	if elapsed <= abortWindow {
		aborted, err := h.analyzer.DetectSessionAbort(ctx, f)
		if err != nil {
			return none(rc), err
		}
		if aborted {
			return Command{Action: ActionCancel, Context: rc, Reason: "session aborted"}, nil
		}
	}

	if elapsed >= recordingCap {
		return Command{Action: ActionStop, Context: rc, Reason: "recording cap reached"}, nil
	}

	finished, err := h.analyzer.DetectSessionFinish(ctx, f)
	if err != nil {
		return none(rc), err
	}
	if finished {
		rc.FinishDetected = true
		return Command{Action: ActionPause, Context: rc, Reason: "session finished"}, nil
	}

	commError, err := h.analyzer.DetectCommunicationError(ctx, f)
	if err != nil {
		return none(rc), err
	}
	if commError {
		return Command{Action: ActionCancel, Context: rc, Reason: "communication error"}, nil
	}

	if h.detector != nil {
		rc, err = h.detector.Process(ctx, f, rc)
		if err != nil {
			h.logger.Warn("weapon detection failed", slog.String("error", err.Error()))
		}
	}
	return none(rc), nil
}

func (h *Handlers) handlePaused(ctx context.Context, f *frame.Frame, rc Context) (Command, error) {
	if rc.FinishDetected && rc.Metadata.Judgement == models.JudgementUnknown {
		onJudgement, err := h.analyzer.DetectSessionJudgement(ctx, f)
		if err != nil {
			return none(rc), err
		}
		if onJudgement {
			j, ok, err := h.analyzer.ExtractSessionJudgement(ctx, f)
			if err != nil {
				return none(rc), err
			}
			if ok && !rc.IsManual(models.FieldJudgement) {
				rc = rc.WithMetadata(rc.Metadata.WithJudgement(j)).Rebase()
				h.publishMetadata(rc)
			}
			return none(rc), nil
		}
	}

	onResult, err := h.analyzer.DetectSessionResult(ctx, f)
	if err != nil {
		return none(rc), err
	}
	if onResult {
		rc.ResultFrame = f
		return Command{Action: ActionStop, Context: rc, Reason: "result screen"}, nil
	}

	loadingEnded, err := h.analyzer.DetectLoadingEnd(ctx, f)
	if err != nil {
		return none(rc), err
	}
	if loadingEnded {
		if rc.ResultFrame == nil {
			return Command{Action: ActionResume, Context: rc, Reason: "loading ended"}, nil
		}
		return Command{Action: ActionStop, Context: rc, Reason: "loading ended after result"}, nil
	}
	return none(rc), nil
}

func (h *Handlers) publishMetadata(rc Context) {
	if h.events == nil {
		return
	}
	h.events.Publish(bus.NewEvent(bus.EventRecordingMetadataUpdated, map[string]any{
		"metadata": rc.Metadata.ToMap(),
	}))
}
