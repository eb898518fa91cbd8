package record

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/splat-replay/splat-replay/internal/bus"
	"github.com/splat-replay/splat-replay/internal/frame"
	"github.com/splat-replay/splat-replay/internal/models"
)

const (
	// powerOffProbeInterval spaces the console power-off probes.
	powerOffProbeInterval = 10 * time.Second

	// powerOffThreshold is how many consecutive positive probes confirm
	// the console is off.
	powerOffThreshold = 6

	// captureIdleDelay is the yield when no frame is available.
	captureIdleDelay = 10 * time.Millisecond
)

// Command names the use case answers on the command bus.
const (
	CommandStart          = "recorder.start"
	CommandPause          = "recorder.pause"
	CommandResume         = "recorder.resume"
	CommandStop           = "recorder.stop"
	CommandCancel         = "recorder.cancel"
	CommandStatus         = "recorder.status"
	CommandUpdateMetadata = "recorder.update_metadata"
	CommandResetMetadata  = "recorder.reset_metadata"
)

type controlReply struct {
	value any
	err   error
}

type controlRequest struct {
	apply func(ctx context.Context, rc Context) (Context, any, error)
	reply chan controlReply
}

// AutoRecordingUseCase owns the session context and drives the whole
// recording pipeline from the capture feed: power-off counting, phase
// handler dispatch, and action execution on the session service. External
// commands are marshalled onto the capture loop through a control channel
// so the context keeps its single owner.
type AutoRecordingUseCase struct {
	capture  Capture
	session  *SessionService
	handlers *Handlers
	detector *WeaponDetector
	hub      *bus.FrameHub
	events   *bus.EventBus
	logger   *slog.Logger
	now      func() time.Time

	control chan controlRequest

	rc               Context
	powerOffStreak   int
	lastPowerOffScan time.Time
}

// NewAutoRecordingUseCase wires the use case. hub and events may be nil in
// tests; commands may be nil when no external control surface exists.
func NewAutoRecordingUseCase(capture Capture, session *SessionService, handlers *Handlers, detector *WeaponDetector, hub *bus.FrameHub, events *bus.EventBus, commands *bus.CommandBus, logger *slog.Logger) *AutoRecordingUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	u := &AutoRecordingUseCase{
		capture:  capture,
		session:  session,
		handlers: handlers,
		detector: detector,
		hub:      hub,
		events:   events,
		logger:   logger.With(slog.String("component", "auto_recording")),
		now:      time.Now,
		control:  make(chan controlRequest, 16),
		rc:       NewContext(),
	}
	if commands != nil {
		u.registerCommands(commands)
	}
	return u
}

// Run executes the capture loop until the context is cancelled or the
// console powers off. It returns nil on a clean power-off exit.
func (u *AutoRecordingUseCase) Run(ctx context.Context) error {
	if err := u.capture.Setup(ctx); err != nil {
		return fmt.Errorf("capture setup: %w", err)
	}
	defer func() {
		if err := u.capture.Teardown(context.Background()); err != nil {
			u.logger.Warn("capture teardown failed", slog.String("error", err.Error()))
		}
	}()
	if err := u.session.Setup(ctx); err != nil {
		return fmt.Errorf("session setup: %w", err)
	}
	defer u.shutdown()

	u.logger.Info("auto recording started")
	for {
		select {
		case <-ctx.Done():
			u.logger.Info("auto recording stopped", slog.String("reason", "context cancelled"))
			return ctx.Err()
		case req := <-u.control:
			u.serveControl(ctx, req)
			continue
		default:
		}

		f, err := u.capture.Capture(ctx)
		if err != nil {
			u.logger.Warn("capture failed", slog.String("error", err.Error()))
			u.sleep(ctx, captureIdleDelay)
			continue
		}
		if f == nil {
			u.sleep(ctx, captureIdleDelay)
			continue
		}
		if u.hub != nil {
			u.hub.Publish(f)
		}

		// An unexpected external stop lands the machine back in stopped;
		// drop the stale session state when that happens.
		if u.session.Machine().State() == StateStopped && !u.rc.BattleStartedAt.IsZero() {
			u.rc = u.rc.Reset()
		}

		if off := u.probePowerOff(ctx, f); off {
			u.logger.Info("console power-off confirmed")
			u.publishPowerOff()
			return nil
		}

		cmd, err := u.handlers.Handle(ctx, f, u.rc, u.session.Machine().State())
		if err != nil {
			u.logger.Warn("phase handler failed",
				slog.String("state", string(u.session.Machine().State())),
				slog.String("error", err.Error()))
			continue
		}
		u.rc = cmd.Context
		if err := u.execute(ctx, cmd); err != nil {
			u.logger.Error("command execution failed",
				slog.String("action", string(cmd.Action)),
				slog.String("error", err.Error()))
		}
	}
}

// probePowerOff samples the power-off matcher at fixed intervals; the
// threshold of consecutive positives confirms the console is off.
func (u *AutoRecordingUseCase) probePowerOff(ctx context.Context, f *frame.Frame) bool {
	if u.now().Sub(u.lastPowerOffScan) < powerOffProbeInterval {
		return false
	}
	u.lastPowerOffScan = u.now()

	off, err := u.handlers.analyzer.DetectPowerOff(ctx, f)
	if err != nil {
		u.logger.Debug("power-off probe failed", slog.String("error", err.Error()))
		return false
	}
	if !off {
		u.powerOffStreak = 0
		return false
	}
	u.powerOffStreak++
	u.logger.Debug("power-off probe positive", slog.Int("streak", u.powerOffStreak))
	// Below the threshold the streak stays internal; subscribers only hear
	// about a confirmed power-off.
	return u.powerOffStreak >= powerOffThreshold
}

func (u *AutoRecordingUseCase) publishPowerOff() {
	if u.events == nil {
		return
	}
	u.events.Publish(bus.NewEvent(bus.EventRecordingPowerOffDetected, map[string]any{
		"final":  true,
		"streak": u.powerOffStreak,
	}))
}

// shutdown cancels any live session on loop exit.
func (u *AutoRecordingUseCase) shutdown() {
	state := u.session.Machine().State()
	if state == StateRecording || state == StatePaused {
		rc, err := u.session.Cancel(context.Background(), u.rc)
		if err != nil {
			u.logger.Warn("cancel on shutdown failed", slog.String("error", err.Error()))
		}
		u.rc = rc
	}
	if err := u.session.Teardown(context.Background()); err != nil {
		u.logger.Warn("session teardown failed", slog.String("error", err.Error()))
	}
}

// execute runs a phase handler verdict against the session service.
func (u *AutoRecordingUseCase) execute(ctx context.Context, cmd Command) error {
	if cmd.Action != ActionNone && cmd.Reason != "" {
		u.logger.Info("executing action",
			slog.String("action", string(cmd.Action)),
			slog.String("reason", cmd.Reason))
	}
	var err error
	switch cmd.Action {
	case ActionNone:
		return nil
	case ActionStart:
		if u.session.Machine().State() == StateStopped {
			u.rc, err = u.session.BeginMatching(u.rc)
		} else {
			u.rc, err = u.session.Start(ctx, u.rc)
		}
	case ActionPause:
		u.rc, err = u.session.Pause(ctx, u.rc)
	case ActionResume:
		u.rc, err = u.session.Resume(ctx, u.rc)
	case ActionStop:
		u.rc, err = u.session.Stop(ctx, u.rc, u.latestFrame)
	case ActionCancel:
		u.rc, err = u.session.Cancel(ctx, u.rc)
	case ActionResetMetadata:
		u.rc = u.rc.Reset()
	}
	return err
}

func (u *AutoRecordingUseCase) latestFrame() *frame.Frame {
	if u.hub == nil {
		return nil
	}
	return u.hub.Latest()
}

// serveControl applies one marshalled external request on the loop
// goroutine.
func (u *AutoRecordingUseCase) serveControl(ctx context.Context, req controlRequest) {
	rc, value, err := req.apply(ctx, u.rc)
	u.rc = rc
	req.reply <- controlReply{value: value, err: err}
}

// submit marshals a request onto the capture loop and waits for its result.
func (u *AutoRecordingUseCase) submit(ctx context.Context, apply func(ctx context.Context, rc Context) (Context, any, error)) (any, error) {
	req := controlRequest{apply: apply, reply: make(chan controlReply, 1)}
	select {
	case u.control <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case reply := <-req.reply:
		return reply.value, reply.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// registerCommands binds the external control surface.
func (u *AutoRecordingUseCase) registerCommands(commands *bus.CommandBus) {
	commands.Register(CommandStart, func(ctx context.Context, _ map[string]any) (any, error) {
		return u.submit(ctx, func(ctx context.Context, rc Context) (Context, any, error) {
			state := u.session.Machine().State()
			if state != StateStopped && state != StateMatching {
				return rc, nil, models.NewError(models.KindConflict, "session already active")
			}
			if state == StateStopped {
				var err error
				if rc, err = u.session.BeginMatching(rc); err != nil {
					return rc, nil, err
				}
			}
			rc, err := u.session.Start(ctx, rc)
			return rc, nil, err
		})
	})
	commands.Register(CommandPause, func(ctx context.Context, _ map[string]any) (any, error) {
		return u.submit(ctx, func(ctx context.Context, rc Context) (Context, any, error) {
			rc, err := u.session.Pause(ctx, rc)
			return rc, nil, err
		})
	})
	commands.Register(CommandResume, func(ctx context.Context, _ map[string]any) (any, error) {
		return u.submit(ctx, func(ctx context.Context, rc Context) (Context, any, error) {
			rc, err := u.session.Resume(ctx, rc)
			return rc, nil, err
		})
	})
	commands.Register(CommandStop, func(ctx context.Context, _ map[string]any) (any, error) {
		return u.submit(ctx, func(ctx context.Context, rc Context) (Context, any, error) {
			state := u.session.Machine().State()
			if state != StateRecording && state != StatePaused {
				return rc, nil, models.ErrNoSession
			}
			rc, err := u.session.Stop(ctx, rc, u.latestFrame)
			return rc, nil, err
		})
	})
	commands.Register(CommandCancel, func(ctx context.Context, _ map[string]any) (any, error) {
		return u.submit(ctx, func(ctx context.Context, rc Context) (Context, any, error) {
			rc, err := u.session.Cancel(ctx, rc)
			return rc, nil, err
		})
	})
	commands.Register(CommandStatus, func(ctx context.Context, _ map[string]any) (any, error) {
		return u.submit(ctx, func(_ context.Context, rc Context) (Context, any, error) {
			return rc, map[string]any{
				"state":    string(u.session.Machine().State()),
				"metadata": rc.Metadata.ToMap(),
			}, nil
		})
	})
	commands.Register(CommandUpdateMetadata, func(ctx context.Context, payload map[string]any) (any, error) {
		field, _ := payload["field"].(string)
		value, _ := payload["value"].(string)
		if field == "" {
			return nil, models.NewError(models.KindValidation, "field is required")
		}
		return u.submit(ctx, func(_ context.Context, rc Context) (Context, any, error) {
			rc, err := applyManualUpdate(rc, field, value)
			if err != nil {
				return rc, nil, err
			}
			if u.events != nil {
				u.events.Publish(bus.NewEvent(bus.EventRecordingMetadataUpdated, map[string]any{
					"metadata": rc.Metadata.ToMap(),
					"manual":   field,
				}))
			}
			return rc, rc.Metadata.ToMap(), nil
		})
	})
	commands.Register(CommandResetMetadata, func(ctx context.Context, _ map[string]any) (any, error) {
		return u.submit(ctx, func(_ context.Context, rc Context) (Context, any, error) {
			rc = rc.Reset()
			if u.events != nil {
				u.events.Publish(bus.NewEvent(bus.EventRecordingMetadataUpdated, map[string]any{
					"metadata": rc.Metadata.ToMap(),
				}))
			}
			return rc, nil, nil
		})
	})
}

// applyManualUpdate folds one user edit into the context. Result sub-field
// edits before a result exists are buffered; they apply when the result is
// first recognized.
func applyManualUpdate(rc Context, field, value string) (Context, error) {
	if sub, ok := models.IsResultField(field); ok {
		if !rc.Metadata.HasResult() {
			return rc.BufferResultUpdate(sub, value), nil
		}
		resultMap := rc.Metadata.ResultMap()
		if _, known := resultMap[sub]; !known {
			return rc, models.NewError(models.KindValidation, fmt.Sprintf("unknown result field %q", sub))
		}
		resultMap[sub] = value
		meta, err := applyResultMap(rc.Metadata, resultMap)
		if err != nil {
			return rc, err
		}
		return rc.WithMetadata(meta).MarkManual(field), nil
	}

	switch field {
	case models.FieldGameMode:
		mode, err := models.ParseGameMode(value)
		if err != nil {
			return rc, err
		}
		rc = rc.WithMetadata(rc.Metadata.WithGameMode(mode))
	case models.FieldRate:
		rate, err := models.ParseRate(value)
		if err != nil {
			return rc, err
		}
		rc = rc.WithMetadata(rc.Metadata.WithRate(rate))
	case models.FieldJudgement:
		j, ok := models.ParseJudgement(value)
		if !ok {
			return rc, models.NewError(models.KindValidation, fmt.Sprintf("invalid judgement %q", value))
		}
		rc = rc.WithMetadata(rc.Metadata.WithJudgement(j))
	case models.FieldAllies:
		rc = rc.WithMetadata(rc.Metadata.WithWeapons(splitList(value), rc.Metadata.Enemies))
	case models.FieldEnemies:
		rc = rc.WithMetadata(rc.Metadata.WithWeapons(rc.Metadata.Allies, splitList(value)))
	default:
		return rc, models.NewError(models.KindValidation, fmt.Sprintf("unknown metadata field %q", field))
	}
	return rc.MarkManual(field), nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func (u *AutoRecordingUseCase) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
