package record

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/splat-replay/splat-replay/internal/bus"
	"github.com/splat-replay/splat-replay/internal/frame"
)

// SessionService executes phase handler actions against the recorder and
// the state machine, and persists finished sessions. It owns no business
// state beyond the in-flight stop flag; the session context stays with the
// use case and is passed through by value.
type SessionService struct {
	mu       sync.Mutex
	machine  *Machine
	recorder Recorder
	assets   AssetSaver
	analyzer FrameAnalyzer
	events   *bus.EventBus
	logger   *slog.Logger
	now      func() time.Time

	stopRequested bool
}

// NewSessionService wires the session service and registers itself as the
// recorder's status observer.
func NewSessionService(machine *Machine, recorder Recorder, assets AssetSaver, fa FrameAnalyzer, events *bus.EventBus, logger *slog.Logger) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SessionService{
		machine:  machine,
		recorder: recorder,
		assets:   assets,
		analyzer: fa,
		events:   events,
		logger:   logger.With(slog.String("component", "session_service")),
		now:      time.Now,
	}
	recorder.SetStatusCallback(s.handleRecorderStatus)
	return s
}

// Machine exposes the state machine for read access.
func (s *SessionService) Machine() *Machine { return s.machine }

// Setup brings the recorder up once.
func (s *SessionService) Setup(ctx context.Context) error {
	return s.recorder.Setup(ctx)
}

// Teardown brings the recorder down.
func (s *SessionService) Teardown(ctx context.Context) error {
	return s.recorder.Teardown(ctx)
}

// BeginMatching moves standby into the matching state.
func (s *SessionService) BeginMatching(rc Context) (Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.machine.Fire(EventStart); !ok {
		return rc, nil
	}
	s.publish(bus.EventBattleMatchingStarted, nil)
	return rc, nil
}

// Start begins the actual recording: stamps the battle start, starts the
// recorder, and advances the machine.
func (s *SessionService) Start(ctx context.Context, rc Context) (Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := s.now()
	if err := s.recorder.Start(ctx); err != nil {
		return rc, fmt.Errorf("starting recorder: %w", err)
	}
	s.stopRequested = false
	rc.BattleStartedAt = started
	rc = rc.WithMetadata(rc.Metadata.WithStartedAt(started)).Rebase()
	if s.machine.State() == StateStopped {
		// Direct start without a matching phase.
		s.machine.Fire(EventStart)
	}
	s.machine.Fire(EventStart)
	s.publish(bus.EventRecordingStarted, map[string]any{"started_at": started})
	s.publish(bus.EventBattleStarted, map[string]any{
		"game_mode": string(rc.Metadata.GameMode),
	})
	return rc, nil
}

// Pause suspends the recorder, typically on session finish. Outside the
// recording state it is a no-op, mirroring the transition table.
func (s *SessionService) Pause(ctx context.Context, rc Context) (Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine.State() != StateRecording {
		return rc, nil
	}
	if err := s.recorder.Pause(ctx); err != nil {
		return rc, fmt.Errorf("pausing recorder: %w", err)
	}
	s.machine.Fire(EventPause)
	s.publish(bus.EventRecordingPaused, nil)
	if rc.FinishDetected {
		s.publish(bus.EventBattleFinished, nil)
	}
	return rc, nil
}

// Resume continues a paused recording. A no-op in any other state.
func (s *SessionService) Resume(ctx context.Context, rc Context) (Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine.State() != StatePaused {
		return rc, nil
	}
	if err := s.recorder.Resume(ctx); err != nil {
		return rc, fmt.Errorf("resuming recorder: %w", err)
	}
	s.machine.Fire(EventResume)
	s.publish(bus.EventRecordingResumed, nil)
	return rc, nil
}

// Cancel aborts the session, discarding any partial recording, and returns
// a context reset to standby.
func (s *SessionService) Cancel(ctx context.Context, rc Context) (Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopRequested = true
	state := s.machine.State()
	if state == StateRecording || state == StatePaused {
		if err := s.recorder.Cancel(ctx); err != nil {
			s.logger.Warn("recorder cancel failed", slog.String("error", err.Error()))
		}
		s.publish(bus.EventBattleInterrupted, nil)
	}
	s.machine.Fire(EventReset)
	s.publish(bus.EventRecordingCancelled, nil)
	return rc.Reset(), nil
}

// Stop completes the session: stops the recorder, recognizes the result if
// one is still missing, merges metadata, persists the asset, and resets the
// context for the next session. getResultFrame supplies a fallback result
// frame when none was captured during the paused phase.
func (s *SessionService) Stop(ctx context.Context, rc Context, getResultFrame func() *frame.Frame) (Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopRequested = true
	s.machine.Fire(EventStop)

	videoPath, subtitlePath, err := s.recorder.Stop(ctx)
	if err != nil {
		s.machine.Fire(EventReset)
		return rc.Reset(), fmt.Errorf("stopping recorder: %w", err)
	}

	resultFrame := rc.ResultFrame
	if resultFrame == nil && getResultFrame != nil {
		resultFrame = getResultFrame()
	}
	if !rc.Metadata.HasResult() && resultFrame != nil {
		auto, err := s.analyzer.ExtractSessionResult(ctx, rc.Metadata.GameMode, resultFrame, rc.Metadata)
		if err != nil {
			s.logger.Warn("result extraction failed", slog.String("error", err.Error()))
		} else {
			merged := MergeWithAutoUpdate(rc.BaseMetadata, auto, rc.Metadata, rc.ManualFields())
			rc = rc.WithMetadata(merged).Rebase()
			rc = rc.ApplyPendingResultUpdates()
			s.publish(bus.EventBattleResultDetected, map[string]any{
				"metadata": rc.Metadata.ToMap(),
			})
		}
	}

	s.machine.BeginFinishing()
	asset, err := s.assets.SaveRecording(ctx, videoPath, subtitlePath, resultFrame, rc.Metadata)
	if err != nil {
		s.machine.CompleteStop()
		return rc.Reset(), fmt.Errorf("saving recording: %w", err)
	}

	s.publish(bus.EventRecordingStopped, map[string]any{
		"stem":  asset.Stem(),
		"video": asset.VideoPath,
	})
	s.machine.CompleteStop()
	return rc.Reset(), nil
}

// handleRecorderStatus reconciles externally observed recorder changes with
// the machine. An unexpected external stop while a session is live is
// treated as a cancellation: the partial file's fate is out of our hands and
// the session cannot be completed reliably.
func (s *SessionService) handleRecorderStatus(status RecorderStatus) {
	if status == StatusStopped {
		s.mu.Lock()
		expected := s.stopRequested
		s.mu.Unlock()
		state := s.machine.State()
		if !expected && (state == StateRecording || state == StatePaused) {
			s.logger.Warn("recorder stopped externally, cancelling session")
			s.machine.Fire(EventReset)
			s.publish(bus.EventBattleInterrupted, nil)
			s.publish(bus.EventRecordingCancelled, map[string]any{"reason": "external stop"})
		}
		return
	}
	if event, ok := s.machine.Reconcile(status); ok {
		s.logger.Debug("reconciled external recorder status",
			slog.String("status", string(status)),
			slog.String("event", string(event)))
		switch event {
		case EventPause:
			s.publish(bus.EventRecordingPaused, map[string]any{"reason": "external"})
		case EventResume:
			s.publish(bus.EventRecordingResumed, map[string]any{"reason": "external"})
		case EventStart:
			s.publish(bus.EventRecordingStarted, map[string]any{"reason": "external"})
		}
	}
}

func (s *SessionService) publish(eventType string, payload map[string]any) {
	if s.events == nil {
		return
	}
	s.events.Publish(bus.NewEvent(eventType, payload))
}
