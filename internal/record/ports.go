// Package record implements the real-time recording core: the record state
// machine, the single-owner session context, the three-way metadata merger,
// per-state phase handlers, weapon detection, the session service bridging
// to the recorder, and the auto-recording use case that drives them from the
// capture feed.
package record

import (
	"context"

	"github.com/splat-replay/splat-replay/internal/analyzer"
	"github.com/splat-replay/splat-replay/internal/frame"
	"github.com/splat-replay/splat-replay/internal/models"
)

// RecorderStatus is an externally observed recorder state change.
type RecorderStatus string

// Recorder status values reported by the external recorder.
const (
	StatusStarted RecorderStatus = "started"
	StatusPaused  RecorderStatus = "paused"
	StatusResumed RecorderStatus = "resumed"
	StatusStopped RecorderStatus = "stopped"
)

// Recorder is the external screen recorder port.
type Recorder interface {
	Setup(ctx context.Context) error
	Teardown(ctx context.Context) error
	Start(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	// Stop ends the recording and returns the video path plus an optional
	// subtitle sidecar path.
	Stop(ctx context.Context) (videoPath, subtitlePath string, err error)
	// Cancel ends the recording and discards the partial file.
	Cancel(ctx context.Context) error
	ListVideoDevices(ctx context.Context) ([]string, error)
	// SetStatusCallback registers the observer for external status changes.
	SetStatusCallback(fn func(RecorderStatus))
}

// Capture is the frame source port. Capture returns the most recent frame,
// or nil when none is available yet.
type Capture interface {
	Setup(ctx context.Context) error
	Teardown(ctx context.Context) error
	Capture(ctx context.Context) (*frame.Frame, error)
}

// FrameAnalyzer is the subset of the analyzer the recording core consumes.
type FrameAnalyzer interface {
	DetectPowerOff(ctx context.Context, f *frame.Frame) (bool, error)
	DetectMatchingStart(ctx context.Context, f *frame.Frame) (bool, error)
	DetectSessionStart(ctx context.Context, mode models.GameMode, f *frame.Frame) (bool, error)
	DetectSessionFinish(ctx context.Context, f *frame.Frame) (bool, error)
	DetectSessionAbort(ctx context.Context, f *frame.Frame) (bool, error)
	DetectLoading(ctx context.Context, f *frame.Frame) (bool, error)
	DetectLoadingEnd(ctx context.Context, f *frame.Frame) (bool, error)
	DetectSessionResult(ctx context.Context, f *frame.Frame) (bool, error)
	DetectSessionJudgement(ctx context.Context, f *frame.Frame) (bool, error)
	DetectCommunicationError(ctx context.Context, f *frame.Frame) (bool, error)
	DetectScheduleChange(ctx context.Context, f *frame.Frame) (bool, error)
	DetectWeaponHUD(ctx context.Context, f *frame.Frame) (bool, error)
	ExtractGameMode(ctx context.Context, f *frame.Frame) (models.GameMode, error)
	ExtractRate(ctx context.Context, f *frame.Frame) (models.Rate, bool, error)
	ExtractSessionJudgement(ctx context.Context, f *frame.Frame) (models.Judgement, bool, error)
	ExtractSessionResult(ctx context.Context, mode models.GameMode, f *frame.Frame, meta models.RecordingMetadata) (models.RecordingMetadata, error)
}

// WeaponRecognizer resolves the eight HUD weapon slots.
type WeaponRecognizer interface {
	Recognize(ctx context.Context, f *frame.Frame, saveUnmatchedReport bool) ([analyzer.WeaponSlots]analyzer.SlotResult, error)
}

// AssetSaver persists a finished recording together with its sidecars.
type AssetSaver interface {
	SaveRecording(ctx context.Context, videoPath, subtitlePath string, screenshot *frame.Frame, meta models.RecordingMetadata) (models.VideoAsset, error)
}
