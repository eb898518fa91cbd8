// Package bus provides the process-wide concurrency substrate: a topic event
// bus with bounded poll subscriptions, a typed command bus with result
// futures, and the latest-frame hub. All three are constructed once at
// startup and handed to their consumers explicitly.
package bus

import (
	"time"

	"github.com/google/uuid"
)

// Event is one bus message: a dotted type, an arbitrary payload map, and
// envelope fields for tracing.
type Event struct {
	Type          string         `json:"type"`
	Payload       map[string]any `json:"payload,omitempty"`
	EventID       string         `json:"event_id"`
	Timestamp     time.Time      `json:"timestamp"`
	AggregateID   string         `json:"aggregate_id,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

// NewEvent stamps a fresh envelope around a payload.
func NewEvent(eventType string, payload map[string]any) Event {
	return Event{
		Type:      eventType,
		Payload:   payload,
		EventID:   uuid.NewString(),
		Timestamp: time.Now(),
	}
}

// WithAggregate tags the event with the aggregate it belongs to.
func (e Event) WithAggregate(id string) Event {
	e.AggregateID = id
	return e
}

// WithCorrelation tags the event with a correlation id.
func (e Event) WithCorrelation(id string) Event {
	e.CorrelationID = id
	return e
}

// Recording lifecycle event types.
const (
	EventRecordingStarted          = "recording.started"
	EventRecordingPaused           = "recording.paused"
	EventRecordingResumed          = "recording.resumed"
	EventRecordingStopped          = "recording.stopped"
	EventRecordingCancelled        = "recording.cancelled"
	EventRecordingMetadataUpdated  = "recording.metadata_updated"
	EventRecordingPowerOffDetected = "recording.power_off_detected"
)

// Asset event types.
const (
	EventAssetRecordedSaved           = "asset.recorded.saved"
	EventAssetRecordedDeleted         = "asset.recorded.deleted"
	EventAssetRecordedMetadataUpdated = "asset.recorded.metadata_updated"
	EventAssetRecordedSubtitleUpdated = "asset.recorded.subtitle_updated"
	EventAssetEditedSaved             = "asset.edited.saved"
	EventAssetEditedDeleted           = "asset.edited.deleted"
)

// Battle progression event types.
const (
	EventBattleMatchingStarted = "battle.matching_started"
	EventBattleStarted         = "battle.started"
	EventBattleInterrupted     = "battle.interrupted"
	EventBattleFinished        = "battle.finished"
	EventBattleResultDetected  = "battle.result_detected"
	EventBattleWeaponsDetected = "battle.weapons_detected"
	EventBattleScheduleChanged = "battle.schedule_changed"
)

// Speech transcription event types.
const (
	EventSpeechListening  = "speech.listening"
	EventSpeechRecognized = "speech.recognized"
)

// Progress event types share the prefix consumed by the progress store.
const (
	ProgressPrefix          = "progress."
	EventProgressStart      = "progress.start"
	EventProgressTotal      = "progress.total"
	EventProgressStage      = "progress.stage"
	EventProgressAdvance    = "progress.advance"
	EventProgressFinish     = "progress.finish"
	EventProgressItems      = "progress.items"
	EventProgressItemStage  = "progress.item_stage"
	EventProgressItemFinish = "progress.item_finish"
)

// Auto-process orchestration event types.
const (
	EventProcessEditUploadCompleted = "process.edit_upload_completed"
	EventProcessPending             = "process.pending"
	EventProcessStarted             = "process.started"
	EventProcessSleepPending        = "process.sleep.pending"
	EventProcessSleepStarted        = "process.sleep.started"
)
