package record

import (
	"context"
	"log/slog"
	"time"

	"github.com/splat-replay/splat-replay/internal/analyzer"
	"github.com/splat-replay/splat-replay/internal/bus"
	"github.com/splat-replay/splat-replay/internal/frame"
	"github.com/splat-replay/splat-replay/internal/models"
)

// weaponWindow is how long after battle start HUD slots are sampled.
const weaponWindow = 20 * time.Second

// WeaponDetector accumulates per-slot best guesses over the detection
// window after battle start, keeping the highest-scoring label per slot.
type WeaponDetector struct {
	analyzer   FrameAnalyzer
	recognizer WeaponRecognizer
	events     *bus.EventBus
	logger     *slog.Logger
	window     time.Duration
	now        func() time.Time
}

// NewWeaponDetector wires the detector; a nil logger falls back to the
// default.
func NewWeaponDetector(fa FrameAnalyzer, recognizer WeaponRecognizer, events *bus.EventBus, logger *slog.Logger) *WeaponDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &WeaponDetector{
		analyzer:   fa,
		recognizer: recognizer,
		events:     events,
		logger:     logger.With(slog.String("component", "weapon_detector")),
		window:     weaponWindow,
		now:        time.Now,
	}
}

// Process samples one frame inside the detection window. Past the window it
// finalizes instead. Returns the updated context.
func (d *WeaponDetector) Process(ctx context.Context, f *frame.Frame, rc Context) (Context, error) {
	if d.recognizer == nil || rc.WeaponDone || rc.BattleStartedAt.IsZero() {
		return rc, nil
	}
	elapsed := d.now().Sub(rc.BattleStartedAt)
	if elapsed > d.window {
		return d.Finalize(ctx, rc)
	}

	visible, err := d.analyzer.DetectWeaponHUD(ctx, f)
	if err != nil {
		return rc, err
	}
	if !visible {
		return rc, nil
	}
	rc.WeaponFrame = f

	slots, err := d.recognizer.Recognize(ctx, f, false)
	if err != nil {
		return rc, err
	}
	rc.WeaponAttempts++

	changed := false
	unknown := 0
	for i, slot := range slots {
		// Strictly better scores replace; ties keep the older label.
		if slot.Label != analyzer.UnknownWeapon && slot.Score > rc.WeaponSlots[i].Score {
			if rc.WeaponSlots[i].Label != slot.Label || rc.WeaponSlots[i].Score != slot.Score {
				changed = true
			}
			rc.WeaponSlots[i] = slot
		}
		if rc.WeaponSlots[i].Label == "" || rc.WeaponSlots[i].Label == analyzer.UnknownWeapon {
			unknown++
		}
	}
	if unknown == 0 {
		rc.WeaponDone = true
	}
	if changed || rc.WeaponDone {
		rc = d.publish(rc, elapsed, rc.WeaponDone)
	}
	return rc, nil
}

// Finalize runs once the window has elapsed: one last recognition on the
// most recent HUD-visible frame with unmatched reporting enabled, then marks
// detection done. Slots still unresolved stay "unknown".
func (d *WeaponDetector) Finalize(ctx context.Context, rc Context) (Context, error) {
	if d.recognizer == nil || rc.WeaponDone {
		return rc, nil
	}
	if rc.WeaponFrame != nil && d.hasUnknownSlot(rc) {
		slots, err := d.recognizer.Recognize(ctx, rc.WeaponFrame, true)
		if err != nil {
			d.logger.Warn("final weapon recognition failed", slog.String("error", err.Error()))
		} else {
			rc.WeaponAttempts++
			for i, slot := range slots {
				if slot.Label != analyzer.UnknownWeapon && slot.Score > rc.WeaponSlots[i].Score {
					rc.WeaponSlots[i] = slot
				}
			}
		}
	}
	for i := range rc.WeaponSlots {
		if rc.WeaponSlots[i].Label == "" {
			rc.WeaponSlots[i].Label = analyzer.UnknownWeapon
		}
	}
	rc.WeaponDone = true
	rc = d.publish(rc, d.now().Sub(rc.BattleStartedAt), true)
	return rc, nil
}

func (d *WeaponDetector) hasUnknownSlot(rc Context) bool {
	for _, slot := range rc.WeaponSlots {
		if slot.Label == "" || slot.Label == analyzer.UnknownWeapon {
			return true
		}
	}
	return false
}

// publish folds the slot labels into the metadata, honoring manual edits,
// and emits the detection and metadata events.
func (d *WeaponDetector) publish(rc Context, elapsed time.Duration, isFinal bool) Context {
	allies, enemies := slotLabels(rc.WeaponSlots)

	meta := rc.Metadata
	if !rc.IsManual(models.FieldAllies) && !rc.IsManual(models.FieldEnemies) {
		meta = meta.WithWeapons(allies, enemies)
	}
	if !metadataEqualWeapons(rc.Metadata, meta) {
		rc = rc.WithMetadata(meta).Rebase()
		if d.events != nil {
			d.events.Publish(bus.NewEvent(bus.EventRecordingMetadataUpdated, map[string]any{
				"metadata": meta.ToMap(),
			}))
		}
	}
	if d.events != nil {
		d.events.Publish(bus.NewEvent(bus.EventBattleWeaponsDetected, map[string]any{
			"allies":  allies,
			"enemies": enemies,
			"elapsed": elapsed.Seconds(),
			"attempt": rc.WeaponAttempts,
			"isFinal": isFinal,
		}))
	}
	return rc
}

// slotLabels splits the eight slots into allies (first four) and enemies.
func slotLabels(slots [analyzer.WeaponSlots]analyzer.SlotResult) (allies, enemies []string) {
	for i, slot := range slots {
		label := slot.Label
		if label == "" {
			label = analyzer.UnknownWeapon
		}
		if i < analyzer.WeaponSlots/2 {
			allies = append(allies, label)
		} else {
			enemies = append(enemies, label)
		}
	}
	return allies, enemies
}

func metadataEqualWeapons(a, b models.RecordingMetadata) bool {
	if len(a.Allies) != len(b.Allies) || len(a.Enemies) != len(b.Enemies) {
		return false
	}
	for i := range a.Allies {
		if a.Allies[i] != b.Allies[i] {
			return false
		}
	}
	for i := range a.Enemies {
		if a.Enemies[i] != b.Enemies[i] {
			return false
		}
	}
	return true
}
