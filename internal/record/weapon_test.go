package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splat-replay/splat-replay/internal/analyzer"
	"github.com/splat-replay/splat-replay/internal/bus"
)

func fullSlots() [analyzer.WeaponSlots]string {
	return [analyzer.WeaponSlots]string{
		"shooter_a", "roller_b", "charger_c", "brush_d",
		"shooter_e", "blaster_f", "spinner_g", "dualies_h",
	}
}

func newBattleContext() Context {
	rc := NewContext()
	rc.BattleStartedAt = time.Now()
	return rc
}

func TestWeaponDetectorAccumulatesBestScores(t *testing.T) {
	fa := newFakeAnalyzer()
	fa.set("weapon_hud", true)

	first := slotsWith(fullSlots(), 0.6)
	first[2] = analyzer.SlotResult{Label: analyzer.UnknownWeapon, Score: 0.1}
	second := slotsWith(fullSlots(), 0.7)
	second[2] = analyzer.SlotResult{Label: "charger_x", Score: 0.8}

	rec := &fakeRecognizer{results: [][analyzer.WeaponSlots]analyzer.SlotResult{first, second}}
	events := bus.NewEventBus(32)
	d := NewWeaponDetector(fa, rec, events, nil)

	rc := newBattleContext()
	rc, err := d.Process(t.Context(), newTestFrame(t), rc)
	require.NoError(t, err)
	assert.False(t, rc.WeaponDone, "slot 2 still unknown")
	assert.Equal(t, 1, rc.WeaponAttempts)

	rc, err = d.Process(t.Context(), newTestFrame(t), rc)
	require.NoError(t, err)
	assert.True(t, rc.WeaponDone)
	assert.Equal(t, "charger_x", rc.WeaponSlots[2].Label)
	assert.Equal(t, 0.7, rc.WeaponSlots[0].Score, "higher later score replaces")
}

func TestWeaponDetectorTiePreservesOlderLabel(t *testing.T) {
	fa := newFakeAnalyzer()
	fa.set("weapon_hud", true)

	first := slotsWith(fullSlots(), 0.6)
	second := slotsWith([analyzer.WeaponSlots]string{
		"other_a", "other_b", "other_c", "other_d",
		"other_e", "other_f", "other_g", "other_h",
	}, 0.6)

	rec := &fakeRecognizer{results: [][analyzer.WeaponSlots]analyzer.SlotResult{first, second}}
	d := NewWeaponDetector(fa, rec, bus.NewEventBus(32), nil)

	rc := newBattleContext()
	rc, err := d.Process(t.Context(), newTestFrame(t), rc)
	require.NoError(t, err)
	rc, err = d.Process(t.Context(), newTestFrame(t), rc)
	require.NoError(t, err)
	assert.Equal(t, "shooter_a", rc.WeaponSlots[0].Label)
}

func TestWeaponDetectorSkipsWithoutHUD(t *testing.T) {
	fa := newFakeAnalyzer()
	rec := &fakeRecognizer{results: [][analyzer.WeaponSlots]analyzer.SlotResult{slotsWith(fullSlots(), 0.9)}}
	d := NewWeaponDetector(fa, rec, bus.NewEventBus(32), nil)

	rc := newBattleContext()
	rc, err := d.Process(t.Context(), newTestFrame(t), rc)
	require.NoError(t, err)
	assert.Zero(t, rc.WeaponAttempts)
}

func TestWeaponDetectorFinalizesAfterWindow(t *testing.T) {
	fa := newFakeAnalyzer()
	fa.set("weapon_hud", true)

	partial := slotsWith(fullSlots(), 0.6)
	partial[5] = analyzer.SlotResult{Label: analyzer.UnknownWeapon, Score: 0}
	rec := &fakeRecognizer{results: [][analyzer.WeaponSlots]analyzer.SlotResult{partial}}
	events := bus.NewEventBus(32)
	sub := events.Subscribe(bus.EventBattleWeaponsDetected)
	defer sub.Close()

	d := NewWeaponDetector(fa, rec, events, nil)
	rc := newBattleContext()
	rc, err := d.Process(t.Context(), newTestFrame(t), rc)
	require.NoError(t, err)
	require.False(t, rc.WeaponDone)

	// Push the clock past the window; the next frame finalizes with the
	// unmatched report enabled.
	rc.BattleStartedAt = time.Now().Add(-30 * time.Second)
	rc, err = d.Process(t.Context(), newTestFrame(t), rc)
	require.NoError(t, err)
	assert.True(t, rc.WeaponDone)
	assert.Equal(t, analyzer.UnknownWeapon, rc.WeaponSlots[5].Label)
	assert.Equal(t, 1, rec.reports, "final pass saves unmatched reports")

	evs := sub.Poll(16)
	require.NotEmpty(t, evs)
	last := evs[len(evs)-1]
	assert.Equal(t, true, last.Payload["isFinal"])
}

func TestWeaponDetectorUpdatesMetadata(t *testing.T) {
	fa := newFakeAnalyzer()
	fa.set("weapon_hud", true)
	rec := &fakeRecognizer{results: [][analyzer.WeaponSlots]analyzer.SlotResult{slotsWith(fullSlots(), 0.9)}}
	d := NewWeaponDetector(fa, rec, bus.NewEventBus(32), nil)

	rc := newBattleContext()
	rc, err := d.Process(t.Context(), newTestFrame(t), rc)
	require.NoError(t, err)
	assert.Equal(t, []string{"shooter_a", "roller_b", "charger_c", "brush_d"}, rc.Metadata.Allies)
	assert.Equal(t, []string{"shooter_e", "blaster_f", "spinner_g", "dualies_h"}, rc.Metadata.Enemies)
}
