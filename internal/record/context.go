package record

import (
	"time"

	"github.com/splat-replay/splat-replay/internal/analyzer"
	"github.com/splat-replay/splat-replay/internal/frame"
	"github.com/splat-replay/splat-replay/internal/models"
)

// Context is the per-session recording state. It has a single owner, the
// auto-recording use case; everyone else receives it by value and returns an
// updated copy. Mutators copy the internal maps so older copies stay intact.
type Context struct {
	Metadata models.RecordingMetadata

	// BaseMetadata is the snapshot taken when automatic processing last
	// produced a value, the base of the three-way merge.
	BaseMetadata models.RecordingMetadata

	// manualFields names the fields the user has edited.
	manualFields map[string]struct{}

	// pendingResultUpdates buffers manual edits addressed at result
	// sub-fields received before any result has been recognized.
	pendingResultUpdates map[string]string

	// ResultFrame is the frame captured when the result screen appeared.
	ResultFrame *frame.Frame

	// BattleStartedAt is when recording began; the zero value means no
	// battle is in flight.
	BattleStartedAt time.Time

	// FinishDetected marks that the session finish cue was seen before the
	// pause.
	FinishDetected bool

	// Weapon detection accumulator state.
	WeaponDone     bool
	WeaponAttempts int
	WeaponSlots    [analyzer.WeaponSlots]analyzer.SlotResult
	WeaponFrame    *frame.Frame
}

// NewContext returns a fresh context for the default game mode.
func NewContext() Context {
	meta := models.NewMetadata()
	return Context{Metadata: meta, BaseMetadata: meta}
}

// Reset clears the session state keeping only the game mode, as happens
// when a session ends or is cancelled.
func (c Context) Reset() Context {
	meta := c.Metadata.Reset()
	return Context{Metadata: meta, BaseMetadata: meta}
}

// IsManual reports whether the user has edited the named field.
func (c Context) IsManual(field string) bool {
	_, ok := c.manualFields[field]
	return ok
}

// ManualFields returns a copy of the manual-field set.
func (c Context) ManualFields() map[string]struct{} {
	out := make(map[string]struct{}, len(c.manualFields))
	for f := range c.manualFields {
		out[f] = struct{}{}
	}
	return out
}

// MarkManual returns a copy with the field recorded as user-edited.
func (c Context) MarkManual(fields ...string) Context {
	c.manualFields = cloneSet(c.manualFields)
	for _, f := range fields {
		c.manualFields[f] = struct{}{}
	}
	return c
}

// PendingResultUpdates returns a copy of the buffered result edits.
func (c Context) PendingResultUpdates() map[string]string {
	out := make(map[string]string, len(c.pendingResultUpdates))
	for k, v := range c.pendingResultUpdates {
		out[k] = v
	}
	return out
}

// BufferResultUpdate returns a copy buffering a manual result edit that
// arrived before a result was recognized. sub is the bare sub-field name.
func (c Context) BufferResultUpdate(sub, value string) Context {
	updates := make(map[string]string, len(c.pendingResultUpdates)+1)
	for k, v := range c.pendingResultUpdates {
		updates[k] = v
	}
	updates[sub] = value
	c.pendingResultUpdates = updates
	return c
}

// ApplyPendingResultUpdates folds the buffered edits into a just-recognized
// result. Each applied sub-field becomes manual so later automatic
// recognitions cannot override it; sub-fields already manual are skipped.
func (c Context) ApplyPendingResultUpdates() Context {
	if len(c.pendingResultUpdates) == 0 || !c.Metadata.HasResult() {
		return c
	}
	resultMap := c.Metadata.ResultMap()
	c.manualFields = cloneSet(c.manualFields)
	for sub, value := range c.pendingResultUpdates {
		field := models.ResultField(sub)
		if _, manual := c.manualFields[field]; manual {
			continue
		}
		if _, known := resultMap[sub]; !known {
			continue
		}
		resultMap[sub] = value
		c.manualFields[field] = struct{}{}
	}
	meta, err := applyResultMap(c.Metadata, resultMap)
	if err == nil {
		c.Metadata = meta
	}
	c.pendingResultUpdates = nil
	return c
}

// WithMetadata returns a copy carrying updated metadata.
func (c Context) WithMetadata(meta models.RecordingMetadata) Context {
	c.Metadata = meta
	return c
}

// Rebase snapshots the current metadata as the merge base, done whenever an
// automatic derivation has been folded in.
func (c Context) Rebase() Context {
	c.BaseMetadata = c.Metadata
	return c
}

// applyResultMap writes a flat result map back into whichever variant the
// metadata carries.
func applyResultMap(meta models.RecordingMetadata, m map[string]string) (models.RecordingMetadata, error) {
	switch {
	case meta.Battle != nil:
		r, err := models.BattleResultFromMap(m)
		if err != nil {
			return meta, err
		}
		return meta.WithBattleResult(r), nil
	case meta.Salmon != nil:
		r, err := models.SalmonResultFromMap(m)
		if err != nil {
			return meta, err
		}
		return meta.WithSalmonResult(r), nil
	}
	return meta, nil
}

func cloneSet(s map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(s)+1)
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}
