package record

import (
	"slices"
	"strings"
	"time"

	"github.com/splat-replay/splat-replay/internal/models"
)

// MergeWithAutoUpdate reconciles a fresh automatic derivation with possible
// manual edits, three ways:
//
//   - base is the metadata snapshot from when automatic processing last
//     produced a value,
//   - auto is the fresh automatic derivation,
//   - current is the live metadata, possibly carrying manual edits,
//   - manual names the fields the user has edited.
//
// Per field: a manual field keeps its current value; an automatic change
// against an untouched current value is adopted; everything else keeps the
// current value. The result sub-object merges field by field under the same
// rule, except that a variant change (battle vs salmon) adopts the automatic
// result wholesale unless any result sub-field is manual.
func MergeWithAutoUpdate(base, auto, current models.RecordingMetadata, manual map[string]struct{}) models.RecordingMetadata {
	isManual := func(field string) bool {
		_, ok := manual[field]
		return ok
	}

	out := current

	if !isManual(models.FieldGameMode) &&
		auto.GameMode != base.GameMode && current.GameMode == base.GameMode {
		out.GameMode = auto.GameMode
	}

	if !isManual(models.FieldStartedAt) &&
		!timePtrEqual(auto.StartedAt, base.StartedAt) && timePtrEqual(current.StartedAt, base.StartedAt) {
		out.StartedAt = auto.StartedAt
	}

	if !isManual(models.FieldRate) &&
		!ratePtrEqual(auto.Rate, base.Rate) && ratePtrEqual(current.Rate, base.Rate) {
		out.Rate = auto.Rate
	}

	if !isManual(models.FieldJudgement) &&
		auto.Judgement != base.Judgement && current.Judgement == base.Judgement {
		out.Judgement = auto.Judgement
	}

	if !isManual(models.FieldAllies) &&
		!slices.Equal(auto.Allies, base.Allies) && slices.Equal(current.Allies, base.Allies) {
		out.Allies = auto.Allies
	}

	if !isManual(models.FieldEnemies) &&
		!slices.Equal(auto.Enemies, base.Enemies) && slices.Equal(current.Enemies, base.Enemies) {
		out.Enemies = auto.Enemies
	}

	return mergeResult(base, auto, current, out, manual)
}

func mergeResult(base, auto, current, out models.RecordingMetadata, manual map[string]struct{}) models.RecordingMetadata {
	if resultVariant(auto) != resultVariant(current) {
		// A variant change adopts the automatic result wholesale unless
		// the user has touched any result sub-field.
		if hasManualResultField(manual) || !auto.HasResult() {
			out.Battle = current.Battle
			out.Salmon = current.Salmon
			return out
		}
		out.Battle = auto.Battle
		out.Salmon = auto.Salmon
		return out
	}
	if !auto.HasResult() {
		return out
	}

	baseMap := base.ResultMap()
	autoMap := auto.ResultMap()
	currentMap := current.ResultMap()
	if resultVariant(base) != resultVariant(auto) {
		// No comparable base; treat every base value as absent.
		baseMap = nil
	}

	merged := make(map[string]string, len(autoMap))
	for sub, autoVal := range autoMap {
		currentVal := currentMap[sub]
		baseVal := baseMap[sub]
		switch {
		case hasManual(manual, models.ResultField(sub)):
			merged[sub] = currentVal
		case autoVal != baseVal && currentVal == baseVal:
			merged[sub] = autoVal
		default:
			merged[sub] = currentVal
		}
	}

	out.Battle = current.Battle
	out.Salmon = current.Salmon
	if meta, err := applyResultMap(out, merged); err == nil {
		return meta
	}
	return out
}

func resultVariant(m models.RecordingMetadata) string {
	switch {
	case m.Battle != nil:
		return "battle"
	case m.Salmon != nil:
		return "salmon"
	}
	return ""
}

func hasManual(manual map[string]struct{}, field string) bool {
	_, ok := manual[field]
	return ok
}

func hasManualResultField(manual map[string]struct{}) bool {
	for f := range manual {
		if strings.HasPrefix(f, models.FieldResult+".") {
			return true
		}
	}
	return false
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func ratePtrEqual(a, b *models.Rate) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
