package models

import (
	"fmt"
	"strings"
	"time"
)

// Metadata field names, as used in manual-field tracking, merge decisions,
// and the flat map form.
const (
	FieldGameMode  = "game_mode"
	FieldStartedAt = "started_at"
	FieldRate      = "rate"
	FieldJudgement = "judgement"
	FieldResult    = "result"
	FieldAllies    = "allies"
	FieldEnemies   = "enemies"
)

// ResultField names a result sub-field for manual tracking, e.g.
// "result.kill".
func ResultField(sub string) string { return FieldResult + "." + sub }

// IsResultField reports whether a field name addresses a result sub-field
// and returns the bare sub-field name.
func IsResultField(name string) (string, bool) {
	sub, ok := strings.CutPrefix(name, FieldResult+".")
	return sub, ok
}

// stemTimeLayout formats startedAt for filename stems.
const stemTimeLayout = "20060102_150405"

// startedAtLayout is the wire form of startedAt in the flat map.
const startedAtLayout = time.RFC3339

// RecordingMetadata is the per-session metadata record. It is immutable:
// every update returns a new instance. GameMode is the only field that is
// always set; it defaults to battle.
type RecordingMetadata struct {
	GameMode  GameMode      `json:"game_mode"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
	Rate      *Rate         `json:"rate,omitempty"`
	Judgement Judgement     `json:"judgement,omitempty"`
	Battle    *BattleResult `json:"battle,omitempty"`
	Salmon    *SalmonResult `json:"salmon,omitempty"`
	Allies    []string      `json:"allies,omitempty"`
	Enemies   []string      `json:"enemies,omitempty"`
}

// NewMetadata returns an empty record for the default game mode.
func NewMetadata() RecordingMetadata {
	return RecordingMetadata{GameMode: ModeBattle}
}

// HasResult reports whether either result variant is present.
func (m RecordingMetadata) HasResult() bool {
	return m.Battle != nil || m.Salmon != nil
}

// ResultMap returns the flat string form of whichever result is present, or
// nil.
func (m RecordingMetadata) ResultMap() map[string]string {
	switch {
	case m.Battle != nil:
		return m.Battle.ToMap()
	case m.Salmon != nil:
		return m.Salmon.ToMap()
	}
	return nil
}

// WithStartedAt returns a copy stamped with the session start time.
func (m RecordingMetadata) WithStartedAt(t time.Time) RecordingMetadata {
	m.StartedAt = &t
	return m
}

// WithGameMode returns a copy with the game mode replaced.
func (m RecordingMetadata) WithGameMode(mode GameMode) RecordingMetadata {
	m.GameMode = mode
	return m
}

// WithRate returns a copy with the rate replaced.
func (m RecordingMetadata) WithRate(r Rate) RecordingMetadata {
	m.Rate = &r
	return m
}

// WithJudgement returns a copy with the judgement replaced.
func (m RecordingMetadata) WithJudgement(j Judgement) RecordingMetadata {
	m.Judgement = j
	return m
}

// WithBattleResult returns a copy carrying a battle result; any salmon
// result is cleared.
func (m RecordingMetadata) WithBattleResult(r BattleResult) RecordingMetadata {
	m.Battle = &r
	m.Salmon = nil
	return m
}

// WithSalmonResult returns a copy carrying a salmon result; any battle
// result is cleared.
func (m RecordingMetadata) WithSalmonResult(r SalmonResult) RecordingMetadata {
	m.Salmon = &r
	m.Battle = nil
	return m
}

// WithWeapons returns a copy with the ally and enemy weapon labels replaced.
func (m RecordingMetadata) WithWeapons(allies, enemies []string) RecordingMetadata {
	m.Allies = append([]string(nil), allies...)
	m.Enemies = append([]string(nil), enemies...)
	return m
}

// Reset returns an empty record keeping only the game mode, as happens when
// a session ends.
func (m RecordingMetadata) Reset() RecordingMetadata {
	return RecordingMetadata{GameMode: m.GameMode}
}

// Stem derives the deterministic filename stem. With a battle result it is
// started-at plus match, rule, judgement, and stage; otherwise started-at
// alone. Symbolic parts are sanitized so the stem is always a safe file
// name.
func (m RecordingMetadata) Stem() string {
	var started time.Time
	if m.StartedAt != nil {
		started = *m.StartedAt
	}
	base := started.Format(stemTimeLayout)
	if m.Battle == nil {
		return base
	}
	judgement := string(m.Judgement)
	if judgement == "" {
		judgement = "unknown"
	}
	parts := []string{
		base,
		sanitizeStemPart(string(m.Battle.Match)),
		sanitizeStemPart(string(m.Battle.Rule)),
		sanitizeStemPart(judgement),
		sanitizeStemPart(m.Battle.Stage),
	}
	return strings.Join(parts, "_")
}

// sanitizeStemPart percent-encodes runes that are unsafe in file names,
// preserving uniqueness: distinct inputs stay distinct because '%' itself is
// encoded.
func sanitizeStemPart(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			for _, bb := range []byte(string(r)) {
				fmt.Fprintf(&b, "%%%02X", bb)
			}
		}
	}
	return b.String()
}

// ToMap flattens the metadata into the sidecar-JSON string map. Absent
// optional fields are absent keys.
func (m RecordingMetadata) ToMap() map[string]string {
	out := map[string]string{FieldGameMode: string(m.GameMode)}
	if m.StartedAt != nil {
		out[FieldStartedAt] = m.StartedAt.Format(startedAtLayout)
	}
	if m.Rate != nil {
		out[FieldRate] = m.Rate.String()
	}
	if m.Judgement != JudgementUnknown {
		out[FieldJudgement] = string(m.Judgement)
	}
	for k, v := range m.ResultMap() {
		out[k] = v
	}
	if len(m.Allies) > 0 {
		out[FieldAllies] = strings.Join(m.Allies, ",")
	}
	if len(m.Enemies) > 0 {
		out[FieldEnemies] = strings.Join(m.Enemies, ",")
	}
	return out
}

// MetadataFromMap reassembles a RecordingMetadata from its flat form.
// ToMap and MetadataFromMap round-trip: missing optional fields stay
// missing.
func MetadataFromMap(m map[string]string) (RecordingMetadata, error) {
	out := NewMetadata()
	if s, ok := m[FieldGameMode]; ok && s != "" {
		mode, err := ParseGameMode(s)
		if err != nil {
			return RecordingMetadata{}, err
		}
		out.GameMode = mode
	}
	if s, ok := m[FieldStartedAt]; ok && s != "" {
		t, err := time.Parse(startedAtLayout, s)
		if err != nil {
			return RecordingMetadata{}, WrapError(KindValidation, "invalid started_at", err)
		}
		out.StartedAt = &t
	}
	if s, ok := m[FieldRate]; ok && s != "" {
		r, err := ParseRate(s)
		if err != nil {
			return RecordingMetadata{}, err
		}
		out.Rate = &r
	}
	if s, ok := m[FieldJudgement]; ok && s != "" {
		j, ok := ParseJudgement(s)
		if !ok {
			return RecordingMetadata{}, NewError(KindValidation, fmt.Sprintf("invalid judgement %q", s))
		}
		out.Judgement = j
	}
	switch {
	case hasAnyKey(m, "match", "rule", "kill", "death", "special"):
		r, err := BattleResultFromMap(m)
		if err != nil {
			return RecordingMetadata{}, err
		}
		out.Battle = &r
	case hasAnyKey(m, "hazard", "golden_egg", "power_egg", "rescue", "rescued"):
		r, err := SalmonResultFromMap(m)
		if err != nil {
			return RecordingMetadata{}, err
		}
		out.Salmon = &r
	}
	if s, ok := m[FieldAllies]; ok && s != "" {
		out.Allies = strings.Split(s, ",")
	}
	if s, ok := m[FieldEnemies]; ok && s != "" {
		out.Enemies = strings.Split(s, ",")
	}
	return out, nil
}

func hasAnyKey(m map[string]string, keys ...string) bool {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != "" {
			return true
		}
	}
	return false
}
