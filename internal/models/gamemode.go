package models

import "fmt"

// GameMode distinguishes the two recordable session kinds.
type GameMode string

const (
	// ModeBattle is a versus battle session.
	ModeBattle GameMode = "battle"
	// ModeSalmon is a Salmon Run shift.
	ModeSalmon GameMode = "salmon"
)

// ParseGameMode maps a string onto a GameMode.
func ParseGameMode(s string) (GameMode, error) {
	switch GameMode(s) {
	case ModeBattle, ModeSalmon:
		return GameMode(s), nil
	}
	return "", NewError(KindValidation, fmt.Sprintf("invalid game mode %q", s))
}

// String returns the wire form of the mode.
func (m GameMode) String() string { return string(m) }

// Valid reports whether the mode is one of the known values.
func (m GameMode) Valid() bool { return m == ModeBattle || m == ModeSalmon }

// Judgement is the outcome of a battle as read from the judgement screen.
type Judgement string

const (
	// JudgementWin marks a won battle.
	JudgementWin Judgement = "win"
	// JudgementLose marks a lost battle.
	JudgementLose Judgement = "lose"
	// JudgementUnknown is the zero value before any judgement is read.
	JudgementUnknown Judgement = ""
)

// ParseJudgement maps a string onto a Judgement; unknown strings yield
// JudgementUnknown and false.
func ParseJudgement(s string) (Judgement, bool) {
	switch Judgement(s) {
	case JudgementWin, JudgementLose:
		return Judgement(s), true
	}
	return JudgementUnknown, false
}

// String returns the wire form of the judgement.
func (j Judgement) String() string { return string(j) }
