package models

import (
	"fmt"
	"strconv"
)

// Match identifies the battle lobby a session was played in.
type Match string

// Known match values.
const (
	MatchRegular          Match = "regular"
	MatchBankaraChallenge Match = "bankara_challenge"
	MatchBankaraOpen      Match = "bankara_open"
	MatchX                Match = "x"
	MatchLeague           Match = "league"
	MatchPrivate          Match = "private"
	MatchSplatfest        Match = "splatfest"
)

// ParseMatch maps a string onto a Match; unknown strings yield "" and false.
func ParseMatch(s string) (Match, bool) {
	switch Match(s) {
	case MatchRegular, MatchBankaraChallenge, MatchBankaraOpen, MatchX, MatchLeague, MatchPrivate, MatchSplatfest:
		return Match(s), true
	}
	return "", false
}

// Rule identifies the battle rule.
type Rule string

// Known rule values.
const (
	RuleNawabari Rule = "nawabari"
	RuleArea     Rule = "area"
	RuleYagura   Rule = "yagura"
	RuleHoko     Rule = "hoko"
	RuleAsari    Rule = "asari"
)

// ParseRule maps a string onto a Rule; unknown strings yield "" and false.
func ParseRule(s string) (Rule, bool) {
	switch Rule(s) {
	case RuleNawabari, RuleArea, RuleYagura, RuleHoko, RuleAsari:
		return Rule(s), true
	}
	return "", false
}

// BattleResult is the structured outcome of a versus battle. Counts are
// non-negative.
type BattleResult struct {
	Match   Match  `json:"match"`
	Rule    Rule   `json:"rule"`
	Stage   string `json:"stage"`
	Kill    int    `json:"kill"`
	Death   int    `json:"death"`
	Special int    `json:"special"`
}

// Validate checks the symbolic values and count signs.
func (r BattleResult) Validate() error {
	if _, ok := ParseMatch(string(r.Match)); r.Match != "" && !ok {
		return NewError(KindValidation, fmt.Sprintf("invalid match %q", r.Match))
	}
	if _, ok := ParseRule(string(r.Rule)); r.Rule != "" && !ok {
		return NewError(KindValidation, fmt.Sprintf("invalid rule %q", r.Rule))
	}
	if r.Kill < 0 || r.Death < 0 || r.Special < 0 {
		return NewError(KindValidation, "battle counts must be non-negative")
	}
	return nil
}

// ToMap flattens the result into string fields.
func (r BattleResult) ToMap() map[string]string {
	return map[string]string{
		"match":   string(r.Match),
		"rule":    string(r.Rule),
		"stage":   r.Stage,
		"kill":    strconv.Itoa(r.Kill),
		"death":   strconv.Itoa(r.Death),
		"special": strconv.Itoa(r.Special),
	}
}

// BattleResultFromMap reassembles a BattleResult from its flat form.
func BattleResultFromMap(m map[string]string) (BattleResult, error) {
	r := BattleResult{
		Match: Match(m["match"]),
		Rule:  Rule(m["rule"]),
		Stage: m["stage"],
	}
	var err error
	if r.Kill, err = atoiField(m, "kill"); err != nil {
		return BattleResult{}, err
	}
	if r.Death, err = atoiField(m, "death"); err != nil {
		return BattleResult{}, err
	}
	if r.Special, err = atoiField(m, "special"); err != nil {
		return BattleResult{}, err
	}
	if err := r.Validate(); err != nil {
		return BattleResult{}, err
	}
	return r, nil
}

// SalmonResult is the structured outcome of a Salmon Run shift.
type SalmonResult struct {
	Hazard    string `json:"hazard"`
	Stage     string `json:"stage"`
	GoldenEgg int    `json:"golden_egg"`
	PowerEgg  int    `json:"power_egg"`
	Rescue    int    `json:"rescue"`
	Rescued   int    `json:"rescued"`
}

// Validate checks the count signs.
func (r SalmonResult) Validate() error {
	if r.GoldenEgg < 0 || r.PowerEgg < 0 || r.Rescue < 0 || r.Rescued < 0 {
		return NewError(KindValidation, "salmon counts must be non-negative")
	}
	return nil
}

// ToMap flattens the result into string fields.
func (r SalmonResult) ToMap() map[string]string {
	return map[string]string{
		"hazard":     r.Hazard,
		"stage":      r.Stage,
		"golden_egg": strconv.Itoa(r.GoldenEgg),
		"power_egg":  strconv.Itoa(r.PowerEgg),
		"rescue":     strconv.Itoa(r.Rescue),
		"rescued":    strconv.Itoa(r.Rescued),
	}
}

// SalmonResultFromMap reassembles a SalmonResult from its flat form.
func SalmonResultFromMap(m map[string]string) (SalmonResult, error) {
	r := SalmonResult{
		Hazard: m["hazard"],
		Stage:  m["stage"],
	}
	var err error
	if r.GoldenEgg, err = atoiField(m, "golden_egg"); err != nil {
		return SalmonResult{}, err
	}
	if r.PowerEgg, err = atoiField(m, "power_egg"); err != nil {
		return SalmonResult{}, err
	}
	if r.Rescue, err = atoiField(m, "rescue"); err != nil {
		return SalmonResult{}, err
	}
	if r.Rescued, err = atoiField(m, "rescued"); err != nil {
		return SalmonResult{}, err
	}
	if err := r.Validate(); err != nil {
		return SalmonResult{}, err
	}
	return r, nil
}

func atoiField(m map[string]string, key string) (int, error) {
	s, ok := m[key]
	if !ok || s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, WrapError(KindValidation, fmt.Sprintf("field %q is not a number", key), err)
	}
	return n, nil
}
