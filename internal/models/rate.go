package models

import (
	"fmt"
	"strconv"
	"strings"
)

// RateKind distinguishes the two rate variants.
type RateKind string

const (
	// RateXP is X Power, a number in [500, 5500].
	RateXP RateKind = "xp"
	// RateUdemae is a rank symbol from the fixed ladder C- through S+.
	RateUdemae RateKind = "udemae"
)

// XP bounds.
const (
	MinXP = 500
	MaxXP = 5500
)

// udemaeLadder orders the rank symbols from lowest to highest.
var udemaeLadder = []string{"C-", "C", "C+", "B-", "B", "B+", "A-", "A", "A+", "S", "S+"}

// Rate is a tagged variant: either an X Power value or an Udemae rank.
// Rates of the same kind are totally ordered; comparing across kinds is an
// error.
type Rate struct {
	Kind   RateKind `json:"kind"`
	XP     float64  `json:"xp,omitempty"`
	Udemae string   `json:"udemae,omitempty"`
}

// NewXP constructs an X Power rate, validating the range.
func NewXP(value float64) (Rate, error) {
	if value < MinXP || value > MaxXP {
		return Rate{}, NewError(KindValidation, fmt.Sprintf("x power %.1f outside [%d, %d]", value, MinXP, MaxXP))
	}
	return Rate{Kind: RateXP, XP: value}, nil
}

// NewUdemae constructs an Udemae rate, validating the symbol.
func NewUdemae(symbol string) (Rate, error) {
	if udemaeIndex(symbol) < 0 {
		return Rate{}, NewError(KindValidation, fmt.Sprintf("invalid udemae %q", symbol))
	}
	return Rate{Kind: RateUdemae, Udemae: symbol}, nil
}

// ParseRate reads a rate from its string form: a number is X Power, a rank
// symbol is Udemae.
func ParseRate(s string) (Rate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Rate{}, NewError(KindValidation, "empty rate")
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return NewXP(v)
	}
	return NewUdemae(strings.ToUpper(s))
}

// String returns the canonical text form: "2150.0" for X Power, "S+" for
// Udemae.
func (r Rate) String() string {
	switch r.Kind {
	case RateXP:
		return strconv.FormatFloat(r.XP, 'f', 1, 64)
	case RateUdemae:
		return r.Udemae
	}
	return ""
}

// IsZero reports whether the rate is unset.
func (r Rate) IsZero() bool { return r.Kind == "" }

// Compare orders two rates of the same kind: -1, 0, or 1. Comparing an XP
// rate against an Udemae rate returns ErrIncomparableRates.
func (r Rate) Compare(other Rate) (int, error) {
	if r.Kind != other.Kind {
		return 0, ErrIncomparableRates
	}
	switch r.Kind {
	case RateXP:
		switch {
		case r.XP < other.XP:
			return -1, nil
		case r.XP > other.XP:
			return 1, nil
		}
		return 0, nil
	case RateUdemae:
		a, b := udemaeIndex(r.Udemae), udemaeIndex(other.Udemae)
		switch {
		case a < b:
			return -1, nil
		case a > b:
			return 1, nil
		}
		return 0, nil
	}
	return 0, ErrIncomparableRates
}

func udemaeIndex(symbol string) int {
	for i, s := range udemaeLadder {
		if s == symbol {
			return i
		}
	}
	return -1
}
