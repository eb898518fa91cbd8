// Package config provides configuration management for splat-replay using
// Viper. It supports configuration from a TOML file, environment variables,
// and defaults.
package config

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Duration is a time.Duration that supports human-readable parsing. It
// extends Go's standard duration format with 'd' (days) and 'w' (weeks):
// "30d", "2w", "1w2d12h". It implements encoding.TextUnmarshaler for
// Viper/TOML support and json.Unmarshaler for JSON payloads.
type Duration time.Duration

var durationPart = regexp.MustCompile(`(?i)([0-9]+(?:\.[0-9]+)?)(w|d)`)

// ParseDuration parses a human-readable duration string. Supports standard
// Go duration format plus 'd' (days) and 'w' (weeks).
func ParseDuration(s string) (Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("duration: empty string")
	}
	var extra time.Duration
	rest := durationPart.ReplaceAllStringFunc(s, func(m string) string {
		sub := durationPart.FindStringSubmatch(m)
		v, err := strconv.ParseFloat(sub[1], 64)
		if err != nil {
			return m
		}
		switch sub[2] {
		case "w", "W":
			extra += time.Duration(v * float64(7*24*time.Hour))
		case "d", "D":
			extra += time.Duration(v * float64(24*time.Hour))
		}
		return ""
	})
	if rest == "" {
		return Duration(extra), nil
	}
	d, err := time.ParseDuration(rest)
	if err != nil {
		return 0, fmt.Errorf("duration: invalid format %q: %w", s, err)
	}
	return Duration(extra + d), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML/Viper support.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Accept a bare number of nanoseconds.
		var ns int64
		if err := json.Unmarshal(data, &ns); err != nil {
			return err
		}
		*d = Duration(ns)
		return nil
	}
	return d.UnmarshalText([]byte(s))
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// String returns a human-readable representation using the largest units
// that divide evenly: "2w", "1d12h", "45s".
func (d Duration) String() string {
	dur := time.Duration(d)
	if dur == 0 {
		return "0s"
	}

	negative := dur < 0
	if negative {
		dur = -dur
	}

	var result string
	weeks := dur / (7 * 24 * time.Hour)
	dur -= weeks * 7 * 24 * time.Hour
	days := dur / (24 * time.Hour)
	dur -= days * 24 * time.Hour

	if weeks > 0 {
		result += fmt.Sprintf("%dw", weeks)
	}
	if days > 0 {
		result += fmt.Sprintf("%dd", days)
	}
	if dur > 0 {
		result += dur.String()
	}
	if result == "" {
		return time.Duration(d).String()
	}
	if negative {
		result = "-" + result
	}
	return result
}
