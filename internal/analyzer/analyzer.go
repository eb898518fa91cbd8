// Package analyzer classifies captured frames into game lifecycle
// predicates and extracts structured session facts. Predicates are pure
// lookups into the matcher registry; extraction queries additionally run OCR
// over named regions and map the recognized text onto domain enums.
package analyzer

import (
	"context"
	"log/slog"

	"github.com/splat-replay/splat-replay/internal/frame"
	"github.com/splat-replay/splat-replay/internal/matcher"
	"github.com/splat-replay/splat-replay/internal/models"
)

// Matcher names the analyzer resolves in the registry. The matcher
// definition file must provide a matcher or expression per name it uses.
const (
	MatcherPowerOff           = "power_off"
	MatcherMatchingStart      = "matching_start"
	MatcherBattleStart        = "battle_start"
	MatcherSalmonStart        = "salmon_start"
	MatcherSessionFinish      = "session_finish"
	MatcherSessionAbort       = "session_abort"
	MatcherLoading            = "loading"
	MatcherLoadingEnd         = "loading_end"
	MatcherSessionResult      = "session_result"
	MatcherSessionJudgement   = "session_judgement"
	MatcherJudgementWin       = "judgement_win"
	MatcherJudgementLose      = "judgement_lose"
	MatcherCommunicationError = "communication_error"
	MatcherScheduleChange     = "schedule_change"
	MatcherWeaponHUD          = "weapon_hud"
	MatcherGameModeSalmon     = "game_mode_salmon"
)

// OCR recognizes text inside a region of a frame.
type OCR interface {
	Recognize(ctx context.Context, f *frame.Frame, roi frame.ROI) (string, error)
}

// Analyzer answers predicate and extraction queries over single frames.
// It is stateless and safe for concurrent use.
type Analyzer struct {
	registry *matcher.Registry
	ocr      OCR
	rois     map[string]frame.ROI
	logger   *slog.Logger
}

// Option adjusts analyzer construction.
type Option func(*Analyzer)

// WithROIs overrides the named OCR regions.
func WithROIs(rois map[string]frame.ROI) Option {
	return func(a *Analyzer) {
		for k, v := range rois {
			a.rois[k] = v
		}
	}
}

// New constructs an analyzer over a matcher registry and an OCR engine.
func New(registry *matcher.Registry, ocr OCR, logger *slog.Logger, opts ...Option) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Analyzer{
		registry: registry,
		ocr:      ocr,
		rois:     defaultROIs(),
		logger:   logger.With(slog.String("component", "analyzer")),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Named OCR regions, normalized to a 16:9 frame. Overridable per install
// because capture cropping varies by device.
func defaultROIs() map[string]frame.ROI {
	n := func(x, y, w, h float64) frame.ROI {
		return frame.ROI{X: x, Y: y, W: w, H: h, Normalized: true}
	}
	return map[string]frame.ROI{
		ROIRate:          n(0.62, 0.13, 0.12, 0.05),
		ROIResultMatch:   n(0.04, 0.05, 0.20, 0.06),
		ROIResultRule:    n(0.04, 0.12, 0.25, 0.06),
		ROIResultStage:   n(0.70, 0.90, 0.26, 0.06),
		ROIResultKill:    n(0.58, 0.205, 0.045, 0.035),
		ROIResultDeath:   n(0.645, 0.205, 0.045, 0.035),
		ROIResultSpecial: n(0.71, 0.205, 0.045, 0.035),
		ROISalmonHazard:  n(0.42, 0.06, 0.16, 0.05),
		ROISalmonGolden:  n(0.55, 0.40, 0.08, 0.04),
		ROISalmonPower:   n(0.55, 0.46, 0.08, 0.04),
		ROISalmonRescue:  n(0.55, 0.52, 0.08, 0.04),
		ROISalmonRescued: n(0.55, 0.58, 0.08, 0.04),
	}
}

// OCR region names.
const (
	ROIRate          = "rate"
	ROIResultMatch   = "result_match"
	ROIResultRule    = "result_rule"
	ROIResultStage   = "result_stage"
	ROIResultKill    = "result_kill"
	ROIResultDeath   = "result_death"
	ROIResultSpecial = "result_special"
	ROISalmonHazard  = "salmon_hazard"
	ROISalmonGolden  = "salmon_golden_egg"
	ROISalmonPower   = "salmon_power_egg"
	ROISalmonRescue  = "salmon_rescue"
	ROISalmonRescued = "salmon_rescued"
)

func (a *Analyzer) probe(ctx context.Context, name string, f *frame.Frame) (bool, error) {
	return a.registry.Match(ctx, name, f)
}

// DetectPowerOff reports whether the frame shows the console powered off.
func (a *Analyzer) DetectPowerOff(ctx context.Context, f *frame.Frame) (bool, error) {
	return a.probe(ctx, MatcherPowerOff, f)
}

// DetectMatchingStart reports whether matchmaking has begun.
func (a *Analyzer) DetectMatchingStart(ctx context.Context, f *frame.Frame) (bool, error) {
	return a.probe(ctx, MatcherMatchingStart, f)
}

// DetectSessionStart reports whether a session of the given mode has begun.
func (a *Analyzer) DetectSessionStart(ctx context.Context, mode models.GameMode, f *frame.Frame) (bool, error) {
	name := MatcherBattleStart
	if mode == models.ModeSalmon {
		name = MatcherSalmonStart
	}
	return a.probe(ctx, name, f)
}

// DetectSessionFinish reports whether the session's finish cut is showing.
func (a *Analyzer) DetectSessionFinish(ctx context.Context, f *frame.Frame) (bool, error) {
	return a.probe(ctx, MatcherSessionFinish, f)
}

// DetectSessionAbort reports whether the session was torn down early.
func (a *Analyzer) DetectSessionAbort(ctx context.Context, f *frame.Frame) (bool, error) {
	return a.probe(ctx, MatcherSessionAbort, f)
}

// DetectLoading reports whether a loading screen is showing.
func (a *Analyzer) DetectLoading(ctx context.Context, f *frame.Frame) (bool, error) {
	return a.probe(ctx, MatcherLoading, f)
}

// DetectLoadingEnd reports whether the loading screen has cleared.
func (a *Analyzer) DetectLoadingEnd(ctx context.Context, f *frame.Frame) (bool, error) {
	return a.probe(ctx, MatcherLoadingEnd, f)
}

// DetectSessionResult reports whether the result screen is showing.
func (a *Analyzer) DetectSessionResult(ctx context.Context, f *frame.Frame) (bool, error) {
	return a.probe(ctx, MatcherSessionResult, f)
}

// DetectSessionJudgement reports whether the judgement screen is showing.
func (a *Analyzer) DetectSessionJudgement(ctx context.Context, f *frame.Frame) (bool, error) {
	return a.probe(ctx, MatcherSessionJudgement, f)
}

// DetectCommunicationError reports whether the connection-lost dialog is
// showing.
func (a *Analyzer) DetectCommunicationError(ctx context.Context, f *frame.Frame) (bool, error) {
	return a.probe(ctx, MatcherCommunicationError, f)
}

// DetectScheduleChange reports whether the schedule rotation splash is
// showing.
func (a *Analyzer) DetectScheduleChange(ctx context.Context, f *frame.Frame) (bool, error) {
	return a.probe(ctx, MatcherScheduleChange, f)
}

// DetectWeaponHUD reports whether the in-battle weapon HUD strip is visible.
func (a *Analyzer) DetectWeaponHUD(ctx context.Context, f *frame.Frame) (bool, error) {
	return a.probe(ctx, MatcherWeaponHUD, f)
}
