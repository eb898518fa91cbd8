package analyzer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/width"

	"github.com/splat-replay/splat-replay/internal/frame"
	"github.com/splat-replay/splat-replay/internal/models"
)

// normalizeText folds full-width characters to their ASCII forms, lowers
// case, and trims the junk OCR tends to append.
func normalizeText(s string) string {
	s = width.Fold.String(s)
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Trim(s, ".,:;!?")
}

// matchAliases maps normalized OCR text onto lobby values.
var matchAliases = map[string]models.Match{
	"regular battle":    models.MatchRegular,
	"turf war":          models.MatchRegular,
	"anarchy battle":    models.MatchBankaraOpen,
	"anarchy (open)":    models.MatchBankaraOpen,
	"anarchy (series)":  models.MatchBankaraChallenge,
	"x battle":          models.MatchX,
	"league battle":     models.MatchLeague,
	"challenge":         models.MatchLeague,
	"private battle":    models.MatchPrivate,
	"splatfest battle":  models.MatchSplatfest,
	"tricolor battle":   models.MatchSplatfest,
	"regular":           models.MatchRegular,
	"bankara open":      models.MatchBankaraOpen,
	"bankara challenge": models.MatchBankaraChallenge,
}

// ruleAliases maps normalized OCR text onto rule values.
var ruleAliases = map[string]models.Rule{
	"turf war":      models.RuleNawabari,
	"splat zones":   models.RuleArea,
	"tower control": models.RuleYagura,
	"rainmaker":     models.RuleHoko,
	"clam blitz":    models.RuleAsari,
	"nawabari":      models.RuleNawabari,
	"area":          models.RuleArea,
	"yagura":        models.RuleYagura,
	"hoko":          models.RuleHoko,
	"asari":         models.RuleAsari,
}

// ExtractGameMode classifies the selected game mode from the lobby frame.
// Battle is the default when the salmon cue is absent.
func (a *Analyzer) ExtractGameMode(ctx context.Context, f *frame.Frame) (models.GameMode, error) {
	salmon, err := a.probe(ctx, MatcherGameModeSalmon, f)
	if err != nil {
		return models.ModeBattle, err
	}
	if salmon {
		return models.ModeSalmon, nil
	}
	return models.ModeBattle, nil
}

// ExtractRate reads the rate (X Power or Udemae) from the lobby frame.
// Returns false when nothing parseable is on screen.
func (a *Analyzer) ExtractRate(ctx context.Context, f *frame.Frame) (models.Rate, bool, error) {
	text, err := a.recognize(ctx, f, ROIRate)
	if err != nil {
		return models.Rate{}, false, err
	}
	rate, err := models.ParseRate(strings.ToUpper(normalizeText(text)))
	if err != nil {
		// Unreadable text is not an error, just an absent rate.
		return models.Rate{}, false, nil
	}
	return rate, true, nil
}

// ExtractSessionJudgement reads win/lose from the judgement screen. Returns
// JudgementUnknown and false when neither cue is visible.
func (a *Analyzer) ExtractSessionJudgement(ctx context.Context, f *frame.Frame) (models.Judgement, bool, error) {
	win, err := a.probe(ctx, MatcherJudgementWin, f)
	if err != nil {
		return models.JudgementUnknown, false, err
	}
	if win {
		return models.JudgementWin, true, nil
	}
	lose, err := a.probe(ctx, MatcherJudgementLose, f)
	if err != nil {
		return models.JudgementUnknown, false, err
	}
	if lose {
		return models.JudgementLose, true, nil
	}
	return models.JudgementUnknown, false, nil
}

// ExtractBattleResult reads the battle result screen: lobby, rule, stage,
// and the kill/death/special counts. Fields OCR cannot map stay at their
// zero values.
func (a *Analyzer) ExtractBattleResult(ctx context.Context, f *frame.Frame) (models.BattleResult, error) {
	var result models.BattleResult

	if text, err := a.recognize(ctx, f, ROIResultMatch); err == nil {
		if m, ok := matchAliases[normalizeText(text)]; ok {
			result.Match = m
		}
	} else {
		return result, err
	}
	if text, err := a.recognize(ctx, f, ROIResultRule); err == nil {
		if r, ok := ruleAliases[normalizeText(text)]; ok {
			result.Rule = r
		}
	} else {
		return result, err
	}
	if text, err := a.recognize(ctx, f, ROIResultStage); err == nil {
		result.Stage = stageSlug(text)
	} else {
		return result, err
	}

	var err error
	if result.Kill, err = a.recognizeCount(ctx, f, ROIResultKill); err != nil {
		return result, err
	}
	if result.Death, err = a.recognizeCount(ctx, f, ROIResultDeath); err != nil {
		return result, err
	}
	if result.Special, err = a.recognizeCount(ctx, f, ROIResultSpecial); err != nil {
		return result, err
	}
	return result, nil
}

// ExtractSalmonResult reads the Salmon Run result screen.
func (a *Analyzer) ExtractSalmonResult(ctx context.Context, f *frame.Frame) (models.SalmonResult, error) {
	var result models.SalmonResult

	if text, err := a.recognize(ctx, f, ROISalmonHazard); err == nil {
		result.Hazard = normalizeText(text)
	} else {
		return result, err
	}
	if text, err := a.recognize(ctx, f, ROIResultStage); err == nil {
		result.Stage = stageSlug(text)
	} else {
		return result, err
	}

	var err error
	if result.GoldenEgg, err = a.recognizeCount(ctx, f, ROISalmonGolden); err != nil {
		return result, err
	}
	if result.PowerEgg, err = a.recognizeCount(ctx, f, ROISalmonPower); err != nil {
		return result, err
	}
	if result.Rescue, err = a.recognizeCount(ctx, f, ROISalmonRescue); err != nil {
		return result, err
	}
	if result.Rescued, err = a.recognizeCount(ctx, f, ROISalmonRescued); err != nil {
		return result, err
	}
	return result, nil
}

// ExtractSessionResult reads whichever result screen matches the game mode
// and returns the metadata updated with it.
func (a *Analyzer) ExtractSessionResult(ctx context.Context, mode models.GameMode, f *frame.Frame, meta models.RecordingMetadata) (models.RecordingMetadata, error) {
	switch mode {
	case models.ModeSalmon:
		result, err := a.ExtractSalmonResult(ctx, f)
		if err != nil {
			return meta, fmt.Errorf("extracting salmon result: %w", err)
		}
		return meta.WithSalmonResult(result), nil
	default:
		result, err := a.ExtractBattleResult(ctx, f)
		if err != nil {
			return meta, fmt.Errorf("extracting battle result: %w", err)
		}
		return meta.WithBattleResult(result), nil
	}
}

func (a *Analyzer) recognize(ctx context.Context, f *frame.Frame, roiName string) (string, error) {
	roi, ok := a.rois[roiName]
	if !ok {
		return "", fmt.Errorf("no OCR region named %q", roiName)
	}
	text, err := a.ocr.Recognize(ctx, f, roi)
	if err != nil {
		return "", fmt.Errorf("ocr %s: %w", roiName, err)
	}
	return text, nil
}

// recognizeCount reads a non-negative integer; unreadable text counts as
// zero rather than an error, matching the tolerance the result screen
// needs.
func (a *Analyzer) recognizeCount(ctx context.Context, f *frame.Frame, roiName string) (int, error) {
	text, err := a.recognize(ctx, f, roiName)
	if err != nil {
		return 0, err
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, width.Fold.String(text))
	if digits == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// stageSlug converts an OCR'd stage name into its snake_case slug.
func stageSlug(s string) string {
	s = normalizeText(s)
	var b strings.Builder
	lastUnderscore := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
