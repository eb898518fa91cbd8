package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splat-replay/splat-replay/internal/frame"
	"github.com/splat-replay/splat-replay/internal/matcher"
	"github.com/splat-replay/splat-replay/internal/models"
)

// stubMatcher returns a fixed verdict.
type stubMatcher bool

func (s stubMatcher) Match(*frame.Frame) (bool, error) { return bool(s), nil }

// stubOCR returns canned text per region.
type stubOCR struct {
	texts map[frame.ROI]string
}

func (s *stubOCR) Recognize(_ context.Context, _ *frame.Frame, roi frame.ROI) (string, error) {
	return s.texts[roi], nil
}

func testFrame(t *testing.T) *frame.Frame {
	t.Helper()
	f, err := frame.New(make([]byte, 64*36*3), 64, 36)
	require.NoError(t, err)
	return f
}

func newTestAnalyzer(t *testing.T, verdicts map[string]bool, texts map[frame.ROI]string) *Analyzer {
	t.Helper()
	simple := map[string]matcher.Matcher{
		MatcherPowerOff:           stubMatcher(false),
		MatcherMatchingStart:      stubMatcher(false),
		MatcherBattleStart:        stubMatcher(false),
		MatcherSalmonStart:        stubMatcher(false),
		MatcherSessionFinish:      stubMatcher(false),
		MatcherSessionAbort:       stubMatcher(false),
		MatcherLoading:            stubMatcher(false),
		MatcherLoadingEnd:         stubMatcher(false),
		MatcherSessionResult:      stubMatcher(false),
		MatcherSessionJudgement:   stubMatcher(false),
		MatcherJudgementWin:       stubMatcher(false),
		MatcherJudgementLose:      stubMatcher(false),
		MatcherCommunicationError: stubMatcher(false),
		MatcherScheduleChange:     stubMatcher(false),
		MatcherWeaponHUD:          stubMatcher(false),
		MatcherGameModeSalmon:     stubMatcher(false),
	}
	for name, v := range verdicts {
		simple[name] = stubMatcher(v)
	}
	registry, err := matcher.NewRegistry(simple, nil, 0)
	require.NoError(t, err)
	return New(registry, &stubOCR{texts: texts}, nil)
}

func TestPredicatesResolveByName(t *testing.T) {
	f := testFrame(t)
	a := newTestAnalyzer(t, map[string]bool{
		MatcherPowerOff:      true,
		MatcherSessionFinish: true,
	}, nil)

	got, err := a.DetectPowerOff(t.Context(), f)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = a.DetectSessionFinish(t.Context(), f)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = a.DetectMatchingStart(t.Context(), f)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestPredicatesAreDeterministic(t *testing.T) {
	f := testFrame(t)
	a := newTestAnalyzer(t, map[string]bool{MatcherLoading: true}, nil)

	first, err := a.DetectLoading(t.Context(), f)
	require.NoError(t, err)
	second, err := a.DetectLoading(t.Context(), f)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDetectSessionStartPerMode(t *testing.T) {
	f := testFrame(t)
	a := newTestAnalyzer(t, map[string]bool{MatcherSalmonStart: true}, nil)

	got, err := a.DetectSessionStart(t.Context(), models.ModeBattle, f)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = a.DetectSessionStart(t.Context(), models.ModeSalmon, f)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestExtractGameMode(t *testing.T) {
	f := testFrame(t)

	a := newTestAnalyzer(t, nil, nil)
	mode, err := a.ExtractGameMode(t.Context(), f)
	require.NoError(t, err)
	assert.Equal(t, models.ModeBattle, mode)

	a = newTestAnalyzer(t, map[string]bool{MatcherGameModeSalmon: true}, nil)
	mode, err = a.ExtractGameMode(t.Context(), f)
	require.NoError(t, err)
	assert.Equal(t, models.ModeSalmon, mode)
}

func TestExtractSessionJudgement(t *testing.T) {
	f := testFrame(t)

	a := newTestAnalyzer(t, map[string]bool{MatcherJudgementWin: true}, nil)
	j, ok, err := a.ExtractSessionJudgement(t.Context(), f)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.JudgementWin, j)

	a = newTestAnalyzer(t, map[string]bool{MatcherJudgementLose: true}, nil)
	j, ok, err = a.ExtractSessionJudgement(t.Context(), f)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.JudgementLose, j)

	a = newTestAnalyzer(t, nil, nil)
	j, ok, err = a.ExtractSessionJudgement(t.Context(), f)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, models.JudgementUnknown, j)
}

func TestExtractRate(t *testing.T) {
	f := testFrame(t)
	roi := frame.ROI{X: 1, Y: 1, W: 10, H: 5}

	t.Run("xp", func(t *testing.T) {
		a := newTestAnalyzer(t, nil, map[frame.ROI]string{roi: "2150.0"})
		WithROIs(map[string]frame.ROI{ROIRate: roi})(a)
		rate, ok, err := a.ExtractRate(t.Context(), f)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, models.RateXP, rate.Kind)
		assert.Equal(t, 2150.0, rate.XP)
	})

	t.Run("udemae full-width folds", func(t *testing.T) {
		a := newTestAnalyzer(t, nil, map[frame.ROI]string{roi: "ｓ＋"})
		WithROIs(map[string]frame.ROI{ROIRate: roi})(a)
		rate, ok, err := a.ExtractRate(t.Context(), f)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "S+", rate.Udemae)
	})

	t.Run("garbage is absent, not an error", func(t *testing.T) {
		a := newTestAnalyzer(t, nil, map[frame.ROI]string{roi: "???"})
		WithROIs(map[string]frame.ROI{ROIRate: roi})(a)
		_, ok, err := a.ExtractRate(t.Context(), f)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestExtractBattleResult(t *testing.T) {
	f := testFrame(t)
	rois := map[string]frame.ROI{
		ROIResultMatch:   {X: 1, Y: 1, W: 4, H: 2},
		ROIResultRule:    {X: 2, Y: 1, W: 4, H: 2},
		ROIResultStage:   {X: 3, Y: 1, W: 4, H: 2},
		ROIResultKill:    {X: 4, Y: 1, W: 4, H: 2},
		ROIResultDeath:   {X: 5, Y: 1, W: 4, H: 2},
		ROIResultSpecial: {X: 6, Y: 1, W: 4, H: 2},
	}
	texts := map[frame.ROI]string{
		rois[ROIResultMatch]:   "X Battle",
		rois[ROIResultRule]:    "Splat Zones",
		rois[ROIResultStage]:   "Scorch Gorge",
		rois[ROIResultKill]:    "8",
		rois[ROIResultDeath]:   "3x", // OCR noise around digits
		rois[ROIResultSpecial]: "",
	}

	a := newTestAnalyzer(t, nil, texts)
	WithROIs(rois)(a)

	result, err := a.ExtractBattleResult(t.Context(), f)
	require.NoError(t, err)
	assert.Equal(t, models.MatchX, result.Match)
	assert.Equal(t, models.RuleArea, result.Rule)
	assert.Equal(t, "scorch_gorge", result.Stage)
	assert.Equal(t, 8, result.Kill)
	assert.Equal(t, 3, result.Death)
	assert.Equal(t, 0, result.Special)
}

func TestExtractSessionResultSelectsVariant(t *testing.T) {
	f := testFrame(t)
	a := newTestAnalyzer(t, nil, map[frame.ROI]string{})

	meta, err := a.ExtractSessionResult(t.Context(), models.ModeBattle, f, models.NewMetadata())
	require.NoError(t, err)
	assert.NotNil(t, meta.Battle)
	assert.Nil(t, meta.Salmon)

	meta, err = a.ExtractSessionResult(t.Context(), models.ModeSalmon, f, models.NewMetadata().WithGameMode(models.ModeSalmon))
	require.NoError(t, err)
	assert.NotNil(t, meta.Salmon)
	assert.Nil(t, meta.Battle)
}

func TestStageSlug(t *testing.T) {
	assert.Equal(t, "scorch_gorge", stageSlug("Scorch Gorge"))
	assert.Equal(t, "wahoo_world", stageSlug(" Wahoo  World! "))
	assert.Equal(t, "", stageSlug(""))
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "x battle", normalizeText("Ｘ Ｂａｔｔｌｅ"))
	assert.Equal(t, "turf war", normalizeText("  Turf War. "))
}
