package record

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splat-replay/splat-replay/internal/analyzer"
	"github.com/splat-replay/splat-replay/internal/frame"
	"github.com/splat-replay/splat-replay/internal/models"
)

// fakeAnalyzer answers probes from a mutable flag set.
type fakeAnalyzer struct {
	mu    sync.Mutex
	flags map[string]bool

	gameMode  models.GameMode
	rate      *models.Rate
	judgement models.Judgement
	battle    *models.BattleResult
	salmon    *models.SalmonResult
}

func newFakeAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{flags: map[string]bool{}, gameMode: models.ModeBattle}
}

func (a *fakeAnalyzer) set(flag string, v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flags[flag] = v
}

func (a *fakeAnalyzer) probe(flag string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flags[flag], nil
}

func (a *fakeAnalyzer) DetectPowerOff(context.Context, *frame.Frame) (bool, error) {
	return a.probe("power_off")
}
func (a *fakeAnalyzer) DetectMatchingStart(context.Context, *frame.Frame) (bool, error) {
	return a.probe("matching_start")
}
func (a *fakeAnalyzer) DetectSessionStart(_ context.Context, _ models.GameMode, _ *frame.Frame) (bool, error) {
	return a.probe("session_start")
}
func (a *fakeAnalyzer) DetectSessionFinish(context.Context, *frame.Frame) (bool, error) {
	return a.probe("session_finish")
}
func (a *fakeAnalyzer) DetectSessionAbort(context.Context, *frame.Frame) (bool, error) {
	return a.probe("session_abort")
}
func (a *fakeAnalyzer) DetectLoading(context.Context, *frame.Frame) (bool, error) {
	return a.probe("loading")
}
func (a *fakeAnalyzer) DetectLoadingEnd(context.Context, *frame.Frame) (bool, error) {
	return a.probe("loading_end")
}
func (a *fakeAnalyzer) DetectSessionResult(context.Context, *frame.Frame) (bool, error) {
	return a.probe("session_result")
}
func (a *fakeAnalyzer) DetectSessionJudgement(context.Context, *frame.Frame) (bool, error) {
	return a.probe("session_judgement")
}
func (a *fakeAnalyzer) DetectCommunicationError(context.Context, *frame.Frame) (bool, error) {
	return a.probe("communication_error")
}
func (a *fakeAnalyzer) DetectScheduleChange(context.Context, *frame.Frame) (bool, error) {
	return a.probe("schedule_change")
}
func (a *fakeAnalyzer) DetectWeaponHUD(context.Context, *frame.Frame) (bool, error) {
	return a.probe("weapon_hud")
}

func (a *fakeAnalyzer) ExtractGameMode(context.Context, *frame.Frame) (models.GameMode, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gameMode, nil
}

func (a *fakeAnalyzer) ExtractRate(context.Context, *frame.Frame) (models.Rate, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rate == nil {
		return models.Rate{}, false, nil
	}
	return *a.rate, true, nil
}

func (a *fakeAnalyzer) ExtractSessionJudgement(context.Context, *frame.Frame) (models.Judgement, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.judgement == models.JudgementUnknown {
		return models.JudgementUnknown, false, nil
	}
	return a.judgement, true, nil
}

func (a *fakeAnalyzer) ExtractSessionResult(_ context.Context, _ models.GameMode, _ *frame.Frame, meta models.RecordingMetadata) (models.RecordingMetadata, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case a.salmon != nil:
		return meta.WithSalmonResult(*a.salmon), nil
	case a.battle != nil:
		return meta.WithBattleResult(*a.battle), nil
	}
	return meta, nil
}

// fakeRecorder records calls and reports a canned stop result.
type fakeRecorder struct {
	mu        sync.Mutex
	calls     []string
	videoPath string
	srtPath   string
	callback  func(RecorderStatus)
}

func (r *fakeRecorder) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *fakeRecorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *fakeRecorder) Setup(context.Context) error    { r.record("setup"); return nil }
func (r *fakeRecorder) Teardown(context.Context) error { r.record("teardown"); return nil }
func (r *fakeRecorder) Start(context.Context) error    { r.record("start"); return nil }
func (r *fakeRecorder) Pause(context.Context) error    { r.record("pause"); return nil }
func (r *fakeRecorder) Resume(context.Context) error   { r.record("resume"); return nil }
func (r *fakeRecorder) Cancel(context.Context) error   { r.record("cancel"); return nil }

func (r *fakeRecorder) Stop(context.Context) (string, string, error) {
	r.record("stop")
	return r.videoPath, r.srtPath, nil
}

func (r *fakeRecorder) ListVideoDevices(context.Context) ([]string, error) { return nil, nil }

func (r *fakeRecorder) SetStatusCallback(fn func(RecorderStatus)) { r.callback = fn }

// fakeSaver captures the persisted asset.
type fakeSaver struct {
	mu    sync.Mutex
	saved []models.VideoAsset
}

func (s *fakeSaver) SaveRecording(_ context.Context, videoPath, subtitlePath string, _ *frame.Frame, meta models.RecordingMetadata) (models.VideoAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	asset := models.VideoAsset{VideoPath: videoPath, SubtitlePath: subtitlePath, Metadata: &meta}
	s.saved = append(s.saved, asset)
	return asset, nil
}

func (s *fakeSaver) Saved() []models.VideoAsset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.VideoAsset(nil), s.saved...)
}

// fakeRecognizer returns canned slot results per call.
type fakeRecognizer struct {
	mu      sync.Mutex
	results [][analyzer.WeaponSlots]analyzer.SlotResult
	calls   int
	reports int
}

func (r *fakeRecognizer) Recognize(_ context.Context, _ *frame.Frame, saveReport bool) ([analyzer.WeaponSlots]analyzer.SlotResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if saveReport {
		r.reports++
	}
	i := min(r.calls, len(r.results)-1)
	r.calls++
	return r.results[i], nil
}

func newTestFrame(t *testing.T) *frame.Frame {
	t.Helper()
	f, err := frame.New(make([]byte, 16*9*3), 16, 9)
	require.NoError(t, err)
	return f
}

func slotsWith(labels [analyzer.WeaponSlots]string, score float64) [analyzer.WeaponSlots]analyzer.SlotResult {
	var out [analyzer.WeaponSlots]analyzer.SlotResult
	for i, l := range labels {
		out[i] = analyzer.SlotResult{Label: l, Score: score}
	}
	return out
}
