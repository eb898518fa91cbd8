package editor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splat-replay/splat-replay/internal/bus"
	"github.com/splat-replay/splat-replay/internal/config"
	"github.com/splat-replay/splat-replay/internal/frame"
	"github.com/splat-replay/splat-replay/internal/models"
	"github.com/splat-replay/splat-replay/internal/service/progress"
	"github.com/splat-replay/splat-replay/internal/storage"
)

// fakeMedia satisfies MediaEditor by creating output files instead of
// invoking ffmpeg.
type fakeMedia struct {
	concats   [][]string
	embedMeta []map[string]string
	onConcat  func()
}

func (f *fakeMedia) Concat(_ context.Context, inputs []string, output string) error {
	f.concats = append(f.concats, inputs)
	if f.onConcat != nil {
		f.onConcat()
	}
	return os.WriteFile(output, []byte("concat"), 0o644)
}

func (f *fakeMedia) ChangeVolume(_ context.Context, input, output string, _ float64) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	return os.WriteFile(output, data, 0o644)
}

func (f *fakeMedia) Embed(_ context.Context, input, output, _, _ string, meta map[string]string) error {
	f.embedMeta = append(f.embedMeta, meta)
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	return os.WriteFile(output, data, 0o644)
}

func (f *fakeMedia) VideoLength(context.Context, string) (time.Duration, error) {
	return 3 * time.Minute, nil
}

func editorConfig() config.EditorConfig {
	return config.EditorConfig{
		VolumeMultiplier: 1.5,
		GroupSizeLimit:   10,
		TitleTemplate:    "{{.Date}} {{.Match}} {{.Rule}}",
		DescTemplate:     "Recorded {{.Date}}. {{.Count}} battles.",
		ChapterTemplate:  "{{.Judgement}} {{.Stage}}",
	}
}

func seedRecording(t *testing.T, repo *storage.Repository, started time.Time, stage string) {
	t.Helper()
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "raw.mkv")
	require.NoError(t, os.WriteFile(videoPath, []byte("video"), 0o644))
	subtitlePath := filepath.Join(dir, "raw.srt")
	require.NoError(t, os.WriteFile(subtitlePath,
		[]byte("1\n00:00:01,000 --> 00:00:02,000\nnice\n"), 0o644))

	shot, err := frame.New(make([]byte, 16*9*3), 16, 9)
	require.NoError(t, err)

	meta := models.NewMetadata().
		WithStartedAt(started).
		WithJudgement(models.JudgementWin).
		WithBattleResult(models.BattleResult{Match: models.MatchX, Rule: models.RuleArea, Stage: stage})
	_, err = repo.SaveRecording(context.Background(), videoPath, subtitlePath, shot, meta)
	require.NoError(t, err)
}

func newAutoEditor(t *testing.T) (*AutoEditor, *storage.Repository, *fakeMedia) {
	t.Helper()
	events := bus.NewEventBus(64)
	t.Cleanup(events.Close)
	repo, err := storage.NewRepository(config.StorageConfig{
		BaseDir: t.TempDir(), TempDir: "temp",
	}, events, nil)
	require.NoError(t, err)
	media := &fakeMedia{}
	reporter := progress.NewReporter(events, nil)
	return NewAutoEditor(editorConfig(), repo, media, reporter, nil), repo, media
}

func TestAutoEditorRun(t *testing.T) {
	editor, repo, media := newAutoEditor(t)
	day := time.Date(2026, 8, 25, 21, 0, 0, 0, time.UTC)
	seedRecording(t, repo, day, "scorch gorge")
	seedRecording(t, repo, day.Add(10*time.Minute), "eeltail alley")

	produced, err := editor.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, produced)

	// Both clips went into one concat in start order.
	require.Len(t, media.concats, 1)
	assert.Len(t, media.concats[0], 2)

	// Title and chapters embedded.
	require.Len(t, media.embedMeta, 1)
	assert.Equal(t, "2026-08-25 x area", media.embedMeta[0]["title"])
	assert.Contains(t, media.embedMeta[0]["comment"], "0:00 win scorch gorge")
	assert.Contains(t, media.embedMeta[0]["comment"], "3:00 win eeltail alley")

	// The edited asset exists with sidecars; the originals are gone.
	edited, err := repo.ListEdited()
	require.NoError(t, err)
	require.Len(t, edited, 1)
	assert.True(t, edited[0].HasSubtitle())
	assert.True(t, edited[0].HasThumbnail())

	sidecar, err := repo.GetMetadataMap(storage.KindEdited, edited[0].VideoPath)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-25 x area", sidecar["title"])
	assert.Contains(t, sidecar["description"], "2 battles")

	recordings, err := repo.ListRecordings()
	require.NoError(t, err)
	assert.Empty(t, recordings)
}

func TestAutoEditorRunEmpty(t *testing.T) {
	editor, _, media := newAutoEditor(t)
	produced, err := editor.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, produced)
	assert.Empty(t, media.concats)
}

func TestAutoEditorCancelBetweenSteps(t *testing.T) {
	editor, repo, media := newAutoEditor(t)
	day := time.Date(2026, 8, 25, 21, 0, 0, 0, time.UTC)
	seedRecording(t, repo, day, "scorch gorge")
	// A second group on another day.
	seedRecording(t, repo, day.Add(24*time.Hour), "eeltail alley")
	media.onConcat = editor.Cancel

	produced, err := editor.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, produced)
	assert.Len(t, media.concats, 1)

	// Nothing was published or deleted.
	edited, err := repo.ListEdited()
	require.NoError(t, err)
	assert.Empty(t, edited)
	recordings, err := repo.ListRecordings()
	require.NoError(t, err)
	assert.Len(t, recordings, 2)
}
