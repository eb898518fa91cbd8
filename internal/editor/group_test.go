package editor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splat-replay/splat-replay/internal/models"
)

func battleAsset(t *testing.T, started time.Time, match models.Match, rule models.Rule) models.VideoAsset {
	t.Helper()
	meta := models.NewMetadata().
		WithStartedAt(started).
		WithBattleResult(models.BattleResult{Match: match, Rule: rule, Stage: "scorch gorge"})
	return models.VideoAsset{
		VideoPath: "/data/recorded/" + meta.Stem() + ".mkv",
		Metadata:  &meta,
	}
}

func TestGroupRecordingsByModeMatchRuleDate(t *testing.T) {
	day1 := time.Date(2026, 8, 24, 20, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 25, 20, 0, 0, 0, time.UTC)

	assets := []models.VideoAsset{
		battleAsset(t, day1.Add(time.Hour), "x", "area"),
		battleAsset(t, day1, "x", "area"),
		battleAsset(t, day1, "x", "yagura"),
		battleAsset(t, day2, "x", "area"),
	}

	groups := GroupRecordings(assets, 10)
	require.Len(t, groups, 3)

	// Ordered by first recording, members ordered by start time.
	assert.Equal(t, "area", groups[0].Key.Rule)
	require.Len(t, groups[0].Assets, 2)
	assert.True(t, startedAt(groups[0].Assets[0]).Before(startedAt(groups[0].Assets[1])))
	assert.Equal(t, "yagura", groups[1].Key.Rule)
	assert.Equal(t, "2026-08-25", groups[2].Key.Date)
}

func TestGroupRecordingsSizeLimitSplits(t *testing.T) {
	day := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	var assets []models.VideoAsset
	for i := 0; i < 5; i++ {
		assets = append(assets, battleAsset(t, day.Add(time.Duration(i)*time.Minute), "x", "area"))
	}

	groups := GroupRecordings(assets, 2)
	require.Len(t, groups, 3)
	assert.Len(t, groups[0].Assets, 2)
	assert.Len(t, groups[1].Assets, 2)
	assert.Len(t, groups[2].Assets, 1)
}

func TestGroupRecordingsNilMetadata(t *testing.T) {
	groups := GroupRecordings([]models.VideoAsset{{VideoPath: "/data/recorded/x.mkv"}}, 10)
	require.Len(t, groups, 1)
	assert.Equal(t, models.ModeBattle, groups[0].Key.GameMode)
}

func TestGroupLabelAndStem(t *testing.T) {
	day := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	groups := GroupRecordings([]models.VideoAsset{battleAsset(t, day, "x", "area")}, 10)
	require.Len(t, groups, 1)
	assert.Equal(t, "2026-08-25 battle x area", groups[0].Label())
	assert.Equal(t, groups[0].Assets[0].Stem(), groups[0].Stem())
}
