package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splat-replay/splat-replay/internal/config"
	"github.com/splat-replay/splat-replay/internal/database"
	"github.com/splat-replay/splat-replay/internal/models"
)

func testRepo(t *testing.T) ProcessJobRepository {
	t.Helper()
	db, err := database.New(config.DatabaseConfig{
		DSN:      filepath.Join(t.TempDir(), "jobs.db"),
		LogLevel: "silent",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewProcessJobRepository(db.DB)
}

func TestProcessJobLifecycle(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	job := &models.ProcessJob{Trigger: models.TriggerManual}
	job.MarkRunning()
	require.NoError(t, repo.Create(ctx, job))
	assert.False(t, job.ID.IsZero())

	running, err := repo.GetRunning(ctx)
	require.NoError(t, err)
	require.Len(t, running, 1)

	job.MarkCompleted(2, 2)
	require.NoError(t, repo.Update(ctx, job))

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.ProcessJobCompleted, got.Status)
	assert.Equal(t, 2, got.EditedCount)
	assert.Equal(t, 2, got.UploadedCount)
	assert.True(t, got.IsTerminal())

	running, err = repo.GetRunning(ctx)
	require.NoError(t, err)
	assert.Empty(t, running)
}

func TestProcessJobGetByIDMissing(t *testing.T) {
	repo := testRepo(t)

	got, err := repo.GetByID(context.Background(), models.NewULID())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestProcessJobGetRecentOrdersNewestFirst(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	for _, trigger := range []models.ProcessTrigger{models.TriggerManual, models.TriggerAuto, models.TriggerSchedule} {
		job := &models.ProcessJob{Trigger: trigger}
		job.MarkRunning()
		job.MarkCompleted(0, 0)
		require.NoError(t, repo.Create(ctx, job))
		time.Sleep(5 * time.Millisecond)
	}

	jobs, err := repo.GetRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, models.TriggerSchedule, jobs[0].Trigger)
	assert.Equal(t, models.TriggerAuto, jobs[1].Trigger)
}

func TestProcessJobPruneKeepsRunning(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	old := &models.ProcessJob{Trigger: models.TriggerAuto}
	old.MarkRunning()
	old.MarkFailed(assert.AnError)
	require.NoError(t, repo.Create(ctx, old))

	active := &models.ProcessJob{Trigger: models.TriggerManual}
	active.MarkRunning()
	require.NoError(t, repo.Create(ctx, active))

	pruned, err := repo.PruneOlderThan(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	remaining, err := repo.GetRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, models.ProcessJobRunning, remaining[0].Status)
}
