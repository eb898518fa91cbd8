package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splat-replay/splat-replay/internal/bus"
	"github.com/splat-replay/splat-replay/internal/config"
	"github.com/splat-replay/splat-replay/internal/models"
	"github.com/splat-replay/splat-replay/internal/storage"
)

type fakeStarter struct {
	mu       sync.Mutex
	calls    int
	triggers []string
	err      error
}

func (f *fakeStarter) StartEditUpload(_ context.Context, trigger string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.triggers = append(f.triggers, trigger)
	return f.err
}

func (f *fakeStarter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testScheduler(t *testing.T, schedule string, starter Starter) (*Scheduler, *storage.Repository) {
	t.Helper()
	events := bus.NewEventBus(16)
	repo, err := storage.NewRepository(config.StorageConfig{BaseDir: t.TempDir()}, events, nil)
	require.NoError(t, err)
	return New(schedule, repo, starter, nil), repo
}

func seedRecording(t *testing.T, repo *storage.Repository) {
	t.Helper()
	video := filepath.Join(t.TempDir(), "clip.mkv")
	require.NoError(t, os.WriteFile(video, []byte("video"), 0o644))
	meta := models.NewMetadata().WithStartedAt(time.Date(2026, 8, 25, 20, 0, 0, 0, time.UTC))
	_, err := repo.SaveRecording(t.Context(), video, "", nil, meta)
	require.NoError(t, err)
}

func TestValidateCron(t *testing.T) {
	assert.NoError(t, ValidateCron("30 3 * * *"))
	assert.Error(t, ValidateCron("not a schedule"))
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	s, _ := testScheduler(t, "bogus", &fakeStarter{})
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.KindConfiguration, models.KindOf(err))
}

func TestStartWithoutScheduleIsNoop(t *testing.T) {
	s, _ := testScheduler(t, "", &fakeStarter{})
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}

func TestFireRunsWhenRecordingsExist(t *testing.T) {
	starter := &fakeStarter{}
	s, repo := testScheduler(t, "30 3 * * *", starter)
	seedRecording(t, repo)

	s.fire(context.Background())

	require.Equal(t, 1, starter.callCount())
	assert.Equal(t, []string{"schedule"}, starter.triggers)
}

func TestFireSkipsWhenNothingPending(t *testing.T) {
	starter := &fakeStarter{}
	s, _ := testScheduler(t, "30 3 * * *", starter)

	s.fire(context.Background())

	assert.Zero(t, starter.callCount())
}

func TestFireSwallowsConflict(t *testing.T) {
	starter := &fakeStarter{err: models.NewError(models.KindConflict, "already running")}
	s, repo := testScheduler(t, "30 3 * * *", starter)
	seedRecording(t, repo)

	s.fire(context.Background())

	assert.Equal(t, 1, starter.callCount())
}

func TestStartStopLifecycle(t *testing.T) {
	s, _ := testScheduler(t, "30 3 * * *", &fakeStarter{})
	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()), "second start should fail")
	s.Stop()
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}
