package transcriber

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
	"github.com/splat-replay/splat-replay/internal/subtitle"
)

type fakeRecognizer struct {
	mu      sync.Mutex
	results chan Result
	started int
	stopped int
}

func (f *fakeRecognizer) Start(context.Context) (<-chan Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	f.results = make(chan Result, 8)
	return f.results, nil
}

func (f *fakeRecognizer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return nil
}

func (f *fakeRecognizer) emit(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results <- Result{Text: text, At: time.Now()}
}

type harness struct {
	svc        *Service
	repo       *storage.Repository
	events     *bus.EventBus
	recognizer *fakeRecognizer
	videoPath  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	events := bus.NewEventBus(64)
	t.Cleanup(events.Close)
	repo, err := storage.NewRepository(config.StorageConfig{BaseDir: t.TempDir()}, events, nil)
	require.NoError(t, err)

	// A stored recording the subtitle attaches to.
	raw := filepath.Join(t.TempDir(), "raw.mkv")
	require.NoError(t, os.WriteFile(raw, []byte("video"), 0o644))
	started := time.Date(2026, 8, 25, 21, 0, 0, 0, time.UTC)
	asset, err := repo.SaveRecording(context.Background(), raw, "", nil,
		models.NewMetadata().WithStartedAt(started))
	require.NoError(t, err)

	recognizer := &fakeRecognizer{}
	svc := NewService(recognizer, repo, events, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(20 * time.Millisecond)
	return &harness{svc: svc, repo: repo, events: events, recognizer: recognizer, videoPath: asset.VideoPath}
}

func (h *harness) await(t *testing.T, sub *bus.Subscription, eventType string) bus.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-sub.C():
			if e.Type == eventType {
				return e
			}
		case <-deadline:
			t.Fatalf("no %s event", eventType)
		}
	}
}

func TestTranscriberWritesSubtitleOnStop(t *testing.T) {
	h := newHarness(t)
	sub := h.events.Subscribe(bus.EventSpeechListening, bus.EventSpeechRecognized)
	defer sub.Close()

	h.events.Publish(bus.NewEvent(bus.EventRecordingStarted, nil))
	e := h.await(t, sub, bus.EventSpeechListening)
	assert.Equal(t, true, e.Payload["active"])

	h.recognizer.emit("nice shot")
	h.await(t, sub, bus.EventSpeechRecognized)

	h.events.Publish(bus.NewEvent(bus.EventRecordingStopped, map[string]any{
		"video": h.videoPath,
	}))
	e = h.await(t, sub, bus.EventSpeechListening)
	assert.Equal(t, false, e.Payload["active"])

	content, err := h.repo.GetSubtitle(storage.KindRecorded, h.videoPath)
	require.NoError(t, err)
	track, err := subtitle.Parse(content)
	require.NoError(t, err)
	require.Len(t, track.Cues, 1)
	assert.Equal(t, "nice shot", track.Cues[0].Text)
}

func TestTranscriberIgnoresSpeechWhilePaused(t *testing.T) {
	h := newHarness(t)
	sub := h.events.Subscribe(bus.EventSpeechListening, bus.EventSpeechRecognized)
	defer sub.Close()

	h.events.Publish(bus.NewEvent(bus.EventRecordingStarted, nil))
	h.await(t, sub, bus.EventSpeechListening)

	h.events.Publish(bus.NewEvent(bus.EventRecordingPaused, nil))
	time.Sleep(20 * time.Millisecond)
	h.recognizer.emit("finish screen chatter")

	h.events.Publish(bus.NewEvent(bus.EventRecordingResumed, nil))
	time.Sleep(20 * time.Millisecond)
	h.recognizer.emit("back in the game")
	h.await(t, sub, bus.EventSpeechRecognized)

	h.events.Publish(bus.NewEvent(bus.EventRecordingStopped, map[string]any{
		"video": h.videoPath,
	}))
	h.await(t, sub, bus.EventSpeechListening)

	content, err := h.repo.GetSubtitle(storage.KindRecorded, h.videoPath)
	require.NoError(t, err)
	track, err := subtitle.Parse(content)
	require.NoError(t, err)
	require.Len(t, track.Cues, 1)
	assert.Equal(t, "back in the game", track.Cues[0].Text)
}

func TestTranscriberDiscardsOnCancel(t *testing.T) {
	h := newHarness(t)
	sub := h.events.Subscribe(bus.EventSpeechListening, bus.EventSpeechRecognized)
	defer sub.Close()

	h.events.Publish(bus.NewEvent(bus.EventRecordingStarted, nil))
	h.await(t, sub, bus.EventSpeechListening)
	h.recognizer.emit("mistake")
	h.await(t, sub, bus.EventSpeechRecognized)

	h.events.Publish(bus.NewEvent(bus.EventRecordingCancelled, nil))
	h.await(t, sub, bus.EventSpeechListening)

	_, err := h.repo.GetSubtitle(storage.KindRecorded, h.videoPath)
	assert.ErrorIs(t, err, models.ErrAssetNotFound)
}
