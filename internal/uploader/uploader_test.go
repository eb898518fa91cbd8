package uploader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splat-replay/splat-replay/internal/bus"
	"github.com/splat-replay/splat-replay/internal/config"
	"github.com/splat-replay/splat-replay/internal/models"
	"github.com/splat-replay/splat-replay/internal/service/progress"
	"github.com/splat-replay/splat-replay/internal/storage"
)

type fakePublisher struct {
	uploads    []UploadRequest
	captions   []string
	thumbnails []string
	playlists  []string
	uploadErr  error
	onUpload   func()
}

func (f *fakePublisher) Upload(_ context.Context, req UploadRequest) (string, error) {
	if f.onUpload != nil {
		f.onUpload()
	}
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploads = append(f.uploads, req)
	return "vid-" + req.Title, nil
}

func (f *fakePublisher) AddCaption(_ context.Context, videoID, _, _ string, _ []byte) error {
	f.captions = append(f.captions, videoID)
	return nil
}

func (f *fakePublisher) SetThumbnail(_ context.Context, videoID string, _ []byte) error {
	f.thumbnails = append(f.thumbnails, videoID)
	return nil
}

func (f *fakePublisher) AddToPlaylist(_ context.Context, videoID, _ string) error {
	f.playlists = append(f.playlists, videoID)
	return nil
}

func uploadConfig() config.UploadConfig {
	return config.UploadConfig{
		Privacy:         "private",
		Tags:            []string{"splatoon"},
		PlaylistID:      "pl-1",
		CaptionLanguage: "en",
		CaptionName:     "game audio",
	}
}

func seedEdited(t *testing.T, repo *storage.Repository, title string) models.VideoAsset {
	t.Helper()
	dir := t.TempDir()
	stem := strings.ReplaceAll(title, " ", "_")
	video := filepath.Join(dir, stem+".mkv")
	require.NoError(t, os.WriteFile(video, []byte("video"), 0o644))
	srt := filepath.Join(dir, stem+".srt")
	require.NoError(t, os.WriteFile(srt,
		[]byte("1\n00:00:01,000 --> 00:00:02,000\nnice\n"), 0o644))
	thumb := filepath.Join(dir, stem+".png")
	require.NoError(t, os.WriteFile(thumb, []byte("png"), 0o644))

	started := time.Date(2026, 8, 25, 21, 0, 0, 0, time.UTC)
	meta := models.NewMetadata().WithStartedAt(started)
	asset, err := repo.SaveEdited(context.Background(), video, srt, thumb, meta)
	require.NoError(t, err)

	sidecar := meta.ToMap()
	sidecar["title"] = title
	sidecar["description"] = "two battles"
	require.NoError(t, repo.SaveMetadataMap(storage.KindEdited, asset.VideoPath, sidecar))
	return asset
}

func newUploader(t *testing.T) (*AutoUploader, *storage.Repository, *fakePublisher, *bus.EventBus) {
	t.Helper()
	events := bus.NewEventBus(64)
	t.Cleanup(events.Close)
	repo, err := storage.NewRepository(config.StorageConfig{BaseDir: t.TempDir()}, events, nil)
	require.NoError(t, err)
	publisher := &fakePublisher{}
	reporter := progress.NewReporter(events, nil)
	return NewAutoUploader(uploadConfig(), repo, publisher, events, reporter, nil), repo, publisher, events
}

func requireCompleted(t *testing.T, sub *bus.Subscription, success bool, trigger string) bus.Event {
	t.Helper()
	select {
	case e := <-sub.C():
		assert.Equal(t, success, e.Payload["success"])
		assert.Equal(t, trigger, e.Payload["trigger"])
		return e
	case <-time.After(time.Second):
		t.Fatal("no edit_upload_completed event")
		return bus.Event{}
	}
}

func TestAutoUploaderRun(t *testing.T) {
	uploader, repo, publisher, events := newUploader(t)
	sub := events.Subscribe(bus.EventProcessEditUploadCompleted)
	defer sub.Close()
	seedEdited(t, repo, "x area session")

	uploaded, err := uploader.Run(context.Background(), "manual")
	require.NoError(t, err)
	assert.Equal(t, 1, uploaded)

	require.Len(t, publisher.uploads, 1)
	assert.Equal(t, "x area session", publisher.uploads[0].Title)
	assert.Equal(t, "two battles", publisher.uploads[0].Description)
	assert.Equal(t, "private", publisher.uploads[0].Privacy)
	assert.Equal(t, []string{"vid-x area session"}, publisher.captions)
	assert.Equal(t, []string{"vid-x area session"}, publisher.thumbnails)
	assert.Equal(t, []string{"vid-x area session"}, publisher.playlists)

	// Local copy removed.
	edited, err := repo.ListEdited()
	require.NoError(t, err)
	assert.Empty(t, edited)

	requireCompleted(t, sub, true, "manual")
}

func TestAutoUploaderRunEmpty(t *testing.T) {
	uploader, _, _, events := newUploader(t)
	sub := events.Subscribe(bus.EventProcessEditUploadCompleted)
	defer sub.Close()

	uploaded, err := uploader.Run(context.Background(), "auto")
	require.NoError(t, err)
	assert.Zero(t, uploaded)
	requireCompleted(t, sub, true, "auto")
}

func TestAutoUploaderUploadFailureKeepsLocalCopy(t *testing.T) {
	uploader, repo, publisher, events := newUploader(t)
	sub := events.Subscribe(bus.EventProcessEditUploadCompleted)
	defer sub.Close()
	seedEdited(t, repo, "session")
	publisher.uploadErr = errors.New("quota exceeded")

	uploaded, err := uploader.Run(context.Background(), "manual")
	require.Error(t, err)
	assert.Zero(t, uploaded)

	edited, err := repo.ListEdited()
	require.NoError(t, err)
	assert.Len(t, edited, 1)
	requireCompleted(t, sub, false, "manual")
}

func TestAutoUploaderAuthFailureStopsBatch(t *testing.T) {
	uploader, repo, publisher, _ := newUploader(t)
	seedEdited(t, repo, "first")
	seedEdited(t, repo, "second")
	calls := 0
	publisher.onUpload = func() { calls++ }
	publisher.uploadErr = models.NewError(models.KindAuthentication, "token expired")

	_, err := uploader.Run(context.Background(), "manual")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestAutoUploaderCancelStickyUntilReset(t *testing.T) {
	uploader, repo, publisher, events := newUploader(t)
	sub := events.Subscribe(bus.EventProcessEditUploadCompleted)
	defer sub.Close()
	seedEdited(t, repo, "session")

	// A cancel issued before the batch starts holds until Reset.
	uploader.Cancel()
	uploaded, err := uploader.Run(context.Background(), "manual")
	require.NoError(t, err)
	assert.Zero(t, uploaded)
	assert.Empty(t, publisher.uploads)
	requireCompleted(t, sub, false, "manual")

	uploader.Reset()
	uploaded, err = uploader.Run(context.Background(), "manual")
	require.NoError(t, err)
	assert.Equal(t, 1, uploaded)
	requireCompleted(t, sub, true, "manual")
}

func TestAutoUploaderCancelBetweenItems(t *testing.T) {
	uploader, repo, publisher, _ := newUploader(t)
	seedEdited(t, repo, "first")
	seedEdited(t, repo, "second")
	publisher.onUpload = uploader.Cancel

	uploaded, err := uploader.Run(context.Background(), "manual")
	require.NoError(t, err)
	assert.Equal(t, 1, uploaded)

	edited, err := repo.ListEdited()
	require.NoError(t, err)
	assert.Len(t, edited, 1)
}
