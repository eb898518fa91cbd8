package uploader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/splat-replay/splat-replay/internal/bus"
	"github.com/splat-replay/splat-replay/internal/config"
	"github.com/splat-replay/splat-replay/internal/models"
	"github.com/splat-replay/splat-replay/internal/service/progress"
	"github.com/splat-replay/splat-replay/internal/storage"
)

// AutoUploader publishes every edited video in order and removes the local
// copy after a successful publish.
type AutoUploader struct {
	cfg       config.UploadConfig
	repo      *storage.Repository
	publisher Publisher
	events    *bus.EventBus
	progress  *progress.Reporter
	logger    *slog.Logger
	cancelled atomic.Bool
}

// NewAutoUploader wires the upload pipeline.
func NewAutoUploader(cfg config.UploadConfig, repo *storage.Repository, publisher Publisher, events *bus.EventBus, reporter *progress.Reporter, logger *slog.Logger) *AutoUploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &AutoUploader{
		cfg:       cfg,
		repo:      repo,
		publisher: publisher,
		events:    events,
		progress:  reporter,
		logger:    logger.With(slog.String("component", "auto_uploader")),
	}
}

// Cancel requests a cooperative stop, honored between items. The flag is
// sticky: it survives Run so a cancel issued before the batch starts still
// takes effect, and the owner clears it with Reset before a fresh run.
func (u *AutoUploader) Cancel() { u.cancelled.Store(true) }

// Reset clears a previous cancellation ahead of a fresh run.
func (u *AutoUploader) Reset() { u.cancelled.Store(false) }

// Run uploads all edited videos and emits process.edit_upload_completed once
// the batch finishes. Trigger names what started the run (auto, manual,
// schedule).
func (u *AutoUploader) Run(ctx context.Context, trigger string) (int, error) {
	edited, err := u.repo.ListEdited()
	if err != nil {
		u.publishCompleted(false, err.Error(), trigger)
		return 0, err
	}
	if len(edited) == 0 {
		u.publishCompleted(true, "no videos to upload", trigger)
		return 0, nil
	}

	taskID := u.progress.StartTask("auto_upload", "uploading videos")
	u.progress.UpdateTotal(taskID, len(edited))
	items := make([]string, len(edited))
	for i, a := range edited {
		items[i] = a.Stem()
	}
	u.progress.InitItems(taskID, items)

	uploaded := 0
	var runErr error
	for _, asset := range edited {
		if u.cancelled.Load() || ctx.Err() != nil {
			break
		}
		if err := u.uploadOne(ctx, taskID, asset); err != nil {
			u.progress.ItemFinish(taskID, asset.Stem(), false)
			u.logger.Error("upload failed",
				slog.String("stem", asset.Stem()), slog.Any("error", err))
			runErr = errors.Join(runErr, fmt.Errorf("%s: %w", asset.Stem(), err))
			u.progress.Advance(taskID, 1)
			// Authentication failures will hit every item; stop early.
			if models.KindOf(err) == models.KindAuthentication {
				break
			}
			continue
		}
		u.progress.ItemFinish(taskID, asset.Stem(), true)
		u.progress.Advance(taskID, 1)
		uploaded++
	}

	message := fmt.Sprintf("%d of %d videos uploaded", uploaded, len(edited))
	success := runErr == nil
	if u.cancelled.Load() {
		message = "cancelled: " + message
		success = false
	}
	u.progress.Finish(taskID, success, message)
	u.publishCompleted(success, message, trigger)
	return uploaded, runErr
}

func (u *AutoUploader) uploadOne(ctx context.Context, taskID string, asset models.VideoAsset) error {
	stem := asset.Stem()

	u.progress.ItemStage(taskID, stem, "uploading video")
	req := u.buildRequest(asset)
	videoID, err := u.publisher.Upload(ctx, req)
	if err != nil {
		return err
	}

	if asset.HasSubtitle() {
		u.progress.ItemStage(taskID, stem, "uploading caption")
		srt, err := u.repo.GetSubtitle(storage.KindEdited, asset.VideoPath)
		if err == nil && srt != "" {
			if err := u.publisher.AddCaption(ctx, videoID, u.cfg.CaptionLanguage, u.cfg.CaptionName, []byte(srt)); err != nil {
				u.logger.Warn("caption upload failed",
					slog.String("stem", stem), slog.Any("error", err))
			}
		}
	}

	if asset.HasThumbnail() {
		u.progress.ItemStage(taskID, stem, "uploading thumbnail")
		png, err := u.repo.GetThumbnail(storage.KindEdited, asset.VideoPath)
		if err == nil {
			if err := u.publisher.SetThumbnail(ctx, videoID, png); err != nil {
				u.logger.Warn("thumbnail upload failed",
					slog.String("stem", stem), slog.Any("error", err))
			}
		}
	}

	if u.cfg.PlaylistID != "" {
		u.progress.ItemStage(taskID, stem, "adding to playlist")
		if err := u.publisher.AddToPlaylist(ctx, videoID, u.cfg.PlaylistID); err != nil {
			u.logger.Warn("playlist insert failed",
				slog.String("stem", stem), slog.Any("error", err))
		}
	}

	u.progress.ItemStage(taskID, stem, "removing local copy")
	if err := u.repo.Delete(storage.KindEdited, asset.VideoPath); err != nil {
		return fmt.Errorf("removing local copy: %w", err)
	}

	u.logger.Info("video published",
		slog.String("stem", stem), slog.String("video_id", videoID))
	return nil
}

// buildRequest reads the finalized title and description from the sidecar,
// falling back to the stem when absent.
func (u *AutoUploader) buildRequest(asset models.VideoAsset) UploadRequest {
	req := UploadRequest{
		Path:    asset.VideoPath,
		Title:   asset.Stem(),
		Tags:    u.cfg.Tags,
		Privacy: u.cfg.Privacy,
	}
	sidecar, err := u.repo.GetMetadataMap(storage.KindEdited, asset.VideoPath)
	if err != nil {
		return req
	}
	if title := sidecar["title"]; title != "" {
		req.Title = title
	}
	req.Description = sidecar["description"]
	return req
}

func (u *AutoUploader) publishCompleted(success bool, message, trigger string) {
	u.events.Publish(bus.NewEvent(bus.EventProcessEditUploadCompleted, map[string]any{
		"success": success,
		"message": message,
		"trigger": trigger,
	}))
}
