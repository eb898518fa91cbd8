// Package editor turns batches of raw recordings into publish-ready videos:
// grouped concatenation, subtitle merging, volume adjustment, thumbnail
// composition, and metadata embedding.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/renameio/v2"

	"github.com/splat-replay/splat-replay/internal/config"
	"github.com/splat-replay/splat-replay/internal/models"
	"github.com/splat-replay/splat-replay/internal/service/progress"
	"github.com/splat-replay/splat-replay/internal/storage"
	"github.com/splat-replay/splat-replay/internal/subtitle"
)

// MediaEditor is the ffmpeg-backed operation set the auto-editor composes.
type MediaEditor interface {
	Concat(ctx context.Context, inputs []string, output string) error
	ChangeVolume(ctx context.Context, input, output string, multiplier float64) error
	Embed(ctx context.Context, input, output, subtitlePath, thumbnailPath string, meta map[string]string) error
	VideoLength(ctx context.Context, path string) (time.Duration, error)
}

// AutoEditor runs the edit pipeline over all stored recordings as a single
// auto_edit task with one item per group.
type AutoEditor struct {
	cfg       config.EditorConfig
	repo      *storage.Repository
	media     MediaEditor
	progress  *progress.Reporter
	logger    *slog.Logger
	cancelled atomic.Bool
}

// NewAutoEditor wires the edit pipeline.
func NewAutoEditor(cfg config.EditorConfig, repo *storage.Repository, media MediaEditor, reporter *progress.Reporter, logger *slog.Logger) *AutoEditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &AutoEditor{
		cfg:      cfg,
		repo:     repo,
		media:    media,
		progress: reporter,
		logger:   logger.With(slog.String("component", "auto_editor")),
	}
}

// Cancel requests a cooperative stop. The flag is consulted between groups
// and between steps; an in-flight external call is never aborted. The flag is
// sticky across Run so a cancel issued before the batch starts still takes
// effect; the owner clears it with Reset before a fresh run.
func (e *AutoEditor) Cancel() { e.cancelled.Store(true) }

// Reset clears a previous cancellation ahead of a fresh run.
func (e *AutoEditor) Reset() { e.cancelled.Store(false) }

// errCancelled aborts the current group cleanly mid-pipeline.
var errCancelled = errors.New("edit cancelled")

// Run edits every stored recording and returns how many edited videos were
// produced. A cancellation is a clean stop with no error.
func (e *AutoEditor) Run(ctx context.Context) (int, error) {
	recordings, err := e.repo.ListRecordings()
	if err != nil {
		return 0, err
	}
	if len(recordings) == 0 {
		e.logger.Info("no recordings to edit")
		return 0, nil
	}

	groups := GroupRecordings(recordings, e.cfg.GroupSizeLimit)
	taskID := e.progress.StartTask("auto_edit", "editing recordings")
	e.progress.UpdateTotal(taskID, len(groups))
	items := make([]string, len(groups))
	for i, g := range groups {
		items[i] = g.Label()
	}
	e.progress.InitItems(taskID, items)

	produced := 0
	var runErr error
	for _, group := range groups {
		if e.cancelled.Load() || ctx.Err() != nil {
			break
		}
		if err := e.editGroup(ctx, taskID, group); errors.Is(err, errCancelled) {
			break
		} else if err != nil {
			e.progress.ItemFinish(taskID, group.Label(), false)
			e.logger.Error("editing group failed",
				slog.String("group", group.Label()), slog.Any("error", err))
			runErr = errors.Join(runErr, fmt.Errorf("%s: %w", group.Label(), err))
			e.progress.Advance(taskID, 1)
			continue
		}
		e.progress.ItemFinish(taskID, group.Label(), true)
		e.progress.Advance(taskID, 1)
		produced++
	}

	message := fmt.Sprintf("%d of %d groups edited", produced, len(groups))
	if e.cancelled.Load() {
		message = "cancelled: " + message
	}
	e.progress.Finish(taskID, runErr == nil, message)
	return produced, runErr
}

func (e *AutoEditor) editGroup(ctx context.Context, taskID string, group Group) error {
	item := group.Label()
	stem := group.Stem()
	tempDir, err := os.MkdirTemp(e.repo.TempDir(), "edit_")
	if err != nil {
		return fmt.Errorf("creating edit workspace: %w", err)
	}
	defer os.RemoveAll(tempDir)

	// Concatenate.
	e.progress.ItemStage(taskID, item, "concatenating")
	ext := filepath.Ext(group.Assets[0].VideoPath)
	concatPath := filepath.Join(tempDir, stem+ext)
	inputs := make([]string, len(group.Assets))
	for i, a := range group.Assets {
		inputs[i] = a.VideoPath
	}
	if err := e.media.Concat(ctx, inputs, concatPath); err != nil {
		return fmt.Errorf("concatenating: %w", err)
	}
	if e.cancelled.Load() {
		return errCancelled
	}

	// Clip offsets drive both subtitle alignment and chapter marks.
	offsets, err := e.clipOffsets(ctx, group)
	if err != nil {
		return err
	}

	// Merge subtitles.
	e.progress.ItemStage(taskID, item, "merging subtitles")
	subtitlePath, err := e.mergeSubtitles(tempDir, stem, group, offsets)
	if err != nil {
		return err
	}
	if e.cancelled.Load() {
		return errCancelled
	}

	// Volume.
	videoPath := concatPath
	if e.cfg.VolumeMultiplier != 1.0 {
		e.progress.ItemStage(taskID, item, "adjusting volume")
		adjusted := filepath.Join(tempDir, stem+"_vol"+ext)
		if err := e.media.ChangeVolume(ctx, videoPath, adjusted, e.cfg.VolumeMultiplier); err != nil {
			return fmt.Errorf("adjusting volume: %w", err)
		}
		videoPath = adjusted
	}
	if e.cancelled.Load() {
		return errCancelled
	}

	// Templates.
	data := groupTemplateData(group)
	title, err := renderTemplate("title", e.cfg.TitleTemplate, data)
	if err != nil {
		return err
	}
	description, err := renderTemplate("description", e.cfg.DescTemplate, data)
	if err != nil {
		return err
	}
	chapters, err := renderChapters(e.cfg.ChapterTemplate, group, offsets)
	if err != nil {
		return err
	}
	if chapters != "" {
		description += "\n\n" + chapters
	}

	// Thumbnail.
	e.progress.ItemStage(taskID, item, "composing thumbnail")
	thumbnailPath, err := e.composeThumbnail(tempDir, stem, group, title)
	if err != nil {
		e.logger.Warn("thumbnail composition failed, continuing without",
			slog.String("group", item), slog.Any("error", err))
		thumbnailPath = ""
	}
	if e.cancelled.Load() {
		return errCancelled
	}

	// Embed.
	e.progress.ItemStage(taskID, item, "embedding")
	embeddedPath := filepath.Join(tempDir, stem+"_final"+ext)
	embedMeta := map[string]string{"title": title, "comment": description}
	if err := e.media.Embed(ctx, videoPath, embeddedPath, subtitlePath, thumbnailPath, embedMeta); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}

	// Store and retire the originals.
	e.progress.ItemStage(taskID, item, "saving")
	meta := groupMetadata(group)
	asset, err := e.repo.SaveEdited(ctx, embeddedPath, subtitlePath, thumbnailPath, meta)
	if err != nil {
		return err
	}
	sidecar := meta.ToMap()
	sidecar["title"] = title
	sidecar["description"] = description
	if err := e.repo.SaveMetadataMap(storage.KindEdited, asset.VideoPath, sidecar); err != nil {
		return err
	}
	for _, a := range group.Assets {
		if err := e.repo.Delete(storage.KindRecorded, a.VideoPath); err != nil {
			e.logger.Warn("removing edited-out recording failed",
				slog.String("video", a.VideoPath), slog.Any("error", err))
		}
	}
	e.logger.Info("group edited",
		slog.String("group", item), slog.String("video", asset.VideoPath))
	return nil
}

// clipOffsets probes each clip and returns its start offset within the
// concatenated video.
func (e *AutoEditor) clipOffsets(ctx context.Context, group Group) ([]time.Duration, error) {
	offsets := make([]time.Duration, len(group.Assets))
	var total time.Duration
	for i, a := range group.Assets {
		offsets[i] = total
		length, err := e.media.VideoLength(ctx, a.VideoPath)
		if err != nil {
			return nil, fmt.Errorf("probing %s: %w", a.VideoPath, err)
		}
		total += length
	}
	return offsets, nil
}

// mergeSubtitles joins the clips' subtitle sidecars into one track aligned
// to the concatenated timeline. No sidecars means no subtitle file.
func (e *AutoEditor) mergeSubtitles(tempDir, stem string, group Group, offsets []time.Duration) (string, error) {
	tracks := make([]subtitle.Track, len(group.Assets))
	found := false
	for i, a := range group.Assets {
		if !a.HasSubtitle() {
			continue
		}
		content, err := e.repo.GetSubtitle(storage.KindRecorded, a.VideoPath)
		if err != nil {
			continue
		}
		track, err := subtitle.Parse(content)
		if err != nil {
			e.logger.Warn("skipping unparseable subtitle",
				slog.String("video", a.VideoPath), slog.Any("error", err))
			continue
		}
		tracks[i] = track
		found = true
	}
	if !found {
		return "", nil
	}
	merged, err := subtitle.Merge(tracks, offsets)
	if err != nil {
		return "", err
	}
	path := filepath.Join(tempDir, stem+".srt")
	if err := renameio.WriteFile(path, []byte(merged.Format()), 0o644); err != nil {
		return "", fmt.Errorf("writing merged subtitle: %w", err)
	}
	return path, nil
}

func (e *AutoEditor) composeThumbnail(tempDir, stem string, group Group, title string) (string, error) {
	var candidates []string
	for _, a := range group.Assets {
		if a.HasThumbnail() {
			candidates = append(candidates, a.ThumbnailPath)
		}
	}
	if len(candidates) == 0 {
		return "", nil
	}
	overlay := ThumbnailOverlay{Title: title}
	if meta := group.Assets[0].Metadata; meta != nil {
		overlay.Allies = meta.Allies
		overlay.Enemies = meta.Enemies
	}
	data, err := ComposeThumbnail(candidates, overlay, e.cfg.FontPath)
	if err != nil {
		return "", err
	}
	path := filepath.Join(tempDir, stem+".png")
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing thumbnail: %w", err)
	}
	return path, nil
}

// groupMetadata is the edited asset's metadata record: the first clip's
// record, which carries the shared mode, match, rule, and date.
func groupMetadata(group Group) models.RecordingMetadata {
	if len(group.Assets) == 0 || group.Assets[0].Metadata == nil {
		return models.NewMetadata()
	}
	return *group.Assets[0].Metadata
}
