// Package storage implements the on-disk asset repository: recorded and
// edited videos with their stem-shared sidecar files (subtitle, thumbnail,
// metadata JSON). Every mutation is atomic and emits an asset event.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/splat-replay/splat-replay/internal/bus"
	"github.com/splat-replay/splat-replay/internal/config"
	"github.com/splat-replay/splat-replay/internal/frame"
	"github.com/splat-replay/splat-replay/internal/models"
)

// Kind selects one of the two asset directories.
type Kind string

// Asset kinds.
const (
	KindRecorded Kind = "recorded"
	KindEdited   Kind = "edited"
)

// Repository stores video assets under <base>/recorded and <base>/edited.
// Sidecars share the video's stem: .srt subtitle, .png thumbnail, .json
// metadata. Operations on the same stem are serialized.
type Repository struct {
	cfg    config.StorageConfig
	events *bus.EventBus
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRepository creates the asset directories and returns the repository.
func NewRepository(cfg config.StorageConfig, events *bus.EventBus, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, dir := range []string{cfg.RecordedPath(), cfg.EditedPath(), cfg.TempPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating asset dir %s: %w", dir, err)
		}
	}
	return &Repository{
		cfg:    cfg,
		events: events,
		logger: logger.With(slog.String("component", "asset_repository")),
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// RecordedDir returns the recorded asset directory.
func (r *Repository) RecordedDir() string { return r.cfg.RecordedPath() }

// EditedDir returns the edited asset directory.
func (r *Repository) EditedDir() string { return r.cfg.EditedPath() }

// TempDir returns the scratch directory for in-flight edit outputs.
func (r *Repository) TempDir() string { return r.cfg.TempPath() }

func (r *Repository) dir(kind Kind) string {
	if kind == KindEdited {
		return r.cfg.EditedPath()
	}
	return r.cfg.RecordedPath()
}

// lockStem serializes mutations on one asset stem.
func (r *Repository) lockStem(stem string) func() {
	r.mu.Lock()
	l, ok := r.locks[stem]
	if !ok {
		l = &sync.Mutex{}
		r.locks[stem] = l
	}
	r.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// SaveRecording moves a finished recording into recorded/ under the
// metadata-derived stem, writes the sidecars, and emits asset.recorded.saved.
// The screenshot, when present, becomes the thumbnail.
func (r *Repository) SaveRecording(ctx context.Context, videoPath, subtitlePath string, screenshot *frame.Frame, meta models.RecordingMetadata) (models.VideoAsset, error) {
	if err := ctx.Err(); err != nil {
		return models.VideoAsset{}, err
	}
	if err := ensureFreeDisk(r.cfg.BaseDir, r.cfg.MinFreeDisk); err != nil {
		return models.VideoAsset{}, err
	}

	stem := meta.Stem()
	unlock := r.lockStem(stem)
	defer unlock()

	dir := r.cfg.RecordedPath()
	ext := filepath.Ext(videoPath)
	if !videoExtensions[ext] {
		return models.VideoAsset{}, models.NewError(models.KindValidation,
			fmt.Sprintf("unsupported video container %q", ext))
	}

	dstVideo := filepath.Join(dir, stem+ext)
	if err := moveFile(videoPath, dstVideo); err != nil {
		return models.VideoAsset{}, fmt.Errorf("moving video: %w", err)
	}

	asset := models.VideoAsset{VideoPath: dstVideo, Metadata: &meta}

	if subtitlePath != "" {
		if _, err := os.Stat(subtitlePath); err == nil {
			dstSub := filepath.Join(dir, stem+".srt")
			if err := moveFile(subtitlePath, dstSub); err != nil {
				return asset, fmt.Errorf("moving subtitle: %w", err)
			}
			asset.SubtitlePath = dstSub
		}
	}

	if screenshot != nil {
		dstThumb := filepath.Join(dir, stem+".png")
		png, err := screenshot.EncodePNG()
		if err != nil {
			return asset, fmt.Errorf("encoding thumbnail: %w", err)
		}
		if err := writeFileAtomic(dstThumb, png); err != nil {
			return asset, fmt.Errorf("writing thumbnail: %w", err)
		}
		asset.ThumbnailPath = dstThumb
	}

	if err := r.writeMetadata(dir, stem, meta); err != nil {
		return asset, err
	}

	r.publish(bus.EventAssetRecordedSaved, asset)
	r.logger.Info("recording saved", slog.String("stem", stem))
	return asset, nil
}

// SaveEdited moves an edit product and its sidecars into edited/ and emits
// asset.edited.saved. Sidecar paths may be empty.
func (r *Repository) SaveEdited(ctx context.Context, videoPath, subtitlePath, thumbnailPath string, meta models.RecordingMetadata) (models.VideoAsset, error) {
	if err := ctx.Err(); err != nil {
		return models.VideoAsset{}, err
	}
	if err := ensureFreeDisk(r.cfg.BaseDir, r.cfg.MinFreeDisk); err != nil {
		return models.VideoAsset{}, err
	}

	base := filepath.Base(videoPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	unlock := r.lockStem(stem)
	defer unlock()

	dir := r.cfg.EditedPath()
	dstVideo := filepath.Join(dir, base)
	if err := moveFile(videoPath, dstVideo); err != nil {
		return models.VideoAsset{}, fmt.Errorf("moving edited video: %w", err)
	}
	asset := models.VideoAsset{VideoPath: dstVideo, Metadata: &meta}

	if subtitlePath != "" {
		dstSub := filepath.Join(dir, stem+".srt")
		if err := moveFile(subtitlePath, dstSub); err != nil {
			return asset, fmt.Errorf("moving edited subtitle: %w", err)
		}
		asset.SubtitlePath = dstSub
	}
	if thumbnailPath != "" {
		dstThumb := filepath.Join(dir, stem+".png")
		if err := moveFile(thumbnailPath, dstThumb); err != nil {
			return asset, fmt.Errorf("moving edited thumbnail: %w", err)
		}
		asset.ThumbnailPath = dstThumb
	}

	if err := r.writeMetadata(dir, stem, meta); err != nil {
		return asset, err
	}

	r.publish(bus.EventAssetEditedSaved, asset)
	r.logger.Info("edited asset saved", slog.String("stem", stem))
	return asset, nil
}

// Get returns the asset whose video file is at path, or false when absent.
func (r *Repository) Get(kind Kind, videoPath string) (models.VideoAsset, bool, error) {
	if _, err := os.Stat(videoPath); err != nil {
		if os.IsNotExist(err) {
			return models.VideoAsset{}, false, nil
		}
		return models.VideoAsset{}, false, err
	}
	asset, err := r.assemble(videoPath)
	if err != nil {
		return models.VideoAsset{}, false, err
	}
	return asset, true, nil
}

// GetByStem resolves an asset by stem, trying the known video extensions.
func (r *Repository) GetByStem(kind Kind, stem string) (models.VideoAsset, bool, error) {
	dir := r.dir(kind)
	for ext := range videoExtensions {
		asset, ok, err := r.Get(kind, filepath.Join(dir, stem+ext))
		if err != nil || ok {
			return asset, ok, err
		}
	}
	return models.VideoAsset{}, false, nil
}

// List returns every asset of the kind, ordered by stem.
func (r *Repository) List(kind Kind) ([]models.VideoAsset, error) {
	dir := r.dir(kind)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var assets []models.VideoAsset
	for _, entry := range entries {
		if entry.IsDir() || !IsVideoFile(entry.Name()) {
			continue
		}
		asset, err := r.assemble(filepath.Join(dir, entry.Name()))
		if err != nil {
			r.logger.Warn("skipping unreadable asset",
				slog.String("video", entry.Name()),
				slog.String("error", err.Error()))
			continue
		}
		assets = append(assets, asset)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Stem() < assets[j].Stem() })
	return assets, nil
}

// ListRecordings lists recorded assets.
func (r *Repository) ListRecordings() ([]models.VideoAsset, error) { return r.List(KindRecorded) }

// ListEdited lists edited assets.
func (r *Repository) ListEdited() ([]models.VideoAsset, error) { return r.List(KindEdited) }

// Delete removes the video and every sidecar, emitting the deletion event.
func (r *Repository) Delete(kind Kind, videoPath string) error {
	asset, ok, err := r.Get(kind, videoPath)
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrAssetNotFound
	}

	stem := asset.Stem()
	unlock := r.lockStem(stem)
	defer unlock()

	dir := filepath.Dir(videoPath)
	if err := os.Remove(videoPath); err != nil {
		return fmt.Errorf("deleting video: %w", err)
	}
	for _, sidecar := range []string{stem + ".srt", stem + ".png", stem + ".json"} {
		path := filepath.Join(dir, sidecar)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			r.logger.Warn("deleting sidecar failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}

	event := bus.EventAssetRecordedDeleted
	if kind == KindEdited {
		event = bus.EventAssetEditedDeleted
	}
	r.publish(event, asset)
	r.logger.Info("asset deleted", slog.String("stem", stem), slog.String("kind", string(kind)))
	return nil
}

// GetSubtitle returns the subtitle sidecar content.
func (r *Repository) GetSubtitle(kind Kind, videoPath string) (string, error) {
	data, err := os.ReadFile(sidecarPath(videoPath, ".srt"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", models.ErrAssetNotFound
		}
		return "", err
	}
	return string(data), nil
}

// SaveSubtitle writes the subtitle sidecar and emits the update event.
func (r *Repository) SaveSubtitle(kind Kind, videoPath, content string) error {
	asset, ok, err := r.Get(kind, videoPath)
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrAssetNotFound
	}
	unlock := r.lockStem(asset.Stem())
	defer unlock()

	if err := writeFileAtomic(sidecarPath(videoPath, ".srt"), []byte(content)); err != nil {
		return fmt.Errorf("writing subtitle: %w", err)
	}
	if kind == KindRecorded {
		r.publish(bus.EventAssetRecordedSubtitleUpdated, asset)
	}
	return nil
}

// GetThumbnail returns the PNG thumbnail sidecar.
func (r *Repository) GetThumbnail(kind Kind, videoPath string) ([]byte, error) {
	data, err := os.ReadFile(sidecarPath(videoPath, ".png"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.ErrAssetNotFound
		}
		return nil, err
	}
	return data, nil
}

// SaveThumbnail writes the PNG thumbnail sidecar.
func (r *Repository) SaveThumbnail(kind Kind, videoPath string, png []byte) error {
	asset, ok, err := r.Get(kind, videoPath)
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrAssetNotFound
	}
	unlock := r.lockStem(asset.Stem())
	defer unlock()
	return writeFileAtomic(sidecarPath(videoPath, ".png"), png)
}

// GetMetadata returns the typed metadata sidecar.
func (r *Repository) GetMetadata(kind Kind, videoPath string) (models.RecordingMetadata, error) {
	m, err := r.GetMetadataMap(kind, videoPath)
	if err != nil {
		return models.RecordingMetadata{}, err
	}
	return models.MetadataFromMap(m)
}

// GetMetadataMap returns the raw metadata sidecar map.
func (r *Repository) GetMetadataMap(kind Kind, videoPath string) (map[string]string, error) {
	data, err := os.ReadFile(sidecarPath(videoPath, ".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.ErrAssetNotFound
		}
		return nil, err
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, models.WrapError(models.KindValidation, "invalid metadata sidecar", err)
	}
	return m, nil
}

// SaveMetadata writes the typed metadata sidecar and emits the update event.
func (r *Repository) SaveMetadata(kind Kind, videoPath string, meta models.RecordingMetadata) error {
	return r.SaveMetadataMap(kind, videoPath, meta.ToMap())
}

// SaveMetadataMap writes the raw metadata sidecar map.
func (r *Repository) SaveMetadataMap(kind Kind, videoPath string, m map[string]string) error {
	asset, ok, err := r.Get(kind, videoPath)
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrAssetNotFound
	}
	unlock := r.lockStem(asset.Stem())
	defer unlock()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(sidecarPath(videoPath, ".json"), data); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	if kind == KindRecorded {
		r.publish(bus.EventAssetRecordedMetadataUpdated, asset)
	}
	return nil
}

// writeMetadata writes the sidecar without asset existence checks, used
// during saves.
func (r *Repository) writeMetadata(dir, stem string, meta models.RecordingMetadata) error {
	data, err := json.MarshalIndent(meta.ToMap(), "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(filepath.Join(dir, stem+".json"), data); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}

// assemble builds a VideoAsset from whatever sidecars exist next to the
// video.
func (r *Repository) assemble(videoPath string) (models.VideoAsset, error) {
	asset := models.VideoAsset{VideoPath: videoPath}
	if _, err := os.Stat(sidecarPath(videoPath, ".srt")); err == nil {
		asset.SubtitlePath = sidecarPath(videoPath, ".srt")
	}
	if _, err := os.Stat(sidecarPath(videoPath, ".png")); err == nil {
		asset.ThumbnailPath = sidecarPath(videoPath, ".png")
	}
	if data, err := os.ReadFile(sidecarPath(videoPath, ".json")); err == nil {
		var m map[string]string
		if err := json.Unmarshal(data, &m); err != nil {
			return asset, models.WrapError(models.KindValidation, "invalid metadata sidecar", err)
		}
		meta, err := models.MetadataFromMap(m)
		if err != nil {
			return asset, err
		}
		asset.Metadata = &meta
	}
	return asset, nil
}

func (r *Repository) publish(eventType string, asset models.VideoAsset) {
	if r.events == nil {
		return
	}
	r.events.Publish(bus.NewEvent(eventType, map[string]any{
		"video": asset.VideoPath,
		"stem":  asset.Stem(),
	}).WithAggregate(asset.Stem()))
}

func sidecarPath(videoPath, ext string) string {
	base := strings.TrimSuffix(videoPath, filepath.Ext(videoPath))
	return base + ext
}
