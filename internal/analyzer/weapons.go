package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/splat-replay/splat-replay/internal/frame"
	"github.com/splat-replay/splat-replay/internal/matcher"
)

// WeaponSlots is the number of HUD weapon slots: four allies then four
// enemies.
const WeaponSlots = 8

// UnknownWeapon labels a slot no icon matched.
const UnknownWeapon = "unknown"

// SlotResult is the recognizer's best guess for one HUD slot.
type SlotResult struct {
	Label string
	Score float64
}

// WeaponRecognizer matches the eight HUD weapon slots against a library of
// icon templates. The library is a directory of images whose file names are
// the weapon labels.
type WeaponRecognizer struct {
	icons     map[string]*matcher.TemplateMatcher
	slots     [WeaponSlots]frame.ROI
	reportDir string
	logger    *slog.Logger
}

// defaultSlotROIs positions the eight HUD slots on a normalized 16:9 frame:
// allies left of center, enemies right.
func defaultSlotROIs() [WeaponSlots]frame.ROI {
	var rois [WeaponSlots]frame.ROI
	const (
		y      = 0.012
		h      = 0.055
		w      = 0.031
		step   = 0.036
		allyX  = 0.295
		enemyX = 0.567
	)
	for i := 0; i < 4; i++ {
		rois[i] = frame.ROI{X: allyX + float64(i)*step, Y: y, W: w, H: h, Normalized: true}
		rois[i+4] = frame.ROI{X: enemyX + float64(i)*step, Y: y, W: w, H: h, Normalized: true}
	}
	return rois
}

// WeaponOption adjusts recognizer construction.
type WeaponOption func(*WeaponRecognizer)

// WithSlotROIs overrides the HUD slot positions.
func WithSlotROIs(rois [WeaponSlots]frame.ROI) WeaponOption {
	return func(r *WeaponRecognizer) { r.slots = rois }
}

// WithReportDir sets where unmatched slot crops are written.
func WithReportDir(dir string) WeaponOption {
	return func(r *WeaponRecognizer) { r.reportDir = dir }
}

// NewWeaponRecognizer loads every icon image under iconsDir. The file stem
// is the weapon label.
func NewWeaponRecognizer(iconsDir string, logger *slog.Logger, opts ...WeaponOption) (*WeaponRecognizer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(iconsDir)
	if err != nil {
		return nil, fmt.Errorf("reading weapon icons: %w", err)
	}

	icons := make(map[string]*matcher.TemplateMatcher)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".png" && ext != ".webp" && ext != ".jpg" && ext != ".jpeg" {
			continue
		}
		img, err := frame.Load(filepath.Join(iconsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("loading icon %s: %w", entry.Name(), err)
		}
		label := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		tm, err := matcher.NewTemplateMatcher(img, nil, frame.ROI{}, 0)
		if err != nil {
			return nil, fmt.Errorf("preparing icon %s: %w", entry.Name(), err)
		}
		icons[label] = tm
	}
	if len(icons) == 0 {
		return nil, fmt.Errorf("no weapon icons under %s", iconsDir)
	}

	r := &WeaponRecognizer{
		icons:  icons,
		slots:  defaultSlotROIs(),
		logger: logger.With(slog.String("component", "weapon_recognizer")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// minSlotScore is the correlation below which a slot stays unknown.
const minSlotScore = 0.55

// Recognize scores every slot against the icon library and returns the best
// label and score per slot. When saveUnmatchedReport is set, slots that stay
// unknown have their crop written under the report directory for later
// template curation.
func (r *WeaponRecognizer) Recognize(ctx context.Context, f *frame.Frame, saveUnmatchedReport bool) ([WeaponSlots]SlotResult, error) {
	var results [WeaponSlots]SlotResult
	for i, roi := range r.slots {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		crop, err := f.CropROI(roi)
		if err != nil {
			return results, fmt.Errorf("cropping slot %d: %w", i, err)
		}

		best := SlotResult{Label: UnknownWeapon, Score: -1}
		for label, tm := range r.icons {
			score, err := tm.Score(crop)
			if err != nil {
				// Icon larger than the slot crop; skip it.
				continue
			}
			if score > best.Score {
				best = SlotResult{Label: label, Score: score}
			}
		}
		if best.Score < minSlotScore {
			best.Label = UnknownWeapon
			if saveUnmatchedReport && r.reportDir != "" {
				r.saveUnmatched(crop, i)
			}
		}
		results[i] = best
	}
	return results, nil
}

// saveUnmatched writes a slot crop for offline inspection. Failures are
// logged only; reports never break recognition.
func (r *WeaponRecognizer) saveUnmatched(crop *frame.Frame, slot int) {
	if err := os.MkdirAll(r.reportDir, 0o755); err != nil {
		r.logger.Warn("creating report dir", slog.String("error", err.Error()))
		return
	}
	name := fmt.Sprintf("unmatched_%s_slot%d.png", time.Now().Format("20060102_150405"), slot)
	if err := crop.SavePNG(filepath.Join(r.reportDir, name)); err != nil {
		r.logger.Warn("writing unmatched report", slog.String("error", err.Error()))
	}
}
