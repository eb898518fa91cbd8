package models

import (
	"path/filepath"
	"strings"
)

// VideoAsset is a recorded or edited video together with its sidecar files.
// The asset's identity is the video path; sidecars share its stem.
type VideoAsset struct {
	VideoPath     string             `json:"video_path"`
	SubtitlePath  string             `json:"subtitle_path,omitempty"`
	ThumbnailPath string             `json:"thumbnail_path,omitempty"`
	Metadata      *RecordingMetadata `json:"metadata,omitempty"`
}

// Stem returns the shared filename stem: the video file name without its
// extension.
func (a VideoAsset) Stem() string {
	base := filepath.Base(a.VideoPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// HasSubtitle reports whether a subtitle sidecar is attached.
func (a VideoAsset) HasSubtitle() bool { return a.SubtitlePath != "" }

// HasThumbnail reports whether a thumbnail sidecar is attached.
func (a VideoAsset) HasThumbnail() bool { return a.ThumbnailPath != "" }
