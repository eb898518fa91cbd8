package uploader

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/splat-replay/splat-replay/internal/models"
)

// uploadChunkSize is the resumable-upload chunk size.
const uploadChunkSize = 8 * 1024 * 1024

// UploadRequest is everything needed to publish one video.
type UploadRequest struct {
	Path        string
	Title       string
	Description string
	Tags        []string
	Privacy     string
}

// Publisher is the video-platform operation set the auto-uploader drives.
type Publisher interface {
	Upload(ctx context.Context, req UploadRequest) (videoID string, err error)
	AddCaption(ctx context.Context, videoID, language, name string, srt []byte) error
	SetThumbnail(ctx context.Context, videoID string, png []byte) error
	AddToPlaylist(ctx context.Context, videoID, playlistID string) error
}

// youtubePublisher implements Publisher over the YouTube Data API v3.
type youtubePublisher struct {
	svc *youtube.Service
}

// NewYouTubePublisher builds the API client over an authorized HTTP client.
func NewYouTubePublisher(ctx context.Context, client *http.Client) (Publisher, error) {
	svc, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("building youtube client: %w", err)
	}
	return &youtubePublisher{svc: svc}, nil
}

func (p *youtubePublisher) Upload(ctx context.Context, req UploadRequest) (string, error) {
	file, err := os.Open(req.Path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       req.Title,
			Description: req.Description,
			Tags:        req.Tags,
		},
		Status: &youtube.VideoStatus{PrivacyStatus: req.Privacy},
	}
	call := p.svc.Videos.Insert([]string{"snippet", "status"}, video).
		Context(ctx).
		Media(file, googleapi.ChunkSize(uploadChunkSize))
	uploaded, err := call.Do()
	if err != nil {
		return "", wrapAPIError("uploading video", err)
	}
	return uploaded.Id, nil
}

func (p *youtubePublisher) AddCaption(ctx context.Context, videoID, language, name string, srt []byte) error {
	caption := &youtube.Caption{
		Snippet: &youtube.CaptionSnippet{
			VideoId:  videoID,
			Language: language,
			Name:     name,
		},
	}
	_, err := p.svc.Captions.Insert([]string{"snippet"}, caption).
		Context(ctx).
		Media(bytes.NewReader(srt)).
		Do()
	if err != nil {
		return wrapAPIError("adding caption", err)
	}
	return nil
}

func (p *youtubePublisher) SetThumbnail(ctx context.Context, videoID string, png []byte) error {
	_, err := p.svc.Thumbnails.Set(videoID).
		Context(ctx).
		Media(bytes.NewReader(png)).
		Do()
	if err != nil {
		return wrapAPIError("setting thumbnail", err)
	}
	return nil
}

func (p *youtubePublisher) AddToPlaylist(ctx context.Context, videoID, playlistID string) error {
	item := &youtube.PlaylistItem{
		Snippet: &youtube.PlaylistItemSnippet{
			PlaylistId: playlistID,
			ResourceId: &youtube.ResourceId{
				Kind:    "youtube#video",
				VideoId: videoID,
			},
		},
	}
	_, err := p.svc.PlaylistItems.Insert([]string{"snippet"}, item).
		Context(ctx).
		Do()
	if err != nil {
		return wrapAPIError("adding to playlist", err)
	}
	return nil
}

// wrapAPIError classifies API failures so the HTTP layer maps them sensibly.
func wrapAPIError(op string, err error) error {
	if apiErr, ok := err.(*googleapi.Error); ok {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return models.WrapError(models.KindAuthentication, op, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
