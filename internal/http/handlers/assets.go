package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/splat-replay/splat-replay/internal/models"
	"github.com/splat-replay/splat-replay/internal/storage"
)

// AssetsHandler exposes the recorded and edited libraries.
type AssetsHandler struct {
	repo *storage.Repository
}

// NewAssetsHandler creates the handler.
func NewAssetsHandler(repo *storage.Repository) *AssetsHandler {
	return &AssetsHandler{repo: repo}
}

// AssetResponse is one library entry.
type AssetResponse struct {
	Stem          string                    `json:"stem"`
	VideoPath     string                    `json:"video_path"`
	SubtitlePath  string                    `json:"subtitle_path,omitempty"`
	ThumbnailPath string                    `json:"thumbnail_path,omitempty"`
	Metadata      *models.RecordingMetadata `json:"metadata,omitempty"`
}

// AssetListBody is the library listing payload.
type AssetListBody struct {
	Assets []AssetResponse `json:"assets"`
}

// AssetListOutput is the library listing response.
type AssetListOutput struct {
	Body AssetListBody
}

// DeleteAssetInput names the recording to delete.
type DeleteAssetInput struct {
	Stem string `path:"stem" doc:"Asset filename stem"`
}

func assetResponse(a models.VideoAsset) AssetResponse {
	return AssetResponse{
		Stem:          a.Stem(),
		VideoPath:     a.VideoPath,
		SubtitlePath:  a.SubtitlePath,
		ThumbnailPath: a.ThumbnailPath,
		Metadata:      a.Metadata,
	}
}

// Register registers the asset routes.
func (h *AssetsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listRecordedAssets",
		Method:      "GET",
		Path:        "/api/assets/recorded",
		Summary:     "List recorded videos",
		Tags:        []string{"Assets"},
	}, h.ListRecorded)

	huma.Register(api, huma.Operation{
		OperationID: "deleteRecordedAsset",
		Method:      "DELETE",
		Path:        "/api/assets/recorded/{stem}",
		Summary:     "Delete a recorded video and its sidecars",
		Tags:        []string{"Assets"},
	}, h.DeleteRecorded)

	huma.Register(api, huma.Operation{
		OperationID: "listEditedAssets",
		Method:      "GET",
		Path:        "/api/assets/edited",
		Summary:     "List edited videos awaiting upload",
		Tags:        []string{"Assets"},
	}, h.ListEdited)
}

func (h *AssetsHandler) list(assets []models.VideoAsset, err error) (*AssetListOutput, error) {
	if err != nil {
		return nil, apiError(err)
	}
	out := &AssetListOutput{Body: AssetListBody{Assets: make([]AssetResponse, 0, len(assets))}}
	for _, a := range assets {
		out.Body.Assets = append(out.Body.Assets, assetResponse(a))
	}
	return out, nil
}

// ListRecorded returns the raw recordings.
func (h *AssetsHandler) ListRecorded(context.Context, *struct{}) (*AssetListOutput, error) {
	assets, err := h.repo.ListRecordings()
	return h.list(assets, err)
}

// ListEdited returns the merged videos awaiting upload.
func (h *AssetsHandler) ListEdited(context.Context, *struct{}) (*AssetListOutput, error) {
	assets, err := h.repo.ListEdited()
	return h.list(assets, err)
}

// DeleteRecorded removes one recording and its sidecars.
func (h *AssetsHandler) DeleteRecorded(_ context.Context, input *DeleteAssetInput) (*struct{}, error) {
	asset, ok, err := h.repo.GetByStem(storage.KindRecorded, input.Stem)
	if err != nil {
		return nil, apiError(err)
	}
	if !ok {
		return nil, huma.Error404NotFound("recording not found")
	}
	if err := h.repo.Delete(storage.KindRecorded, asset.VideoPath); err != nil {
		return nil, apiError(err)
	}
	return &struct{}{}, nil
}
