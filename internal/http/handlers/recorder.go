package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/splat-replay/splat-replay/internal/bus"
	"github.com/splat-replay/splat-replay/internal/record"
)

// DeviceLister enumerates capture devices.
type DeviceLister interface {
	ListVideoDevices(ctx context.Context) ([]string, error)
}

// RecorderHandler drives the recording session over the command bus.
type RecorderHandler struct {
	commands *bus.CommandBus
	devices  DeviceLister
}

// NewRecorderHandler creates the handler. devices may be nil when no
// recorder backend is connected.
func NewRecorderHandler(commands *bus.CommandBus, devices DeviceLister) *RecorderHandler {
	return &RecorderHandler{commands: commands, devices: devices}
}

// RecorderStateBody reports the session state and the metadata gathered so
// far.
type RecorderStateBody struct {
	State    string            `json:"state"`
	Metadata map[string]string `json:"metadata"`
}

// RecorderStateOutput is the state response.
type RecorderStateOutput struct {
	Body RecorderStateBody
}

// MetadataOutput is the metadata response.
type MetadataOutput struct {
	Body map[string]string
}

// UpdateMetadataInput is one manual metadata correction.
type UpdateMetadataInput struct {
	Body struct {
		Field string `json:"field" doc:"Metadata field to set (judgement, match, rule, stage, ...)"`
		Value string `json:"value" doc:"New value"`
	}
}

// DevicesBody lists capture device names.
type DevicesBody struct {
	Devices []string `json:"devices"`
}

// DevicesOutput is the device listing response.
type DevicesOutput struct {
	Body DevicesBody
}

// Register registers the recorder routes.
func (h *RecorderHandler) Register(api huma.API) {
	control := []struct {
		id, path, summary, command string
	}{
		{"startRecorder", "/api/recorder/start", "Start recording", record.CommandStart},
		{"stopRecorder", "/api/recorder/stop", "Stop recording and save", record.CommandStop},
		{"pauseRecorder", "/api/recorder/pause", "Pause recording", record.CommandPause},
		{"resumeRecorder", "/api/recorder/resume", "Resume recording", record.CommandResume},
		{"cancelRecorder", "/api/recorder/cancel", "Cancel and discard recording", record.CommandCancel},
	}
	for _, op := range control {
		command := op.command
		huma.Register(api, huma.Operation{
			OperationID: op.id,
			Method:      "POST",
			Path:        op.path,
			Summary:     op.summary,
			Tags:        []string{"Recorder"},
		}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
			if _, err := h.commands.Execute(ctx, command, nil); err != nil {
				return nil, apiError(err)
			}
			return &struct{}{}, nil
		})
	}

	huma.Register(api, huma.Operation{
		OperationID: "getRecorderState",
		Method:      "GET",
		Path:        "/api/recorder/state",
		Summary:     "Get session state",
		Tags:        []string{"Recorder"},
	}, h.GetState)

	huma.Register(api, huma.Operation{
		OperationID: "getRecorderMetadata",
		Method:      "GET",
		Path:        "/api/recorder/metadata",
		Summary:     "Get detected metadata",
		Tags:        []string{"Recorder"},
	}, h.GetMetadata)

	huma.Register(api, huma.Operation{
		OperationID: "updateRecorderMetadata",
		Method:      "PUT",
		Path:        "/api/recorder/metadata",
		Summary:     "Correct a metadata field",
		Description: "Manually set one metadata field; manual values win over later detection.",
		Tags:        []string{"Recorder"},
	}, h.UpdateMetadata)

	huma.Register(api, huma.Operation{
		OperationID: "resetRecorderMetadata",
		Method:      "DELETE",
		Path:        "/api/recorder/metadata",
		Summary:     "Reset metadata",
		Tags:        []string{"Recorder"},
	}, h.ResetMetadata)

	huma.Register(api, huma.Operation{
		OperationID: "listRecorderDevices",
		Method:      "GET",
		Path:        "/api/recorder/devices",
		Summary:     "List capture devices",
		Tags:        []string{"Recorder"},
	}, h.ListDevices)
}

func (h *RecorderHandler) status(ctx context.Context) (string, map[string]string, error) {
	result, err := h.commands.Execute(ctx, record.CommandStatus, nil)
	if err != nil {
		return "", nil, apiError(err)
	}
	status, _ := result.(map[string]any)
	state, _ := status["state"].(string)
	metadata, _ := status["metadata"].(map[string]string)
	return state, metadata, nil
}

// GetState returns the session state and metadata.
func (h *RecorderHandler) GetState(ctx context.Context, _ *struct{}) (*RecorderStateOutput, error) {
	state, metadata, err := h.status(ctx)
	if err != nil {
		return nil, err
	}
	return &RecorderStateOutput{Body: RecorderStateBody{State: state, Metadata: metadata}}, nil
}

// GetMetadata returns the metadata gathered for the active session.
func (h *RecorderHandler) GetMetadata(ctx context.Context, _ *struct{}) (*MetadataOutput, error) {
	_, metadata, err := h.status(ctx)
	if err != nil {
		return nil, err
	}
	return &MetadataOutput{Body: metadata}, nil
}

// UpdateMetadata applies one manual correction.
func (h *RecorderHandler) UpdateMetadata(ctx context.Context, input *UpdateMetadataInput) (*MetadataOutput, error) {
	result, err := h.commands.Execute(ctx, record.CommandUpdateMetadata, map[string]any{
		"field": input.Body.Field,
		"value": input.Body.Value,
	})
	if err != nil {
		return nil, apiError(err)
	}
	metadata, _ := result.(map[string]string)
	return &MetadataOutput{Body: metadata}, nil
}

// ResetMetadata clears all gathered metadata.
func (h *RecorderHandler) ResetMetadata(ctx context.Context, _ *struct{}) (*struct{}, error) {
	if _, err := h.commands.Execute(ctx, record.CommandResetMetadata, nil); err != nil {
		return nil, apiError(err)
	}
	return &struct{}{}, nil
}

// ListDevices enumerates capture devices on the recorder backend.
func (h *RecorderHandler) ListDevices(ctx context.Context, _ *struct{}) (*DevicesOutput, error) {
	if h.devices == nil {
		return &DevicesOutput{Body: DevicesBody{Devices: []string{}}}, nil
	}
	devices, err := h.devices.ListVideoDevices(ctx)
	if err != nil {
		return nil, apiError(err)
	}
	if devices == nil {
		devices = []string{}
	}
	return &DevicesOutput{Body: DevicesBody{Devices: devices}}, nil
}
