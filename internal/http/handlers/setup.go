package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/splat-replay/splat-replay/internal/setup"
)

// SetupHandler exposes the first-run environment checks.
type SetupHandler struct {
	service *setup.Service
}

// NewSetupHandler creates the handler.
func NewSetupHandler(service *setup.Service) *SetupHandler {
	return &SetupHandler{service: service}
}

// SetupStateBody is the persisted setup record plus its derived completion.
type SetupStateBody struct {
	setup.State
	Complete bool `json:"complete"`
}

// SetupStateOutput is the setup state response.
type SetupStateOutput struct {
	Body SetupStateBody
}

// Register registers the setup routes.
func (h *SetupHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getSetupState",
		Method:      "GET",
		Path:        "/api/setup/state",
		Summary:     "Get setup progress",
		Tags:        []string{"Setup"},
	}, h.GetState)

	huma.Register(api, huma.Operation{
		OperationID: "runSetup",
		Method:      "POST",
		Path:        "/api/setup/run",
		Summary:     "Run the environment checks",
		Tags:        []string{"Setup"},
	}, h.Run)
}

// GetState returns the persisted setup record.
func (h *SetupHandler) GetState(context.Context, *struct{}) (*SetupStateOutput, error) {
	state, err := h.service.Load()
	if err != nil {
		return nil, apiError(err)
	}
	return &SetupStateOutput{Body: SetupStateBody{State: state, Complete: state.Complete()}}, nil
}

// Run executes all checks and returns the refreshed record.
func (h *SetupHandler) Run(ctx context.Context, _ *struct{}) (*SetupStateOutput, error) {
	state, err := h.service.Run(ctx)
	if err != nil {
		return nil, apiError(err)
	}
	return &SetupStateOutput{Body: SetupStateBody{State: state, Complete: state.Complete()}}, nil
}
