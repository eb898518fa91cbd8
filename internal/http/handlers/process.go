package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/splat-replay/splat-replay/internal/autoprocess"
	"github.com/splat-replay/splat-replay/internal/bus"
	"github.com/splat-replay/splat-replay/internal/models"
	"github.com/splat-replay/splat-replay/internal/repository"
)

// ProcessHandler drives the edit/upload pipeline and exposes run history.
type ProcessHandler struct {
	commands *bus.CommandBus
	jobs     repository.ProcessJobRepository
}

// NewProcessHandler creates the handler. jobs may be nil when history is
// disabled.
func NewProcessHandler(commands *bus.CommandBus, jobs repository.ProcessJobRepository) *ProcessHandler {
	return &ProcessHandler{commands: commands, jobs: jobs}
}

// ListJobsInput bounds the history listing.
type ListJobsInput struct {
	Limit int `query:"limit" default:"50" doc:"Maximum jobs to return"`
}

// ListJobsBody is the history payload.
type ListJobsBody struct {
	Jobs []*models.ProcessJob `json:"jobs"`
}

// ListJobsOutput is the history response.
type ListJobsOutput struct {
	Body ListJobsBody
}

// Register registers the process routes.
func (h *ProcessHandler) Register(api huma.API) {
	control := []struct {
		id, path, summary, command string
	}{
		{"startEditUpload", "/api/process/edit-upload", "Start edit and upload", autoprocess.CommandStartEditUpload},
		{"cancelProcess", "/api/process/cancel", "Cancel pending or running processing", autoprocess.CommandCancel},
		{"acceptSleep", "/api/process/accept-sleep", "Sleep now instead of waiting out the grace period", autoprocess.CommandAcceptSleep},
		{"cancelSleep", "/api/process/cancel-sleep", "Keep the machine awake", autoprocess.CommandCancelSleep},
	}
	for _, op := range control {
		command := op.command
		huma.Register(api, huma.Operation{
			OperationID: op.id,
			Method:      "POST",
			Path:        op.path,
			Summary:     op.summary,
			Tags:        []string{"Process"},
		}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
			if _, err := h.commands.Execute(ctx, command, nil); err != nil {
				return nil, apiError(err)
			}
			return &struct{}{}, nil
		})
	}

	huma.Register(api, huma.Operation{
		OperationID: "listProcessJobs",
		Method:      "GET",
		Path:        "/api/process/jobs",
		Summary:     "List edit/upload run history",
		Tags:        []string{"Process"},
	}, h.ListJobs)
}

// ListJobs returns recent runs, newest first.
func (h *ProcessHandler) ListJobs(ctx context.Context, input *ListJobsInput) (*ListJobsOutput, error) {
	out := &ListJobsOutput{Body: ListJobsBody{Jobs: []*models.ProcessJob{}}}
	if h.jobs == nil {
		return out, nil
	}
	jobs, err := h.jobs.GetRecent(ctx, input.Limit)
	if err != nil {
		return nil, apiError(err)
	}
	if jobs != nil {
		out.Body.Jobs = jobs
	}
	return out, nil
}
