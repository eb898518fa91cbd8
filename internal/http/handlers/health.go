package handlers

import (
	"context"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// HealthHandler answers liveness probes.
type HealthHandler struct {
	version   string
	startedAt time.Time
}

// NewHealthHandler creates the handler.
func NewHealthHandler(version string) *HealthHandler {
	if version == "" {
		version = "dev"
	}
	return &HealthHandler{version: version, startedAt: time.Now()}
}

// HealthBody is the health response payload.
type HealthBody struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Goroutines    int    `json:"goroutines"`
	MemoryAlloc   uint64 `json:"memory_alloc"`
}

// HealthOutput is the health response.
type HealthOutput struct {
	Body HealthBody
}

// Register registers the health route.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"System"},
	}, h.Get)
}

// Get returns the liveness status and basic runtime gauges.
func (h *HealthHandler) Get(context.Context, *struct{}) (*HealthOutput, error) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return &HealthOutput{Body: HealthBody{
		Status:        "ok",
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		MemoryAlloc:   mem.Alloc,
	}}, nil
}
