package handlers

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/splat-replay/splat-replay/internal/observability"
	"github.com/splat-replay/splat-replay/internal/service/logs"
)

// validLogLevels are the accepted runtime level names.
var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// SystemHandler exposes host stats, runtime log control, and the captured
// log stream.
type SystemHandler struct {
	logs              *logs.Service
	storageDir        string
	startedAt         time.Time
	heartbeatInterval time.Duration
}

// NewSystemHandler creates the handler. storageDir is the asset base used
// for the disk gauge.
func NewSystemHandler(logService *logs.Service, storageDir string) *SystemHandler {
	return &SystemHandler{
		logs:              logService,
		storageDir:        storageDir,
		startedAt:         time.Now(),
		heartbeatInterval: 30 * time.Second,
	}
}

// SystemStatsBody is the host stats payload.
type SystemStatsBody struct {
	CPUPercent    float64    `json:"cpu_percent"`
	CPUCount      int        `json:"cpu_count"`
	MemoryTotal   uint64     `json:"memory_total"`
	MemoryUsed    uint64     `json:"memory_used"`
	MemoryPercent float64    `json:"memory_percent"`
	DiskTotal     uint64     `json:"disk_total,omitempty"`
	DiskFree      uint64     `json:"disk_free,omitempty"`
	DiskPercent   float64    `json:"disk_percent,omitempty"`
	Goroutines    int        `json:"goroutines"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	Logs          logs.Stats `json:"logs"`
}

// SystemStatsOutput is the host stats response.
type SystemStatsOutput struct {
	Body SystemStatsBody
}

// LogLevelInput sets the runtime log level.
type LogLevelInput struct {
	Body struct {
		Level string `json:"level" enum:"trace,debug,info,warn,error" doc:"New log level"`
	}
}

// LogLevelBody reports the active level.
type LogLevelBody struct {
	Level string `json:"level"`
}

// LogLevelOutput is the log level response.
type LogLevelOutput struct {
	Body LogLevelBody
}

// RecentLogsInput bounds the recent log listing.
type RecentLogsInput struct {
	Limit int `query:"limit" default:"100" doc:"Maximum entries to return"`
}

// RecentLogsBody is the recent log payload.
type RecentLogsBody struct {
	Entries []logs.Entry `json:"entries"`
}

// RecentLogsOutput is the recent log response.
type RecentLogsOutput struct {
	Body RecentLogsBody
}

// Register registers the system routes.
func (h *SystemHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getSystemStats",
		Method:      "GET",
		Path:        "/api/system/stats",
		Summary:     "Get host statistics",
		Tags:        []string{"System"},
	}, h.GetStats)

	huma.Register(api, huma.Operation{
		OperationID: "setLogLevel",
		Method:      "PUT",
		Path:        "/api/system/loglevel",
		Summary:     "Change the runtime log level",
		Tags:        []string{"System"},
	}, h.SetLogLevel)

	huma.Register(api, huma.Operation{
		OperationID: "getRecentLogs",
		Method:      "GET",
		Path:        "/api/logs/recent",
		Summary:     "Get recent log entries",
		Tags:        []string{"System"},
	}, h.GetRecentLogs)
}

// RegisterSSE registers the log stream on the raw router.
func (h *SystemHandler) RegisterSSE(router interface {
	Get(pattern string, handlerFn http.HandlerFunc)
}) {
	router.Get("/api/logs/events", h.HandleLogsSSE)
}

// GetStats samples the host.
func (h *SystemHandler) GetStats(ctx context.Context, _ *struct{}) (*SystemStatsOutput, error) {
	body := SystemStatsBody{
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
	}

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		body.CPUPercent = percents[0]
	}
	if count, err := cpu.CountsWithContext(ctx, true); err == nil {
		body.CPUCount = count
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		body.MemoryTotal = vm.Total
		body.MemoryUsed = vm.Used
		body.MemoryPercent = vm.UsedPercent
	}
	if h.storageDir != "" {
		if usage, err := disk.UsageWithContext(ctx, h.storageDir); err == nil {
			body.DiskTotal = usage.Total
			body.DiskFree = usage.Free
			body.DiskPercent = usage.UsedPercent
		}
	}
	if h.logs != nil {
		body.Logs = h.logs.GetStats()
	}
	return &SystemStatsOutput{Body: body}, nil
}

// SetLogLevel changes the level for every logger in the process.
func (h *SystemHandler) SetLogLevel(_ context.Context, input *LogLevelInput) (*LogLevelOutput, error) {
	if !validLogLevels[input.Body.Level] {
		return nil, huma.Error400BadRequest(fmt.Sprintf("unknown log level %q", input.Body.Level))
	}
	observability.SetLogLevel(input.Body.Level)
	return &LogLevelOutput{Body: LogLevelBody{Level: observability.GetLogLevel()}}, nil
}

// GetRecentLogs returns the captured tail, oldest first.
func (h *SystemHandler) GetRecentLogs(_ context.Context, input *RecentLogsInput) (*RecentLogsOutput, error) {
	out := &RecentLogsOutput{Body: RecentLogsBody{Entries: []logs.Entry{}}}
	if h.logs != nil {
		out.Body.Entries = h.logs.GetRecent(input.Limit)
	}
	return out, nil
}

// HandleLogsSSE streams captured log entries.
func (h *SystemHandler) HandleLogsSSE(w http.ResponseWriter, r *http.Request) {
	if h.logs == nil {
		http.Error(w, "log capture disabled", http.StatusServiceUnavailable)
		return
	}
	writeSSEHeaders(w)
	rc := http.NewResponseController(w)

	sub := h.logs.Subscribe(r.Context())
	defer close(sub.Done)

	fmt.Fprintf(w, ":connected\n\n")
	if err := rc.Flush(); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ":heartbeat %d\n\n", time.Now().Unix())
			if err := rc.Flush(); err != nil {
				return
			}
		case entry, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, "log", entry); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
