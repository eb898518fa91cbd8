package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/splat-replay/splat-replay/internal/service/progress"
)

// progressPollInterval is how often the SSE stream drains the store.
const progressPollInterval = 100 * time.Millisecond

// ProgressHandler exposes the progress tail: a replayable snapshot and a
// live SSE stream.
type ProgressHandler struct {
	store             *progress.Store
	heartbeatInterval time.Duration
}

// NewProgressHandler creates the handler.
func NewProgressHandler(store *progress.Store) *ProgressHandler {
	return &ProgressHandler{
		store:             store,
		heartbeatInterval: 30 * time.Second,
	}
}

// SetHeartbeatInterval overrides the SSE heartbeat interval (for testing).
func (h *ProgressHandler) SetHeartbeatInterval(interval time.Duration) {
	h.heartbeatInterval = interval
}

// SnapshotBody is the buffered progress tail.
type SnapshotBody struct {
	Events []progress.StoredEvent `json:"events"`
	Cursor uint64                 `json:"cursor"`
}

// SnapshotOutput is the snapshot response.
type SnapshotOutput struct {
	Body SnapshotBody
}

// Register registers the snapshot route.
func (h *ProgressHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getProgressSnapshot",
		Method:      "GET",
		Path:        "/api/progress/snapshot",
		Summary:     "Get buffered progress events",
		Description: "Returns the buffered progress tail and a cursor for the SSE stream.",
		Tags:        []string{"Progress"},
	}, h.GetSnapshot)
}

// RegisterSSE registers the SSE route on the raw router; Huma does not
// stream.
func (h *ProgressHandler) RegisterSSE(router interface {
	Get(pattern string, handlerFn http.HandlerFunc)
}) {
	router.Get("/api/progress/events", h.HandleSSE)
}

// GetSnapshot returns the buffered tail.
func (h *ProgressHandler) GetSnapshot(context.Context, *struct{}) (*SnapshotOutput, error) {
	events, cursor := h.store.ReadSince(0)
	if events == nil {
		events = []progress.StoredEvent{}
	}
	return &SnapshotOutput{Body: SnapshotBody{Events: events, Cursor: cursor}}, nil
}

// HandleSSE streams progress events. A `cursor` query parameter resumes
// after a snapshot; omitted, the stream replays the whole tail first.
func (h *ProgressHandler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	writeSSEHeaders(w)
	rc := http.NewResponseController(w)

	var cursor uint64
	fmt.Sscanf(r.URL.Query().Get("cursor"), "%d", &cursor)

	fmt.Fprintf(w, ":connected\n\n")
	if err := rc.Flush(); err != nil {
		return
	}

	poll := time.NewTicker(progressPollInterval)
	defer poll.Stop()
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
		case <-poll.C:
			events, next := h.store.ReadSince(cursor)
			if len(events) == 0 {
				continue
			}
			cursor = next
			for _, se := range events {
				if err := writeSSEEvent(w, se.Event.Type, se.Event); err != nil {
					return
				}
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Cache-Control")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

func writeSSEEvent(w http.ResponseWriter, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, data)
	return err
}
