package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/splat-replay/splat-replay/internal/bus"
)

// EventsHandler streams the event bus over SSE.
type EventsHandler struct {
	events            *bus.EventBus
	heartbeatInterval time.Duration
}

// NewEventsHandler creates the handler.
func NewEventsHandler(events *bus.EventBus) *EventsHandler {
	return &EventsHandler{
		events:            events,
		heartbeatInterval: 30 * time.Second,
	}
}

// SetHeartbeatInterval overrides the SSE heartbeat interval (for testing).
func (h *EventsHandler) SetHeartbeatInterval(interval time.Duration) {
	h.heartbeatInterval = interval
}

// RegisterSSE registers the SSE route on the raw router.
func (h *EventsHandler) RegisterSSE(router interface {
	Get(pattern string, handlerFn http.HandlerFunc)
}) {
	router.Get("/api/events", h.HandleSSE)
}

// HandleSSE streams bus events. The `filter` query parameter holds
// comma-separated type prefixes ("recording.,battle."); empty means all.
func (h *EventsHandler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	writeSSEHeaders(w)
	rc := http.NewResponseController(w)

	var filters []string
	if raw := r.URL.Query().Get("filter"); raw != "" {
		for _, f := range strings.Split(raw, ",") {
			if f = strings.TrimSpace(f); f != "" {
				filters = append(filters, f)
			}
		}
	}

	sub := h.events.Subscribe(filters...)
	defer sub.Close()

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
		case e, ok := <-sub.C():
			if !ok {
				return
			}
			if err := writeSSEEvent(w, e.Type, e); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
