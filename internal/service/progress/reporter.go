// Package progress publishes structured task progress onto the event bus
// and keeps a bounded replay buffer so late clients can catch up.
package progress

import (
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/splat-replay/splat-replay/internal/bus"
)

// Reporter publishes progress events for long-running tasks. Two APIs:
// the plain task API (StartTask, UpdateTotal, Advance, Stage, Finish) and
// the itemized API (InitItems, ItemStage, ItemFinish) for per-recording
// steps inside a task.
type Reporter struct {
	events *bus.EventBus
	logger *slog.Logger

	mu    sync.Mutex
	tasks map[string]*taskState
}

type taskState struct {
	kind    string
	total   int
	current int
	stage   string
}

// NewReporter wires a reporter onto the bus.
func NewReporter(events *bus.EventBus, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		events: events,
		logger: logger.With(slog.String("component", "progress_reporter")),
		tasks:  make(map[string]*taskState),
	}
}

// StartTask begins a task and returns its id.
func (r *Reporter) StartTask(kind, name string) string {
	id := ulid.Make().String()
	r.mu.Lock()
	r.tasks[id] = &taskState{kind: kind}
	r.mu.Unlock()

	r.publish(bus.EventProgressStart, id, map[string]any{
		"kind": kind,
		"name": name,
	})
	r.logger.Debug("task started", slog.String("task_id", id), slog.String("kind", kind))
	return id
}

// UpdateTotal sets the task's total work units.
func (r *Reporter) UpdateTotal(taskID string, total int) {
	r.withTask(taskID, func(t *taskState) { t.total = total })
	r.publish(bus.EventProgressTotal, taskID, map[string]any{"total": total})
}

// Advance moves the task forward by n units.
func (r *Reporter) Advance(taskID string, n int) {
	var current, total int
	r.withTask(taskID, func(t *taskState) {
		t.current += n
		current, total = t.current, t.total
	})
	r.publish(bus.EventProgressAdvance, taskID, map[string]any{
		"current": current,
		"total":   total,
	})
}

// Stage names the task's current stage.
func (r *Reporter) Stage(taskID, stage string) {
	r.withTask(taskID, func(t *taskState) { t.stage = stage })
	r.publish(bus.EventProgressStage, taskID, map[string]any{"stage": stage})
}

// Finish completes the task.
func (r *Reporter) Finish(taskID string, success bool, message string) {
	var kind string
	r.mu.Lock()
	if t, ok := r.tasks[taskID]; ok {
		kind = t.kind
		delete(r.tasks, taskID)
	}
	r.mu.Unlock()

	r.publish(bus.EventProgressFinish, taskID, map[string]any{
		"kind":    kind,
		"success": success,
		"message": message,
	})
	r.logger.Debug("task finished",
		slog.String("task_id", taskID),
		slog.Bool("success", success))
}

// InitItems declares the itemized work inside a task.
func (r *Reporter) InitItems(taskID string, items []string) {
	r.publish(bus.EventProgressItems, taskID, map[string]any{"items": items})
}

// ItemStage reports one item's current stage.
func (r *Reporter) ItemStage(taskID, item, stage string) {
	r.publish(bus.EventProgressItemStage, taskID, map[string]any{
		"item":  item,
		"stage": stage,
	})
}

// ItemFinish completes one item.
func (r *Reporter) ItemFinish(taskID, item string, success bool) {
	r.publish(bus.EventProgressItemFinish, taskID, map[string]any{
		"item":    item,
		"success": success,
	})
}

// Active reports how many tasks have started and not finished.
func (r *Reporter) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

func (r *Reporter) withTask(taskID string, fn func(*taskState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[taskID]; ok {
		fn(t)
	}
}

func (r *Reporter) publish(eventType, taskID string, payload map[string]any) {
	if r.events == nil {
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}
	payload["task_id"] = taskID
	r.events.Publish(bus.NewEvent(eventType, payload).WithAggregate(taskID))
}
