// Package logs keeps a ring buffer of recent log records and streams new
// ones to API subscribers.
package logs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	// DefaultMaxLogs is the maximum number of records retained in memory.
	DefaultMaxLogs = 1000
	// DefaultBufferSize is the subscriber channel buffer size.
	DefaultBufferSize = 100
)

// Entry is one captured log record.
type Entry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Stats summarizes the captured stream.
type Stats struct {
	TotalLogs        int64            `json:"total_logs"`
	LogsByLevel      map[string]int64 `json:"logs_by_level"`
	RecentErrors     []Entry          `json:"recent_errors"`
	LogRatePerMinute float64          `json:"log_rate_per_minute"`
}

// Subscriber receives new entries as they arrive.
type Subscriber struct {
	ID     string
	Events chan *Entry
	Done   chan struct{}
}

// Service captures log records behind a slog.Handler and fans them out.
type Service struct {
	mu           sync.RWMutex
	entries      []Entry
	maxLogs      int
	subscribers  map[string]*Subscriber
	totalLogs    int64
	byLevel      map[string]int64
	recentErrors []Entry
	maxErrors    int
	startTime    time.Time
}

// New creates the log capture service.
func New() *Service {
	return &Service{
		entries:     make([]Entry, 0, DefaultMaxLogs),
		maxLogs:     DefaultMaxLogs,
		subscribers: make(map[string]*Subscriber),
		byLevel:     make(map[string]int64),
		maxErrors:   10,
		startTime:   time.Now(),
	}
}

// WrapHandler intercepts records on their way to the given handler. The
// wrapped handler still writes to its own destination.
func (s *Service) WrapHandler(handler slog.Handler) slog.Handler {
	return &captureHandler{service: s, wrapped: handler}
}

// Add records an entry and broadcasts it.
func (s *Service) Add(entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}

	s.totalLogs++
	s.byLevel[entry.Level]++
	if entry.Level == "error" {
		s.recentErrors = append(s.recentErrors, entry)
		if len(s.recentErrors) > s.maxErrors {
			s.recentErrors = s.recentErrors[1:]
		}
	}

	if len(s.entries) >= s.maxLogs {
		s.entries = s.entries[1:]
	}
	s.entries = append(s.entries, entry)

	// Slow subscribers drop records rather than blocking logging.
	for _, sub := range s.subscribers {
		select {
		case sub.Events <- &entry:
		default:
		}
	}
}

// Subscribe registers a stream consumer. It is removed when ctx ends or its
// Done channel closes.
func (s *Service) Subscribe(ctx context.Context) *Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &Subscriber{
		ID:     ulid.Make().String(),
		Events: make(chan *Entry, DefaultBufferSize),
		Done:   make(chan struct{}),
	}
	s.subscribers[sub.ID] = sub

	go func() {
		select {
		case <-ctx.Done():
		case <-sub.Done:
		}
		s.Unsubscribe(sub.ID)
	}()
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Service) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subscribers[id]; ok {
		close(sub.Events)
		delete(s.subscribers, id)
	}
}

// GetStats returns stream statistics.
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		TotalLogs:    s.totalLogs,
		LogsByLevel:  make(map[string]int64, len(s.byLevel)),
		RecentErrors: append([]Entry(nil), s.recentErrors...),
	}
	for level, count := range s.byLevel {
		stats.LogsByLevel[level] = count
	}
	if elapsed := time.Since(s.startTime).Minutes(); elapsed > 0 {
		stats.LogRatePerMinute = float64(s.totalLogs) / elapsed
	}
	return stats
}

// GetRecent returns up to limit most recent entries, oldest first.
func (s *Service) GetRecent(limit int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.entries) {
		limit = len(s.entries)
	}
	result := make([]Entry, limit)
	copy(result, s.entries[len(s.entries)-limit:])
	return result
}

// SubscriberCount returns the number of attached subscribers.
func (s *Service) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

// captureHandler tees records into the service.
type captureHandler struct {
	service *Service
	wrapped slog.Handler
	attrs   []slog.Attr
}

func (h *captureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.wrapped.Enabled(ctx, level)
}

func (h *captureHandler) Handle(ctx context.Context, r slog.Record) error {
	entry := Entry{
		ID:        ulid.Make().String(),
		Timestamp: r.Time,
		Level:     levelToString(r.Level),
		Message:   r.Message,
		Fields:    make(map[string]any),
	}
	for _, attr := range h.attrs {
		addAttr(&entry, attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(&entry, a)
		return true
	})
	h.service.Add(entry)
	return h.wrapped.Handle(ctx, r)
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &captureHandler{
		service: h.service,
		wrapped: h.wrapped.WithAttrs(attrs),
		attrs:   merged,
	}
}

func (h *captureHandler) WithGroup(name string) slog.Handler {
	return &captureHandler{
		service: h.service,
		wrapped: h.wrapped.WithGroup(name),
		attrs:   h.attrs,
	}
}

func addAttr(entry *Entry, attr slog.Attr) {
	if attr.Key == "component" {
		if s, ok := attr.Value.Any().(string); ok {
			entry.Component = s
			return
		}
	}
	entry.Fields[attr.Key] = attr.Value.Any()
}

func levelToString(level slog.Level) string {
	switch {
	case level < slog.LevelDebug:
		return "trace"
	case level < slog.LevelInfo:
		return "debug"
	case level < slog.LevelWarn:
		return "info"
	case level < slog.LevelError:
		return "warn"
	default:
		return "error"
	}
}
