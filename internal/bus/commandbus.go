package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/splat-replay/splat-replay/internal/models"
)

// CommandHandler executes one named command. Handlers run on the bus's
// dispatcher pool and may block on external I/O.
type CommandHandler func(ctx context.Context, payload map[string]any) (any, error)

// Future resolves with a command's result. Submission never requires the
// caller to run on any particular goroutine.
type Future struct {
	done  chan struct{}
	value any
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func resolvedFuture(value any, err error) *Future {
	f := newFuture()
	f.value = value
	f.err = err
	close(f.done)
	return f
}

func (f *Future) resolve(value any, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Result blocks until resolution and returns the value and error.
func (f *Future) Result() (any, error) {
	<-f.done
	return f.value, f.err
}

// Wait blocks until resolution or context expiry.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type commandJob struct {
	ctx     context.Context
	name    string
	payload map[string]any
	handler CommandHandler
	future  *Future
}

// CommandBus maps dotted command names to handlers and executes submissions
// on a fixed dispatcher pool.
type CommandBus struct {
	mu       sync.RWMutex
	handlers map[string]CommandHandler
	queue    chan commandJob
	wg       sync.WaitGroup
	logger   *slog.Logger
	closed   bool
}

// NewCommandBus starts a bus with the given number of dispatcher workers and
// queue depth. Workers default to 4 and queue to 64 when non-positive.
func NewCommandBus(workers, queueDepth int, logger *slog.Logger) *CommandBus {
	if workers <= 0 {
		workers = 4
	}
	if queueDepth <= 0 {
		queueDepth = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &CommandBus{
		handlers: make(map[string]CommandHandler),
		queue:    make(chan commandJob, queueDepth),
		logger:   logger,
	}
	for i := 0; i < workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}
	return b
}

// Register binds a handler to a command name, replacing any previous binding.
func (b *CommandBus) Register(name string, handler CommandHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = handler
}

// Names returns the registered command names.
func (b *CommandBus) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.handlers))
	for n := range b.handlers {
		names = append(names, n)
	}
	return names
}

// Submit enqueues a command for execution and returns its future. Unknown
// commands resolve immediately with an error; a full queue resolves with a
// conflict instead of blocking the caller.
func (b *CommandBus) Submit(ctx context.Context, name string, payload map[string]any) *Future {
	b.mu.RLock()
	handler, ok := b.handlers[name]
	closed := b.closed
	b.mu.RUnlock()

	if closed {
		return resolvedFuture(nil, fmt.Errorf("command bus closed"))
	}
	if !ok {
		return resolvedFuture(nil, fmt.Errorf("%w: %q", models.ErrUnknownCommand, name))
	}

	job := commandJob{
		ctx:     ctx,
		name:    name,
		payload: payload,
		handler: handler,
		future:  newFuture(),
	}
	select {
	case b.queue <- job:
		return job.future
	default:
		return resolvedFuture(nil, models.WrapError(models.KindConflict, "command queue full", nil))
	}
}

// Execute submits and waits in one call.
func (b *CommandBus) Execute(ctx context.Context, name string, payload map[string]any) (any, error) {
	return b.Submit(ctx, name, payload).Wait(ctx)
}

// Close drains the dispatcher pool. Pending submissions still execute.
func (b *CommandBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()
	close(b.queue)
	b.wg.Wait()
}

func (b *CommandBus) worker() {
	defer b.wg.Done()
	for job := range b.queue {
		b.run(job)
	}
}

// run executes one job, converting handler panics into errors so a bad
// handler cannot take the dispatcher down.
func (b *CommandBus) run(job commandJob) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("command handler panicked",
				slog.String("command", job.name),
				slog.Any("panic", r))
			job.future.resolve(nil, fmt.Errorf("command %q panicked: %v", job.name, r))
		}
	}()

	if err := job.ctx.Err(); err != nil {
		job.future.resolve(nil, err)
		return
	}
	value, err := job.handler(job.ctx, job.payload)
	job.future.resolve(value, err)
}
