// Package autoprocess chains the pipeline tail together: when the console
// powers off, recordings are edited and uploaded after a cancellable grace
// period, and the host is optionally put to sleep afterwards.
package autoprocess

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/splat-replay/splat-replay/internal/bus"
	"github.com/splat-replay/splat-replay/internal/config"
	"github.com/splat-replay/splat-replay/internal/models"
	"github.com/splat-replay/splat-replay/internal/power"
	"github.com/splat-replay/splat-replay/internal/repository"
	"github.com/splat-replay/splat-replay/internal/storage"
)

// Command names on the process surface.
const (
	CommandStartEditUpload = "process.start_edit_upload"
	CommandCancel          = "process.cancel"
	CommandAcceptSleep     = "process.accept_sleep"
	CommandCancelSleep     = "process.cancel_sleep"
)

// Editor is the edit stage as the orchestrator drives it. Cancel is sticky
// until the next Reset, which the orchestrator issues before each fresh run.
type Editor interface {
	Run(ctx context.Context) (int, error)
	Cancel()
	Reset()
}

// Uploader is the upload stage as the orchestrator drives it.
type Uploader interface {
	Run(ctx context.Context, trigger string) (int, error)
	Cancel()
	Reset()
}

// Orchestrator wires power-off detection to the edit/upload pipeline and
// auto-sleep.
type Orchestrator struct {
	cfg      config.ProcessConfig
	repo     *storage.Repository
	editor   Editor
	uploader Uploader
	events   *bus.EventBus
	commands *bus.CommandBus
	power    power.Manager
	jobs     repository.ProcessJobRepository
	logger   *slog.Logger

	mu         sync.Mutex
	running    bool
	cancelled  bool
	graceTimer *time.Timer
	sleepTimer *time.Timer
}

// NewOrchestrator wires the pipeline tail and registers its commands.
func NewOrchestrator(cfg config.ProcessConfig, repo *storage.Repository, editor Editor, uploader Uploader, events *bus.EventBus, commands *bus.CommandBus, pm power.Manager, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		cfg:      cfg,
		repo:     repo,
		editor:   editor,
		uploader: uploader,
		events:   events,
		commands: commands,
		power:    pm,
		logger:   logger.With(slog.String("component", "auto_process")),
	}
	if commands != nil {
		o.registerCommands()
	}
	return o
}

// WithJobHistory records each edit/upload run in the given repository.
func (o *Orchestrator) WithJobHistory(jobs repository.ProcessJobRepository) *Orchestrator {
	o.jobs = jobs
	return o
}

func (o *Orchestrator) registerCommands() {
	o.commands.Register(CommandStartEditUpload, func(ctx context.Context, payload map[string]any) (any, error) {
		trigger, _ := payload["trigger"].(string)
		if trigger == "" {
			trigger = "manual"
		}
		return nil, o.StartEditUpload(context.WithoutCancel(ctx), trigger)
	})
	o.commands.Register(CommandCancel, func(context.Context, map[string]any) (any, error) {
		o.CancelPending()
		return nil, nil
	})
	o.commands.Register(CommandAcceptSleep, func(ctx context.Context, _ map[string]any) (any, error) {
		o.acceptSleep(context.WithoutCancel(ctx))
		return nil, nil
	})
	o.commands.Register(CommandCancelSleep, func(context.Context, map[string]any) (any, error) {
		o.CancelSleep()
		return nil, nil
	})
}

// Run consumes pipeline events until the context ends.
func (o *Orchestrator) Run(ctx context.Context) error {
	sub := o.events.Subscribe(
		bus.EventRecordingPowerOffDetected,
		bus.EventProcessEditUploadCompleted,
		bus.EventProcessSleepPending,
	)
	defer sub.Close()
	defer o.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-sub.C():
			if !ok {
				return nil
			}
			o.handle(ctx, e)
		}
	}
}

func (o *Orchestrator) handle(ctx context.Context, e bus.Event) {
	switch e.Type {
	case bus.EventRecordingPowerOffDetected:
		if final, _ := e.Payload["final"].(bool); final {
			o.onPowerOff(ctx)
		}
	case bus.EventProcessEditUploadCompleted:
		o.onEditUploadCompleted(e)
	case bus.EventProcessSleepPending:
		o.armSleepTimer(ctx)
	}
}

// onPowerOff grants a grace period before starting the pipeline, so a user
// who powered the console off by accident can cancel.
func (o *Orchestrator) onPowerOff(ctx context.Context) {
	if !o.cfg.EditAfterPowerOff {
		return
	}
	recordings, err := o.repo.ListRecordings()
	if err != nil {
		o.logger.Error("listing recordings", slog.Any("error", err))
		return
	}
	if len(recordings) == 0 {
		o.logger.Info("power off with no recordings, nothing to process")
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running || o.graceTimer != nil {
		return
	}

	timeout := o.cfg.GraceTimeout
	o.events.Publish(bus.NewEvent(bus.EventProcessPending, map[string]any{
		"timeout_seconds": int(timeout.Seconds()),
		"message":         "auto edit and upload starting; cancel to keep raw recordings",
	}))
	o.graceTimer = time.AfterFunc(timeout, func() {
		o.mu.Lock()
		o.graceTimer = nil
		o.mu.Unlock()
		if err := o.StartEditUpload(context.WithoutCancel(ctx), "auto"); err != nil {
			o.logger.Error("auto edit/upload failed", slog.Any("error", err))
		}
	})
}

// StartEditUpload runs the edit stage then the upload stage. Only one run
// may be in flight. A cancel issued during the edit stage stops the run
// there: the upload stage never starts and the completion event reports
// success=false.
func (o *Orchestrator) StartEditUpload(ctx context.Context, trigger string) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return models.NewError(models.KindConflict, "edit/upload already running")
	}
	o.running = true
	o.cancelled = false
	o.mu.Unlock()
	o.editor.Reset()
	o.uploader.Reset()
	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	o.events.Publish(bus.NewEvent(bus.EventProcessStarted, map[string]any{
		"trigger": trigger,
	}))
	job := o.recordJobStart(ctx, trigger)

	edited, err := o.editor.Run(ctx)
	if err != nil {
		// Edited groups are still uploadable; keep going.
		o.logger.Error("edit stage finished with errors", slog.Any("error", err))
	}

	o.mu.Lock()
	cancelled := o.cancelled
	o.mu.Unlock()
	if cancelled {
		o.logger.Info("edit/upload cancelled, skipping upload stage")
		o.events.Publish(bus.NewEvent(bus.EventProcessEditUploadCompleted, map[string]any{
			"success": false,
			"message": "cancelled",
			"trigger": trigger,
		}))
		o.recordJobCancelled(ctx, job, edited)
		return nil
	}

	uploaded, err := o.uploader.Run(ctx, trigger)
	o.recordJobFinish(ctx, job, edited, uploaded, err)
	return err
}

// recordJobStart persists a running job row; history is best effort and never
// blocks the pipeline.
func (o *Orchestrator) recordJobStart(ctx context.Context, trigger string) *models.ProcessJob {
	if o.jobs == nil {
		return nil
	}
	job := &models.ProcessJob{Trigger: models.ProcessTrigger(trigger)}
	job.MarkRunning()
	if err := o.jobs.Create(ctx, job); err != nil {
		o.logger.Warn("recording job start failed", slog.Any("error", err))
		return nil
	}
	return job
}

func (o *Orchestrator) recordJobFinish(ctx context.Context, job *models.ProcessJob, edited, uploaded int, runErr error) {
	if o.jobs == nil || job == nil {
		return
	}
	if runErr != nil {
		job.MarkFailed(runErr)
		job.EditedCount = edited
		job.UploadedCount = uploaded
	} else {
		job.MarkCompleted(edited, uploaded)
	}
	if err := o.jobs.Update(ctx, job); err != nil {
		o.logger.Warn("recording job finish failed", slog.Any("error", err))
	}
}

func (o *Orchestrator) recordJobCancelled(ctx context.Context, job *models.ProcessJob, edited int) {
	if o.jobs == nil || job == nil {
		return
	}
	job.MarkCancelled()
	job.EditedCount = edited
	if err := o.jobs.Update(ctx, job); err != nil {
		o.logger.Warn("recording job finish failed", slog.Any("error", err))
	}
}

// CancelPending aborts the grace period and any in-flight stages.
func (o *Orchestrator) CancelPending() {
	o.mu.Lock()
	o.cancelled = true
	if o.graceTimer != nil {
		o.graceTimer.Stop()
		o.graceTimer = nil
		o.logger.Info("pending auto process cancelled")
	}
	o.mu.Unlock()
	o.editor.Cancel()
	o.uploader.Cancel()
}

// onEditUploadCompleted chains into auto-sleep for successful auto runs.
func (o *Orchestrator) onEditUploadCompleted(e bus.Event) {
	if !o.cfg.SleepAfterUpload {
		return
	}
	success, _ := e.Payload["success"].(bool)
	trigger, _ := e.Payload["trigger"].(string)
	if !success || trigger != "auto" {
		return
	}
	o.events.Publish(bus.NewEvent(bus.EventProcessSleepPending, map[string]any{
		"timeout_seconds": int(o.cfg.GraceTimeout.Seconds()),
		"message":         "system will sleep; cancel to stay awake",
	}))
}

// armSleepTimer sleeps after the grace period unless cancelled or accepted
// earlier.
func (o *Orchestrator) armSleepTimer(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sleepTimer != nil {
		return
	}
	o.sleepTimer = time.AfterFunc(o.cfg.GraceTimeout, func() {
		o.acceptSleep(context.WithoutCancel(ctx))
	})
}

// acceptSleep suspends the host after a short delay that lets logs flush and
// the sleep.started event reach subscribers.
func (o *Orchestrator) acceptSleep(ctx context.Context) {
	o.mu.Lock()
	if o.sleepTimer != nil {
		o.sleepTimer.Stop()
		o.sleepTimer = nil
	}
	o.mu.Unlock()

	o.events.Publish(bus.NewEvent(bus.EventProcessSleepStarted, map[string]any{
		"delay_seconds": int(o.cfg.SleepDelay.Seconds()),
	}))
	select {
	case <-time.After(o.cfg.SleepDelay):
	case <-ctx.Done():
		return
	}
	// A failed suspend leaves the machine awake; that is only worth a log.
	if err := o.power.Sleep(ctx); err != nil {
		o.logger.Error("suspend failed", slog.Any("error", err))
	}
}

// CancelSleep disarms a pending auto-sleep.
func (o *Orchestrator) CancelSleep() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sleepTimer != nil {
		o.sleepTimer.Stop()
		o.sleepTimer = nil
		o.logger.Info("auto sleep cancelled")
	}
}

func (o *Orchestrator) stopTimers() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.graceTimer != nil {
		o.graceTimer.Stop()
		o.graceTimer = nil
	}
	if o.sleepTimer != nil {
		o.sleepTimer.Stop()
		o.sleepTimer = nil
	}
}
