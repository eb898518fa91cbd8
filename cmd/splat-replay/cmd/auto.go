package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/splat-replay/splat-replay/internal/analyzer"
	"github.com/splat-replay/splat-replay/internal/bus"
	"github.com/splat-replay/splat-replay/internal/capture"
	"github.com/splat-replay/splat-replay/internal/editor"
	"github.com/splat-replay/splat-replay/internal/ffmpeg"
	"github.com/splat-replay/splat-replay/internal/matcher"
	"github.com/splat-replay/splat-replay/internal/models"
	"github.com/splat-replay/splat-replay/internal/obs"
	"github.com/splat-replay/splat-replay/internal/record"
	"github.com/splat-replay/splat-replay/internal/service/progress"
	"github.com/splat-replay/splat-replay/internal/storage"
	"github.com/splat-replay/splat-replay/internal/transcriber"
	"github.com/splat-replay/splat-replay/internal/uploader"
)

var autoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Run the full pipeline headless until console power-off",
	Long: `Watch the capture feed and record battles automatically, without the
HTTP server. When the console powers off the recording loop exits; if
process.edit_after_power_off is enabled the recorded clips are then edited
and uploaded before the command returns.

Exits non-zero if recording, editing, or uploading fails.`,
	RunE: runAuto,
}

func init() {
	rootCmd.AddCommand(autoCmd)
}

func runAuto(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := slog.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	events := bus.NewEventBus(0)
	defer events.Close()
	commands := bus.NewCommandBus(4, 64, logger)
	defer commands.Close()

	repo, err := storage.NewRepository(cfg.Storage, events, logger)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	registry, err := matcher.LoadRegistry(cfg.Matcher.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading matcher definitions: %w", err)
	}
	frameAnalyzer := analyzer.New(registry, analyzer.NewTesseractOCR(cfg.OCR), logger)

	recorder := obs.NewClient(cfg.OBS, logger)
	deviceCapture := capture.NewDeviceCapture(cfg.Capture, cfg.Editor, logger)
	session := record.NewSessionService(record.NewMachine(), recorder, repo, frameAnalyzer, events, logger)
	detector := record.NewWeaponDetector(frameAnalyzer, frameAnalyzer, events, logger)
	phases := record.NewHandlers(frameAnalyzer, detector, events, logger)
	useCase := record.NewAutoRecordingUseCase(deviceCapture, session, phases, detector,
		bus.NewFrameHub(), events, commands, logger)

	if cfg.Transcriber.Enabled {
		recognizer := transcriber.NewWhisperRecognizer(cfg.Transcriber, logger)
		transcripts := transcriber.NewService(recognizer, repo, events, logger)
		go func() {
			if err := transcripts.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("transcriber exited", slog.String("error", err.Error()))
			}
		}()
	}

	// Blocks until console power-off (nil) or cancellation.
	if err := useCase.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("auto recording: %w", err)
	}

	if !cfg.Process.EditAfterPowerOff {
		return nil
	}

	reporter := progress.NewReporter(events, logger)
	media := ffmpeg.NewEditor(cfg.Editor, logger)
	edited, err := editor.NewAutoEditor(cfg.Editor, repo, media, reporter, logger).Run(ctx)
	if err != nil {
		return fmt.Errorf("editing: %w", err)
	}
	logger.Info("edit finished", slog.Int("videos", edited))

	publisher := buildPublisher(ctx, cfg.Upload, logger)
	up := uploader.NewAutoUploader(cfg.Upload, repo, publisher, events, reporter, logger)
	uploaded, err := up.Run(ctx, string(models.TriggerAuto))
	if err != nil {
		return fmt.Errorf("uploading: %w", err)
	}
	logger.Info("upload finished", slog.Int("videos", uploaded))
	return nil
}
