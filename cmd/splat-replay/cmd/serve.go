package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/splat-replay/splat-replay/internal/analyzer"
	"github.com/splat-replay/splat-replay/internal/autoprocess"
	"github.com/splat-replay/splat-replay/internal/bus"
	"github.com/splat-replay/splat-replay/internal/capture"
	"github.com/splat-replay/splat-replay/internal/config"
	"github.com/splat-replay/splat-replay/internal/database"
	"github.com/splat-replay/splat-replay/internal/editor"
	"github.com/splat-replay/splat-replay/internal/ffmpeg"
	internalhttp "github.com/splat-replay/splat-replay/internal/http"
	"github.com/splat-replay/splat-replay/internal/http/handlers"
	"github.com/splat-replay/splat-replay/internal/httpclient"
	"github.com/splat-replay/splat-replay/internal/matcher"
	"github.com/splat-replay/splat-replay/internal/models"
	"github.com/splat-replay/splat-replay/internal/obs"
	"github.com/splat-replay/splat-replay/internal/power"
	"github.com/splat-replay/splat-replay/internal/record"
	"github.com/splat-replay/splat-replay/internal/repository"
	"github.com/splat-replay/splat-replay/internal/scheduler"
	"github.com/splat-replay/splat-replay/internal/service/logs"
	"github.com/splat-replay/splat-replay/internal/service/progress"
	"github.com/splat-replay/splat-replay/internal/setup"
	"github.com/splat-replay/splat-replay/internal/storage"
	"github.com/splat-replay/splat-replay/internal/transcriber"
	"github.com/splat-replay/splat-replay/internal/uploader"
	"github.com/splat-replay/splat-replay/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the splat-replay server",
	Long: `Start the HTTP server with the full pipeline: capture loop, auto
recording, transcription, edit/upload processing, scheduler, and REST API.

The server provides:
- REST API for recorder control, asset management, and processing
- SSE streams for events, progress, and logs
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Host to bind to (overrides config)")
	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "host":
			cfg.Server.Host = f.Value.String()
		case "port":
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}
	})

	// Tee every log record into the capture service so the API can serve
	// the recent tail and stream live entries.
	logsService := logs.New()
	slog.SetDefault(slog.New(logsService.WrapHandler(slog.Default().Handler())))
	logger := slog.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Buses.
	events := bus.NewEventBus(0)
	defer events.Close()
	commands := bus.NewCommandBus(4, 64, logger)
	defer commands.Close()
	hub := bus.NewFrameHub()

	// Job history database.
	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	jobs := repository.NewProcessJobRepository(db.DB)

	// Asset storage.
	repo, err := storage.NewRepository(cfg.Storage, events, logger)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	// Progress tail and reporter.
	store := progress.NewStore(events, 0, logger)
	go store.Run(ctx)
	reporter := progress.NewReporter(events, logger)

	// Frame analysis.
	registry, err := matcher.LoadRegistry(cfg.Matcher.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading matcher definitions: %w", err)
	}
	frameAnalyzer := analyzer.New(registry, analyzer.NewTesseractOCR(cfg.OCR), logger)

	// Recording core.
	recorder := obs.NewClient(cfg.OBS, logger)
	deviceCapture := capture.NewDeviceCapture(cfg.Capture, cfg.Editor, logger)
	session := record.NewSessionService(record.NewMachine(), recorder, repo, frameAnalyzer, events, logger)
	detector := record.NewWeaponDetector(frameAnalyzer, frameAnalyzer, events, logger)
	phases := record.NewHandlers(frameAnalyzer, detector, events, logger)
	useCase := record.NewAutoRecordingUseCase(deviceCapture, session, phases, detector, hub, events, commands, logger)
	go func() {
		if err := useCase.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("auto recording exited", slog.String("error", err.Error()))
		}
	}()

	// Microphone transcription.
	if cfg.Transcriber.Enabled {
		recognizer := transcriber.NewWhisperRecognizer(cfg.Transcriber, logger)
		transcripts := transcriber.NewService(recognizer, repo, events, logger)
		go func() {
			if err := transcripts.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("transcriber exited", slog.String("error", err.Error()))
			}
		}()
	}

	// Edit and upload pipeline.
	media := ffmpeg.NewEditor(cfg.Editor, logger)
	autoEditor := editor.NewAutoEditor(cfg.Editor, repo, media, reporter, logger)
	publisher := buildPublisher(ctx, cfg.Upload, logger)
	autoUploader := uploader.NewAutoUploader(cfg.Upload, repo, publisher, events, reporter, logger)

	orchestrator := autoprocess.NewOrchestrator(cfg.Process, repo, autoEditor, autoUploader,
		events, commands, power.NewSystemManager(logger), logger).WithJobHistory(jobs)
	go orchestrator.Run(ctx)

	// Scheduled processing.
	sched := scheduler.New(cfg.Process.Schedule, repo, orchestrator, logger)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	// HTTP server.
	server := internalhttp.NewServer(cfg.Server, logger, version.Version)

	handlers.NewHealthHandler(version.Version).Register(server.API())
	handlers.NewRecorderHandler(commands, recorder).Register(server.API())
	handlers.NewAssetsHandler(repo).Register(server.API())
	handlers.NewProcessHandler(commands, jobs).Register(server.API())
	handlers.NewSetupHandler(setup.NewService(cfg, logger)).Register(server.API())

	progressHandler := handlers.NewProgressHandler(store)
	progressHandler.Register(server.API())
	progressHandler.RegisterSSE(server.Router())

	handlers.NewEventsHandler(events).RegisterSSE(server.Router())

	systemHandler := handlers.NewSystemHandler(logsService, cfg.Storage.BaseDir)
	systemHandler.Register(server.API())
	systemHandler.RegisterSSE(server.Router())

	// Graceful shutdown on SIGINT/SIGTERM.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("starting splat-replay server",
		slog.String("address", cfg.Server.Address()),
		slog.String("version", version.Version),
	)
	return server.ListenAndServe(ctx)
}

// buildPublisher returns the YouTube publisher when OAuth credentials are in
// place, or a placeholder that fails uploads with an authentication error so
// the server can run before "splat-replay auth" has been completed.
func buildPublisher(ctx context.Context, cfg config.UploadConfig, logger *slog.Logger) uploader.Publisher {
	auth := uploader.NewAuthenticator(cfg, httpclient.NewWithDefaults())
	client, err := auth.Client(ctx)
	if err != nil {
		logger.Warn("youtube auth not configured, uploads disabled until authorized",
			slog.String("error", err.Error()))
		return unauthenticatedPublisher{}
	}
	publisher, err := uploader.NewYouTubePublisher(ctx, client)
	if err != nil {
		logger.Warn("youtube client init failed, uploads disabled",
			slog.String("error", err.Error()))
		return unauthenticatedPublisher{}
	}
	return publisher
}

// unauthenticatedPublisher rejects every publish call until OAuth is set up.
type unauthenticatedPublisher struct{}

func (unauthenticatedPublisher) Upload(context.Context, uploader.UploadRequest) (string, error) {
	return "", models.NewError(models.KindAuthentication, "youtube not authorized, run: splat-replay auth")
}

func (unauthenticatedPublisher) AddCaption(context.Context, string, string, string, []byte) error {
	return models.NewError(models.KindAuthentication, "youtube not authorized")
}

func (unauthenticatedPublisher) SetThumbnail(context.Context, string, []byte) error {
	return models.NewError(models.KindAuthentication, "youtube not authorized")
}

func (unauthenticatedPublisher) AddToPlaylist(context.Context, string, string) error {
	return models.NewError(models.KindAuthentication, "youtube not authorized")
}
