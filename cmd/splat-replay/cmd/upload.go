package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/splat-replay/splat-replay/internal/bus"
	"github.com/splat-replay/splat-replay/internal/editor"
	"github.com/splat-replay/splat-replay/internal/ffmpeg"
	"github.com/splat-replay/splat-replay/internal/models"
	"github.com/splat-replay/splat-replay/internal/service/progress"
	"github.com/splat-replay/splat-replay/internal/storage"
	"github.com/splat-replay/splat-replay/internal/uploader"
)

var uploadSkipPublish bool

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Edit recordings and upload, then exit",
	Long: `Run the edit and upload pipeline once against the recorded library:
group recordings, merge each group into an upload-ready video, and publish
the results to YouTube. Useful for working through a backlog without
starting the server.

Exits non-zero if editing or uploading fails.`,
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().BoolVar(&uploadSkipPublish, "edit-only", false, "stop after editing, do not upload")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := slog.Default()
	ctx := cmd.Context()

	events := bus.NewEventBus(0)
	defer events.Close()
	reporter := progress.NewReporter(events, logger)

	repo, err := storage.NewRepository(cfg.Storage, events, logger)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	media := ffmpeg.NewEditor(cfg.Editor, logger)
	edited, err := editor.NewAutoEditor(cfg.Editor, repo, media, reporter, logger).Run(ctx)
	if err != nil {
		return fmt.Errorf("editing: %w", err)
	}
	fmt.Printf("edited %d video(s)\n", edited)

	if uploadSkipPublish {
		return nil
	}

	publisher := buildPublisher(ctx, cfg.Upload, logger)
	up := uploader.NewAutoUploader(cfg.Upload, repo, publisher, events, reporter, logger)
	uploaded, err := up.Run(ctx, string(models.TriggerManual))
	if err != nil {
		return fmt.Errorf("uploading: %w", err)
	}
	fmt.Printf("uploaded %d video(s)\n", uploaded)
	return nil
}
