package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/splat-replay/splat-replay/internal/obs"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List video capture devices",
	Long: `Connect to the OBS websocket and list the video capture inputs of the
current scene collection. Useful for filling in capture.device_name.`,
	RunE: runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client := obs.NewClient(cfg.OBS, slog.Default())
	if err := client.Setup(ctx); err != nil {
		return fmt.Errorf("connecting to OBS: %w", err)
	}
	defer client.Teardown(context.Background())

	devices, err := client.ListVideoDevices(ctx)
	if err != nil {
		return fmt.Errorf("listing devices: %w", err)
	}
	if len(devices) == 0 {
		fmt.Println("no video capture inputs found")
		return nil
	}
	for _, name := range devices {
		fmt.Println(name)
	}
	return nil
}
