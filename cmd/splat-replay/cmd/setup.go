package cmd

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/splat-replay/splat-replay/internal/setup"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Run the first-run environment checks",
	Long: `Check hardware capacity, ffmpeg, the OBS websocket, tesseract, the
overlay font, and YouTube credentials, then persist the result so the API
and the next run can pick up where this one left off.`,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	state, err := setup.NewService(cfg, slog.Default()).Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("running setup checks: %w", err)
	}

	ids := make([]string, 0, len(state.Steps))
	for id := range state.Steps {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	for _, id := range ids {
		step := state.Steps[setup.StepID(id)]
		fmt.Printf("%-16s %s\n", id, step.Status)
		for name, detail := range step.Substeps {
			fmt.Printf("  %-14s %s\n", name, detail)
		}
	}

	if state.Complete() {
		fmt.Println("\nsetup complete")
	} else {
		fmt.Println("\nsetup incomplete, fix the pending steps and re-run")
	}
	return nil
}
