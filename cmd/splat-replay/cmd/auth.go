package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/splat-replay/splat-replay/internal/httpclient"
	"github.com/splat-replay/splat-replay/internal/uploader"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize YouTube uploads",
	Long: `Run the OAuth flow for the YouTube Data API. Prints the consent URL,
waits for the authorization code, and stores the refresh token at
upload.token_file for the server to use.`,
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
}

func runAuth(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	auth := uploader.NewAuthenticator(cfg.Upload, httpclient.NewWithDefaults())
	url, err := auth.AuthURL()
	if err != nil {
		return fmt.Errorf("building consent URL: %w", err)
	}

	fmt.Println("Open this URL in a browser and authorize the application:")
	fmt.Println()
	fmt.Println("  " + url)
	fmt.Println()
	fmt.Print("Paste the authorization code: ")

	reader := bufio.NewReader(os.Stdin)
	code, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading authorization code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("empty authorization code")
	}

	if err := auth.Exchange(cmd.Context(), code); err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}

	fmt.Println("Token saved to", cfg.Upload.TokenFile)
	return nil
}
