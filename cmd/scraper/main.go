// Command scraper serves and queries the OpenSubtitles.org scraper.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/LavX/opensubtitles-scraper/internal/api"
	"github.com/LavX/opensubtitles-scraper/internal/client"
	"github.com/LavX/opensubtitles-scraper/internal/config"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "scraper",
	Short:         "Search and download subtitles from OpenSubtitles.org",
	Long:          "Scrapes OpenSubtitles.org through an anti-bot aware session and exposes it as an HTTP API or one-shot commands.",
	Version:       api.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().Bool("pretty", true, "Indent JSON output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger := config.GetLogger()
		logger.Error().Err(err).Msg("Command failed")
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withClient runs fn with a client built from the loaded configuration.
func withClient(fn func(c client.Client) error) error {
	c, err := client.NewClient(config.GetConfig())
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger := config.GetLogger()
			logger.Warn().Err(err).Msg("Failed to close scrape client")
		}
	}()
	return fn(c)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if lo.Must(cmd.Flags().GetBool("pretty")) {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
