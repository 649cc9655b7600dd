package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/LavX/opensubtitles-scraper/internal/client"
	"github.com/LavX/opensubtitles-scraper/internal/language"
	"github.com/LavX/opensubtitles-scraper/internal/models"
	"github.com/LavX/opensubtitles-scraper/internal/payload"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <title>",
	Short: "Search titles and print the results as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := models.SearchQuery{
			Year:   lo.Must(cmd.Flags().GetInt("year")),
			IMDBID: lo.Must(cmd.Flags().GetString("imdb")),
			Kind:   models.ParseMediaKind(lo.Must(cmd.Flags().GetString("kind"))),
			Languages: lo.Map(lo.Must(cmd.Flags().GetStringSlice("lang")), func(token string, _ int) language.Language {
				return language.Resolve(token)
			}),
		}
		if len(args) == 1 {
			query.Title = strings.TrimSpace(args[0])
		}
		if query.Title == "" && query.IMDBID == "" {
			return fmt.Errorf("a title or --imdb is required")
		}

		return withClient(func(c client.Client) error {
			results, err := c.Search(cmd.Context(), query)
			if err != nil {
				return err
			}
			return printJSON(cmd, results)
		})
	},
}

var subtitlesCmd = &cobra.Command{
	Use:   "subtitles <detail-url>",
	Short: "List the subtitles behind a search result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		season := lo.Must(cmd.Flags().GetInt("season"))
		episode := lo.Must(cmd.Flags().GetInt("episode"))
		if (season > 0) != (episode > 0) {
			return fmt.Errorf("--season and --episode must be given together")
		}
		codes := lo.Map(lo.Must(cmd.Flags().GetStringSlice("lang")), func(token string, _ int) string {
			return language.Resolve(token).Code
		})

		return withClient(func(c client.Client) error {
			result := models.SearchResult{DetailURL: args[0]}
			var (
				entries []models.SubtitleEntry
				err     error
			)
			if season > 0 {
				entries, err = c.ListEpisodeSubtitles(cmd.Context(), result, season, episode)
			} else {
				entries, err = c.ListSubtitles(cmd.Context(), result)
			}
			if err != nil {
				return err
			}
			if len(codes) > 0 {
				entries = lo.Filter(entries, func(e models.SubtitleEntry, _ int) bool {
					return lo.Contains(codes, e.Language.Code)
				})
			}
			return printJSON(cmd, entries)
		})
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download <subtitle-id>",
	Short: "Download a subtitle file",
	Long:  "Downloads a subtitle by id (or --url) and writes it to --output, a directory, or stdout with --output -.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry := models.SubtitleEntry{
			DownloadURL: lo.Must(cmd.Flags().GetString("url")),
			DetailURL:   lo.Must(cmd.Flags().GetString("detail")),
		}
		if len(args) == 1 {
			entry.ID = args[0]
		}
		if entry.ID == "" && entry.DownloadURL == "" {
			return fmt.Errorf("a subtitle id or --url is required")
		}
		output := lo.Must(cmd.Flags().GetString("output"))

		return withClient(func(c client.Client) error {
			p, err := c.DownloadEpisode(cmd.Context(), entry, lo.Must(cmd.Flags().GetInt("episode")))
			if err != nil {
				return err
			}
			if output == "-" {
				_, err = cmd.OutOrStdout().Write(p.Content)
				return err
			}

			name := p.FileName
			if filepath.Ext(name) == "" {
				name += payload.ExtensionForContentType(p.ContentType)
			}
			target := output
			if info, statErr := os.Stat(output); statErr == nil && info.IsDir() {
				target = filepath.Join(output, filepath.Base(name))
			}
			if err := os.WriteFile(target, p.Content, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", target, err)
			}
			cmd.PrintErrf("Saved %s (%d bytes, %s)\n", target, len(p.Content), p.Encoding)
			return nil
		})
	},
}

func init() {
	searchCmd.Flags().Int("year", 0, "Release year")
	searchCmd.Flags().String("imdb", "", "IMDB id (tt1234567)")
	searchCmd.Flags().StringP("kind", "k", "", "Restrict to movie or tv")
	searchCmd.Flags().StringSliceP("lang", "l", nil, "Only count subtitles in these languages")

	subtitlesCmd.Flags().Int("season", 0, "Season number")
	subtitlesCmd.Flags().Int("episode", 0, "Episode number")
	subtitlesCmd.Flags().StringSliceP("lang", "l", nil, "Languages to keep (en, French, pt-BR)")

	downloadCmd.Flags().String("url", "", "Download URL instead of an id")
	downloadCmd.Flags().String("detail", "", "Detail page URL sent as referer")
	downloadCmd.Flags().Int("episode", 0, "Episode to pick from a season pack")
	downloadCmd.Flags().StringP("output", "o", ".", "File or directory to write, - for stdout")

	rootCmd.AddCommand(searchCmd, subtitlesCmd, downloadCmd)
}
