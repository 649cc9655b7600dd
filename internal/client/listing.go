package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LavX/opensubtitles-scraper/internal/apperrors"
	"github.com/LavX/opensubtitles-scraper/internal/cache"
	"github.com/LavX/opensubtitles-scraper/internal/config"
	"github.com/LavX/opensubtitles-scraper/internal/models"
	"github.com/LavX/opensubtitles-scraper/internal/parser"
)

// ErrSeriesPage is returned when a detail page lists episodes instead of subtitles.
var ErrSeriesPage = errors.New("client: detail page lists episodes, a season and episode are required")

// ListSubtitles fetches the subtitle listing behind a search result.
func (c *client) ListSubtitles(ctx context.Context, result models.SearchResult) (entries []models.SubtitleEntry, err error) {
	const operation = "list"
	start := time.Now()
	defer func() { observe(operation, start, err) }()

	target, err := absolute(result.DetailURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	p, err := c.fetchPage(ctx, target)
	if err != nil {
		return nil, classify(operation, target, err)
	}
	if parser.IsSeriesPage(p.Reader()) {
		return nil, fmt.Errorf("%w: %s", ErrSeriesPage, target)
	}
	entries, err = c.extractListing(ctx, operation, target, p)
	if err != nil {
		return nil, err
	}

	logger := config.GetLogger()
	logger.Info().
		Str("id", result.ID).
		Str("title", result.Title).
		Int("entries", len(entries)).
		Msg("Listed subtitles")
	return entries, nil
}

// ListEpisodeSubtitles walks a series page to one episode and lists its subtitles.
func (c *client) ListEpisodeSubtitles(ctx context.Context, result models.SearchResult, season, episode int) (entries []models.SubtitleEntry, err error) {
	const operation = "list_episode"
	start := time.Now()
	defer func() { observe(operation, start, err) }()

	logger := config.GetLogger()

	target, err := absolute(result.DetailURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	series, err := c.fetchPage(ctx, target)
	if err != nil {
		return nil, classify(operation, target, err)
	}

	episodes, err := c.listing.ExtractEpisodes(series.Reader(), c.listingContext(series.FinalURL))
	if err != nil {
		c.forget(ctx, target)
		return nil, classify(operation, target, err)
	}

	var ref *models.EpisodeRef
	for i := range episodes {
		if episodes[i].Season == season && episodes[i].Episode == episode {
			ref = &episodes[i]
			break
		}
	}
	if ref == nil {
		logger.Info().
			Str("id", result.ID).
			Int("season", season).
			Int("episode", episode).
			Int("episodes", len(episodes)).
			Msg("Episode not listed on series page")
		return nil, apperrors.NewEpisodeNotFoundError(season, episode)
	}

	entries, err = c.listPage(ctx, operation, ref.URL)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("id", result.ID).
		Int("season", season).
		Int("episode", episode).
		Int("entries", len(entries)).
		Msg("Listed episode subtitles")
	return entries, nil
}

func (c *client) listPage(ctx context.Context, operation, target string) ([]models.SubtitleEntry, error) {
	p, err := c.fetchPage(ctx, target)
	if err != nil {
		return nil, classify(operation, target, err)
	}
	return c.extractListing(ctx, operation, target, p)
}

func (c *client) extractListing(ctx context.Context, operation, target string, p cache.Page) ([]models.SubtitleEntry, error) {
	entries, err := c.listing.Extract(p.Reader(), c.listingContext(p.FinalURL))
	if err != nil {
		c.forget(ctx, target)
		return nil, classify(operation, target, err)
	}
	return entries, nil
}

func (c *client) listingContext(pageURL string) parser.ListingContext {
	return parser.ListingContext{
		BaseURL:         c.baseURL,
		DownloadBaseURL: c.downloadBaseURL,
		PageURL:         pageURL,
	}
}
