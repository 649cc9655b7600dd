package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/LavX/opensubtitles-scraper/internal/cache"
	"github.com/LavX/opensubtitles-scraper/internal/config"
	"github.com/LavX/opensubtitles-scraper/internal/language"
	"github.com/LavX/opensubtitles-scraper/internal/models"
	"github.com/LavX/opensubtitles-scraper/internal/parser"
	"github.com/LavX/opensubtitles-scraper/internal/transport"
)

// Client defines the interface for scraping opensubtitles.org
type Client interface {
	Search(ctx context.Context, query models.SearchQuery) ([]models.SearchResult, error)
	ListSubtitles(ctx context.Context, result models.SearchResult) ([]models.SubtitleEntry, error)
	ListEpisodeSubtitles(ctx context.Context, result models.SearchResult, season, episode int) ([]models.SubtitleEntry, error)
	Download(ctx context.Context, entry models.SubtitleEntry) (*models.SubtitlePayload, error)
	// DownloadEpisode picks the given episode out of a season pack archive.
	DownloadEpisode(ctx context.Context, entry models.SubtitleEntry, episode int) (*models.SubtitlePayload, error)

	// Status reports the transport session state for health probes.
	Status() transport.Status

	// Close releases the session and the page cache.
	Close() error
}

// Session is the part of the transport session the client drives.
type Session interface {
	Execute(ctx context.Context, req transport.Request) (*transport.Response, error)
	Status() transport.Status
	Close() error
}

// ErrInvalidLocator is returned when a result or entry does not carry an absolute URL.
var ErrInvalidLocator = errors.New("client: locator is not an absolute URL")

// client implements the Client interface
type client struct {
	session          Session
	pages            cache.Store
	baseURL          string
	downloadBaseURL  string
	imdbBaseURL      string
	operationTimeout time.Duration
	languages        *language.Mapper

	search    *parser.SearchExtractor
	listing   *parser.ListingExtractor
	downloads *parser.DownloadExtractor
}

// NewClient creates the transport session and page cache described by cfg and
// returns a client on top of them.
func NewClient(cfg *config.Config) (Client, error) {
	logger := config.GetLogger()

	solverTimeout := config.ParseDuration("challenge.solve_timeout", cfg.Challenge.SolveTimeout, 60*time.Second)
	solver := transport.NewSolver(cfg.Challenge.Solver, cfg.Challenge.SolverURL, &http.Client{Timeout: solverTimeout})

	session, err := transport.NewSession(transport.SettingsFromConfig(cfg), transport.WithSolver(solver))
	if err != nil {
		return nil, fmt.Errorf("failed to create transport session: %w", err)
	}

	var pages cache.Store
	if cfg.Cache.Type != "" && cfg.Cache.Size > 0 {
		pages, err = cache.New(cfg.Cache.Type, cache.Options{
			Size:   cfg.Cache.Size,
			TTL:    config.ParseDuration("cache.ttl", cfg.Cache.TTL, time.Hour),
			Logger: cacheLogger{},
			Redis: cache.RedisOptions{
				Address:  cfg.Cache.Redis.Address,
				Password: cfg.Cache.Redis.Password,
				DB:       cfg.Cache.Redis.DB,
			},
			Group: "pages",
		})
		if err != nil {
			// Scraping works without a cache, just slower
			logger.Warn().Err(err).Str("type", cfg.Cache.Type).Msg("Failed to create page cache, continuing without cache")
			pages = nil
		}
	}

	logger.Info().
		Str("baseURL", cfg.BaseURL).
		Str("solver", solver.Name()).
		Str("cache", cfg.Cache.Type).
		Msg("Scrape client ready")

	return New(cfg, session, pages), nil
}

// New builds a client on an existing session. pages may be nil to disable page caching.
func New(cfg *config.Config, session Session, pages cache.Store) Client {
	downloadBase := cfg.DownloadBaseURL
	if downloadBase == "" {
		downloadBase = cfg.BaseURL
	}
	imdbBase := cfg.IMDBBaseURL
	if imdbBase == "" {
		imdbBase = "https://www.imdb.com"
	}
	return &client{
		session:          session,
		pages:            pages,
		baseURL:          cfg.BaseURL,
		downloadBaseURL:  downloadBase,
		imdbBaseURL:      imdbBase,
		languages:        language.Default(),
		operationTimeout: config.ParseDuration("operation_timeout", cfg.OperationTimeout, 2*time.Minute),
		search:           parser.NewSearchExtractor(),
		listing:          parser.NewListingExtractor(language.Default()),
		downloads:        parser.NewDownloadExtractor(cfg.BaseURL, cfg.Download.ConvertToUTF8),
	}
}

// Status reports the transport session state.
func (c *client) Status() transport.Status {
	return c.session.Status()
}

// Close releases the session and the page cache.
func (c *client) Close() error {
	var errs []error
	if err := c.session.Close(); err != nil {
		errs = append(errs, err)
	}
	if c.pages != nil {
		if err := c.pages.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.operationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.operationTimeout)
}

type cacheLogger struct{}

func (cacheLogger) Error(msg string, err error) {
	logger := config.GetLogger()
	logger.Error().Err(err).Msg(msg)
}
