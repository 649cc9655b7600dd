// Package provider exposes the scraper as a subtitle provider: a video and a
// set of languages in, ranked subtitle entries out.
package provider

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/LavX/opensubtitles-scraper/internal/apperrors"
	"github.com/LavX/opensubtitles-scraper/internal/client"
	"github.com/LavX/opensubtitles-scraper/internal/config"
	"github.com/LavX/opensubtitles-scraper/internal/language"
	"github.com/LavX/opensubtitles-scraper/internal/metrics"
	"github.com/LavX/opensubtitles-scraper/internal/models"

	"github.com/getsentry/sentry-go"
)

// ErrNotInitialized is returned by calls made before Initialize or after Terminate.
var ErrNotInitialized = errors.New("provider: not initialized")

// Provider is the capability a subtitle consumer drives.
type Provider interface {
	Initialize(ctx context.Context) error
	Terminate()
	ListSubtitles(ctx context.Context, video models.Video, languages []language.Language) ([]models.SubtitleEntry, error)
	Download(ctx context.Context, entry models.SubtitleEntry) (*models.SubtitlePayload, error)
	BestMatch(results []models.SearchResult, query models.SearchQuery) (models.SearchResult, bool)
	// Languages lists the languages the provider can be asked for.
	Languages() []language.Language
}

// Reporter receives structural mismatches for out-of-band alerting.
type Reporter func(err error, operation string)

// Option customizes a provider.
type Option func(*provider)

// WithReporter replaces the Sentry reporter.
func WithReporter(r Reporter) Option {
	return func(p *provider) { p.report = r }
}

type provider struct {
	client    client.Client
	ranking   config.RankingConfig
	languages *language.Mapper
	report    Reporter
	ready     atomic.Bool
}

// New creates a provider on top of a scrape client. Zero ranking weights fall back to DefaultRanking.
func New(c client.Client, ranking config.RankingConfig, opts ...Option) Provider {
	if ranking.ExactMatch == 0 && ranking.Containment == 0 && ranking.Similarity == 0 {
		ranking = DefaultRanking
	}
	p := &provider{
		client:    c,
		ranking:   ranking,
		languages: language.Default(),
		report:    sentryReporter,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Initialize prepares the provider. It is idempotent.
func (p *provider) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.ready.Swap(true) {
		return nil
	}
	logger := config.GetLogger()
	logger.Info().
		Int("languages", len(p.languages.Supported())).
		Float64("minScore", p.ranking.MinScore).
		Msg("Subtitle provider initialized")
	return nil
}

// Terminate closes the underlying client. The provider cannot be used afterwards.
func (p *provider) Terminate() {
	if !p.ready.Swap(false) {
		return
	}
	if err := p.client.Close(); err != nil {
		logger := config.GetLogger()
		logger.Warn().Err(err).Msg("Failed to close scrape client")
	}
}

// Languages lists every language the site can be searched in.
func (p *provider) Languages() []language.Language {
	return p.languages.Supported()
}

// BestMatch picks the search result that identifies the queried video.
func (p *provider) BestMatch(results []models.SearchResult, query models.SearchQuery) (models.SearchResult, bool) {
	return bestMatch(results, query, p.ranking)
}

// ListSubtitles searches the video, lists the subtitles of the best match and
// returns those in the requested languages, best first. A video the site does
// not know yields an empty slice.
func (p *provider) ListSubtitles(ctx context.Context, video models.Video, languages []language.Language) ([]models.SubtitleEntry, error) {
	if !p.ready.Load() {
		return nil, ErrNotInitialized
	}
	logger := config.GetLogger()
	query := video.Query()
	query.Languages = languages

	results, err := p.client.Search(ctx, query)
	if err != nil {
		return p.fail("search", err)
	}

	best, ok := p.BestMatch(results, query)
	if !ok {
		logger.Info().
			Str("title", video.Title).
			Int("year", video.Year).
			Int("results", len(results)).
			Msg("No search result matches the video")
		return []models.SubtitleEntry{}, nil
	}

	var entries []models.SubtitleEntry
	if video.IsEpisode() {
		entries, err = p.client.ListEpisodeSubtitles(ctx, best, video.Season, video.Episode)
	} else {
		entries, err = p.client.ListSubtitles(ctx, best)
	}
	if err != nil {
		return p.fail("list", err)
	}

	filtered := filterLanguages(entries, languages)
	rankEntries(filtered, languages)

	logger.Info().
		Str("title", best.Title).
		Str("id", best.ID).
		Int("listed", len(entries)).
		Int("matched", len(filtered)).
		Msg("Provider listed subtitles")
	return filtered, nil
}

// Download fetches the payload of an entry.
func (p *provider) Download(ctx context.Context, entry models.SubtitleEntry) (*models.SubtitlePayload, error) {
	if !p.ready.Load() {
		return nil, ErrNotInitialized
	}
	payload, err := p.client.Download(ctx, entry)
	if err != nil {
		if errors.Is(err, apperrors.ErrStructuralMismatch) {
			p.mismatch("download", err)
		}
		return nil, err
	}
	return payload, nil
}

// fail maps an orchestrator error onto the provider contract: absence becomes an
// empty result, everything else is returned.
func (p *provider) fail(operation string, err error) ([]models.SubtitleEntry, error) {
	if errors.Is(err, &apperrors.ErrNotFound{}) {
		logger := config.GetLogger()
		logger.Info().Err(err).Str("operation", operation).Msg("Nothing found upstream")
		return []models.SubtitleEntry{}, nil
	}
	if errors.Is(err, apperrors.ErrStructuralMismatch) {
		p.mismatch(operation, err)
		var changed *apperrors.FormatChangedError
		if !errors.As(err, &changed) {
			err = &apperrors.FormatChangedError{Operation: operation, Err: err}
		}
	}
	return nil, err
}

func (p *provider) mismatch(operation string, err error) {
	metrics.StructuralMismatchTotal.Inc()
	logger := config.GetLogger()
	logger.Error().Err(err).Str("operation", operation).Msg("Upstream markup no longer matches the extractors")
	if p.report != nil {
		p.report(err, operation)
	}
}

// sentryReporter captures the error when a Sentry client is configured.
func sentryReporter(err error, operation string) {
	hub := sentry.CurrentHub()
	if hub.Client() == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("operation", operation)
		scope.SetLevel(sentry.LevelError)
		hub.CaptureException(err)
	})
}
