package client

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/LavX/opensubtitles-scraper/internal/config"
	"github.com/LavX/opensubtitles-scraper/internal/language"
	"github.com/LavX/opensubtitles-scraper/internal/models"
	"github.com/LavX/opensubtitles-scraper/internal/parser"

	"github.com/samber/lo"
)

// ErrInvalidQuery is returned for a query with neither a title nor an IMDB ID.
var ErrInvalidQuery = errors.New("client: query needs a title or an IMDB ID")

// searchYearTolerance is how far a result year may drift from the queried year.
const searchYearTolerance = 1

var nonDigits = regexp.MustCompile(`\D`)

// Search finds titles matching the query. No results is an empty slice and a nil error.
//
// A query with an IMDB ID is looked up by ID first. When that yields nothing
// usable the title search runs instead; an empty title is then resolved from
// IMDB.
func (c *client) Search(ctx context.Context, query models.SearchQuery) (results []models.SearchResult, err error) {
	const operation = "search"
	start := time.Now()
	defer func() { observe(operation, start, err) }()

	logger := config.GetLogger()
	imdbNumber := nonDigits.ReplaceAllString(query.IMDBID, "")
	if imdbNumber == "" && strings.TrimSpace(query.Title) == "" {
		return nil, ErrInvalidQuery
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if imdbNumber != "" {
		results, err = c.searchPage(ctx, operation, c.imdbSearchURL(imdbNumber, query), query)
		if err != nil {
			return nil, err
		}
		results = filterResults(results, query)
		for i := range results {
			if results[i].IMDBID == "" {
				results[i].IMDBID = query.IMDBID
			}
		}
		if len(results) > 0 {
			logSearch(query, "imdb", len(results))
			return results, nil
		}
	}

	title := strings.TrimSpace(query.Title)
	if title == "" {
		title, err = c.lookupIMDBTitle(ctx, imdbNumber)
		if err != nil {
			return nil, err
		}
		if title == "" {
			logger.Warn().Str("imdb", query.IMDBID).Msg("Could not resolve a title for the IMDB ID")
			return []models.SearchResult{}, nil
		}
		logger.Info().Str("imdb", query.IMDBID).Str("title", title).Msg("Resolved IMDB ID to a title")
	}

	titleQuery := query
	titleQuery.Title = title
	results, err = c.searchPage(ctx, operation, c.titleSearchURL(titleQuery), titleQuery)
	if err != nil {
		return nil, err
	}
	results = filterResults(results, query)

	logSearch(titleQuery, "title", len(results))
	return results, nil
}

func (c *client) searchPage(ctx context.Context, operation, target string, query models.SearchQuery) ([]models.SearchResult, error) {
	p, err := c.fetchPage(ctx, target)
	if err != nil {
		return nil, classify(operation, target, err)
	}

	results, err := c.search.Extract(p.Reader(), parser.SearchContext{
		BaseURL: c.baseURL,
		PageURL: p.FinalURL,
		Kind:    query.Kind,
		Title:   query.Title,
	})
	if err != nil {
		c.forget(ctx, target)
		return nil, classify(operation, target, err)
	}
	return results, nil
}

// lookupIMDBTitle fetches the IMDB title page. A page that cannot be fetched or
// names no title yields an empty title; only cancellation is returned.
func (c *client) lookupIMDBTitle(ctx context.Context, number string) (string, error) {
	logger := config.GetLogger()
	target := strings.TrimRight(c.imdbBaseURL, "/") + "/title/tt" + number + "/"

	p, err := c.fetchPage(ctx, target)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		logger.Warn().Err(err).Str("url", target).Msg("IMDB title lookup failed")
		return "", nil
	}
	title, err := parser.ExtractIMDBTitle(p.Reader())
	if err != nil {
		logger.Warn().Err(err).Str("url", target).Msg("IMDB page names no title")
		c.forget(ctx, target)
		return "", nil
	}
	return title, nil
}

// filterResults drops results of another kind, another IMDB title or a year
// outside the tolerance. Unknown fields never exclude a result.
func filterResults(results []models.SearchResult, query models.SearchQuery) []models.SearchResult {
	want := nonDigits.ReplaceAllString(query.IMDBID, "")
	return lo.Filter(results, func(r models.SearchResult, _ int) bool {
		if query.Kind != models.KindUnspecified && r.Kind != models.KindUnspecified && r.Kind != query.Kind {
			return false
		}
		if want != "" && r.IMDBID != "" && strings.TrimLeft(nonDigits.ReplaceAllString(r.IMDBID, ""), "0") != strings.TrimLeft(want, "0") {
			return false
		}
		if query.Year > 0 && r.Year > 0 && (r.Year < query.Year-searchYearTolerance || r.Year > query.Year+searchYearTolerance) {
			return false
		}
		return true
	})
}

func logSearch(query models.SearchQuery, path string, n int) {
	logger := config.GetLogger()
	logger.Info().
		Str("title", query.Title).
		Str("imdb", query.IMDBID).
		Str("kind", query.Kind.String()).
		Str("path", path).
		Int("results", n).
		Msg("Search completed")
}

// siteLanguages is the sublanguageid filter for the query languages, "all" when none is known.
func (c *client) siteLanguages(query models.SearchQuery) string {
	codes := lo.Uniq(lo.FilterMap(query.Languages, func(l language.Language, _ int) (string, bool) {
		code := c.languages.SiteCode(l)
		return code, code != "all"
	}))
	if len(codes) == 0 {
		return "all"
	}
	return strings.Join(codes, ",")
}

func (c *client) imdbSearchURL(number string, query models.SearchQuery) string {
	return strings.TrimRight(c.baseURL, "/") + "/en/search/sublanguageid-" + c.siteLanguages(query) + "/imdbid-" + number
}

func (c *client) titleSearchURL(query models.SearchQuery) string {
	params := url.Values{}
	params.Set("MovieName", strings.TrimSpace(query.Title))
	params.Set("action", "search")
	params.Set("SubLanguageID", c.siteLanguages(query))
	switch query.Kind {
	case models.KindMovie:
		params.Set("SearchOnlyMovies", "on")
	case models.KindEpisode:
		params.Set("SearchOnlyTVSeries", "on")
	}
	return strings.TrimRight(c.baseURL, "/") + "/en/search2?" + params.Encode()
}
