package parser

import (
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/LavX/opensubtitles-scraper/internal/apperrors"
	"github.com/LavX/opensubtitles-scraper/internal/config"
	"github.com/LavX/opensubtitles-scraper/internal/metrics"
	"github.com/LavX/opensubtitles-scraper/internal/models"

	"github.com/PuerkitoBio/goquery"
)

const searchExtractorName = "search"

var (
	titleIDPattern   = regexp.MustCompile(`idmovies?-(\d+)`)
	imdbPathPattern  = regexp.MustCompile(`imdbid-(\d+)`)
	imdbIDPattern    = regexp.MustCompile(`tt\d{7,8}`)
	yearPattern      = regexp.MustCompile(`\((\d{4})\)`)
	episodeTag       = regexp.MustCompile(`(?i)\[S\d+E\d+\]`)
	titleYearSuffix  = regexp.MustCompile(`\s*\(\d{4}\).*$`)
	titleEpisodeTail = regexp.MustCompile(`(?i)\s*\[S\d+E\d+\].*$`)
	digitsOnly       = regexp.MustCompile(`^\d+$`)
)

// SearchContext carries what the search extractor needs beyond the markup.
type SearchContext struct {
	// BaseURL resolves relative detail links.
	BaseURL string
	// PageURL is the final URL of the fetched page, used when the site redirected
	// an exact match straight to its subtitle listing.
	PageURL string
	// Kind is the media kind the caller asked for, used when a row carries no hint.
	Kind models.MediaKind
	// Title is the query title, used to name a result the site redirected to.
	Title string
}

// SearchExtractor turns a search results page into SearchResults.
type SearchExtractor struct{}

// NewSearchExtractor creates a search extractor.
func NewSearchExtractor() *SearchExtractor {
	return &SearchExtractor{}
}

// Extract parses a search page. A missing results table without a "no results"
// marker is reported as a structural mismatch.
func (e *SearchExtractor) Extract(body io.Reader, q SearchContext) ([]models.SearchResult, error) {
	logger := config.GetLogger()

	base, err := parseBase(q.BaseURL)
	if err != nil {
		return nil, err
	}

	doc, err := loadDocument(body, searchExtractorName)
	if err != nil {
		return nil, err
	}

	match := matchContainer(doc, resultsContainer)
	switch match.State {
	case EmptyButValid:
		logger.Debug().Msg("Search page reports no results")
		return []models.SearchResult{}, nil
	case StructuralMismatch:
		metrics.ExtractionFailuresTotal.WithLabelValues(searchExtractorName, "structural_mismatch").Inc()
		logger.Warn().Str("page", q.PageURL).Msg("Search results container not found")
		return nil, apperrors.NewStructuralMismatch(searchExtractorName, describe(doc))
	}

	if isListingPage(match.Container) {
		result, ok := e.listingAsResult(doc, base, q)
		if !ok {
			return nil, apperrors.NewStructuralMismatch(searchExtractorName, "redirected listing page has no title identifier")
		}
		logger.Debug().Str("id", result.ID).Msg("Search redirected to a listing page")
		return []models.SearchResult{result}, nil
	}

	results := []models.SearchResult{}
	seen := make(map[string]bool)
	match.Container.Find("tr").Each(func(i int, row *goquery.Selection) {
		if row.Find("th").Length() > 0 || row.HasClass("ads") {
			return
		}
		result, ok := e.extractRow(row, base, q)
		if !ok {
			logger.Debug().Int("row", i).Msg("Skipping search row without a title link")
			return
		}
		if seen[result.ID] {
			return
		}
		seen[result.ID] = true
		results = append(results, result)
	})

	logger.Debug().Int("results", len(results)).Msg("Completed search extraction")
	return results, nil
}

func (e *SearchExtractor) extractRow(row *goquery.Selection, base *url.URL, q SearchContext) (models.SearchResult, bool) {
	link := titleLink(row)
	if link == nil {
		return models.SearchResult{}, false
	}
	href, _ := link.Attr("href")
	id := titleID(href)
	if id == "" {
		return models.SearchResult{}, false
	}
	detail := absoluteURL(base, href)
	if detail == "" {
		return models.SearchResult{}, false
	}

	raw := cleanText(link.Text())
	result := models.SearchResult{
		ID:        id,
		Title:     cleanTitle(raw),
		Year:      extractYear(raw),
		DetailURL: detail,
		Kind:      searchKind(row, raw, q.Kind),
	}
	if result.Year == 0 {
		result.Year = extractYear(cleanText(link.Parent().Text()))
	}

	row.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		h, _ := a.Attr("href")
		if m := imdbIDPattern.FindString(h); m != "" && strings.Contains(h, "imdb") {
			result.IMDBID = m
			return false
		}
		return true
	})

	// The subtitle count sits in its own cell; the last purely numeric cell wins.
	row.Find("td").Each(func(_ int, td *goquery.Selection) {
		text := cleanText(td.Text())
		if digitsOnly.MatchString(text) {
			if n, err := strconv.Atoi(text); err == nil {
				result.SubtitleCount = n
			}
		}
	})

	return result, true
}

// listingAsResult names the page itself when the site skipped the results list.
func (e *SearchExtractor) listingAsResult(doc *goquery.Document, base *url.URL, q SearchContext) (models.SearchResult, bool) {
	page := q.PageURL
	id := titleID(page)
	if id == "" {
		doc.Find(`link[rel="canonical"], a[href*="idmovie"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			h, _ := s.Attr("href")
			if id = titleID(h); id != "" {
				page = absoluteURL(base, h)
				return false
			}
			return true
		})
	}
	if id == "" || page == "" {
		return models.SearchResult{}, false
	}

	heading := cleanText(doc.Find("h1").First().Text())
	if heading == "" {
		heading = q.Title
	}
	result := models.SearchResult{
		ID:        id,
		Title:     cleanTitle(heading),
		Year:      extractYear(heading),
		Kind:      q.Kind,
		DetailURL: absoluteURL(base, page),
		IMDBID:    imdbIDPattern.FindString(doc.Find(`a[href*="imdb.com"]`).AttrOr("href", "")),
	}
	if result.Kind == models.KindUnspecified {
		result.Kind = models.KindMovie
	}
	result.SubtitleCount = doc.Find(resultsContainer + " " + subtitleLinkSelector).Length()
	return result, true
}

// titleLink picks the row's title anchor: a.bnone, else the first link to a title page.
func titleLink(row *goquery.Selection) *goquery.Selection {
	if a := row.Find("a.bnone").First(); a.Length() > 0 {
		if h, _ := a.Attr("href"); titleID(h) != "" {
			return a
		}
	}
	var found *goquery.Selection
	row.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		h, _ := a.Attr("href")
		if strings.Contains(h, "imdb.com") {
			return true
		}
		if titleID(h) != "" {
			found = a
			return false
		}
		return true
	})
	return found
}

func titleID(href string) string {
	if m := titleIDPattern.FindStringSubmatch(href); m != nil {
		return m[1]
	}
	if m := imdbPathPattern.FindStringSubmatch(href); m != nil {
		return m[1]
	}
	return ""
}

func cleanTitle(raw string) string {
	t := titleYearSuffix.ReplaceAllString(raw, "")
	t = titleEpisodeTail.ReplaceAllString(t, "")
	t = strings.TrimSpace(t)
	t = strings.Trim(t, `"'`)
	return strings.TrimSpace(t)
}

func extractYear(s string) int {
	if m := yearPattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		return year
	}
	return 0
}

func searchKind(row *goquery.Selection, title string, hint models.MediaKind) models.MediaKind {
	if row.Find(`img[title="TV Series"], img[alt="TV Series"], img[title="TV Episode"]`).Length() > 0 {
		return models.KindEpisode
	}
	if episodeTag.MatchString(title) {
		return models.KindEpisode
	}
	if hint != models.KindUnspecified {
		return hint
	}
	return models.KindMovie
}
