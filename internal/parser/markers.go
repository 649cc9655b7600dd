package parser

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/LavX/opensubtitles-scraper/internal/apperrors"
	"github.com/LavX/opensubtitles-scraper/internal/config"

	"github.com/PuerkitoBio/goquery"
)

// MatchState is the outcome of looking for the data container on a page.
type MatchState int

const (
	// Found means the container is present. It may still hold zero rows.
	Found MatchState = iota + 1
	// EmptyButValid means the container is absent but the page says there is nothing to show.
	EmptyButValid
	// StructuralMismatch means neither the container nor an empty-page marker was recognized.
	StructuralMismatch
)

func (s MatchState) String() string {
	switch s {
	case Found:
		return "found"
	case EmptyButValid:
		return "empty"
	case StructuralMismatch:
		return "structural_mismatch"
	default:
		return "unknown"
	}
}

// Match is the tagged result of a container lookup.
type Match struct {
	State     MatchState
	Container *goquery.Selection
}

// resultsContainer is the table every search, listing and series page renders its rows in.
const resultsContainer = "table#search_results"

var emptyPageMarker = regexp.MustCompile(`(?i)no (?:results|subtitles|matches) (?:were )?found|nothing (?:was )?found|there are no subtitles|didn't find any|no subtitles available|(?:^|[^\d.,])0 results\b`)

// matchContainer looks for selector, then for an empty-page marker in the visible text.
func matchContainer(doc *goquery.Document, selector string) Match {
	if c := doc.Find(selector).First(); c.Length() > 0 {
		return Match{State: Found, Container: c}
	}
	body := doc.Find("body")
	body.Find("script, style, noscript").Remove()
	if emptyPageMarker.MatchString(body.Text()) {
		return Match{State: EmptyButValid}
	}
	return Match{State: StructuralMismatch}
}

// describe summarizes a page that failed to match, for error details.
func describe(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return "no recognizable results container"
	}
	return fmt.Sprintf("no recognizable results container (page title %q)", title)
}

// loadDocument decodes body to UTF-8 and parses it.
func loadDocument(body io.Reader, extractor string) (*goquery.Document, error) {
	utf8Body, enc, err := NewUTF8Reader(body, "")
	if err != nil {
		return nil, apperrors.NewStructuralMismatch(extractor, fmt.Sprintf("failed to decode page: %v", err))
	}
	if enc != "utf-8" {
		logger := config.GetLogger()
		logger.Debug().Str("extractor", extractor).Str("encoding", enc).Msg("Decoding non UTF-8 page")
	}
	doc, err := goquery.NewDocumentFromReader(utf8Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// absoluteURL resolves href against base. Empty or unparseable hrefs return "".
func absoluteURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		if ref.IsAbs() {
			return ref.String()
		}
		return ""
	}
	return base.ResolveReference(ref).String()
}

func parseBase(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(raw, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", raw, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("base URL %q is not absolute", raw)
	}
	return u, nil
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
