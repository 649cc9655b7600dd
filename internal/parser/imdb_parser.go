package parser

import (
	"io"
	"regexp"
	"strings"

	"github.com/LavX/opensubtitles-scraper/internal/apperrors"
)

const imdbExtractorName = "imdb_title"

var (
	imdbSiteSuffix  = regexp.MustCompile(`(?i)\s*-\s*IMDb.*$`)
	imdbRatingTail  = regexp.MustCompile(`\s*[|⭐].*$`)
	imdbKindInParen = regexp.MustCompile(`\s*\([^)]*\d{4}[^)]*\).*$`)
)

// ExtractIMDBTitle reads the title name from an IMDB title page. The hero
// heading wins, then the hero text, then og:title, then the document title.
func ExtractIMDBTitle(body io.Reader) (string, error) {
	doc, err := loadDocument(body, imdbExtractorName)
	if err != nil {
		return "", err
	}

	candidates := []string{
		doc.Find(`h1[data-testid="hero__pageTitle"]`).First().Text(),
		doc.Find(`span.hero__primary-text`).First().Text(),
		doc.Find(`meta[property="og:title"]`).First().AttrOr("content", ""),
		doc.Find("title").First().Text(),
	}
	for _, raw := range candidates {
		if title := cleanIMDBTitle(raw); title != "" {
			return title, nil
		}
	}
	return "", apperrors.NewStructuralMismatch(imdbExtractorName, describe(doc))
}

// cleanIMDBTitle drops the year, series marker, rating and site suffix.
func cleanIMDBTitle(raw string) string {
	title := cleanText(raw)
	title = imdbSiteSuffix.ReplaceAllString(title, "")
	title = imdbRatingTail.ReplaceAllString(title, "")
	title = imdbKindInParen.ReplaceAllString(title, "")
	title = strings.TrimSpace(title)
	if strings.EqualFold(title, "IMDb") {
		return ""
	}
	return title
}
