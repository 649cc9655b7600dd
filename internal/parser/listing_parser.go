package parser

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/LavX/opensubtitles-scraper/internal/apperrors"
	"github.com/LavX/opensubtitles-scraper/internal/config"
	"github.com/LavX/opensubtitles-scraper/internal/language"
	"github.com/LavX/opensubtitles-scraper/internal/metrics"
	"github.com/LavX/opensubtitles-scraper/internal/models"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	listingExtractorName  = "listing"
	episodeExtractorName  = "episodes"
	subtitleLinkSelector  = `a[href*="/subtitles/"]`
	defaultDownloadPrefix = "/en/download/sub/"
)

var (
	subtitleIDPattern    = regexp.MustCompile(`/subtitles/(\d+)`)
	subtitleSlugPattern  = regexp.MustCompile(`/subtitles/\d+/([^/?#]+)`)
	sublanguagePattern   = regexp.MustCompile(`sublanguageid-([a-z,]+)`)
	downloadCountPattern = regexp.MustCompile(`(\d+)\s*x`)
	fpsPattern           = regexp.MustCompile(`^\d{2,3}\.\d{1,3}$`)
	ratingPattern        = regexp.MustCompile(`\d+(?:\.\d+)?`)
	hearingImpairedText  = regexp.MustCompile(`(?i)\b(?:hi|hearing.impaired|sdh)\b`)
	forcedText           = regexp.MustCompile(`(?i)\b(?:forced|foreign)\b`)
	seasonHeader         = regexp.MustCompile(`(?i)season\s+(\d+)`)
	episodeNumberPattern = regexp.MustCompile(`^\s*(\d+)`)
	unsafeFileChars      = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

	isoDate      = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	slashDate    = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	dottedDate   = regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(\d{4})\b`)
	dashedDate   = regexp.MustCompile(`\b(\d{1,2})-(\d{1,2})-(\d{4})\b`)
	releaseNoise = map[string]bool{"watch online": true, "download": true, "download subtitles": true}
)

// flagCountries maps flag sprite classes (country codes) to language tokens where they differ.
var flagCountries = map[string]string{
	"gb": "en", "us": "en", "au": "en",
	"br": "pt-BR", "pt": "pt",
	"cn": "zh", "tw": "zt", "hk": "zh",
	"jp": "ja", "kr": "ko", "gr": "el", "dk": "da", "se": "sv",
	"cz": "cs", "il": "he", "ir": "fa", "ua": "uk", "rs": "sr",
	"ee": "et", "si": "sl", "vn": "vi", "in": "hi", "my": "ms",
	"al": "sq", "ba": "bs", "by": "be", "ge": "ka", "mx": "es",
}

// ListingContext carries what the listing extractor needs beyond the markup.
type ListingContext struct {
	BaseURL         string
	DownloadBaseURL string
	// PageURL is the listing page itself. It becomes each entry's DetailURL fallback.
	PageURL string
}

// ListingExtractor turns a title's subtitle listing into SubtitleEntries.
type ListingExtractor struct {
	languages *language.Mapper
}

// NewListingExtractor creates a listing extractor. A nil mapper uses the default table.
func NewListingExtractor(mapper *language.Mapper) *ListingExtractor {
	if mapper == nil {
		mapper = language.Default()
	}
	return &ListingExtractor{languages: mapper}
}

// Extract parses a subtitle listing page. Rows whose language cannot be resolved
// are kept with language.Unknown.
func (e *ListingExtractor) Extract(body io.Reader, c ListingContext) ([]models.SubtitleEntry, error) {
	logger := config.GetLogger()

	base, err := parseBase(c.BaseURL)
	if err != nil {
		return nil, err
	}
	dlBase := base
	if c.DownloadBaseURL != "" {
		if dlBase, err = parseBase(c.DownloadBaseURL); err != nil {
			return nil, err
		}
	}

	doc, err := loadDocument(body, listingExtractorName)
	if err != nil {
		return nil, err
	}

	match := matchContainer(doc, resultsContainer)
	switch match.State {
	case EmptyButValid:
		logger.Debug().Str("page", c.PageURL).Msg("Listing page reports no subtitles")
		return []models.SubtitleEntry{}, nil
	case StructuralMismatch:
		metrics.ExtractionFailuresTotal.WithLabelValues(listingExtractorName, "structural_mismatch").Inc()
		logger.Warn().Str("page", c.PageURL).Msg("Subtitle listing container not found")
		return nil, apperrors.NewStructuralMismatch(listingExtractorName, describe(doc))
	}

	entries := []models.SubtitleEntry{}
	seen := make(map[string]bool)
	match.Container.Find("tr").Each(func(i int, row *goquery.Selection) {
		if !isSubtitleRow(row) {
			return
		}
		entry, ok := e.extractRow(row, base, dlBase, c)
		if !ok {
			logger.Debug().Int("row", i).Msg("Skipping listing row without a subtitle ID")
			return
		}
		if seen[entry.ID] {
			return
		}
		seen[entry.ID] = true
		if entry.Language.IsUnknown() {
			logger.Debug().Str("id", entry.ID).Msg("Subtitle language not recognized")
		}
		entries = append(entries, entry)
	})

	logger.Debug().Int("entries", len(entries)).Str("page", c.PageURL).Msg("Completed listing extraction")
	return entries, nil
}

// isSubtitleRow keeps data rows: a main cell and a subtitle link, no header, iframe or spanning cell.
func isSubtitleRow(row *goquery.Selection) bool {
	if row.Find("th, iframe, td[colspan]").Length() > 0 {
		return false
	}
	if row.Find(`td[id^="main"]`).Length() == 0 {
		return false
	}
	return subtitleLink(row) != nil
}

func isListingPage(container *goquery.Selection) bool {
	found := false
	container.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		found = isSubtitleRow(row)
		return !found
	})
	return found
}

func subtitleLink(row *goquery.Selection) *goquery.Selection {
	var found *goquery.Selection
	row.Find(subtitleLinkSelector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		h, _ := a.Attr("href")
		if subtitleIDPattern.MatchString(h) {
			found = a
			return false
		}
		return true
	})
	return found
}

func (e *ListingExtractor) extractRow(row *goquery.Selection, base, dlBase *url.URL, c ListingContext) (models.SubtitleEntry, bool) {
	link := subtitleLink(row)
	if link == nil {
		return models.SubtitleEntry{}, false
	}
	href, _ := link.Attr("href")
	m := subtitleIDPattern.FindStringSubmatch(href)
	if m == nil {
		return models.SubtitleEntry{}, false
	}

	main := row.Find(`td[id^="main"]`).First()
	entry := models.SubtitleEntry{
		ID:          m[1],
		ReleaseName: releaseName(main, link),
		Uploader:    cleanText(row.Find(`a[href*="/profile/"]`).First().Text()),
		DetailURL:   absoluteURL(base, href),
	}
	if entry.DetailURL == "" {
		entry.DetailURL = c.PageURL
	}

	entry.Language = e.resolveLanguage(row, href)
	entry.HearingImpaired = hasMarker(row, "hearing") || hearingImpairedText.MatchString(entry.ReleaseName)
	entry.Forced = hasMarker(row, "foreign") || hasMarker(row, "forced") || forcedText.MatchString(entry.ReleaseName)
	if entry.HearingImpaired {
		entry.Forced = false
	}
	if !entry.Language.IsUnknown() {
		entry.Language.HearingImpaired = entry.HearingImpaired
		entry.Language.Forced = entry.Forced
	}

	serve := row.Find(`a[href*="subtitleserve"]`).First()
	if serve.Length() > 0 {
		entry.DownloadURL = absoluteURL(base, serve.AttrOr("href", ""))
		if m := downloadCountPattern.FindStringSubmatch(cleanText(serve.Text())); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				entry.DownloadCount = &n
			}
		}
	}
	if entry.DownloadURL == "" {
		entry.DownloadURL = dlBase.ResolveReference(&url.URL{Path: defaultDownloadPrefix + entry.ID}).String()
	}

	entry.Rating = rowRating(row)
	entry.FPS = rowFPS(row)
	entry.UploadedAt = rowUploadDate(row)
	entry.FileName = SubtitleFileName(entry)
	return entry, true
}

// resolveLanguage tries each language hint in the row; the first one the mapper knows wins.
func (e *ListingExtractor) resolveLanguage(row *goquery.Selection, subtitleHref string) language.Language {
	var candidates []string

	row.Find(`a[href*="sublanguageid-"]`).Each(func(_ int, a *goquery.Selection) {
		if title, ok := a.Attr("title"); ok {
			candidates = append(candidates, title)
		}
		a.Find("[title]").Each(func(_ int, s *goquery.Selection) {
			candidates = append(candidates, s.AttrOr("title", ""))
		})
		if m := sublanguagePattern.FindStringSubmatch(a.AttrOr("href", "")); m != nil && m[1] != "all" && !strings.Contains(m[1], ",") {
			candidates = append(candidates, m[1])
		}
	})

	row.Find("img[alt]").Each(func(_ int, img *goquery.Selection) {
		src := strings.ToLower(img.AttrOr("src", ""))
		if strings.Contains(src, "flag") || img.HasClass("flag") {
			candidates = append(candidates, img.AttrOr("alt", ""))
		}
	})

	row.Find(`[class*="flag"]`).Each(func(_ int, s *goquery.Selection) {
		for _, class := range strings.Fields(s.AttrOr("class", "")) {
			if class == "flag" {
				continue
			}
			if token, ok := flagCountries[class]; ok {
				candidates = append(candidates, token)
			} else {
				candidates = append(candidates, class)
			}
		}
	})

	if m := subtitleSlugPattern.FindStringSubmatch(subtitleHref); m != nil {
		if i := strings.LastIndex(m[1], "-"); i >= 0 && i < len(m[1])-1 {
			candidates = append(candidates, m[1][i+1:])
		}
	}

	for _, token := range candidates {
		if lang := e.languages.Resolve(token); !lang.IsUnknown() {
			return lang
		}
	}
	return language.Unknown
}

// releaseName is the first free text in the main cell after the title, else a span title, else the link text.
func releaseName(main, link *goquery.Selection) string {
	for _, node := range main.Contents().Nodes {
		if node.Type != html.TextNode {
			continue
		}
		text := cleanText(node.Data)
		if text != "" && !releaseNoise[strings.ToLower(text)] {
			return text
		}
	}
	if title := cleanText(main.Find("span[title]").First().AttrOr("title", "")); title != "" {
		return title
	}
	return cleanText(link.Text())
}

// hasMarker looks for an icon or class naming the marker.
func hasMarker(row *goquery.Selection, marker string) bool {
	found := false
	row.Find("img, span, div, i").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, attr := range []string{"src", "title", "alt", "class"} {
			if strings.Contains(strings.ToLower(s.AttrOr(attr, "")), marker) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

func rowRating(row *goquery.Selection) *float64 {
	var rating *float64
	row.Find("span[title]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.HasSuffix(strings.TrimSpace(s.AttrOr("title", "")), "votes") {
			return true
		}
		if m := ratingPattern.FindString(s.Text()); m != "" {
			if v, err := strconv.ParseFloat(m, 64); err == nil {
				rating = &v
				return false
			}
		}
		return true
	})
	return rating
}

func rowFPS(row *goquery.Selection) *float64 {
	var fps *float64
	row.Find("span.p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := cleanText(s.Text())
		if !fpsPattern.MatchString(text) {
			return true
		}
		if v, err := strconv.ParseFloat(text, 64); err == nil {
			fps = &v
			return false
		}
		return true
	})
	return fps
}

func rowUploadDate(row *goquery.Selection) *time.Time {
	if dt, ok := row.Find("time[datetime]").First().Attr("datetime"); ok {
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, strings.TrimSpace(dt)); err == nil {
				return &t
			}
		}
	}
	var found *time.Time
	row.Find("td").EachWithBreak(func(_ int, td *goquery.Selection) bool {
		texts := []string{td.AttrOr("title", ""), cleanText(td.Text())}
		for _, text := range texts {
			if t, ok := ParseUploadDate(text); ok {
				found = &t
				return false
			}
		}
		return true
	})
	return found
}

// ParseUploadDate accepts YYYY-MM-DD, MM/DD/YYYY, DD.MM.YYYY and DD-MM-YYYY.
// A slash date whose first field exceeds 12 is read as DD/MM/YYYY.
func ParseUploadDate(s string) (time.Time, bool) {
	if m := isoDate.FindStringSubmatch(s); m != nil {
		return makeDate(m[1], m[2], m[3])
	}
	if m := slashDate.FindStringSubmatch(s); m != nil {
		if first, _ := strconv.Atoi(m[1]); first > 12 {
			return makeDate(m[3], m[2], m[1])
		}
		return makeDate(m[3], m[1], m[2])
	}
	if m := dottedDate.FindStringSubmatch(s); m != nil {
		return makeDate(m[3], m[2], m[1])
	}
	if m := dashedDate.FindStringSubmatch(s); m != nil {
		return makeDate(m[3], m[2], m[1])
	}
	return time.Time{}, false
}

func makeDate(year, month, day string) (time.Time, bool) {
	t, err := time.Parse("2006-1-2", fmt.Sprintf("%s-%s-%s", year, strings.TrimLeft(month, "0"), strings.TrimLeft(day, "0")))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SubtitleFileName derives "Release.Name.lang.srt" from an entry, or "<id>.srt" without a release name.
func SubtitleFileName(entry models.SubtitleEntry) string {
	release := strings.TrimSpace(entry.ReleaseName)
	if release == "" {
		return SanitizeFileName(entry.ID + ".srt")
	}
	name := strings.Join(strings.Fields(release), ".")
	if !entry.Language.IsUnknown() && entry.Language.Code != "" {
		name += "." + entry.Language.Code
	}
	return SanitizeFileName(name + ".srt")
}

// SanitizeFileName replaces characters that are unsafe in file names and trims dots and spaces.
func SanitizeFileName(name string) string {
	name = unsafeFileChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, " .")
	if len(name) > 255 {
		name = name[:255]
	}
	return name
}

// ExtractEpisodes parses a series page into episode references, in page order.
func (e *ListingExtractor) ExtractEpisodes(body io.Reader, c ListingContext) ([]models.EpisodeRef, error) {
	logger := config.GetLogger()

	base, err := parseBase(c.BaseURL)
	if err != nil {
		return nil, err
	}
	doc, err := loadDocument(body, episodeExtractorName)
	if err != nil {
		return nil, err
	}

	match := matchContainer(doc, resultsContainer)
	switch match.State {
	case EmptyButValid:
		return []models.EpisodeRef{}, nil
	case StructuralMismatch:
		metrics.ExtractionFailuresTotal.WithLabelValues(episodeExtractorName, "structural_mismatch").Inc()
		return nil, apperrors.NewStructuralMismatch(episodeExtractorName, describe(doc))
	}

	episodes := []models.EpisodeRef{}
	season, ordinal := 0, 0
	match.Container.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if n, ok := rowSeason(row); ok {
			season, ordinal = n, 0
			return
		}
		if season == 0 {
			return
		}
		link := row.Find(`a[href*="imdbid-"]`).First()
		if link.Length() == 0 {
			return
		}
		ordinal++
		number := ordinal
		if m := episodeNumberPattern.FindStringSubmatch(row.Find(`span[itemprop="episodeNumber"]`).First().Text()); m != nil {
			number, _ = strconv.Atoi(m[1])
		}
		target := absoluteURL(base, link.AttrOr("href", ""))
		if target == "" {
			return
		}
		episodes = append(episodes, models.EpisodeRef{
			Season:  season,
			Episode: number,
			Title:   cleanText(link.Text()),
			URL:     target,
		})
	})

	logger.Debug().Int("episodes", len(episodes)).Str("page", c.PageURL).Msg("Completed episode extraction")
	return episodes, nil
}

// rowSeason recognizes a season header row.
func rowSeason(row *goquery.Selection) (int, bool) {
	if span := row.Find(`span[id^="season-"]`).First(); span.Length() > 0 {
		id := strings.TrimPrefix(span.AttrOr("id", ""), "season-")
		if n, err := strconv.Atoi(id); err == nil {
			return n, true
		}
	}
	if row.Find(`a[href*="imdbid-"]`).Length() > 0 && row.Find("td[colspan]").Length() == 0 {
		return 0, false
	}
	if m := seasonHeader.FindStringSubmatch(cleanText(row.Text())); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	return 0, false
}

// IsSeriesPage reports whether a page lists episodes rather than subtitles.
func IsSeriesPage(body io.Reader) bool {
	doc, err := loadDocument(body, episodeExtractorName)
	if err != nil {
		return false
	}
	return doc.Find(`span[id^="season-"]`).Length() > 0 ||
		doc.Find(`[itemprop="episodeNumber"]`).Length() > 0
}
