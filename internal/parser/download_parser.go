package parser

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/LavX/opensubtitles-scraper/internal/apperrors"
	"github.com/LavX/opensubtitles-scraper/internal/config"
	"github.com/LavX/opensubtitles-scraper/internal/metrics"
	"github.com/LavX/opensubtitles-scraper/internal/models"
	"github.com/LavX/opensubtitles-scraper/internal/payload"

	"github.com/PuerkitoBio/goquery"
)

const (
	downloadExtractorName = "download"
	// MinPayloadSize is the smallest body accepted as a subtitle download.
	MinPayloadSize = 20
)

var (
	directDownloadLink = regexp.MustCompile(`dl\.opensubtitles\.org/[a-z]{2}/download/(?:sub|file)/\d+`)
	subtitleServeLink  = regexp.MustCompile(`/[a-z]{2}/subtitleserve/sub/\d+`)
	metaRefreshURL     = regexp.MustCompile(`(?i)url\s*=\s*['"]?([^'";]+)`)

	captchaMarker   = regexp.MustCompile(`(?i)captcha`)
	waitMarker      = regexp.MustCompile(`(?i)please wait|wait \d+ seconds?|download will start`)
	challengeMarker = regexp.MustCompile(`(?i)just a moment|cf_chl_opt|challenge-platform|cf-browser-verification`)
)

// DownloadResponse is the raw result of fetching a download locator.
type DownloadResponse struct {
	Header http.Header
	Body   []byte
	// Episode selects one file out of a season pack. Zero disables episode matching.
	Episode int
}

// DownloadExtractor turns a download response into a subtitle payload.
type DownloadExtractor struct {
	baseURL       string
	convertToUTF8 bool
}

// NewDownloadExtractor creates a download extractor. baseURL resolves relative links on download pages.
func NewDownloadExtractor(baseURL string, convertToUTF8 bool) *DownloadExtractor {
	return &DownloadExtractor{baseURL: baseURL, convertToUTF8: convertToUTF8}
}

// Extract validates and unpacks a download. HTML bodies, whatever they announce
// themselves as, are rejected as UnexpectedPayload.
func (e *DownloadExtractor) Extract(resp DownloadResponse, entry models.SubtitleEntry) (*models.SubtitlePayload, error) {
	logger := config.GetLogger()

	if err := e.rejectInterstitial(resp); err != nil {
		metrics.ExtractionFailuresTotal.WithLabelValues(downloadExtractorName, "unexpected_payload").Inc()
		logger.Warn().Str("id", entry.ID).Err(err).Msg("Download returned an unexpected payload")
		return nil, err
	}

	format := payload.Detect(resp.Body)
	disposition := dispositionFileName(resp.Header)

	plainName := disposition
	if plainName == "" || !payload.IsSubtitleFile(plainName) {
		plainName = entryFileName(entry)
	}

	files, err := payload.Unpack(resp.Body, format, plainName)
	if err != nil {
		metrics.ExtractionFailuresTotal.WithLabelValues(downloadExtractorName, "unexpected_payload").Inc()
		return nil, apperrors.NewUnexpectedPayload(downloadExtractorName, fmt.Sprintf("unreadable %s payload: %v", format, err))
	}

	preferred := entry.FileName
	if disposition != "" {
		preferred = strings.TrimSuffix(disposition, path.Ext(disposition))
	}
	file, err := payload.Select(files, format, payload.SelectOptions{PreferredName: preferred, Episode: resp.Episode})
	if err != nil {
		var notFound *apperrors.ErrSubtitleNotFoundInArchive
		if errors.As(err, &notFound) {
			logger.Warn().Str("id", entry.ID).Str("format", string(format)).Int("files", notFound.FileCount).Msg("No subtitle file inside archive")
		}
		return nil, err
	}

	if format == payload.FormatPlain && !payload.LooksLikeSubtitle(file.Content) && !payload.IsSubtitleFile(disposition) {
		metrics.ExtractionFailuresTotal.WithLabelValues(downloadExtractorName, "unexpected_payload").Inc()
		return nil, apperrors.NewUnexpectedPayload(downloadExtractorName, "body is not a recognizable subtitle file")
	}

	name := file.Name
	switch {
	case format == payload.FormatPlain:
		name = plainName
	case !payload.IsSubtitleFile(name):
		name = entryFileName(entry)
	}
	name = SanitizeFileName(name)

	content := file.Content
	encoding := payload.DetectEncoding(content)
	if e.convertToUTF8 {
		content, _ = payload.ToUTF8(content)
		content = payload.NormalizeNewlines(content)
		encoding = payload.EncodingUTF8
	}

	logger.Debug().
		Str("id", entry.ID).
		Str("format", string(format)).
		Str("file", name).
		Str("encoding", encoding).
		Int("size", len(content)).
		Msg("Extracted subtitle payload")

	return &models.SubtitlePayload{
		FileName:    name,
		Content:     content,
		Encoding:    encoding,
		ContentType: payload.ContentTypeForFile(name),
	}, nil
}

func (e *DownloadExtractor) rejectInterstitial(resp DownloadResponse) error {
	if mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil {
		if mediaType == "text/html" || mediaType == "application/xhtml+xml" {
			return apperrors.NewUnexpectedPayload(downloadExtractorName, describeInterstitial(resp.Body))
		}
	}
	if len(resp.Body) < MinPayloadSize {
		return apperrors.NewUnexpectedPayload(downloadExtractorName, fmt.Sprintf("payload too small (%d bytes)", len(resp.Body)))
	}
	if payload.Detect(resp.Body) == payload.FormatHTML {
		return apperrors.NewUnexpectedPayload(downloadExtractorName, describeInterstitial(resp.Body))
	}
	return nil
}

func describeInterstitial(body []byte) string {
	switch {
	case challengeMarker.Match(body):
		return "received a challenge page instead of a subtitle"
	case captchaMarker.Match(body):
		return "received a captcha page instead of a subtitle"
	case waitMarker.Match(body):
		return "received a wait page instead of a subtitle"
	default:
		return "received an HTML page instead of a subtitle"
	}
}

// FindDownloadLink looks for the direct file link on an HTML download page:
// a dl.opensubtitles.org link, then a subtitleserve link (also inside scripts),
// then a meta refresh target.
func (e *DownloadExtractor) FindDownloadLink(body io.Reader) (string, bool) {
	base, err := parseBase(e.baseURL)
	if err != nil {
		return "", false
	}
	doc, err := loadDocument(body, downloadExtractorName)
	if err != nil {
		return "", false
	}

	var link string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		h := a.AttrOr("href", "")
		if directDownloadLink.MatchString(h) {
			link = absoluteURL(base, h)
			return false
		}
		return true
	})
	if link != "" {
		return link, true
	}

	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		h := a.AttrOr("href", "")
		if subtitleServeLink.MatchString(h) {
			link = absoluteURL(base, h)
			return false
		}
		return true
	})
	if link != "" {
		return link, true
	}

	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := subtitleServeLink.FindString(s.Text()); m != "" {
			link = absoluteURL(base, m)
			return false
		}
		return true
	})
	if link != "" {
		return link, true
	}

	if content, ok := doc.Find(`meta[http-equiv="refresh"], meta[http-equiv="Refresh"]`).First().Attr("content"); ok {
		if m := metaRefreshURL.FindStringSubmatch(content); m != nil {
			if link = absoluteURL(base, m[1]); link != "" {
				return link, true
			}
		}
	}
	return "", false
}

// LooksLikeHTML reports whether a download body is a page rather than a file.
func LooksLikeHTML(header http.Header, body []byte) bool {
	if mediaType, _, err := mime.ParseMediaType(header.Get("Content-Type")); err == nil {
		if mediaType == "text/html" || mediaType == "application/xhtml+xml" {
			return true
		}
	}
	return payload.Detect(body) == payload.FormatHTML
}

func dispositionFileName(header http.Header) string {
	cd := header.Get("Content-Disposition")
	if cd == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(cd)
	if err != nil {
		return ""
	}
	name := params["filename"]
	if name == "" {
		return ""
	}
	return SanitizeFileName(path.Base(strings.ReplaceAll(name, `\`, "/")))
}

func entryFileName(entry models.SubtitleEntry) string {
	if entry.FileName != "" {
		return entry.FileName
	}
	return SubtitleFileName(entry)
}
