package client

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/LavX/opensubtitles-scraper/internal/config"
	"github.com/LavX/opensubtitles-scraper/internal/metrics"
	"github.com/LavX/opensubtitles-scraper/internal/models"
	"github.com/LavX/opensubtitles-scraper/internal/parser"
	"github.com/LavX/opensubtitles-scraper/internal/transport"
)

// Download fetches and unpacks a subtitle file. Downloads are never cached.
func (c *client) Download(ctx context.Context, entry models.SubtitleEntry) (*models.SubtitlePayload, error) {
	return c.DownloadEpisode(ctx, entry, 0)
}

// DownloadEpisode is Download with an episode hint for season pack archives.
// Zero disables episode matching.
func (c *client) DownloadEpisode(ctx context.Context, entry models.SubtitleEntry, episode int) (result *models.SubtitlePayload, err error) {
	const operation = "download"
	start := time.Now()
	defer func() {
		observe(operation, start, err)
		metrics.SubtitleDownloadsTotal.WithLabelValues(outcome(err)).Inc()
	}()

	logger := config.GetLogger()

	target := entry.DownloadURL
	if target == "" {
		target = c.directDownloadURL(entry.ID)
	}
	target, err = absolute(target)
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.fetchFile(ctx, target, entry.DetailURL)
	if err != nil {
		return nil, classify(operation, target, err)
	}

	// An HTML answer is a download page. Follow its link once, or fall back to the direct host.
	if parser.LooksLikeHTML(resp.Header, resp.Body) {
		next, ok := c.downloads.FindDownloadLink(bytes.NewReader(resp.Body))
		if !ok || next == target {
			next = c.directDownloadURL(entry.ID)
		}
		if next != "" && next != target {
			logger.Debug().Str("id", entry.ID).Str("from", target).Str("to", next).Msg("Following download page link")
			resp, err = c.fetchFile(ctx, next, target)
			if err != nil {
				return nil, classify(operation, next, err)
			}
		}
	}

	result, err = c.downloads.Extract(parser.DownloadResponse{
		Header:  resp.Header,
		Body:    resp.Body,
		Episode: episode,
	}, entry)
	if err != nil {
		return nil, classify(operation, target, err)
	}

	logger.Info().
		Str("id", entry.ID).
		Str("file", result.FileName).
		Str("encoding", result.Encoding).
		Int("size", len(result.Content)).
		Msg("Downloaded subtitle")
	return result, nil
}

func (c *client) fetchFile(ctx context.Context, target, referer string) (*transport.Response, error) {
	req := transport.Request{Method: http.MethodGet, URL: target}
	if referer != "" {
		req.Header = http.Header{"Referer": []string{referer}}
	}
	return c.session.Execute(ctx, req)
}

// directDownloadURL is the download host locator for a subtitle ID.
func (c *client) directDownloadURL(id string) string {
	if id == "" || nonDigits.MatchString(id) {
		return ""
	}
	return strings.TrimRight(c.downloadBaseURL, "/") + "/en/download/sub/" + id
}
