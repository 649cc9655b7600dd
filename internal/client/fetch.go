package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/LavX/opensubtitles-scraper/internal/apperrors"
	"github.com/LavX/opensubtitles-scraper/internal/cache"
	"github.com/LavX/opensubtitles-scraper/internal/config"
	"github.com/LavX/opensubtitles-scraper/internal/metrics"
	"github.com/LavX/opensubtitles-scraper/internal/transport"
)

// fetchPage returns the page at target, from the page cache when possible.
func (c *client) fetchPage(ctx context.Context, target string) (cache.Page, error) {
	if c.pages != nil {
		if p, ok := c.pages.Get(ctx, target); ok {
			logger := config.GetLogger()
			logger.Debug().Str("url", target).Dur("age", p.Age(time.Now())).Msg("Page served from cache")
			return p, nil
		}
	}

	resp, err := c.session.Execute(ctx, transport.Request{Method: http.MethodGet, URL: target})
	if err != nil {
		return cache.Page{}, err
	}

	p := cache.Page{URL: target, FinalURL: target, Body: resp.Body, FetchedAt: time.Now()}
	if resp.URL != nil {
		p.FinalURL = resp.URL.String()
	}
	if c.pages != nil {
		c.pages.Put(ctx, p)
	}
	return p, nil
}

// forget drops a cached page whose markup could not be extracted.
func (c *client) forget(ctx context.Context, target string) {
	if c.pages != nil {
		c.pages.Forget(ctx, target)
	}
}

// classify turns low-level failures into the errors callers act on: markup
// mismatches become FormatChangedError and upstream 404s become ErrNotFound.
func classify(operation, target string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, apperrors.ErrStructuralMismatch) {
		return &apperrors.FormatChangedError{Operation: operation, Err: err}
	}
	if errors.Is(err, &apperrors.TransportError{Kind: apperrors.UpstreamError, Status: http.StatusNotFound}) {
		return apperrors.NewNotFoundError(operation, target)
	}
	return err
}

// outcome is the status label of scraper_requests_total.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, &apperrors.FormatChangedError{}):
		return "format_changed"
	case errors.Is(err, &apperrors.ErrNotFound{}), errors.Is(err, &apperrors.ErrSubtitleNotFoundInArchive{}):
		return "not_found"
	case errors.Is(err, apperrors.ErrUnexpectedPayload):
		return "unexpected_payload"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, &apperrors.TransportError{}):
		return "transport_error"
	default:
		return "error"
	}
}

// observe records the metrics and the log line of a finished operation.
func observe(operation string, start time.Time, err error) {
	status := outcome(err)
	metrics.ScraperRequestsTotal.WithLabelValues(operation, status).Inc()
	metrics.ScraperOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	logger := config.GetLogger()
	switch status {
	case "success", "not_found":
		logger.Debug().Str("operation", operation).Str("status", status).Dur("duration", time.Since(start)).Msg("Scrape finished")
	case "format_changed":
		logger.Error().Err(err).Str("operation", operation).Msg("Site format changed")
	default:
		logger.Warn().Err(err).Str("operation", operation).Str("status", status).Msg("Scrape failed")
	}
}

// absolute validates that a locator is an absolute http(s) URL.
func absolute(locator string) (string, error) {
	u, err := url.Parse(locator)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", ErrInvalidLocator
	}
	return u.String(), nil
}
