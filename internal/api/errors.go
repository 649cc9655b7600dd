package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/LavX/opensubtitles-scraper/internal/apperrors"
	"github.com/LavX/opensubtitles-scraper/internal/client"
	"github.com/LavX/opensubtitles-scraper/internal/config"
	"github.com/LavX/opensubtitles-scraper/internal/provider"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor maps a scrape error onto an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, client.ErrInvalidQuery), errors.Is(err, client.ErrInvalidLocator), errors.Is(err, client.ErrSeriesPage):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, &apperrors.ErrNotFound{}), errors.Is(err, &apperrors.ErrSubtitleNotFoundInArchive{}):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, &apperrors.FormatChangedError{}), errors.Is(err, apperrors.ErrStructuralMismatch):
		return http.StatusBadGateway, "site_format_changed"
	case errors.Is(err, apperrors.ErrUnexpectedPayload):
		return http.StatusBadGateway, "unexpected_payload"
	case errors.Is(err, apperrors.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, apperrors.ErrChallengeUnsolvable):
		return http.StatusServiceUnavailable, "challenge_unsolvable"
	case errors.Is(err, &apperrors.TransportError{}):
		return http.StatusServiceUnavailable, "upstream_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, provider.ErrNotInitialized):
		return http.StatusServiceUnavailable, "not_ready"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	logger := config.GetLogger()
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Str("code", code).Msg("Request failed")
	} else {
		logger.Debug().Err(err).Int("status", status).Str("code", code).Msg("Request rejected")
	}
	writeErrorResponse(w, status, code, err.Error())
}

func writeErrorResponse(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := config.GetLogger()
		logger.Debug().Err(err).Msg("Failed to encode JSON response")
	}
}
