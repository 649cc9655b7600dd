package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/LavX/opensubtitles-scraper/internal/config"
	"github.com/LavX/opensubtitles-scraper/internal/language"
	"github.com/LavX/opensubtitles-scraper/internal/models"
	"github.com/LavX/opensubtitles-scraper/internal/payload"
	"github.com/LavX/opensubtitles-scraper/internal/transport"

	"github.com/samber/lo"
)

const maxRequestBody = 1 << 20

// SearchRequest is the body of the search endpoints.
type SearchRequest struct {
	Query     string   `json:"query"`
	Year      int      `json:"year,omitempty"`
	IMDBID    string   `json:"imdbId,omitempty"`
	Kind      string   `json:"kind,omitempty"`
	Languages []string `json:"languages,omitempty"`
}

// SearchResponse lists the titles found for a query.
type SearchResponse struct {
	Results []models.SearchResult `json:"results"`
	Total   int                   `json:"total"`
	Query   string                `json:"query"`
}

// SubtitlesRequest asks for the subtitles behind a search result.
type SubtitlesRequest struct {
	DetailURL string   `json:"detailUrl"`
	Languages []string `json:"languages,omitempty"`
	Season    int      `json:"season,omitempty"`
	Episode   int      `json:"episode,omitempty"`
}

// SubtitlesResponse lists subtitle entries.
type SubtitlesResponse struct {
	Subtitles []models.SubtitleEntry `json:"subtitles"`
	Total     int                    `json:"total"`
	DetailURL string                 `json:"detailUrl,omitempty"`
}

// DownloadRequest identifies the subtitle to download.
type DownloadRequest struct {
	SubtitleID  string `json:"subtitleId"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	DetailURL   string `json:"detailUrl,omitempty"`
	FileName    string `json:"fileName,omitempty"`
	Episode     int    `json:"episode,omitempty"`
}

// DownloadResponse is the JSON form of a downloaded subtitle. Content is base64.
type DownloadResponse struct {
	FileName    string `json:"fileName"`
	Content     []byte `json:"content"`
	Size        int    `json:"size"`
	Encoding    string `json:"encoding"`
	ContentType string `json:"contentType"`
}

// ProviderRequest is the provider contract over HTTP.
type ProviderRequest struct {
	Video     models.Video        `json:"video"`
	Languages []language.Language `json:"languages,omitempty"`
}

// HealthResponse reports process and session health.
type HealthResponse struct {
	Status  string           `json:"status"`
	Version string           `json:"version"`
	Session transport.Status `json:"session"`
}

// Health reports liveness. The status is "degraded" while the session holds no valid challenge token.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	st := h.client.Status()
	status := "healthy"
	if !st.ChallengeValid {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: status, Version: Version, Session: st})
}

func (h *Handler) searchHandler(kind models.MediaKind) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		if !decode(w, r, &req) {
			return
		}

		query := models.SearchQuery{
			Title:  strings.TrimSpace(req.Query),
			Year:   req.Year,
			IMDBID: strings.TrimSpace(req.IMDBID),
			Kind:   models.ParseMediaKind(req.Kind),
			Languages: lo.Map(req.Languages, func(token string, _ int) language.Language {
				return language.Resolve(token)
			}),
		}
		if kind != models.KindUnspecified {
			query.Kind = kind
		}
		if query.Title == "" && query.IMDBID == "" {
			writeErrorResponse(w, http.StatusBadRequest, "invalid_request", "query or imdbId is required")
			return
		}

		results, err := h.client.Search(r.Context(), query)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SearchResponse{Results: results, Total: len(results), Query: query.Title})
	})
}

// Subtitles lists the subtitles behind a detail URL, optionally for one episode.
func (h *Handler) Subtitles(w http.ResponseWriter, r *http.Request) {
	var req SubtitlesRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.DetailURL) == "" {
		writeErrorResponse(w, http.StatusBadRequest, "invalid_request", "detailUrl is required")
		return
	}
	if (req.Season > 0) != (req.Episode > 0) {
		writeErrorResponse(w, http.StatusBadRequest, "invalid_request", "season and episode must be given together")
		return
	}

	result := models.SearchResult{DetailURL: strings.TrimSpace(req.DetailURL)}
	var (
		entries []models.SubtitleEntry
		err     error
	)
	if req.Season > 0 {
		entries, err = h.client.ListEpisodeSubtitles(r.Context(), result, req.Season, req.Episode)
	} else {
		entries, err = h.client.ListSubtitles(r.Context(), result)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	if len(req.Languages) > 0 {
		codes := lo.Map(req.Languages, func(token string, _ int) string { return language.Resolve(token).Code })
		entries = lo.Filter(entries, func(e models.SubtitleEntry, _ int) bool {
			return lo.Contains(codes, e.Language.Code)
		})
	}

	writeJSON(w, http.StatusOK, SubtitlesResponse{Subtitles: entries, Total: len(entries), DetailURL: result.DetailURL})
}

// Download returns the subtitle file. With ?format=json the file is wrapped in a
// JSON document with base64 content.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	var req DownloadRequest
	if !decode(w, r, &req) {
		return
	}
	if req.SubtitleID == "" && req.DownloadURL == "" {
		writeErrorResponse(w, http.StatusBadRequest, "invalid_request", "subtitleId or downloadUrl is required")
		return
	}

	entry := models.SubtitleEntry{
		ID:          strings.TrimSpace(req.SubtitleID),
		DownloadURL: strings.TrimSpace(req.DownloadURL),
		DetailURL:   strings.TrimSpace(req.DetailURL),
		FileName:    req.FileName,
	}
	p, err := h.client.DownloadEpisode(r.Context(), entry, req.Episode)
	if err != nil {
		writeError(w, err)
		return
	}

	name := p.FileName
	if filepath.Ext(name) == "" {
		name += payload.ExtensionForContentType(p.ContentType)
	}

	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, DownloadResponse{
			FileName:    name,
			Content:     p.Content,
			Size:        len(p.Content),
			Encoding:    p.Encoding,
			ContentType: p.ContentType,
		})
		return
	}

	contentType := p.ContentType
	if p.Encoding != "" {
		contentType = mime.FormatMediaType(contentType, map[string]string{"charset": p.Encoding})
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(p.Content)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(p.Content); err != nil {
		logger := config.GetLogger()
		logger.Debug().Err(err).Msg("Failed to write download response")
	}
}

// ProviderSubtitles runs the provider's search, match and ranking for a video.
func (h *Handler) ProviderSubtitles(w http.ResponseWriter, r *http.Request) {
	var req ProviderRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Video.Title) == "" && req.Video.IMDBID == "" {
		writeErrorResponse(w, http.StatusBadRequest, "invalid_request", "video.title or video.imdbId is required")
		return
	}

	entries, err := h.provider.ListSubtitles(r.Context(), req.Video, req.Languages)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SubtitlesResponse{Subtitles: entries, Total: len(entries)})
}

// decode reads a JSON body into v, answering 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		msg := "request body is required"
		if !errors.Is(err, io.EOF) {
			msg = fmt.Sprintf("invalid JSON body: %v", err)
		}
		writeErrorResponse(w, http.StatusBadRequest, "invalid_request", msg)
		return false
	}
	return true
}
