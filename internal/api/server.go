// Package api serves the scraper over HTTP/JSON.
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/LavX/opensubtitles-scraper/internal/client"
	"github.com/LavX/opensubtitles-scraper/internal/config"
	"github.com/LavX/opensubtitles-scraper/internal/metrics"
	"github.com/LavX/opensubtitles-scraper/internal/models"
	"github.com/LavX/opensubtitles-scraper/internal/provider"

	"github.com/gorilla/mux"
	"golang.org/x/sync/semaphore"
)

// Version is reported by the health endpoint. It is set at build time.
var Version = "dev"

// Handler holds the dependencies of the HTTP handlers.
type Handler struct {
	client     client.Client
	provider   provider.Provider
	inflight   *semaphore.Weighted
	retryAfter time.Duration
}

// NewHandler creates the handler set. maxInflight bounds concurrent scrape requests.
func NewHandler(c client.Client, p provider.Provider, maxInflight int64, retryAfter time.Duration) *Handler {
	if maxInflight <= 0 {
		maxInflight = 1
	}
	if retryAfter <= 0 {
		retryAfter = 15 * time.Second
	}
	return &Handler{
		client:     c,
		provider:   p,
		inflight:   semaphore.NewWeighted(maxInflight),
		retryAfter: retryAfter,
	}
}

// Router registers every route on a gorilla/mux router.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(logRequests)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	v1.Handle("/search", h.limit(h.searchHandler(models.KindUnspecified))).Methods(http.MethodPost)
	v1.Handle("/search/movies", h.limit(h.searchHandler(models.KindMovie))).Methods(http.MethodPost)
	v1.Handle("/search/tv", h.limit(h.searchHandler(models.KindEpisode))).Methods(http.MethodPost)
	v1.Handle("/subtitles", h.limit(http.HandlerFunc(h.Subtitles))).Methods(http.MethodPost)
	v1.Handle("/download", h.limit(http.HandlerFunc(h.Download))).Methods(http.MethodPost)
	v1.Handle("/provider/subtitles", h.limit(http.HandlerFunc(h.ProviderSubtitles))).Methods(http.MethodPost)

	// Subrouters do not inherit these from their parent.
	for _, router := range []*mux.Router{r, v1} {
		router.NotFoundHandler = http.HandlerFunc(notFound)
		router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	}
	return r
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeErrorResponse(w, http.StatusNotFound, "not_found", "no such endpoint")
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeErrorResponse(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" is not allowed here")
}

// limit rejects the request with 429 when too many scrapes are already running.
func (h *Handler) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.inflight.TryAcquire(1) {
			metrics.APIRejectedTotal.Inc()
			logger := config.GetLogger()
			logger.Warn().Str("path", r.URL.Path).Msg("Too many scrapes in flight, rejecting request")
			w.Header().Set("Retry-After", strconv.Itoa(int(h.retryAfter.Round(time.Second).Seconds())))
			writeErrorResponse(w, http.StatusTooManyRequests, "too_many_requests", "the scraper is busy, retry later")
			return
		}
		defer h.inflight.Release(1)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger := config.GetLogger()
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// NewServer builds the HTTP server for cfg around handler.
func NewServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
