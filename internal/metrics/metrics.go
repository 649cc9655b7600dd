package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Scrape operation metrics
var (
	ScraperRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total number of scrape operations by operation and outcome.",
		},
		[]string{"operation", "status"},
	)

	ScraperOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_operation_duration_seconds",
			Help:    "Duration of scrape operations.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"operation"},
	)

	// StructuralMismatchTotal counts pages whose markup no longer matches the extractors.
	StructuralMismatchTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_structural_mismatch_total",
			Help: "Total number of extractions that failed because the site markup changed.",
		},
	)

	ExtractionFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_extraction_failures_total",
			Help: "Total number of extraction failures by extractor and kind.",
		},
		[]string{"extractor", "kind"},
	)
)

// Transport session metrics
var (
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total number of HTTP requests sent to the upstream site by result.",
		},
		[]string{"result"},
	)

	TransportRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transport_retries_total",
			Help: "Total number of retried upstream requests.",
		},
	)

	ChallengeSolvesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_solves_total",
			Help: "Total number of anti-bot challenge solve attempts by result.",
		},
		[]string{"result"},
	)

	SessionRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_refreshes_total",
			Help: "Total number of session state refreshes by reason.",
		},
		[]string{"reason"},
	)

	// SessionChallengeValid is 1 while the current challenge token has not expired.
	SessionChallengeValid = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "session_challenge_valid",
			Help: "Whether the session currently holds a valid challenge token.",
		},
	)
)

// Subtitle download metrics
var (
	SubtitleDownloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtitle_downloads_total",
			Help: "Total number of subtitle downloads.",
		},
		[]string{"status"},
	)
)

// API metrics
var (
	APIRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "api_rejected_total",
			Help: "Total number of API requests rejected because too many scrapes were in flight.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ScraperRequestsTotal,
		ScraperOperationDuration,
		StructuralMismatchTotal,
		ExtractionFailuresTotal,
		UpstreamRequestsTotal,
		TransportRetriesTotal,
		ChallengeSolvesTotal,
		SessionRefreshesTotal,
		SessionChallengeValid,
		SubtitleDownloadsTotal,
		APIRejectedTotal,
	)
}
