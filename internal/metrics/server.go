package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadyFunc reports whether the scraper can currently serve upstream requests.
type ReadyFunc func() bool

// NewHTTPServer serves Prometheus metrics at /metrics and a readiness probe at /readyz.
// A nil ready func always reports ready.
func NewHTTPServer(address string, port int, ready ReadyFunc) *http.Server {
	if port == 0 {
		port = 9090
	}
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", address, port),
		Handler:           Router(prometheus.DefaultGatherer, ready),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Router builds the metrics routes around gatherer.
func Router(gatherer prometheus.Gatherer, ready ReadyFunc) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if ready != nil && !ready() {
			http.Error(w, "session not ready", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	return r
}
