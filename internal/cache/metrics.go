package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Page store metrics, labelled by Options.Group.
var (
	HitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_cache_hits_total",
			Help: "Total number of page cache hits.",
		},
		[]string{"cache"},
	)

	MissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_cache_misses_total",
			Help: "Total number of page cache misses.",
		},
		[]string{"cache"},
	)

	EvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_cache_evictions_total",
			Help: "Total number of pages dropped from the cache.",
		},
		[]string{"cache"},
	)

	// ForgottenTotal counts pages dropped because their markup could not be extracted.
	ForgottenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_cache_forgotten_total",
			Help: "Total number of cached pages dropped after a failed extraction.",
		},
		[]string{"cache"},
	)
)

func init() {
	prometheus.MustRegister(HitsTotal, MissesTotal, EvictionsTotal, ForgottenTotal)
}

var (
	entriesMu     sync.Mutex
	entriesGauges = make(map[string]prometheus.GaugeFunc)
	// entriesReg is swapped for an isolated registry in tests.
	entriesReg prometheus.Registerer = prometheus.DefaultRegisterer
)

// registerEntries exposes scraper_cache_entries for group, read from size at
// scrape time. A gauge left by an earlier store of the same group is replaced.
func registerEntries(group string, size func() int) {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "scraper_cache_entries",
		Help:        "Current number of pages in the cache.",
		ConstLabels: prometheus.Labels{"cache": group},
	}, func() float64 { return float64(size()) })

	entriesMu.Lock()
	defer entriesMu.Unlock()
	if old, ok := entriesGauges[group]; ok {
		entriesReg.Unregister(old)
	}
	entriesGauges[group] = gauge
	_ = entriesReg.Register(gauge)
}

func unregisterEntries(group string) {
	entriesMu.Lock()
	defer entriesMu.Unlock()
	if g, ok := entriesGauges[group]; ok {
		entriesReg.Unregister(g)
		delete(entriesGauges, group)
	}
}
