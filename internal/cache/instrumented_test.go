package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(cv *prometheus.CounterVec, group string) float64 {
	var m dto.Metric
	if err := cv.WithLabelValues(group).Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// entriesValue gathers scraper_cache_entries for group from reg.
func entriesValue(t *testing.T, reg *prometheus.Registry, group string) (float64, bool) {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != "scraper_cache_entries" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "cache" && l.GetValue() == group {
					return m.GetGauge().GetValue(), true
				}
			}
		}
	}
	return 0, false
}

// The tests below swap entriesReg and must not run in parallel.

func withRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	reg := prometheus.NewRegistry()
	old := entriesReg
	entriesReg = reg
	t.Cleanup(func() { entriesReg = old })
	return reg
}

func TestInstrumentedStore_HitsAndMisses(t *testing.T) {
	withRegistry(t)
	ctx := context.Background()
	s, err := New("memory", Options{Size: 10, TTL: time.Hour, Group: "test-lookups"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	hits, misses := counterValue(HitsTotal, "test-lookups"), counterValue(MissesTotal, "test-lookups")

	s.Get(ctx, "a")
	s.Put(ctx, page("a"))
	s.Get(ctx, "a")
	s.Get(ctx, "a")

	if got := counterValue(HitsTotal, "test-lookups") - hits; got != 2 {
		t.Errorf("Expected 2 hits, got %.0f", got)
	}
	if got := counterValue(MissesTotal, "test-lookups") - misses; got != 1 {
		t.Errorf("Expected 1 miss, got %.0f", got)
	}
}

func TestInstrumentedStore_EvictionsAndForgotten(t *testing.T) {
	withRegistry(t)
	ctx := context.Background()

	var seen []string
	s, err := New("memory", Options{Size: 2, TTL: time.Hour, Group: "test-evict", OnEvict: func(url string) { seen = append(seen, url) }})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	evictions, forgotten := counterValue(EvictionsTotal, "test-evict"), counterValue(ForgottenTotal, "test-evict")
	for i := 0; i < 3; i++ {
		s.Put(ctx, page(fmt.Sprintf("p%d", i)))
	}
	s.Forget(ctx, "p2")

	if got := counterValue(EvictionsTotal, "test-evict") - evictions; got < 1 {
		t.Errorf("Expected evictions to be counted, got %.0f", got)
	}
	if got := counterValue(ForgottenTotal, "test-evict") - forgotten; got != 1 {
		t.Errorf("Expected 1 forgotten page, got %.0f", got)
	}
	if len(seen) == 0 || seen[0] != "p0" {
		t.Errorf("Expected the caller's OnEvict to still run, got %v", seen)
	}
}

func TestInstrumentedStore_Entries(t *testing.T) {
	reg := withRegistry(t)
	ctx := context.Background()
	s, err := New("memory", Options{Size: 10, TTL: time.Hour, Group: "test-entries"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.Put(ctx, page("a"))
	s.Put(ctx, page("b"))
	if got, ok := entriesValue(t, reg, "test-entries"); !ok || got != 2 {
		t.Errorf("Expected 2 entries, got %v (found %v)", got, ok)
	}

	_ = s.Close()
	if _, ok := entriesValue(t, reg, "test-entries"); ok {
		t.Error("Expected the entries gauge to be unregistered on Close")
	}
}

func TestInstrumentedStore_ReplacesGauge(t *testing.T) {
	reg := withRegistry(t)
	ctx := context.Background()

	first, err := New("memory", Options{Size: 10, TTL: time.Hour, Group: "test-replace"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	first.Put(ctx, page("a"))

	second, err := New("memory", Options{Size: 10, TTL: time.Hour, Group: "test-replace"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer second.Close()

	if got, ok := entriesValue(t, reg, "test-replace"); !ok || got != 0 {
		t.Errorf("Expected the gauge to follow the newest store, got %v (found %v)", got, ok)
	}
}
