// Package metrics exposes Prometheus collectors for the pipeline.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	matchesDiscoveredTotal prometheus.Counter
	matchesExportedTotal   prometheus.Counter
	shardsExportedTotal    prometheus.Counter
	resultsImportedTotal   *prometheus.CounterVec
	scrapeFailuresTotal    prometheus.Counter

	once sync.Once
)

// Init initializes the collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		matchesDiscoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "matchpipe_matches_discovered_total",
			Help: "Matches inserted by the discovery pass.",
		})
		matchesExportedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "matchpipe_matches_exported_total",
			Help: "Matches written into shard files and marked queued.",
		})
		shardsExportedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "matchpipe_shards_exported_total",
			Help: "Shard files produced by export runs.",
		})
		resultsImportedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "matchpipe_results_imported_total",
			Help: "Worker results reconciled into the store, labeled by outcome.",
		}, []string{"outcome"})
		scrapeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "matchpipe_scrape_failures_total",
			Help: "Per-match scrape failures recorded by workers.",
		})
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDiscovered counts matches inserted during discovery.
func ObserveDiscovered(n int) {
	if matchesDiscoveredTotal != nil && n > 0 {
		matchesDiscoveredTotal.Add(float64(n))
	}
}

// ObserveExport counts one export run's output.
func ObserveExport(shards, matches int) {
	if shardsExportedTotal != nil {
		shardsExportedTotal.Add(float64(shards))
		matchesExportedTotal.Add(float64(matches))
	}
}

// ObserveImport counts one reconciled result entry.
func ObserveImport(outcome string) {
	if resultsImportedTotal != nil {
		resultsImportedTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveScrapeFailure counts one failed scrape attempt.
func ObserveScrapeFailure() {
	if scrapeFailuresTotal != nil {
		scrapeFailuresTotal.Inc()
	}
}
