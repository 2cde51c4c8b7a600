package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes map-engine metrics that are safe to scrape via Prometheus.
// Every method tolerates a nil receiver so components can run uninstrumented.
type Metrics struct {
	registry         *prometheus.Registry
	phaseRuns        *prometheus.CounterVec
	resyncDuration   *prometheus.HistogramVec
	renderedMarkers  *prometheus.GaugeVec
	skippedEntities  *prometheus.CounterVec
	iconSwaps        *prometheus.CounterVec
	iconLookups      *prometheus.CounterVec
	iconCacheEntries prometheus.Gauge
	heatmapRenders   *prometheus.CounterVec
}

// New creates a fresh Metrics registry with layer, icon and heatmap metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	phaseRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civicmap",
		Name:      "layer_phase_runs_total",
		Help:      "Count of layer update phases executed",
	}, []string{"layer", "phase"})

	resyncDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "civicmap",
		Name:      "layer_resync_duration_seconds",
		Help:      "Duration of full marker rebuilds",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
	}, []string{"layer"})

	renderedMarkers := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "civicmap",
		Name:      "layer_markers",
		Help:      "Markers currently held by each layer",
	}, []string{"layer"})

	skippedEntities := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civicmap",
		Name:      "layer_skipped_entities_total",
		Help:      "Entities left off the map because of invalid geometry",
	}, []string{"layer"})

	iconSwaps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civicmap",
		Name:      "layer_icon_swaps_total",
		Help:      "In-place marker icon replacements",
	}, []string{"layer"})

	iconLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civicmap",
		Name:      "icon_lookups_total",
		Help:      "Icon descriptor requests by entity kind and cache outcome",
	}, []string{"kind", "result"})

	iconCacheEntries := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "civicmap",
		Name:      "icon_cache_entries",
		Help:      "Distinct icon descriptors built during the process lifetime",
	})

	heatmapRenders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civicmap",
		Name:      "heatmap_renders_total",
		Help:      "Heatmap render attempts by outcome",
	}, []string{"outcome"})

	registry.MustRegister(
		phaseRuns,
		resyncDuration,
		renderedMarkers,
		skippedEntities,
		iconSwaps,
		iconLookups,
		iconCacheEntries,
		heatmapRenders,
	)

	return &Metrics{
		registry:         registry,
		phaseRuns:        phaseRuns,
		resyncDuration:   resyncDuration,
		renderedMarkers:  renderedMarkers,
		skippedEntities:  skippedEntities,
		iconSwaps:        iconSwaps,
		iconLookups:      iconLookups,
		iconCacheEntries: iconCacheEntries,
		heatmapRenders:   heatmapRenders,
	}
}

// IncPhase counts one run of a layer phase
func (m *Metrics) IncPhase(layer, phase string) {
	if m == nil {
		return
	}
	m.phaseRuns.WithLabelValues(layer, phase).Inc()
}

// ObserveResync records a completed rebuild and the resulting marker count
func (m *Metrics) ObserveResync(layer string, markers, skipped int, duration time.Duration) {
	if m == nil {
		return
	}
	m.resyncDuration.WithLabelValues(layer).Observe(duration.Seconds())
	m.renderedMarkers.WithLabelValues(layer).Set(float64(markers))
	if skipped > 0 {
		m.skippedEntities.WithLabelValues(layer).Add(float64(skipped))
	}
}

// AddIconSwaps counts in-place icon replacements
func (m *Metrics) AddIconSwaps(layer string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.iconSwaps.WithLabelValues(layer).Add(float64(n))
}

// ObserveIconLookup counts one descriptor request
func (m *Metrics) ObserveIconLookup(kind string, cached bool) {
	if m == nil {
		return
	}
	result := "miss"
	if cached {
		result = "hit"
	} else {
		m.iconCacheEntries.Inc()
	}
	m.iconLookups.WithLabelValues(kind, result).Inc()
}

// ObserveHeatmap counts one heatmap render attempt ("rendered", "empty", "failed", "hidden")
func (m *Metrics) ObserveHeatmap(outcome string) {
	if m == nil {
		return
	}
	m.heatmapRenders.WithLabelValues(outcome).Inc()
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
