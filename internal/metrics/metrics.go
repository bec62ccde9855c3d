// Package metrics exposes Prometheus instrumentation for reloads and the
// active catalog.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	Reloads          *prometheus.CounterVec
	ReloadDuration   prometheus.Histogram
	CatalogChannels  prometheus.Gauge
	GuideProgrammes  prometheus.Gauge
	FavouriteKeys    prometheus.Gauge
	PlaybackFailures prometheus.Counter
}

// New registers the collectors, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "popcornguide_reloads_total",
			Help: "Playlist reloads by outcome.",
		}, []string{"result"}),
		ReloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "popcornguide_reload_duration_seconds",
			Help:    "Time spent fetching and parsing one reload.",
			Buckets: prometheus.DefBuckets,
		}),
		CatalogChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "popcornguide_catalog_channels",
			Help: "Channels in the active catalog.",
		}),
		GuideProgrammes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "popcornguide_guide_programmes",
			Help: "Programmes in the active guide.",
		}),
		FavouriteKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "popcornguide_favourite_keys",
			Help: "Favourite keys held, including keys with no current channel.",
		}),
		PlaybackFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "popcornguide_playback_failures_total",
			Help: "Stream errors reported by the player.",
		}),
	}
	reg.MustRegister(
		m.Reloads, m.ReloadDuration, m.CatalogChannels,
		m.GuideProgrammes, m.FavouriteKeys, m.PlaybackFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler returns the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
