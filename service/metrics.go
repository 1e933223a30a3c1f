package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the fetch pipeline.
type Metrics struct {
	Registry      *prometheus.Registry
	PagesChecked  prometheus.Counter
	ImagesFound   prometheus.Counter
	Downloads     *prometheus.CounterVec
	FetchDuration prometheus.Histogram
	ResolveErrors *prometheus.CounterVec
	Cancellations prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pagesChecked := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fetchpix_pages_checked_total",
			Help: "Total product pages visited during checking.",
		},
	)
	imagesFound := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fetchpix_images_found_total",
			Help: "Total image descriptors produced by the resolver.",
		},
	)
	downloads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchpix_downloads_total",
			Help: "Total download attempts by status.",
		},
		[]string{"status"},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fetchpix_fetch_duration_seconds",
			Help:    "Image byte fetch latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	resolveErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchpix_resolve_errors_total",
			Help: "Total resolution failures by error type.",
		},
		[]string{"error_type"},
	)
	cancellations := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fetchpix_cancellations_total",
			Help: "Total cancellation requests received.",
		},
	)

	registry.MustRegister(pagesChecked, imagesFound, downloads, fetchDuration, resolveErrors, cancellations)

	return &Metrics{
		Registry:      registry,
		PagesChecked:  pagesChecked,
		ImagesFound:   imagesFound,
		Downloads:     downloads,
		FetchDuration: fetchDuration,
		ResolveErrors: resolveErrors,
		Cancellations: cancellations,
	}
}

// IncPageChecked increments the pages checked counter.
func (m *Metrics) IncPageChecked() {
	if m == nil {
		return
	}
	m.PagesChecked.Inc()
}

// AddImagesFound adds to the images found counter.
func (m *Metrics) AddImagesFound(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ImagesFound.Add(float64(n))
}

// IncDownload increments the download counter for a status label.
func (m *Metrics) IncDownload(status string) {
	if m == nil {
		return
	}
	m.Downloads.WithLabelValues(status).Inc()
}

// ObserveFetch records one byte-fetch duration.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// IncResolveError increments the resolution error counter for a type label.
func (m *Metrics) IncResolveError(errorType string) {
	if m == nil {
		return
	}
	m.ResolveErrors.WithLabelValues(errorType).Inc()
}

// IncCancellation increments the cancellation counter.
func (m *Metrics) IncCancellation() {
	if m == nil {
		return
	}
	m.Cancellations.Inc()
}
