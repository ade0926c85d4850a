// Package metrics exposes Prometheus collectors for catalog builds, the
// placeholder detector and the preview server.
package metrics

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	recordsTotal           *prometheus.CounterVec
	pagesEmittedTotal      *prometheus.CounterVec
	searchShards           prometheus.Gauge
	buildDurationSeconds   prometheus.Histogram
	placeholderVerdicts    *prometheus.CounterVec
	probeRequestsTotal     *prometheus.CounterVec
	rateLimitDelaySeconds  *prometheus.HistogramVec
	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDurationSec *prometheus.HistogramVec

	once sync.Once
)

// Init creates the collectors on a dedicated registry. It is safe to call
// more than once. Observe functions are no-ops until Init runs.
func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()
		factory := promauto.With(registry)

		recordsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_records_total",
				Help: "Source records seen by builds, labeled by outcome (loaded, dropped).",
			},
			[]string{"outcome"},
		)

		pagesEmittedTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_pages_emitted_total",
				Help: "Pages rendered, labeled by page type.",
			},
			[]string{"page"},
		)

		searchShards = factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_search_shards",
				Help: "Search shards written by the latest build.",
			},
		)

		buildDurationSeconds = factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalog_build_duration_seconds",
				Help:    "Wall time of a full build.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		)

		placeholderVerdicts = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_placeholder_verdicts_total",
				Help: "Placeholder classifications, labeled by deciding source and verdict.",
			},
			[]string{"source", "verdict"},
		)

		probeRequestsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_probe_requests_total",
				Help: "Image probe requests, labeled by site, method and status.",
			},
			[]string{"site", "method", "status"},
		)

		rateLimitDelaySeconds = factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalog_probe_rate_limit_delay_seconds",
				Help:    "Time probes spent waiting on the per-host rate limiter.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"site"},
		)

		httpRequestsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSec = factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler exposing the registry.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func WriteTextfile(path string) error {
	Init()
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// ObserveRecords adds loaded and dropped record counts.
func ObserveRecords(loaded, dropped int) {
	if recordsTotal == nil {
		return
	}
	recordsTotal.WithLabelValues("loaded").Add(float64(loaded))
	recordsTotal.WithLabelValues("dropped").Add(float64(dropped))
}

// ObservePage counts one rendered page.
func ObservePage(pageType string) {
	if pagesEmittedTotal == nil {
		return
	}
	pagesEmittedTotal.WithLabelValues(pageType).Inc()
}

// SetSearchShards records the shard count of the latest build.
func SetSearchShards(n int) {
	if searchShards == nil {
		return
	}
	searchShards.Set(float64(n))
}

// ObserveBuild records the duration of a build.
func ObserveBuild(duration time.Duration) {
	if buildDurationSeconds == nil {
		return
	}
	buildDurationSeconds.Observe(duration.Seconds())
}

// ObservePlaceholderVerdict counts a detector classification.
func ObservePlaceholderVerdict(source string, placeholder bool) {
	if placeholderVerdicts == nil {
		return
	}
	placeholderVerdicts.WithLabelValues(source, strconv.FormatBool(placeholder)).Inc()
}

// ObserveProbe counts an image probe request. status 0 means the request
// failed before a response arrived.
func ObserveProbe(rawURL, method string, status int) {
	if probeRequestsTotal == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	probeRequestsTotal.WithLabelValues(SanitizeSite(rawURL), method, code).Inc()
}

// ObserveRateLimitDelay records how long a probe waited for its host's
// limiter.
func ObserveRateLimitDelay(site string, delay time.Duration) {
	if rateLimitDelaySeconds == nil {
		return
	}
	rateLimitDelaySeconds.WithLabelValues(site).Observe(delay.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSec.WithLabelValues(method, route).Observe(duration.Seconds())
}
