// Package metrics exposes Prometheus collectors for the control panel. There is
// no scrape endpoint; collectors are written to a node-exporter textfile.
package metrics

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resultScansTotal         prometheus.Counter
	resultFiles              prometheus.Gauge
	resultLoadsTotal         *prometheus.CounterVec
	resultRows               prometheus.Gauge
	resultLoadDurationSecond prometheus.Histogram
	configSavesTotal         *prometheus.CounterVec
	linksOpenedTotal         *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors on the default registry.
// It is safe to call this function multiple times. Observe* calls made before
// Init are ignored.
func Init() {
	once.Do(func() {
		resultScansTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawlerpanel_result_scans_total",
				Help: "Total number of result directory scans.",
			},
		)

		resultFiles = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawlerpanel_result_files",
				Help: "Result files found by the most recent scan.",
			},
		)

		resultLoadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawlerpanel_result_loads_total",
				Help: "Total number of result file loads, labeled by status.",
			},
			[]string{"status"},
		)

		resultRows = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawlerpanel_result_rows",
				Help: "Rows in the most recently loaded result file.",
			},
		)

		resultLoadDurationSecond = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawlerpanel_result_load_duration_seconds",
				Help:    "Histogram of result file parse durations.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		)

		configSavesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawlerpanel_config_saves_total",
				Help: "Total number of crawler settings saves, labeled by status.",
			},
			[]string{"status"},
		)

		linksOpenedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawlerpanel_links_opened_total",
				Help: "Links opened from the result explorer, labeled by site.",
			},
			[]string{"site"},
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

// ObserveScan records a result directory scan.
func ObserveScan(files int) {
	if resultScansTotal == nil {
		return
	}
	resultScansTotal.Inc()
	resultFiles.Set(float64(files))
}

// ObserveLoad records a result file load attempt.
func ObserveLoad(err error, rows int, duration time.Duration) {
	if resultLoadsTotal == nil {
		return
	}
	resultLoadsTotal.WithLabelValues(status(err)).Inc()
	resultLoadDurationSecond.Observe(duration.Seconds())
	if err == nil {
		resultRows.Set(float64(rows))
	}
}

// ObserveConfigSave records a crawler settings save attempt.
func ObserveConfigSave(err error) {
	if configSavesTotal == nil {
		return
	}
	configSavesTotal.WithLabelValues(status(err)).Inc()
}

// ObserveLinkOpened records a link handed to the desktop browser.
func ObserveLinkOpened(rawURL string) {
	if linksOpenedTotal == nil {
		return
	}
	linksOpenedTotal.WithLabelValues(SanitizeSite(rawURL)).Inc()
}

// WriteTextfile atomically writes every metric of the default registry to path
// in the text exposition format read by node-exporter's textfile collector.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
