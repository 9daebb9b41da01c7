// Package metrics exposes the engine's Prometheus instrumentation: a
// handful of gauges/counters updated after every indexing run, plus the
// promhttp handler the binary mounts at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FilesScanned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blacklight_files_scanned_total",
		Help: "Total number of files seen by the scanner across all runs.",
	})

	FilesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blacklight_files_processed_total",
		Help: "Total number of files successfully ingested across all runs.",
	})

	FilesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blacklight_files_skipped_total",
		Help: "Total number of unchanged files skipped across all runs.",
	})

	ParseErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blacklight_parse_errors_total",
		Help: "Total number of files that failed to parse across all runs.",
	})

	MessagesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blacklight_messages_processed_total",
		Help: "Total number of messages written across all runs.",
	})

	BlobsWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blacklight_blobs_written_total",
		Help: "Total number of content blobs inserted across all runs.",
	})

	BlobsDeduped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blacklight_blobs_deduped_total",
		Help: "Total number of content blobs that matched an existing hash across all runs.",
	})

	LastRunDurationSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "blacklight_last_run_duration_seconds",
		Help: "Wall-clock duration of the most recently completed indexing run.",
	})

	IndexerState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "blacklight_indexer_state",
		Help: "Current job.Controller state as an enum: idle=0 running=1 paused=2 completed=3 failed=4 cancelled=5.",
	})
)

func init() {
	prometheus.MustRegister(
		FilesScanned,
		FilesProcessed,
		FilesSkipped,
		ParseErrors,
		MessagesProcessed,
		BlobsWritten,
		BlobsDeduped,
		LastRunDurationSeconds,
		IndexerState,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RunReport is the subset of pipeline.Report metrics cares about; kept
// narrow so this package does not import internal/pipeline.
type RunReport struct {
	FilesScanned      int
	FilesProcessed    int
	FilesSkipped      int
	ParseErrors       int
	MessagesProcessed int
	BlobsWritten      int
	BlobsDeduped      int
	DurationSeconds   float64
}

// ObserveRun adds one completed run's counts onto the running totals and
// updates the last-run duration gauge.
func ObserveRun(r RunReport) {
	FilesScanned.Add(float64(r.FilesScanned))
	FilesProcessed.Add(float64(r.FilesProcessed))
	FilesSkipped.Add(float64(r.FilesSkipped))
	ParseErrors.Add(float64(r.ParseErrors))
	MessagesProcessed.Add(float64(r.MessagesProcessed))
	BlobsWritten.Add(float64(r.BlobsWritten))
	BlobsDeduped.Add(float64(r.BlobsDeduped))
	LastRunDurationSeconds.Set(r.DurationSeconds)
}
