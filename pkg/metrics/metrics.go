// Package metrics describes the most recent quota check.
//
// Every delivery is a separate process, so nothing accumulates between
// checks. The metrics are gauges holding the figures of the last check
// and are exported once on exit; counting checks over time is left to
// the Prometheus server, for example with changes() on
// vquota_last_check_timestamp_seconds.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Check outcome
var (
	LastCheckTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vquota_last_check_timestamp_seconds",
			Help: "Unix time the last quota check finished",
		},
	)

	LastCheckVerdict = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vquota_last_check_verdict",
			Help: "Verdict of the last quota check, 1 for the verdict reached",
		},
		[]string{"verdict"},
	)

	LastCheckError = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vquota_last_check_error",
			Help: "Kind of temporary error that ended the last quota check, 1 for the error hit",
		},
		[]string{"kind"},
	)
)

// Mailbox scan
var (
	LastScanDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vquota_last_scan_duration_seconds",
			Help: "Duration of the last mailbox scan in seconds",
		},
	)

	LastScanFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vquota_last_scan_files",
			Help: "Number of messages found by the last mailbox scan",
		},
	)

	LastScanBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vquota_last_scan_bytes",
			Help: "Allocated size of the last scanned mailbox in bytes",
		},
	)

	LastMessageSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vquota_last_message_size_bytes",
			Help: "Allocated size of the last checked message in bytes",
		},
	)
)

// Soft quota warning
var (
	LastWarningLinked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vquota_last_warning_linked",
			Help: "1 if the last check linked a soft quota warning into the mailbox",
		},
	)
)

// RecordVerdict marks verdict as the outcome of the check and stamps the
// check time.
func RecordVerdict(verdict string) {
	LastCheckVerdict.Reset()
	LastCheckVerdict.WithLabelValues(verdict).Set(1)
	LastCheckTimestamp.SetToCurrentTime()
}

// RecordError marks the check as ended by a temporary error of kind.
func RecordError(kind string) {
	LastCheckError.Reset()
	LastCheckError.WithLabelValues(kind).Set(1)
	RecordVerdict("error")
}
