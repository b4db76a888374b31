// SPDX-License-Identifier: MIT

// Package metrics exposes the Prometheus instruments of the kiosk pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_runs_total",
		Help: "Completed pipeline runs by outcome",
	}, []string{"outcome"})

	lastRunTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kiosk_last_run_timestamp_seconds",
		Help: "Unix time the last pipeline run finished",
	})

	downloadBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_download_bytes_total",
		Help: "Bytes written to the download directory",
	}, []string{"strategy"}) // strategy=export|direct

	downloadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kiosk_download_duration_seconds",
		Help:    "Duration of file downloads",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17min
	}, []string{"strategy", "outcome"})

	transcodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kiosk_transcode_duration_seconds",
		Help:    "Duration of successful video conversions",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~8.5min
	})

	transcodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_transcode_errors_total",
		Help: "Failed video conversions by reason",
	}, []string{"reason"}) // reason=timeout|exit|start

	playbackDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kiosk_playback_duration_seconds",
		Help:    "Wall time of playback sessions by end reason",
		Buckets: []float64{60, 600, 3600, 6 * 3600, 24 * 3600, 48 * 3600, 96 * 3600, 144 * 3600},
	}, []string{"variant", "reason"})

	playerLaunches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_player_launches_total",
		Help: "Player process launches by mechanism and result",
	}, []string{"mechanism", "result"}) // mechanism=primary|fallback

	procTerminate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_proc_terminate_total",
		Help: "Signals sent to supervised process groups",
	}, []string{"signal", "result"})

	procWait = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_proc_wait_total",
		Help: "Observed exits of supervised processes after termination",
	}, []string{"result"})
)

// RecordRun counts a finished run and stamps the last run time.
func RecordRun(outcome string) {
	runsTotal.WithLabelValues(outcome).Inc()
	lastRunTimestamp.SetToCurrentTime()
}

// AddDownloadBytes adds written bytes for a retrieval strategy.
func AddDownloadBytes(strategy string, n int) {
	downloadBytes.WithLabelValues(strategy).Add(float64(n))
}

// ObserveDownload records the duration of a download attempt.
func ObserveDownload(strategy, outcome string, d time.Duration) {
	downloadDuration.WithLabelValues(strategy, outcome).Observe(d.Seconds())
}

// ObserveTranscode records a successful conversion.
func ObserveTranscode(d time.Duration) {
	transcodeDuration.Observe(d.Seconds())
}

// IncTranscodeError counts a failed conversion.
func IncTranscodeError(reason string) {
	transcodeErrors.WithLabelValues(reason).Inc()
}

// ObservePlayback records the length of a playback session.
func ObservePlayback(variant, reason string, d time.Duration) {
	playbackDuration.WithLabelValues(variant, reason).Observe(d.Seconds())
}

// IncPlayerLaunch counts a player launch attempt.
func IncPlayerLaunch(mechanism, result string) {
	playerLaunches.WithLabelValues(mechanism, result).Inc()
}

// IncProcTerminate counts a termination signal.
func IncProcTerminate(signal, result string) {
	procTerminate.WithLabelValues(signal, result).Inc()
}

// IncProcWait counts how a terminated process exited.
func IncProcWait(result string) {
	procWait.WithLabelValues(result).Inc()
}
