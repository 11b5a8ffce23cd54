package snapshot

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricFetchSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "neuronsnap_fetch_duration_seconds",
			Help:    "Time it took to fetch a complete storage map",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"map"},
	)
	metricFetchEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neuronsnap_fetch_entries_total",
			Help: "Number of storage entries fetched",
		},
		[]string{"map"},
	)
	metricFetchFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neuronsnap_fetch_failed_total",
			Help: "Number of failed storage map fetches",
		},
		[]string{"map"},
	)
	metricSnapshotSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "neuronsnap_snapshot_duration_seconds",
			Help:    "Time it took to create a complete snapshot",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		},
	)
	metricSnapshots = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "neuronsnap_snapshots_total",
			Help: "Number of snapshots created",
		},
	)
	metricSnapshotsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neuronsnap_snapshots_failed_total",
			Help: "Number of failed snapshots by error kind",
		},
		[]string{"kind"},
	)
	metricSnapshotNeurons = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "neuronsnap_snapshot_last_neurons",
			Help: "Number of neurons in the last snapshot",
		},
	)
	metricExportBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "neuronsnap_export_bytes_total",
			Help: "Number of bytes exported successfully",
		},
	)
	metricExportFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "neuronsnap_export_failed_total",
			Help: "Number of failed exports",
		},
	)
)

// errorKind returns the metric label for a snapshot error
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCheckpoint):
		return "invalid_checkpoint"
	case errors.Is(err, ErrMalformedKey):
		return "malformed_key"
	case errors.Is(err, ErrUnknownMember):
		return "unknown_member"
	case errors.Is(err, ErrMemberCount):
		return "member_count"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "other"
	}
}

func init() {
	prometheus.MustRegister(metricFetchSeconds)
	prometheus.MustRegister(metricFetchEntries)
	prometheus.MustRegister(metricFetchFailed)
	prometheus.MustRegister(metricSnapshotSeconds)
	prometheus.MustRegister(metricSnapshots)
	prometheus.MustRegister(metricSnapshotsFailed)
	prometheus.MustRegister(metricSnapshotNeurons)
	prometheus.MustRegister(metricExportBytes)
	prometheus.MustRegister(metricExportFailed)
}
