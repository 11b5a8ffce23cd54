package pool

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricCapacity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "neuronsnap_pool_capacity",
			Help: "Number of items the pool was created with",
		},
		[]string{"pool_name"},
	)
	metricWaiting = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "neuronsnap_pool_waiting",
			Help: "Number of tasks waiting to acquire an item",
		},
		[]string{"pool_name"},
	)
	metricActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "neuronsnap_pool_active",
			Help: "Number of items currently leased",
		},
		[]string{"pool_name"},
	)
	metricAcquiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neuronsnap_pool_acquired_total",
			Help: "Total number of times an item has been acquired",
		},
		[]string{"pool_name"},
	)
	metricActiveSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "neuronsnap_pool_active_seconds",
			Help: "Histogram of how long tasks held an item",
		},
		[]string{"pool_name"},
	)
	metricWaitingSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "neuronsnap_pool_waiting_seconds",
			Help: "Histogram of how long tasks have had to wait for an item",
		},
		[]string{"pool_name"},
	)
)

func init() {
	prometheus.MustRegister(metricCapacity)
	prometheus.MustRegister(metricWaiting)
	prometheus.MustRegister(metricActive)
	prometheus.MustRegister(metricAcquiredTotal)
	prometheus.MustRegister(metricActiveSeconds)
	prometheus.MustRegister(metricWaitingSeconds)
}
