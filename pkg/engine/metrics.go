package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	batches    prometheus.Counter
	rows       prometheus.Counter
	reattaches prometheus.Counter
	failures   *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		batches: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "spark_connect_engine_batches_total",
			Help: "Total number of result batches decoded.",
		}),
		rows: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "spark_connect_engine_rows_total",
			Help: "Total number of result rows decoded.",
		}),
		reattaches: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "spark_connect_engine_reattaches_total",
			Help: "Total number of successful stream reattaches.",
		}),
		failures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "spark_connect_engine_failures_total",
			Help: "Total number of runs ended by an error.",
		}, []string{"reason"}),
	}
}
