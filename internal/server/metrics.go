package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haskel/cubetime/internal/aggregator"
	"github.com/haskel/cubetime/internal/session"
)

// newMetricsHandler exposes the aggregator cache counters and store sizes
// in the Prometheus text format. The values are read at scrape time.
func newMetricsHandler(store *session.Store, agg *aggregator.Aggregator) http.Handler {
	reg := prometheus.NewRegistry()

	stat := func(pick func(aggregator.Stats) float64) func() float64 {
		return func() float64 { return pick(agg.Stats()) }
	}

	reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "cubetime_average_cache_hits_total",
			Help: "Average lookups served from the cache.",
		}, stat(func(s aggregator.Stats) float64 { return float64(s.Hits) })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "cubetime_average_cache_misses_total",
			Help: "Average lookups that needed a computation.",
		}, stat(func(s aggregator.Stats) float64 { return float64(s.Misses) })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "cubetime_average_computations_total",
			Help: "Averages computed.",
		}, stat(func(s aggregator.Stats) float64 { return float64(s.Computations) })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "cubetime_average_discarded_total",
			Help: "Computations dropped because their group was deleted.",
		}, stat(func(s aggregator.Stats) float64 { return float64(s.Discarded) })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "cubetime_average_cache_entries",
			Help: "Groups with a cached average.",
		}, stat(func(s aggregator.Stats) float64 { return float64(s.Entries) })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "cubetime_sessions",
			Help: "Sessions in the store.",
		}, func() float64 { return float64(len(store.Sessions())) }),
	)

	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
