package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DatastoreRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "capacity_datastore_requests_total",
		Help: "Datastore search requests by query kind (general, term, page)",
	}, []string{"kind"})
	DatastoreFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "capacity_datastore_failures_total",
		Help: "Datastore search requests that failed and were skipped",
	}, []string{"kind"})
	DatastoreDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "capacity_datastore_duration_ms",
		Help:    "Datastore request duration in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	})
	RecordsFetched = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "capacity_records_fetched",
		Help: "Distinct records retrieved in the last fetch cycle",
	})
	RecordsInRegion = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "capacity_records_in_region",
		Help: "Records used for the last summary after region filtering",
	})
	RefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "capacity_refresh_total",
		Help: "Summary refreshes by source (live, snapshot, empty)",
	}, []string{"source"})
	GrandTotalMW = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "capacity_grand_total_mw",
		Help: "Grand total capacity of the current summary in MW",
	})
)

func init() {
	prometheus.MustRegister(DatastoreRequestsTotal)
	prometheus.MustRegister(DatastoreFailuresTotal)
	prometheus.MustRegister(DatastoreDurationMs)
	prometheus.MustRegister(RecordsFetched)
	prometheus.MustRegister(RecordsInRegion)
	prometheus.MustRegister(RefreshTotal)
	prometheus.MustRegister(GrandTotalMW)
}

// Handler exposes the registered collectors for scraping.
func Handler() http.Handler { return promhttp.Handler() }
