package headway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instrumentation for the engine and the
// lifecycle manager, registered on a private registry so hosts can expose
// it wherever they like. All observe helpers are nil-safe: a nil *Metrics
// turns instrumentation off.
type Metrics struct {
	Registry *prometheus.Registry

	QueriesTotal  *prometheus.CounterVec
	QueryDuration prometheus.Histogram

	RefreshesTotal  *prometheus.CounterVec
	RefreshDuration prometheus.Histogram

	SnapshotStops     prometheus.Gauge
	SnapshotRoutes    prometheus.Gauge
	SnapshotTrips     prometheus.Gauge
	SnapshotFootpaths prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	queriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headway_queries_total",
			Help: "Total number of journey queries",
		},
		[]string{"status"},
	)

	queryDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "headway_query_duration_seconds",
		Help:    "Range query latency distribution",
		Buckets: prometheus.DefBuckets,
	})

	refreshesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headway_refreshes_total",
			Help: "Total number of snapshot refreshes",
		},
		[]string{"result"},
	)

	refreshDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "headway_refresh_duration_seconds",
		Help:    "Snapshot rebuild latency distribution",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	snapshotStops := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "headway_snapshot_stops",
		Help: "Stops in the active snapshot",
	})

	snapshotRoutes := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "headway_snapshot_routes",
		Help: "Route patterns in the active snapshot",
	})

	snapshotTrips := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "headway_snapshot_trips",
		Help: "Trips in the active snapshot",
	})

	snapshotFootpaths := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "headway_snapshot_footpaths",
		Help: "Footpath edges in the active snapshot",
	})

	registry.MustRegister(
		queriesTotal,
		queryDuration,
		refreshesTotal,
		refreshDuration,
		snapshotStops,
		snapshotRoutes,
		snapshotTrips,
		snapshotFootpaths,
	)

	return &Metrics{
		Registry:          registry,
		QueriesTotal:      queriesTotal,
		QueryDuration:     queryDuration,
		RefreshesTotal:    refreshesTotal,
		RefreshDuration:   refreshDuration,
		SnapshotStops:     snapshotStops,
		SnapshotRoutes:    snapshotRoutes,
		SnapshotTrips:     snapshotTrips,
		SnapshotFootpaths: snapshotFootpaths,
	}
}

func (m *Metrics) ObserveQuery(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(status).Inc()
	m.QueryDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveRefresh(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.RefreshesTotal.WithLabelValues(result).Inc()
	m.RefreshDuration.Observe(d.Seconds())
}

func (m *Metrics) SetSnapshotStats(stats Stats) {
	if m == nil {
		return
	}
	m.SnapshotStops.Set(float64(stats.Stops))
	m.SnapshotRoutes.Set(float64(stats.Routes))
	m.SnapshotTrips.Set(float64(stats.Trips))
	m.SnapshotFootpaths.Set(float64(stats.Footpaths))
}
