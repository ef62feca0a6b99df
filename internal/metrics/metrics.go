// Package metrics exposes Prometheus instruments for ingestion runs and
// maintenance jobs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/colby-usm/GrantGuru/internal/ingest"
)

const namespace = "grantguru"

// Metrics groups every instrument the service records.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal     *prometheus.CounterVec
	recordsTotal  *prometheus.CounterVec
	runDuration   prometheus.Histogram
	lastRunStage  *prometheus.GaugeVec
	purgedTotal   prometheus.Counter
	lastSuccessTS prometheus.Gauge
}

// New registers the instruments on a fresh registry, alongside the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		runsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      "Ingestion runs by outcome.",
		}, []string{"outcome"}),
		recordsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_records_total",
			Help:      "Records seen by ingestion, by result.",
		}, []string{"result"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_run_duration_seconds",
			Help:      "Wall-clock duration of ingestion runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~2.3h
		}),
		lastRunStage: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_last_run_stage",
			Help:      "1 for the stage the most recent run ended in.",
		}, []string{"stage"}),
		purgedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grants_purged_total",
			Help:      "Archived grants deleted by maintenance.",
		}),
		lastSuccessTS: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful ingestion run.",
		}),
	}
}

// ObserveRun records one finished ingestion run.
func (m *Metrics) ObserveRun(r ingest.Report, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	} else {
		m.lastSuccessTS.SetToCurrentTime()
	}
	m.runsTotal.WithLabelValues(outcome).Inc()

	m.recordsTotal.WithLabelValues("fetched").Add(float64(r.Fetched))
	m.recordsTotal.WithLabelValues("failed").Add(float64(r.Failed))
	m.recordsTotal.WithLabelValues("filtered").Add(float64(r.Filtered))
	m.recordsTotal.WithLabelValues("inserted").Add(float64(r.Inserted))
	m.recordsTotal.WithLabelValues("updated").Add(float64(r.Updated))

	m.runDuration.Observe(r.Duration.Seconds())

	m.lastRunStage.Reset()
	m.lastRunStage.WithLabelValues(string(r.Stage)).Set(1)
}

// ObservePurge records grants removed by one purge.
func (m *Metrics) ObservePurge(removed int64) {
	m.purgedTotal.Add(float64(removed))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
