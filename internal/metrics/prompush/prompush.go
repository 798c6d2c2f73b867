// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// Ingestion runs are batch jobs, so collectors are kept in a private registry
// and pushed to a Pushgateway on Flush instead of being scraped.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/CThaw90/refocus-dataset/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	saveCounter   *prometheus.CounterVec
	saveDuration  *prometheus.SummaryVec
	recordCounter *prometheus.CounterVec
	stmtCounter   *prometheus.CounterVec
	stmtRows      *prometheus.HistogramVec
	lookupCounter *prometheus.CounterVec
	runDuration   *prometheus.SummaryVec
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName is the Pushgateway "job" name; gatewayURL the Pushgateway base URL.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "refocus"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		saveCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.SaveTotal,
			Help: "Feed saves partitioned by feed and status.",
		}, []string{"feed", "status"}),
		saveDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.SaveDuration,
			Help:       "Duration of feed saves in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"feed", "status"}),
		recordCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Records per feed and kind (processed, skipped, inserted).",
		}, []string{"feed", "kind"}),
		stmtCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StatementsTotal,
			Help: "Multi-row INSERT statements executed per table.",
		}, []string{"table", "status"}),
		stmtRows: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.StatementRows,
			Help:    "Rows carried by each INSERT statement.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"table"}),
		lookupCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.LookupsTotal,
			Help: "Reverse-geocoding calls per provider and status.",
		}, []string{"provider", "status"}),
		runDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name: metrics.RunDuration,
			Help: "Wall time of a full run in seconds.",
		}, []string{"status"}),
	}

	for _, c := range []prometheus.Collector{
		b.saveCounter, b.saveDuration, b.recordCounter,
		b.stmtCounter, b.stmtRows, b.lookupCounter, b.runDuration,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}
	return b, nil
}

// IncCounter routes a counter update to its collector. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.SaveTotal:
		b.saveCounter.WithLabelValues(labels["feed"], labels["status"]).Add(delta)
	case metrics.RecordsTotal:
		b.recordCounter.WithLabelValues(labels["feed"], labels["kind"]).Add(delta)
	case metrics.StatementsTotal:
		b.stmtCounter.WithLabelValues(labels["table"], labels["status"]).Add(delta)
	case metrics.LookupsTotal:
		b.lookupCounter.WithLabelValues(labels["provider"], labels["status"]).Add(delta)
	}
}

// ObserveHistogram routes an observation to its collector. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case metrics.SaveDuration:
		b.saveDuration.WithLabelValues(labels["feed"], labels["status"]).Observe(value)
	case metrics.StatementRows:
		b.stmtRows.WithLabelValues(labels["table"]).Observe(value)
	case metrics.RunDuration:
		b.runDuration.WithLabelValues(labels["status"]).Observe(value)
	}
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	if err := push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push(); err != nil {
		return fmt.Errorf("prompush: push to %s: %w", b.gatewayURL, err)
	}
	return nil
}
