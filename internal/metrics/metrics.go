// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the ingestion pipeline.
//
// A global, pluggable Backend defaults to a no-op implementation so metrics
// are always safe to call even when nothing is configured. Concrete systems
// live in subpackages (prompush, datadog) and are installed once by main via
// SetBackend.
package metrics

import "time"

// Metric names shared by every backend.
const (
	SaveTotal       = "refocus_save_total"
	SaveDuration    = "refocus_save_duration_seconds"
	RecordsTotal    = "refocus_records_total"
	StatementsTotal = "refocus_statements_total"
	StatementRows   = "refocus_statement_rows"
	LookupsTotal    = "refocus_lookups_total"
	RunDuration     = "refocus_run_duration_seconds"
)

// Record kinds used with RecordRecords.
const (
	KindProcessed = "processed"
	KindSkipped   = "skipped"
	KindInserted  = "inserted"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/size style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Current returns the installed backend.
func Current() Backend { return backend }

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordSave counts one feed save and observes its duration.
func RecordSave(feed string, err error, d time.Duration) {
	lbls := Labels{"feed": feed, "status": status(err)}
	backend.IncCounter(SaveTotal, 1, lbls)
	backend.ObserveHistogram(SaveDuration, d.Seconds(), lbls)
}

// RecordRecords adds delta to the per-feed record counter of the given kind
// (KindProcessed, KindSkipped, KindInserted).
func RecordRecords(feed, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{"feed": feed, "kind": kind})
}

// RecordStatement counts one executed multi-row INSERT and observes how many
// rows it carried.
func RecordStatement(table string, rows int, err error) {
	lbls := Labels{"table": table, "status": status(err)}
	backend.IncCounter(StatementsTotal, 1, lbls)
	if err == nil {
		backend.ObserveHistogram(StatementRows, float64(rows), Labels{"table": table})
	}
}

// RecordLookup counts one reverse-geocoding call by provider.
func RecordLookup(provider string, err error) {
	backend.IncCounter(LookupsTotal, 1, Labels{"provider": provider, "status": status(err)})
}

// RecordRun observes the wall time of a full run over every selected feed.
func RecordRun(err error, d time.Duration) {
	backend.ObserveHistogram(RunDuration, d.Seconds(), Labels{"status": status(err)})
}
