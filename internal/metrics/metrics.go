// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from a goldrates run.
//
// It exposes a narrow interface (Backend) for counters and timings and a
// global, pluggable backend that defaults to a no-op, so instrumentation is
// always safe to call. Concrete systems live in subpackages (prompush,
// datadog) and are selected by the CLI.
package metrics

import "time"

// Metric names shared by all backends.
const (
	StepTotal       = "goldrates_step_total"
	StepDuration    = "goldrates_step_duration_seconds"
	RowsTotal       = "goldrates_rows_total"
	ChunksTotal     = "goldrates_chunks_total"
	defaultStatusOK = "success"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep records latency and success/failure of one pipeline step
// ("count", "read", "transform", "write", "flush").
func RecordStep(run, step string, err error, d time.Duration) {
	status := defaultStatusOK
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"run":    run,
		"step":   step,
		"status": status,
	}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRows adds delta rows of the given kind. kind is "read" for rows
// pulled from the input and "written" for rows accepted by a sink, in which
// case sink names it.
func RecordRows(run, kind, sink string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(delta), Labels{
		"run":  run,
		"kind": kind,
		"sink": sink,
	})
}

// RecordChunks increments the processed-chunk counter.
func RecordChunks(run string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(ChunksTotal, float64(delta), Labels{"run": run})
}
