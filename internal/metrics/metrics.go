// Package metrics exposes bbtrace's viewer-side operational counters in
// Prometheus text exposition format, without depending on client_golang: a
// hand-rolled exposition handler is enough for the small, fixed metric set
// this system needs.
//
// Metric catalogue:
//
//	bbtrace_event_ring_dropped_total     – counter: events the agent dropped because the event ring was full
//	bbtrace_command_ring_dropped_total   – counter: commands dropped because the command ring was full
//	bbtrace_basic_block_hits_total       – counter: basic-block hits the receiver accepted into the model
//	bbtrace_symbolication_misses_total   – counter: hits dropped for "unknown location"
//	bbtrace_session_attached             – gauge: 1 once the viewer has attached to the shared segment, 0 otherwise
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
)

// Metrics holds all counters and gauges for one viewer session. The zero
// value is ready to use.
type Metrics struct {
	EventRingDropped    atomic.Int64
	CommandRingDropped  atomic.Int64
	BasicBlockHits      atomic.Int64
	SymbolicationMisses atomic.Int64
	SessionAttached     atomic.Int64
}

// New allocates a new Metrics value with all counters at zero.
func New() *Metrics {
	return &Metrics{}
}

type metricLine struct {
	name  string
	help  string
	kind  string
	value int64
}

func (m *Metrics) snapshot() []metricLine {
	return []metricLine{
		{
			name:  "bbtrace_event_ring_dropped_total",
			help:  "Total number of trace events dropped because the event ring was full.",
			kind:  "counter",
			value: m.EventRingDropped.Load(),
		},
		{
			name:  "bbtrace_command_ring_dropped_total",
			help:  "Total number of range-filter commands dropped because the command ring was full.",
			kind:  "counter",
			value: m.CommandRingDropped.Load(),
		},
		{
			name:  "bbtrace_basic_block_hits_total",
			help:  "Total number of basic-block hits accepted into the block-line model.",
			kind:  "counter",
			value: m.BasicBlockHits.Load(),
		},
		{
			name:  "bbtrace_symbolication_misses_total",
			help:  "Total number of basic-block hits dropped for unknown location.",
			kind:  "counter",
			value: m.SymbolicationMisses.Load(),
		},
		{
			name:  "bbtrace_session_attached",
			help:  "1 once the viewer has attached to the agent's shared segment, 0 otherwise.",
			kind:  "gauge",
			value: m.SessionAttached.Load(),
		},
	}
}

// Handler returns an http.Handler serving the current metric values in
// Prometheus text exposition format on every GET request.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		writeMetrics(w, m.snapshot())
	})
}

func writeMetrics(w io.Writer, lines []metricLine) {
	for _, l := range lines {
		fmt.Fprintf(w, "# HELP %s %s\n", l.name, l.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", l.name, l.kind)
		fmt.Fprintf(w, "%s %d\n", l.name, l.value)
	}
}
