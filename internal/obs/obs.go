// Package obs instruments backtest runs with Prometheus metrics. Runs are
// batch jobs, so metrics are exported as a node-exporter textfile rather
// than served.
package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder owns a private registry. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	bars        prometheus.Counter
	fills       *prometheus.CounterVec
	skipped     prometheus.Counter
	dataIssues  prometheus.Counter
	duration    prometheus.Histogram
	finalEquity prometheus.Gauge
}

func NewRecorder() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "btledger_runs_total",
		Help: "Backtest runs by outcome.",
	}, []string{"outcome"})
	r.bars = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "btledger_bars_processed_total",
		Help: "Bars passed to strategies.",
	})
	r.fills = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "btledger_fills_total",
		Help: "Executed fills by side.",
	}, []string{"side"})
	r.skipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "btledger_signals_skipped_total",
		Help: "Signals that could not be filled.",
	})
	r.dataIssues = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "btledger_data_issues_total",
		Help: "Bar validation issues found.",
	})
	r.duration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "btledger_run_duration_seconds",
		Help:    "Wall time of a backtest run.",
		Buckets: prometheus.DefBuckets,
	})
	r.finalEquity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "btledger_equity_final",
		Help: "Final equity of the last completed run.",
	})

	r.registry.MustRegister(r.runs, r.bars, r.fills, r.skipped, r.dataIssues, r.duration, r.finalEquity)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Run records a finished run with its outcome label.
func (r *Recorder) Run(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(outcome).Inc()
	r.duration.Observe(d.Seconds())
}

func (r *Recorder) Bar() {
	if r == nil {
		return
	}
	r.bars.Inc()
}

func (r *Recorder) Fill(side string) {
	if r == nil {
		return
	}
	r.fills.WithLabelValues(side).Inc()
}

func (r *Recorder) Skipped() {
	if r == nil {
		return
	}
	r.skipped.Inc()
}

func (r *Recorder) DataIssues(n int) {
	if r == nil {
		return
	}
	r.dataIssues.Add(float64(n))
}

func (r *Recorder) FinalEquity(v float64) {
	if r == nil {
		return
	}
	r.finalEquity.Set(v)
}

// WriteTextfile writes every metric to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
