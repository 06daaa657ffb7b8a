package metrics

import (
	"fmt"
	"time"

	"github.com/cuemby/imgbackfill/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RecordsEnumerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgapi_backfill_records_enumerated_total",
			Help: "Total number of image records read from the backend",
		},
		[]string{"backend"},
	)

	RecordsArchived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "imgapi_backfill_records_archived_total",
			Help: "Total number of archive entries written",
		},
	)

	Failures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgapi_backfill_failures_total",
			Help: "Total number of failed runs by failing stage",
		},
		[]string{"stage"},
	)

	RecordDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "imgapi_backfill_record_duration_seconds",
			Help:    "Time to normalize and archive one record",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
	)

	RunState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "imgapi_backfill_run_state",
			Help: "Current migration run state (1 for the active state)",
		},
		[]string{"state"},
	)
)

var runStates = []types.RunState{
	types.StateIdle,
	types.StateEnumerating,
	types.StateProcessing,
	types.StateDone,
	types.StateFailed,
}

func init() {
	prometheus.MustRegister(RecordsEnumerated)
	prometheus.MustRegister(RecordsArchived)
	prometheus.MustRegister(Failures)
	prometheus.MustRegister(RecordDuration)
	prometheus.MustRegister(RunState)
}

// SetRunState marks state as the active run state
func SetRunState(state types.RunState) {
	for _, s := range runStates {
		v := 0.0
		if s == state {
			v = 1
		}
		RunState.WithLabelValues(string(s)).Set(v)
	}
}

// WriteTextfile writes all registered metrics to path in the Prometheus
// text format, for the node exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

// Timer measures the duration of one operation
type Timer struct {
	start time.Time
}

// NewTimer starts a timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time elapsed since the timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time in h
func (t *Timer) ObserveDuration(h prometheus.Observer) {
	h.Observe(t.Duration().Seconds())
}
