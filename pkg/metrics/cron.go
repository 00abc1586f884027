package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "harvest"

// CronJobMetrics records maintenance job runs. A nil receiver is a no-op.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	rows     *prometheus.CounterVec
	skipped  prometheus.Counter
}

// NewCronJobMetrics registers the cron collectors on reg. A nil registerer
// yields a no-op recorder.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return nil
	}
	m := &CronJobMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Duration of maintenance job runs.",
			Buckets:   []float64{.05, .1, .5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_runs_total",
			Help:      "Maintenance job runs by result.",
		}, []string{"job", "result"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_rows_total",
			Help:      "Rows deleted or repaired by maintenance jobs.",
		}, []string{"job"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "cycles_skipped_total",
			Help:      "Cycles skipped because another worker held the lock.",
		}),
	}
	reg.MustRegister(m.duration, m.runs, m.rows, m.skipped)
	return m
}

// ObserveRun records one job run.
func (m *CronJobMetrics) ObserveRun(job string, elapsed time.Duration, rows int64, err error) {
	if m == nil {
		return
	}
	if job == "" {
		job = "unknown"
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.duration.WithLabelValues(job).Observe(elapsed.Seconds())
	m.runs.WithLabelValues(job, result).Inc()
	if rows > 0 {
		m.rows.WithLabelValues(job).Add(float64(rows))
	}
}

// IncSkippedCycle counts a cycle lost to another worker's lock.
func (m *CronJobMetrics) IncSkippedCycle() {
	if m == nil {
		return
	}
	m.skipped.Inc()
}
