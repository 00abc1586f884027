package metrics

import "github.com/prometheus/client_golang/prometheus"

// TrackingMetrics counts driver-side delivery traffic.
type TrackingMetrics struct {
	fixes         prometheus.Counter
	statusChanges *prometheus.CounterVec
}

// NewTrackingMetrics registers the tracking collectors on reg.
func NewTrackingMetrics(reg prometheus.Registerer) *TrackingMetrics {
	if reg == nil {
		return &TrackingMetrics{}
	}
	m := &TrackingMetrics{
		fixes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracking",
			Name:      "location_fixes_total",
			Help:      "Location fixes accepted from drivers.",
		}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracking",
			Name:      "delivery_status_changes_total",
			Help:      "Delivery status transitions by target status.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.fixes, m.statusChanges)
	return m
}

// IncFix counts one accepted fix.
func (m *TrackingMetrics) IncFix() {
	if m == nil || m.fixes == nil {
		return
	}
	m.fixes.Inc()
}

// IncStatusChange counts one delivery transition.
func (m *TrackingMetrics) IncStatusChange(status string) {
	if m == nil || m.statusChanges == nil {
		return
	}
	m.statusChanges.WithLabelValues(normalizeLabel(status)).Inc()
}
