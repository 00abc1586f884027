package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FulfillmentMetrics counts the outcomes of payment-driven fulfillment runs.
type FulfillmentMetrics struct {
	ordersCreated        prometheus.Counter
	orderFailures        prometheus.Counter
	itemFailures         prometheus.Counter
	partitionWarnings    prometheus.Counter
	notificationFailures prometheus.Counter
	amountMismatches     prometheus.Counter
	duplicateEvents      *prometheus.CounterVec
	duration             prometheus.Histogram
}

// NewFulfillmentMetrics registers the fulfillment collectors on reg. A nil
// registerer yields a no-op recorder.
func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fulfillment",
			Name:      name,
			Help:      help,
		})
	}
	m := &FulfillmentMetrics{
		ordersCreated:        counter("orders_created_total", "Orders created from paid partitions."),
		orderFailures:        counter("order_failures_total", "Partitions skipped because the order could not be created."),
		itemFailures:         counter("item_failures_total", "Order items skipped after an item or inventory failure."),
		partitionWarnings:    counter("partition_warnings_total", "Cart lines dropped because no seller could be resolved."),
		notificationFailures: counter("notification_failures_total", "Seller notifications that could not be written."),
		amountMismatches:     counter("amount_mismatches_total", "Runs whose partition totals differ from the charged amount."),
		duplicateEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "duplicate_events_total",
			Help:      "Payment events acknowledged without reprocessing.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fulfillment",
			Name:      "duration_seconds",
			Help:      "Wall time of one fulfillment run.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.ordersCreated,
		m.orderFailures,
		m.itemFailures,
		m.partitionWarnings,
		m.notificationFailures,
		m.amountMismatches,
		m.duplicateEvents,
		m.duration,
	)
	return m
}

// FulfillmentOutcome is the per-run tally handed to Observe.
type FulfillmentOutcome struct {
	OrdersCreated        int
	OrderFailures        int
	ItemFailures         int
	PartitionWarnings    int
	NotificationFailures int
	AmountMismatch       bool
	Duration             time.Duration
}

// Observe records one fulfillment run.
func (m *FulfillmentMetrics) Observe(outcome FulfillmentOutcome) {
	if m == nil || m.duration == nil {
		return
	}
	m.ordersCreated.Add(float64(outcome.OrdersCreated))
	m.orderFailures.Add(float64(outcome.OrderFailures))
	m.itemFailures.Add(float64(outcome.ItemFailures))
	m.partitionWarnings.Add(float64(outcome.PartitionWarnings))
	m.notificationFailures.Add(float64(outcome.NotificationFailures))
	if outcome.AmountMismatch {
		m.amountMismatches.Inc()
	}
	m.duration.Observe(outcome.Duration.Seconds())
}

// IncDuplicateEvent counts an acknowledged duplicate. kind is "event" for a
// redelivery and "payment" for a second event about a fulfilled payment.
func (m *FulfillmentMetrics) IncDuplicateEvent(kind string) {
	if m == nil || m.duplicateEvents == nil {
		return
	}
	m.duplicateEvents.WithLabelValues(normalizeLabel(kind)).Inc()
}
