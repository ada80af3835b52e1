// Prometheus instrumentation for the message pipeline.
//
// HTTP-level metrics live in the middleware package; the counters here track
// domain outcomes that route labels cannot express: how messages were
// resolved, how often injection attempts fire, and how bookings end.
// Label sets are small fixed enums, so cardinality stays bounded.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// pipelineMessages counts processed inbound messages by disposition.
	pipelineMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_messages_total",
			Help: "Total inbound messages processed, by disposition.",
		},
		[]string{"disposition"},
	)

	// injectionAttempts counts detected prompt-injection attempts, including
	// those below the auto-block threshold.
	injectionAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_injection_attempts_total",
			Help: "Total detected prompt injection attempts.",
		},
	)

	// bookingOutcomes counts appointment actions requested by the model,
	// by action (book/cancel) and outcome (ok/rejected).
	bookingOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_bookings_total",
			Help: "Total appointment actions, by action and outcome.",
		},
		[]string{"action", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(pipelineMessages, injectionAttempts, bookingOutcomes)
}
