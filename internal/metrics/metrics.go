package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion outcomes. Webhook producers always get a success-shaped
// acknowledgement, so these counters are where failed ingests surface.
var (
	EventsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ventilation_ingest_accepted_total",
		Help: "Telemetry events committed to storage.",
	})
	EventsMalformed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ventilation_ingest_malformed_total",
		Help: "Telemetry events dropped because they could not be normalized.",
	})
	EventsUnknownDevice = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ventilation_ingest_unknown_device_total",
		Help: "Telemetry events dropped because no fan matches the device id.",
	})
	EventsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ventilation_ingest_failed_total",
		Help: "Telemetry events rolled back due to a storage failure.",
	})
	MinutesCredited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ventilation_runtime_minutes_credited_total",
		Help: "Runtime minutes credited across all OFF transitions.",
	})
	ClockSkewEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ventilation_ingest_clock_skew_total",
		Help: "OFF transitions whose elapsed time was clamped to zero.",
	})
)
