package metrics

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "greengauge_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	pollTicks     *prometheus.CounterVec
	pollLatency   *prometheus.HistogramVec
	staleResults  *prometheus.CounterVec
	activePollers prometheus.Gauge

	droppedObservations *prometheus.CounterVec
	coercedValues       *prometheus.CounterVec

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	insightRequests *prometheus.CounterVec
	insightLatency  *prometheus.HistogramVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers the service metrics with the default registry.
func Init(logger *log.Logger) {
	registerOnce.Do(func() {
		pollTicks = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "poll_ticks_total",
				Help: "Telemetry poll ticks by device and result",
			},
			[]string{"device", "result"},
		)
		pollLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "poll_fetch_latency_seconds",
				Help:    "Telemetry fetch latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"device", "result"},
		)
		staleResults = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "poll_stale_results_total",
				Help: "Fetch results discarded because a newer tick or a stop superseded them",
			},
			[]string{"device"},
		)
		activePollers = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "active_pollers",
				Help: "Devices with a running live poller",
			},
		)

		droppedObservations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "observations_dropped_total",
				Help: "Observations dropped during grouping by reason",
			},
			[]string{"device", "reason"},
		)
		coercedValues = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "values_coerced_zero_total",
				Help: "Non-numeric field values replaced by zero",
			},
			[]string{"device", "field"},
		)

		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total ingest requests by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		insightRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "insight_requests_total",
				Help: "Language model requests by kind and result",
			},
			[]string{"kind", "result"},
		)
		insightLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "insight_latency_seconds",
				Help:    "Language model latency in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"kind", "result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "readings_export_total",
				Help: "Readings exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "readings_export_latency_seconds",
				Help:    "Readings export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			pollTicks,
			pollLatency,
			staleResults,
			activePollers,
			droppedObservations,
			coercedValues,
			ingestRequests,
			ingestErrors,
			ingestLatency,
			insightRequests,
			insightLatency,
			exportTotal,
			exportLatency,
		)
		if logger != nil {
			logger.Printf("metrics: registered")
		}
	})
}

// ObservePoll records one fetch and its result.
func ObservePoll(device, result string, duration time.Duration) {
	device = labelOrUnknown(device)
	if result == "" {
		result = resultSuccess
	}
	if pollTicks != nil {
		pollTicks.WithLabelValues(device, result).Inc()
	}
	if pollLatency != nil {
		pollLatency.WithLabelValues(device, result).Observe(duration.Seconds())
	}
}

// IncStaleResult counts a discarded fetch result.
func IncStaleResult(device string) {
	if staleResults != nil {
		staleResults.WithLabelValues(labelOrUnknown(device)).Inc()
	}
}

// AddActivePollers moves the active poller gauge by delta.
func AddActivePollers(delta int) {
	if activePollers != nil {
		activePollers.Add(float64(delta))
	}
}

// AddDroppedObservations counts observations dropped for reason.
func AddDroppedObservations(device, reason string, count int) {
	if count <= 0 {
		return
	}
	if droppedObservations != nil {
		droppedObservations.WithLabelValues(labelOrUnknown(device), labelOrUnknown(reason)).Add(float64(count))
	}
}

// AddCoercedValues counts field values defaulted to zero.
func AddCoercedValues(device, field string, count int) {
	if count <= 0 {
		return
	}
	if coercedValues != nil {
		coercedValues.WithLabelValues(labelOrUnknown(device), labelOrUnknown(field)).Add(float64(count))
	}
}

// ObserveIngest records ingest request duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncIngestError counts a rejected ingest request.
func IncIngestError(reason string) {
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(labelOrUnknown(reason)).Inc()
	}
}

// ObserveInsight records a language model request.
func ObserveInsight(kind, result string, duration time.Duration) {
	kind = labelOrUnknown(kind)
	if result == "" {
		result = resultSuccess
	}
	if insightRequests != nil {
		insightRequests.WithLabelValues(kind, result).Inc()
	}
	if insightLatency != nil {
		insightLatency.WithLabelValues(kind, result).Observe(duration.Seconds())
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	format = labelOrUnknown(format)
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

func labelOrUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	ReasonInvalidTimestamp = "invalid_timestamp"
	ReasonUnknownField     = "unknown_field"
)
