package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "foxwatt_"

	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	vendorCallsTotal   *prometheus.CounterVec
	vendorCallsLatency *prometheus.HistogramVec

	reportTotal   *prometheus.CounterVec
	reportLatency *prometheus.HistogramVec
	reportEntries prometheus.Histogram

	persistRowsTotal *prometheus.CounterVec

	exportTotal *prometheus.CounterVec

	retentionDeletedTotal prometheus.Counter
	retentionRunsTotal    *prometheus.CounterVec
)

// Register registers the metrics with the default prometheus registry. It is
// safe to call more than once. Until Register is called every Observe
// function is a no-op.
func Register() {
	registerOnce.Do(func() {
		vendorCallsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "powerfox_calls_total",
				Help: "Total Powerfox API calls by endpoint and result",
			},
			[]string{"endpoint", "result"},
		)
		vendorCallsLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "powerfox_call_latency_seconds",
				Help:    "Powerfox API call latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint", "result"},
		)

		reportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_total",
				Help: "Total report pipeline runs by granularity and result",
			},
			[]string{"granularity", "result"},
		)
		reportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_latency_seconds",
				Help:    "Report pipeline latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"granularity", "result"},
		)
		reportEntries = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_entries",
				Help:    "Number of entries returned per report",
				Buckets: []float64{0, 1, 4, 24, 96, 366, 1000},
			},
		)

		persistRowsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "persist_rows_total",
				Help: "Total upserted report rows by granularity and result",
			},
			[]string{"granularity", "result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total report exports by format and result",
			},
			[]string{"format", "result"},
		)

		retentionDeletedTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "api_log_retention_deleted_total",
				Help: "Total API call log entries removed by retention",
			},
		)
		retentionRunsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "api_log_retention_runs_total",
				Help: "Total API call log retention runs by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			vendorCallsTotal,
			vendorCallsLatency,
			reportTotal,
			reportLatency,
			reportEntries,
			persistRowsTotal,
			exportTotal,
			retentionDeletedTotal,
			retentionRunsTotal,
		)
	})
}

// Result returns the result label for err.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

// ObserveVendorCall records a Powerfox API call.
func ObserveVendorCall(endpoint, result string, duration time.Duration) {
	if endpoint == "" {
		endpoint = "unknown"
	}
	if result == "" {
		result = ResultSuccess
	}
	if vendorCallsTotal != nil {
		vendorCallsTotal.WithLabelValues(endpoint, result).Inc()
	}
	if vendorCallsLatency != nil {
		vendorCallsLatency.WithLabelValues(endpoint, result).Observe(duration.Seconds())
	}
}

// ObserveReport records a report pipeline run and how many entries it
// produced.
func ObserveReport(granularity, result string, entries int, duration time.Duration) {
	if granularity == "" {
		granularity = "unknown"
	}
	if result == "" {
		result = ResultSuccess
	}
	if reportTotal != nil {
		reportTotal.WithLabelValues(granularity, result).Inc()
	}
	if reportLatency != nil {
		reportLatency.WithLabelValues(granularity, result).Observe(duration.Seconds())
	}
	if reportEntries != nil && result == ResultSuccess {
		reportEntries.Observe(float64(entries))
	}
}

// ObservePersist records upserted rows. failed is 0 or 1 since the persister
// stops at the first failure.
func ObservePersist(granularity string, written, failed int) {
	if persistRowsTotal == nil {
		return
	}
	if written > 0 {
		persistRowsTotal.WithLabelValues(granularity, ResultSuccess).Add(float64(written))
	}
	if failed > 0 {
		persistRowsTotal.WithLabelValues(granularity, ResultError).Add(float64(failed))
	}
}

// ObserveExport records a report export.
func ObserveExport(format, result string) {
	if format == "" {
		format = "unknown"
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
}

// ObserveRetention records a retention run.
func ObserveRetention(deleted int64, err error) {
	if retentionRunsTotal != nil {
		retentionRunsTotal.WithLabelValues(Result(err)).Inc()
	}
	if retentionDeletedTotal != nil && deleted > 0 {
		retentionDeletedTotal.Add(float64(deleted))
	}
}
