package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	metricPrefix = "homewatt_"

	resultSuccess = "success"
	resultError   = "error"
	resultInvalid = "invalid"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	flushesTotal prometheus.Counter

	powerWatts    prometheus.Gauge
	dailyEnergyWh prometheus.Gauge
	dailyCost     prometheus.Gauge
	peakWatts     prometheus.Gauge
)

// Init registers the collectors. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total ingest requests by result",
			},
			[]string{"result"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		flushesTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "flushes_total",
				Help: "Total metric flushes sent to the backend",
			},
		)

		powerWatts = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "power_watts",
				Help: "Instantaneous household power draw in watts",
			},
		)
		dailyEnergyWh = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "daily_energy_wh",
				Help: "Energy consumed today in watt hours",
			},
		)
		dailyCost = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "daily_cost",
				Help: "Cost of today's consumption in local currency",
			},
		)
		peakWatts = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "peak_watts",
				Help: "Highest power draw observed today in watts",
			},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestLatency,
			flushesTotal,
			powerWatts,
			dailyEnergyWh,
			dailyCost,
			peakWatts,
		)
	})
}

// ObserveIngest records one ingest request duration and result.
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

// IncFlush counts one flush sent to the backend.
func IncFlush() {
	if flushesTotal != nil {
		flushesTotal.Inc()
	}
}

// SetSnapshot publishes the simulation accumulators as gauges.
func SetSnapshot(power, energyWh, cost, peak float64) {
	if powerWatts == nil {
		return
	}
	powerWatts.Set(power)
	dailyEnergyWh.Set(energyWh)
	dailyCost.Set(cost)
	peakWatts.Set(peak)
}

// Serve exposes /metrics on its own listener.
func Serve(addr string, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error().Err(err).Str("addr", addr).Msg("metrics listener exit")
		}
	}()
}

// Exported result constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultInvalid = resultInvalid
)
