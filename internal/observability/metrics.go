package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "field_readiness"

// Metrics holds the Prometheus counters, histograms, and gauges for the readiness service.
type Metrics struct {
	Simulations        prometheus.Counter
	FleetSimulation    prometheus.Histogram
	ETAPredictions     *prometheus.CounterVec // labels: status={ready,within_horizon,beyond_horizon}
	TruthWrites        *prometheus.CounterVec // labels: source, outcome={success,error}
	TuningMultiplier   *prometheus.GaugeVec   // labels: multiplier={dry_loss,rain_eff}
	RollForwardRunning prometheus.Gauge

	// Calibration metrics.
	CalibrationsApplied  prometheus.Counter
	CalibrationsRejected *prometheus.CounterVec // labels: reason
	RebuildDuration      prometheus.Histogram
	AuditPublished       *prometheus.CounterVec // labels: outcome={success,error}

	// Weather provider metrics.
	WeatherRequests    *prometheus.CounterVec // labels: outcome={success,error}
	WeatherCache       *prometheus.CounterVec // labels: result={hit,miss}
	WeatherAPIDuration prometheus.Histogram
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Simulations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulations_total",
			Help:      "Total per-field storage model runs.",
		}),
		FleetSimulation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fleet_simulation_duration_seconds",
			Help:      "Duration of simulating every field once.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ETAPredictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eta_predictions_total",
			Help:      "Readiness ETA predictions by status.",
		}, []string{"status"}),
		TruthWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "truth_writes_total",
			Help:      "Truth state writes by source and outcome.",
		}, []string{"source", "outcome"}),
		TuningMultiplier: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tuning_multiplier",
			Help:      "Current fleet-wide tuning multipliers.",
		}, []string{"multiplier"}),
		RollForwardRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rollforward_running",
			Help:      "1 when the daily roll-forward loop is active, 0 when shut down.",
		}),
		CalibrationsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calibrations_applied_total",
			Help:      "Total global calibrations applied.",
		}),
		CalibrationsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calibrations_rejected_total",
			Help:      "Calibration requests rejected by a guardrail, by reason.",
		}, []string{"reason"}),
		RebuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "truth_rebuild_duration_seconds",
			Help:      "Duration of a full baseline truth rebuild.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		AuditPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_published_total",
			Help:      "Calibration audit events published by outcome.",
		}, []string{"outcome"}),
		WeatherRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_requests_total",
			Help:      "Weather API requests by outcome.",
		}, []string{"outcome"}),
		WeatherCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_cache_total",
			Help:      "Weather cache lookups by result.",
		}, []string{"result"}),
		WeatherAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "weather_api_duration_seconds",
			Help:      "Weather API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}

	prometheus.MustRegister(
		m.Simulations,
		m.FleetSimulation,
		m.ETAPredictions,
		m.TruthWrites,
		m.TuningMultiplier,
		m.RollForwardRunning,
		m.CalibrationsApplied,
		m.CalibrationsRejected,
		m.RebuildDuration,
		m.AuditPublished,
		m.WeatherRequests,
		m.WeatherCache,
		m.WeatherAPIDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		Simulations:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "simulations_total"}),
		FleetSimulation:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "fleet_simulation_duration_seconds"}),
		ETAPredictions:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "eta_predictions_total"}, []string{"status"}),
		TruthWrites:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "truth_writes_total"}, []string{"source", "outcome"}),
		TuningMultiplier:     prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: "tuning_multiplier"}, []string{"multiplier"}),
		RollForwardRunning:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "rollforward_running"}),
		CalibrationsApplied:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "calibrations_applied_total"}),
		CalibrationsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "calibrations_rejected_total"}, []string{"reason"}),
		RebuildDuration:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "truth_rebuild_duration_seconds"}),
		AuditPublished:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "audit_published_total"}, []string{"outcome"}),
		WeatherRequests:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "weather_requests_total"}, []string{"outcome"}),
		WeatherCache:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "weather_cache_total"}, []string{"result"}),
		WeatherAPIDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "weather_api_duration_seconds"}),
	}
}

// RecordTuning publishes the current multipliers.
func (m *Metrics) RecordTuning(dryLoss, rainEff float64) {
	m.TuningMultiplier.WithLabelValues("dry_loss").Set(dryLoss)
	m.TuningMultiplier.WithLabelValues("rain_eff").Set(rainEff)
}
