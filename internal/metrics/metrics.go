// Package metrics declares the Prometheus instruments fed by the control
// loop and the event recorder. The HTTP layer exposes them on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Chamber groups the controller instruments under one registration.
type Chamber struct {
	TickDuration         prometheus.Histogram
	Intensity            prometheus.Gauge
	DoseMJ               prometheus.Gauge
	State                *prometheus.GaugeVec
	InterlockTransitions *prometheus.CounterVec
	Events               *prometheus.CounterVec
}

// New builds the instrument set and registers it with reg. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh registry.
func New(reg prometheus.Registerer) *Chamber {
	m := &Chamber{
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "uvchamber_tick_duration_seconds",
			Help:    "Time spent inside one control loop tick",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 12),
		}),
		Intensity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uvchamber_intensity_percent",
			Help: "Commanded panel intensity after interlock arbitration",
		}),
		DoseMJ: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uvchamber_dose_mj_per_cm2",
			Help: "Accumulated radiant exposure of the current run",
		}),
		State: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "uvchamber_state",
				Help: "System state flags; 1 on the active state, 0 elsewhere",
			},
			[]string{"state"},
		),
		InterlockTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uvchamber_interlock_transitions_total",
				Help: "Debounced interlock transitions",
			},
			[]string{"to"},
		),
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uvchamber_events_total",
				Help: "State machine events by type",
			},
			[]string{"type"},
		),
	}

	reg.MustRegister(
		m.TickDuration,
		m.Intensity,
		m.DoseMJ,
		m.State,
		m.InterlockTransitions,
		m.Events,
	)
	return m
}
